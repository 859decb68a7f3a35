package cli

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fpang/media-enhance-client/internal/enhance"
	"github.com/rs/zerolog/log"
)

// ValidateAndResolveDirectory checks that the path exists and is a directory,
// then returns the absolute path. Exits fatally on failure.
func ValidateAndResolveDirectory(dirPath string) string {
	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatal().Str("path", dirPath).Msg("Directory not found")
		}
		log.Fatal().Err(err).Str("path", dirPath).Msg("Failed to access directory")
	}
	if !info.IsDir() {
		log.Fatal().Str("path", dirPath).Msg("Path is not a directory")
	}

	absPath, err := filepath.Abs(dirPath)
	if err == nil {
		dirPath = absPath
	}

	return dirPath
}

// ExitCode maps a result to a process exit status: 0 for success, 2 for a
// request rejected before dispatch, 1 for any other failure.
func ExitCode(r enhance.ProcessResult, validationErr error) int {
	var ve *enhance.ValidationError
	if errors.As(validationErr, &ve) {
		return 2
	}
	if r.OK() {
		return 0
	}
	return 1
}
