package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fpang/media-enhance-client/internal/enhance"
	"github.com/rs/zerolog/log"
)

// PromptForFeature lists every feature and reads a choice from stdin.
func PromptForFeature() (enhance.FeatureKind, error) {
	return promptForFeature(os.Stdin, os.Stdout)
}

func promptForFeature(in io.Reader, out io.Writer) (enhance.FeatureKind, error) {
	descs := enhance.Descriptors()
	fmt.Fprintln(out, "Available features:")
	for i, d := range descs {
		fmt.Fprintf(out, "  %d. %-22s %s\n", i+1, d.Label, d.Description)
	}
	fmt.Fprintf(out, "Feature [1-%d]: ", len(descs))

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		return "", fmt.Errorf("read feature choice: %w", err)
	}
	input = strings.TrimSpace(input)

	if n, err := strconv.Atoi(input); err == nil {
		if n < 1 || n > len(descs) {
			return "", fmt.Errorf("choice %d out of range", n)
		}
		return descs[n-1].Kind, nil
	}
	return enhance.ParseFeatureKind(input)
}

// PromptForPath prompts for a file or directory path, returning def when
// the user enters nothing.
func PromptForPath(label, def string) string {
	fmt.Printf("%s [%s]: ", label, def)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read input, using default")
		return def
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}
