package filehandler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// ScanOptions configures directory scanning behavior.
type ScanOptions struct {
	// Category restricts results to one media kind. Empty accepts both.
	Category Category

	// MaxDepth limits recursion depth. 0 = unlimited, 1 = top-level only.
	MaxDepth int

	// Limit caps the number of assets returned. 0 = unlimited.
	Limit int
}

// ScanDirectory walks dirPath and loads every supported file as an asset.
// Symlinks to files are followed; symlinks to directories are skipped.
// Results are sorted by path so numbered frame sequences keep their order.
func ScanDirectory(dirPath string, opts ScanOptions) ([]*MediaAsset, error) {
	log.Info().
		Str("path", dirPath).
		Str("category", string(opts.Category)).
		Int("max_depth", opts.MaxDepth).
		Int("limit", opts.Limit).
		Msg("Scanning directory for media")

	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s", dirPath)
		}
		return nil, fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dirPath)
	}

	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	baseDepth := strings.Count(absPath, string(os.PathSeparator))

	var assets []*MediaAsset
	limitReached := false

	err = filepath.WalkDir(absPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error accessing path, skipping")
			return nil
		}

		if opts.MaxDepth > 0 && d.IsDir() && path != absPath {
			if strings.Count(path, string(os.PathSeparator))-baseDepth >= opts.MaxDepth {
				return fs.SkipDir
			}
		}
		if d.IsDir() {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Failed to resolve symlink, skipping")
				return nil
			}
			if ti, err := os.Stat(target); err != nil || ti.IsDir() {
				return nil
			}
		}

		if opts.Limit > 0 && len(assets) >= opts.Limit {
			limitReached = true
			return fs.SkipAll
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		switch opts.Category {
		case CategoryImage:
			if !IsImage(ext) {
				return nil
			}
		case CategoryVideo:
			if !IsVideo(ext) {
				return nil
			}
		default:
			if !IsSupported(ext) {
				return nil
			}
		}

		asset, err := LoadAsset(path)
		if err != nil {
			log.Warn().Err(err).Str("file", d.Name()).Msg("Failed to load media asset, skipping")
			return nil
		}
		assets = append(assets, asset)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Path < assets[j].Path
	})

	evt := log.Info().Int("total", len(assets)).Str("directory", dirPath)
	if limitReached {
		evt.Bool("limit_reached", true)
	}
	evt.Msg("Directory scan complete")

	return assets, nil
}
