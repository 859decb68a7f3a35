package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fpang/media-enhance-client/internal/filehandler"
	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
)

// errPickCanceled is returned by a picker when the user dismisses the dialog.
var errPickCanceled = errors.New("selection canceled")

// picker opens native selection dialogs.
type picker interface {
	PickFiles(category filehandler.Category, multiple bool) ([]string, error)
	PickDirectory() (string, error)
}

// zenityPicker uses the OS-native dialogs.
type zenityPicker struct{}

func (zenityPicker) PickFiles(category filehandler.Category, multiple bool) ([]string, error) {
	name := "Media files"
	switch category {
	case filehandler.CategoryImage:
		name = "Images"
	case filehandler.CategoryVideo:
		name = "Videos"
	}
	opts := []zenity.Option{
		zenity.Title("Select " + strings.ToLower(name)),
		zenity.FileFilters{{Name: name, Patterns: filehandler.PickerPatterns(category)}},
	}

	if multiple {
		paths, err := zenity.SelectFileMultiple(opts...)
		return paths, translateZenityErr(err)
	}
	path, err := zenity.SelectFile(opts...)
	if err != nil {
		return nil, translateZenityErr(err)
	}
	return []string{path}, nil
}

func (zenityPicker) PickDirectory() (string, error) {
	path, err := zenity.SelectFile(zenity.Directory(), zenity.Title("Select folder"))
	return path, translateZenityErr(err)
}

func translateZenityErr(err error) error {
	if errors.Is(err, zenity.ErrCanceled) {
		return errPickCanceled
	}
	return err
}

// GET /api/browse?path=...&category=image|video
func (s *server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	dirPath := r.URL.Query().Get("path")
	category := filehandler.Category(r.URL.Query().Get("category"))
	if dirPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "cannot determine home directory")
			return
		}
		dirPath = home
	}

	if containsPathTraversal(dirPath) {
		httpError(w, http.StatusBadRequest, "invalid path")
		return
	}

	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid path")
		return
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			httpError(w, http.StatusNotFound, "path not found")
			return
		}
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		httpError(w, http.StatusBadRequest, "path is not a directory")
		return
	}

	dirEntries, err := os.ReadDir(absPath)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "cannot read directory")
		return
	}

	type fileEntry struct {
		Name     string `json:"name"`
		Path     string `json:"path"`
		IsDir    bool   `json:"isDir"`
		Size     int64  `json:"size"`
		MIMEType string `json:"mimeType,omitempty"`
	}

	entries := make([]fileEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}

		entry := fileEntry{
			Name:  de.Name(),
			Path:  filepath.Join(absPath, de.Name()),
			IsDir: de.IsDir(),
			Size:  fi.Size(),
		}
		if !de.IsDir() {
			mime, err := filehandler.GetMIMEType(filepath.Ext(de.Name()))
			if err != nil {
				continue
			}
			if category != "" && filehandler.CategoryOf(mime) != category {
				continue
			}
			entry.MIMEType = mime
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})

	parent := filepath.Dir(absPath)
	if parent == absPath {
		parent = ""
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"path":    absPath,
		"parent":  parent,
		"entries": entries,
	})
}

// POST /api/pick
// Opens a native picker and returns the selected paths. In "directory" mode
// the folder is scanned and every file of the requested category returned.
func (s *server) handlePick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode     string               `json:"mode"` // "file", "files" or "directory"
		Category filehandler.Category `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var paths []string
	var err error

	switch req.Mode {
	case "file", "files":
		paths, err = s.picker.PickFiles(req.Category, req.Mode == "files")
	case "directory":
		var dir string
		dir, err = s.picker.PickDirectory()
		if err == nil {
			paths, err = scanPaths(dir, req.Category)
		}
	default:
		httpError(w, http.StatusBadRequest, "mode must be 'file', 'files' or 'directory'")
		return
	}

	if errors.Is(err, errPickCanceled) {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"paths":    []string{},
			"canceled": true,
		})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("mode", req.Mode).Msg("Picker failed")
		httpError(w, http.StatusInternalServerError, "picker failed")
		return
	}

	log.Info().Str("mode", req.Mode).Int("count", len(paths)).Msg("Files picked via native dialog")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"paths":    paths,
		"canceled": false,
	})
}

func scanPaths(dir string, category filehandler.Category) ([]string, error) {
	assets, err := filehandler.ScanDirectory(dir, filehandler.ScanOptions{
		Category: category,
		MaxDepth: 1,
		Limit:    filehandler.MaxImagesPerBatch,
	})
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(assets))
	for i, a := range assets {
		paths[i] = a.Path
	}
	return paths, nil
}
