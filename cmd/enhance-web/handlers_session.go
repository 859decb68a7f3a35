package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/fpang/media-enhance-client/internal/enhance"
	"github.com/fpang/media-enhance-client/internal/filehandler"
	"github.com/rs/zerolog/log"
)

// maxUploadBytes bounds a multipart submission: a full image batch plus
// form overhead.
const maxUploadBytes = filehandler.MaxImagesPerBatch*filehandler.MaxImageBytes + 1<<20

// GET /api/features
func (s *server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"features": enhance.Descriptors(),
	})
}

// GET /api/health
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	base := s.orch.BaseURL()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"base":      base,
		"reachable": s.probe.Reachable(r.Context(), base),
	})
}

// POST /api/sessions
func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.create()
	log.Debug().Str("session", sess.ID()).Msg("Session created")
	respondJSON(w, http.StatusCreated, sess.Snapshot())
}

// GET /api/sessions/{id}
func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(w, r)
	if sess == nil {
		return
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

// DELETE /api/sessions/{id}
func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(r.PathValue("id")) {
		httpError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/sessions/{id}/reset
func (s *server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(w, r)
	if sess == nil {
		return
	}
	sess.Reset()
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

// submitRequest is the JSON form of a submission; assets are local paths.
type submitRequest struct {
	Feature string                 `json:"feature"`
	Paths   []string               `json:"paths"`
	Options enhance.FeatureOptions `json:"options"`
}

// POST /api/sessions/{id}/submit
// Accepts either JSON with local paths or multipart/form-data with uploaded
// files under "files".
func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(w, r)
	if sess == nil {
		return
	}

	var req enhance.FeatureRequest
	var err error
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		req, err = decodeMultipartSubmit(w, r)
	} else {
		req, err = decodeJSONSubmit(r)
	}
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The call outlives this HTTP request; only Reset or deletion cancels it.
	if _, err := sess.Submit(context.WithoutCancel(r.Context()), req); err != nil {
		if errors.Is(err, enhance.ErrBusy) {
			httpError(w, http.StatusConflict, err.Error())
			return
		}
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, sess.Snapshot())
}

func decodeJSONSubmit(r *http.Request) (enhance.FeatureRequest, error) {
	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return enhance.FeatureRequest{}, errors.New("invalid request body")
	}
	kind, err := enhance.ParseFeatureKind(body.Feature)
	if err != nil {
		return enhance.FeatureRequest{}, err
	}
	if len(body.Paths) == 0 {
		return enhance.FeatureRequest{}, errors.New("no paths provided")
	}
	for _, p := range body.Paths {
		if containsPathTraversal(p) {
			return enhance.FeatureRequest{}, fmt.Errorf("invalid path: %s", p)
		}
	}

	assets, err := filehandler.LoadAssets(body.Paths)
	if err != nil {
		return enhance.FeatureRequest{}, err
	}
	return enhance.FeatureRequest{Kind: kind, Assets: assets, Options: body.Options}, nil
}

func decodeMultipartSubmit(w http.ResponseWriter, r *http.Request) (enhance.FeatureRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return enhance.FeatureRequest{}, fmt.Errorf("invalid upload: %w", err)
	}

	kind, err := enhance.ParseFeatureKind(r.FormValue("feature"))
	if err != nil {
		return enhance.FeatureRequest{}, err
	}

	opts, err := optionsFromForm(r)
	if err != nil {
		return enhance.FeatureRequest{}, err
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return enhance.FeatureRequest{}, errors.New("no files uploaded")
	}

	assets := make([]*filehandler.MediaAsset, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return enhance.FeatureRequest{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return enhance.FeatureRequest{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
		}
		assets = append(assets, filehandler.NewAssetFromBytes(path.Base(fh.Filename), "", data))
	}

	return enhance.FeatureRequest{Kind: kind, Assets: assets, Options: opts}, nil
}

func optionsFromForm(r *http.Request) (enhance.FeatureOptions, error) {
	opts := enhance.FeatureOptions{SubFeature: r.FormValue("subFeature")}
	if v := strings.TrimSpace(r.FormValue("speedFactor")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, fmt.Errorf("speedFactor: %w", err)
		}
		opts.SpeedFactor = enhance.Float64(f)
	}
	if v := strings.TrimSpace(r.FormValue("fps")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("fps: %w", err)
		}
		opts.FPS = enhance.Int(n)
	}
	return opts, nil
}

// GET /api/sessions/{id}/download
// Streams the session's processed media from the backend.
func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess := s.lookup(w, r)
	if sess == nil {
		return
	}

	snap := sess.Snapshot()
	if snap.Result == nil || snap.Result.Media == nil || snap.Result.Mock ||
		!strings.HasPrefix(snap.Result.Media.URL, s.orch.BaseURL()) {
		httpError(w, http.StatusNotFound, "no downloadable media")
		return
	}

	mediaURL := snap.Result.Media.URL
	name := path.Base(mediaURL)
	if unescaped, err := unescapeName(name); err == nil {
		name = unescaped
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Type", "application/octet-stream")

	n, err := s.transport.Download(r.Context(), mediaURL, w)
	if err == nil {
		return
	}
	log.Error().Err(err).Str("url", mediaURL).Int64("bytes", n).Msg("Download proxy failed")
	if n == 0 {
		w.Header().Del("Content-Disposition")
		httpError(w, http.StatusBadGateway, "download failed")
	}
}

// unescapeName turns the last segment of a download URL back into a file name.
func unescapeName(segment string) (string, error) {
	name, err := url.PathUnescape(segment)
	if err != nil {
		return "", err
	}
	return path.Base(name), nil
}

func (s *server) lookup(w http.ResponseWriter, r *http.Request) *enhance.Session {
	sess := s.sessions.get(r.PathValue("id"))
	if sess == nil {
		httpError(w, http.StatusNotFound, "session not found")
	}
	return sess
}
