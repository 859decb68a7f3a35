// Package filehandler loads local media files into MediaAssets that can be
// submitted to the enhancement backend.
//
// An asset is described by its display name, MIME type, media category and
// byte size. The blob itself is never held in memory for on-disk assets:
// Open streams it from disk for the duration of one upload.
//
// Images additionally get best-effort EXIF metadata through
// evanoberholster/imagemeta. Videos carry no metadata.
package filehandler

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Category is the coarse media kind an uploader accepts.
type Category string

const (
	CategoryImage Category = "image"
	CategoryVideo Category = "video"
)

// Size ceilings enforced before any upload.
const (
	MaxImageBytes int64 = 10 * 1024 * 1024
	MaxVideoBytes int64 = 100 * 1024 * 1024

	// MaxImagesPerBatch bounds multi-image uploads (images-to-video).
	MaxImagesPerBatch = 50
)

// SupportedImageExtensions defines the file extensions that are supported for image upload.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// SupportedVideoExtensions defines the file extensions that are supported for video upload.
var SupportedVideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// MediaAsset is one file selected for processing.
//
// Path is empty for in-memory assets created with NewAssetFromBytes.
type MediaAsset struct {
	Path     string
	Name     string
	MIMEType string
	Category Category
	Size     int64
	Metadata *ImageMetadata

	data []byte
}

// LoadAsset stats a file on disk and describes it as a MediaAsset.
// The MIME type and category come from the file extension.
func LoadAsset(filePath string) (*MediaAsset, error) {
	log.Debug().Str("path", filePath).Msg("Loading media asset")

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", filePath)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	mimeType, err := GetMIMEType(ext)
	if err != nil {
		return nil, err
	}

	asset := &MediaAsset{
		Path:     filePath,
		Name:     filepath.Base(filePath),
		MIMEType: mimeType,
		Category: CategoryOf(mimeType),
		Size:     info.Size(),
	}

	if asset.Category == CategoryImage {
		meta, err := ExtractImageMetadata(filePath)
		if err != nil {
			log.Warn().Err(err).Str("path", filePath).Msg("Failed to extract image metadata, continuing without it")
		} else {
			asset.Metadata = meta
		}
	}

	log.Info().
		Str("path", filePath).
		Str("mime_type", mimeType).
		Int64("size_bytes", asset.Size).
		Msg("Media asset loaded")

	return asset, nil
}

// LoadAssets loads every path in order, failing on the first bad one.
func LoadAssets(paths []string) ([]*MediaAsset, error) {
	assets := make([]*MediaAsset, 0, len(paths))
	for _, p := range paths {
		a, err := LoadAsset(p)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// NewAssetFromBytes wraps an in-memory blob. mimeType is the declared type;
// an empty value is derived from the name's extension.
func NewAssetFromBytes(name, mimeType string, data []byte) *MediaAsset {
	if mimeType == "" {
		mimeType, _ = GetMIMEType(filepath.Ext(name))
	}
	return &MediaAsset{
		Name:     name,
		MIMEType: mimeType,
		Category: CategoryOf(mimeType),
		Size:     int64(len(data)),
		data:     data,
	}
}

// Open returns a reader over the asset's bytes. Callers must close it.
func (a *MediaAsset) Open() (io.ReadCloser, error) {
	if a.data != nil || a.Path == "" {
		return io.NopCloser(bytes.NewReader(a.data)), nil
	}
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.Name, err)
	}
	return f, nil
}

// MaxBytes returns the size ceiling for the asset's category.
func (a *MediaAsset) MaxBytes() int64 {
	return MaxBytesFor(a.Category)
}

// MaxBytesFor returns the size ceiling for a category, 0 when unknown.
func MaxBytesFor(c Category) int64 {
	switch c {
	case CategoryImage:
		return MaxImageBytes
	case CategoryVideo:
		return MaxVideoBytes
	default:
		return 0
	}
}

// CategoryOf maps a MIME type such as "video/mp4" to its category.
// Anything that is neither image/* nor video/* yields "".
func CategoryOf(mimeType string) Category {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return CategoryImage
	case strings.HasPrefix(mimeType, "video/"):
		return CategoryVideo
	default:
		return ""
	}
}

// GetMIMEType returns the MIME type for a given file extension.
func GetMIMEType(ext string) (string, error) {
	ext = strings.ToLower(ext)

	if mimeType, ok := SupportedImageExtensions[ext]; ok {
		return mimeType, nil
	}

	if mimeType, ok := SupportedVideoExtensions[ext]; ok {
		return mimeType, nil
	}

	return "", fmt.Errorf("unsupported file extension: %s", ext)
}

// IsImage returns true if the file extension corresponds to an image.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}

// IsVideo returns true if the file extension corresponds to a video.
func IsVideo(ext string) bool {
	_, ok := SupportedVideoExtensions[strings.ToLower(ext)]
	return ok
}

// IsSupported returns true if the file extension is supported (image or video).
func IsSupported(ext string) bool {
	return IsImage(ext) || IsVideo(ext)
}

// PickerPatterns returns glob patterns for a file dialog filter.
// An empty category returns patterns for every supported extension.
func PickerPatterns(c Category) []string {
	var patterns []string
	if c == "" || c == CategoryImage {
		for ext := range SupportedImageExtensions {
			patterns = append(patterns, "*"+ext)
		}
	}
	if c == "" || c == CategoryVideo {
		for ext := range SupportedVideoExtensions {
			patterns = append(patterns, "*"+ext)
		}
	}
	sort.Strings(patterns)
	return patterns
}

// FormatSize renders a byte count as a short human string (e.g. "2.0 MB").
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
