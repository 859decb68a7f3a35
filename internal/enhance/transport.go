package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/fpang/media-enhance-client/internal/filehandler"
	"github.com/rs/zerolog/log"
)

// Field is one multipart form field: a string value, or one or more files
// appended under the same name.
type Field struct {
	Name  string
	Value string
	Files []*filehandler.MediaAsset
}

// StringField builds a primitive field; numbers are formatted by the caller.
func StringField(name, value string) Field {
	return Field{Name: name, Value: value}
}

// FileField builds a single-file field.
func FileField(name string, asset *filehandler.MediaAsset) Field {
	return Field{Name: name, Files: []*filehandler.MediaAsset{asset}}
}

// FilesField builds a field that repeats name once per asset.
func FilesField(name string, assets ...*filehandler.MediaAsset) Field {
	return Field{Name: name, Files: assets}
}

// RawResponse is a successful (2xx) backend response.
type RawResponse struct {
	Status int
	Body   []byte
}

// Transport sends one multipart request. Implementations must not retry.
type Transport interface {
	Send(ctx context.Context, endpoint string, fields []Field) (*RawResponse, error)
}

// HTTPTransport posts multipart bodies to the backend over HTTP.
type HTTPTransport struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPTransport creates a transport rooted at baseURL (for example
// "http://localhost:5000/api"). timeout bounds a whole exchange, upload
// included; zero means no limit.
func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Send encodes fields as multipart/form-data and POSTs them to endpoint.
// A non-2xx status yields a *TransportError of kind StatusFailure and a
// connection failure one of kind NetworkFailure.
func (t *HTTPTransport) Send(ctx context.Context, endpoint string, fields []Field) (*RawResponse, error) {
	startTime := time.Now()

	body, contentType, err := encodeMultipart(fields)
	if err != nil {
		return nil, fmt.Errorf("encode multipart body: %w", err)
	}

	log.Debug().
		Str("method", http.MethodPost).
		Str("path", endpoint).
		Int("bodyBytes", body.Len()).
		Msg("Backend request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	httpResp, err := t.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Backend response")
		return nil, &TransportError{Kind: NetworkFailure, Err: err}
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Backend response")

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Kind: NetworkFailure, Err: fmt.Errorf("read response: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &TransportError{
			Kind:    StatusFailure,
			Status:  httpResp.StatusCode,
			Body:    truncate(string(respBody), 512),
			Message: parseErrorMessage(respBody),
		}
	}

	return &RawResponse{Status: httpResp.StatusCode, Body: respBody}, nil
}

// Download streams the media at mediaURL into w and returns the bytes copied.
// mediaURL is normally a Media.URL produced by the orchestrator.
func (t *HTTPTransport) Download(ctx context.Context, mediaURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, &TransportError{Kind: NetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &TransportError{
			Kind:    StatusFailure,
			Status:  resp.StatusCode,
			Body:    truncate(string(body), 512),
			Message: parseErrorMessage(body),
		}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("copy download body: %w", err)
	}
	log.Info().Str("url", mediaURL).Int64("bytes", n).Msg("Media downloaded")
	return n, nil
}

// encodeMultipart writes every field into an in-memory multipart body.
func encodeMultipart(fields []Field) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, f := range fields {
		if f.Files == nil {
			if err := mw.WriteField(f.Name, f.Value); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", f.Name, err)
			}
			continue
		}
		for _, asset := range f.Files {
			if err := writeFilePart(mw, f.Name, asset); err != nil {
				return nil, "", err
			}
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func writeFilePart(mw *multipart.Writer, name string, asset *filehandler.MediaAsset) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(name), escapeQuotes(asset.Name)))
	mimeType := asset.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", asset.Name, err)
	}

	src, err := asset.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("copy %s: %w", asset.Name, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// parseErrorMessage extracts {"error": ...} or {"message": ...} from a
// backend error body. It returns "" when the body carries neither.
func parseErrorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
