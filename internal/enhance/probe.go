package enhance

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultProbeTimeout bounds one availability check.
const DefaultProbeTimeout = 3 * time.Second

// Prober reports whether the backend at baseURL is reachable.
// Implementations never return errors: every failure means "unreachable".
type Prober interface {
	Reachable(ctx context.Context, baseURL string) bool
}

// HTTPProbe checks GET <base>/health.
type HTTPProbe struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewHTTPProbe creates a probe; a non-positive timeout uses DefaultProbeTimeout.
func NewHTTPProbe(timeout time.Duration) *HTTPProbe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &HTTPProbe{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// Reachable issues a cache-busted health request. Any error, non-2xx status
// or timeout yields false.
func (p *HTTPProbe) Reachable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	url := strings.TrimRight(baseURL, "/") + EndpointHealth + "?_=" + uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Warn().Err(err).Str("base", baseURL).Msg("Health check request could not be built")
		return false
	}
	req.Header.Set("Cache-Control", "no-cache")

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Dur("duration", time.Since(start)).Msg("API health check failed")
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
	log.Debug().
		Int("statusCode", resp.StatusCode).
		Bool("reachable", ok).
		Dur("duration", time.Since(start)).
		Msg("API health check")
	return ok
}
