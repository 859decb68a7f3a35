package cli

import (
	"os"

	"github.com/fpang/media-enhance-client/internal/config"
	"github.com/fpang/media-enhance-client/internal/enhance"
	"github.com/fpang/media-enhance-client/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Client bundles the pieces a command needs to talk to the backend.
type Client struct {
	BaseURL      string
	Orchestrator *enhance.Orchestrator
	Transport    *enhance.HTTPTransport
	Probe        *enhance.HTTPProbe
}

// InitClient builds the orchestrator from cfg. apiBase, when non-empty,
// overrides the configured base. Exits fatally on an invalid base URL.
func InitClient(cfg *config.Config, apiBase string) *Client {
	if apiBase != "" {
		cfg.APIBase = apiBase
	}
	baseURL, err := cfg.BaseURL()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid API base")
	}

	var sink *metrics.Sink
	if cfg.Metrics {
		sink = metrics.NewSink(os.Stderr, metrics.DefaultNamespace)
	}

	probe := enhance.NewHTTPProbe(cfg.ProbeTimeout)
	transport := enhance.NewHTTPTransport(baseURL, cfg.HTTPTimeout)

	log.Debug().Str("base", baseURL).Msg("Enhancement client initialized")

	return &Client{
		BaseURL:      baseURL,
		Orchestrator: enhance.NewOrchestrator(baseURL, probe, transport, enhance.WithMetrics(sink)),
		Transport:    transport,
		Probe:        probe,
	}
}
