package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fpang/media-enhance-client/internal/config"
	"github.com/fpang/media-enhance-client/internal/enhance"
	"github.com/fpang/media-enhance-client/internal/logging"
	"github.com/fpang/media-enhance-client/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// sessionIdleTimeout is how long an untouched feature page keeps its session.
const sessionIdleTimeout = time.Hour

// CLI flags
var (
	addrFlag    string
	apiBaseFlag string
)

var rootCmd = &cobra.Command{
	Use:   "enhance-web",
	Short: "Local web API for the media enhancement features",
	Long: `Enhance Web starts a local HTTP server exposing one generic feature page
as a JSON API: list the available features, pick files with the native
dialog, submit a request, poll its progress and result, and download the
processed media.

When the enhancement backend cannot be reached, submissions complete with a
synthesized placeholder result instead of failing.

Examples:
  enhance-web
  enhance-web --addr 127.0.0.1:9090
  ENHANCE_ENV=production ENHANCE_API_ORIGIN=https://gpu.example.com enhance-web`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (default from config, 127.0.0.1:8080)")
	rootCmd.Flags().StringVar(&apiBaseFlag, "api-base", "", "Backend API base URL, overrides the environment")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// server holds the dependencies shared by every handler.
type server struct {
	orch      *enhance.Orchestrator
	probe     enhance.Prober
	transport *enhance.HTTPTransport
	sessions  *sessionStore
	picker    picker
}

func newServer(baseURL string, probe enhance.Prober, transport *enhance.HTTPTransport, sink *metrics.Sink, estimatorOpts ...enhance.EstimatorOption) *server {
	orch := enhance.NewOrchestrator(baseURL, probe, transport, enhance.WithMetrics(sink))
	return &server{
		orch:      orch,
		probe:     probe,
		transport: transport,
		sessions: newSessionStore(func() *enhance.Session {
			return enhance.NewSession(orch, estimatorOpts...)
		}),
		picker: zenityPicker{},
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/features", s.handleFeatures)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/browse", s.handleBrowse)
	mux.HandleFunc("POST /api/pick", s.handlePick)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/submit", s.handleSubmit)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.handleResetSession)
	mux.HandleFunc("GET /api/sessions/{id}/download", s.handleDownload)
	return withLogging(withCORS(mux))
}

func runMain(cmd *cobra.Command, args []string) {
	start := time.Now()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if apiBaseFlag != "" {
		cfg.APIBase = apiBaseFlag
	}
	if addrFlag != "" {
		cfg.WebAddr = addrFlag
	}
	baseURL, err := cfg.BaseURL()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid API base")
	}

	var sink *metrics.Sink
	if cfg.Metrics {
		sink = metrics.NewSink(os.Stderr, metrics.DefaultNamespace)
	}

	s := newServer(baseURL,
		enhance.NewHTTPProbe(cfg.ProbeTimeout),
		enhance.NewHTTPTransport(baseURL, cfg.HTTPTimeout),
		sink,
		enhance.WithTickInterval(cfg.ProgressInterval))

	srv := &http.Server{
		Addr:         cfg.WebAddr,
		Handler:      s.routes(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(sessionIdleTimeout / 4)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sessions.prune(sessionIdleTimeout)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.NewStartupLogger("enhance-web").
		Endpoint("api", baseURL).
		Config("env", cfg.Env).
		Config("addr", cfg.WebAddr).
		Config("probeTimeout", cfg.ProbeTimeout.String()).
		Config("progressInterval", cfg.ProgressInterval.String()).
		Feature("metrics", cfg.Metrics).
		InitDuration(time.Since(start)).
		Log()

	fmt.Printf("\n  Enhance API: http://%s/api/features\n\n", cfg.WebAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// --- Middleware ---

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("API request")
		}
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only local front-ends may call the API.
		origin := r.Header.Get("Origin")
		if origin != "" && (strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
