package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fpang/media-enhance-client/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Orchestrator turns a FeatureRequest into a ProcessResult.
type Orchestrator struct {
	baseURL   string
	probe     Prober
	transport Transport
	synth     *Synthesizer
	metrics   *metrics.Sink
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSynthesizer replaces the default clock-seeded synthesizer.
func WithSynthesizer(s *Synthesizer) Option {
	return func(o *Orchestrator) { o.synth = s }
}

// WithMetrics flushes one EMF record per Process call into sink.
func WithMetrics(sink *metrics.Sink) Option {
	return func(o *Orchestrator) { o.metrics = sink }
}

// NewOrchestrator wires a probe and transport against the API base URL.
func NewOrchestrator(baseURL string, probe Prober, transport Transport, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		baseURL:   strings.TrimRight(baseURL, "/"),
		probe:     probe,
		transport: transport,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.synth == nil {
		o.synth = NewSynthesizer()
	}
	return o
}

// BaseURL returns the API base used for dispatch and download URLs.
func (o *Orchestrator) BaseURL() string {
	return o.baseURL
}

// backendResponse is the union of every endpoint's success body.
type backendResponse struct {
	Success              bool              `json:"success"`
	Error                string            `json:"error,omitempty"`
	ProcessedVideoPath   string            `json:"processedVideoPath,omitempty"`
	ProcessedImagePath   string            `json:"processedImagePath,omitempty"`
	ProcessedImageBase64 string            `json:"processedImageBase64,omitempty"`
	Result               *deepfakeResponse `json:"result,omitempty"`
}

type deepfakeResponse struct {
	IsFake          bool    `json:"is_fake"`
	FakeProbability float64 `json:"fake_probability"`
	TotalFrames     int     `json:"total_frames"`
	FakeFrames      int     `json:"fake_frames"`
}

// Process runs one request. It never panics and never returns an error:
// validation and transport failures come back as a Failed result, and an
// unreachable backend yields a synthesized Ok result.
func (o *Orchestrator) Process(ctx context.Context, req FeatureRequest) (result ProcessResult) {
	start := time.Now()
	path := "backend"

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("feature", req.Kind.String()).Msg("Process panicked")
			result = FailedResult(genericFailureMessage)
		}
		o.record(req.Kind, path, result, time.Since(start))
	}()

	if err := req.Validate(); err != nil {
		path = "validation"
		log.Warn().Err(err).Str("feature", req.Kind.String()).Msg("Request rejected")
		return FailedResult(err.Error())
	}

	if !o.probe.Reachable(ctx, o.baseURL) {
		if ctx.Err() != nil {
			path = "cancelled"
			log.Info().Str("feature", req.Kind.String()).Msg("Request cancelled before dispatch")
			return FailedResult(cancelledMessage)
		}
		path = "mock"
		log.Warn().
			Str("feature", req.Kind.String()).
			Str("base", o.baseURL).
			Msg("Backend unreachable, returning synthesized result")
		return o.synth.Synthesize(req)
	}

	desc, _ := Lookup(req.Kind)

	log.Info().
		Str("feature", req.Kind.String()).
		Str("endpoint", desc.Endpoint).
		Str("input", req.displayName()).
		Int("assets", len(req.Assets)).
		Msg("Dispatching request")

	raw, err := o.transport.Send(ctx, desc.Endpoint, req.fields(desc))
	if err != nil {
		return failureFromError(req.Kind, err)
	}

	return o.normalize(desc, raw.Body)
}

// normalize converts a 2xx body into a result.
func (o *Orchestrator) normalize(desc FeatureDescriptor, body []byte) ProcessResult {
	var resp backendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Error().Err(err).Str("body", truncate(string(body), 200)).Msg("Unparseable backend response")
		return FailedResult(genericFailureMessage)
	}

	if !resp.Success {
		log.Warn().Str("feature", desc.Kind.String()).Str("error", resp.Error).Msg("Backend reported failure")
		return FailedResult(resp.Error)
	}

	if desc.Classifies {
		if resp.Result == nil {
			return FailedResult("backend returned no detection result")
		}
		c := Classification{
			IsFake:          resp.Result.IsFake,
			FakeProbability: resp.Result.FakeProbability,
			TotalFrames:     resp.Result.TotalFrames,
			FakeFrames:      resp.Result.FakeFrames,
		}
		log.Info().
			Bool("isFake", c.IsFake).
			Float64("fakeProbability", c.FakeProbability).
			Int("fakeFrames", c.FakeFrames).
			Int("totalFrames", c.TotalFrames).
			Msg("Detection complete")
		return ClassificationResult(c)
	}

	mediaPath := resp.ProcessedVideoPath
	if mediaPath == "" {
		mediaPath = resp.ProcessedImagePath
	}
	if mediaPath == "" && resp.ProcessedImageBase64 != "" {
		return MediaResult(resp.ProcessedImageBase64)
	}
	if mediaPath == "" {
		return FailedResult("backend returned no processed media")
	}

	u := o.DownloadURL(mediaPath)
	log.Info().Str("feature", desc.Kind.String()).Str("url", u).Msg("Processing complete")
	return MediaResult(u)
}

// DownloadURL joins the API base with a server-reported media path,
// percent-encoding the path as a single segment.
func (o *Orchestrator) DownloadURL(mediaPath string) string {
	return o.baseURL + EndpointDownload + url.PathEscape(mediaPath)
}

func failureFromError(kind FeatureKind, err error) ProcessResult {
	if errors.Is(err, context.Canceled) {
		log.Info().Str("feature", kind.String()).Msg("Request cancelled")
		return FailedResult(cancelledMessage)
	}
	var te *TransportError
	if errors.As(err, &te) {
		log.Error().
			Str("feature", kind.String()).
			Str("failure", te.Kind.String()).
			Int("status", te.Status).
			Err(err).
			Msg("Processing request failed")
		return FailedResult(te.UserMessage())
	}
	log.Error().Str("feature", kind.String()).Err(err).Msg("Processing request failed")
	return FailedResult(fmt.Sprintf("%s: %v", genericFailureMessage, err))
}

func (o *Orchestrator) record(kind FeatureKind, path string, result ProcessResult, elapsed time.Duration) {
	o.metrics.New().
		Dimension("Feature", kind.String()).
		Dimension("Path", path).
		Dimension("Outcome", string(result.Kind())).
		Duration("ProcessLatencyMs", elapsed).
		Count("ProcessCount").
		Flush()
}
