package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fpang/media-enhance-client/internal/filehandler"
	"github.com/fpang/media-enhance-client/internal/metrics"
)

// stubProbe reports a fixed reachability and counts calls.
type stubProbe struct {
	reachable bool
	calls     int
}

func (p *stubProbe) Reachable(ctx context.Context, baseURL string) bool {
	p.calls++
	return p.reachable
}

// stubTransport records every Send and replies with a canned response.
type stubTransport struct {
	mu        sync.Mutex
	calls     int
	endpoints []string
	fields    [][]Field

	resp *RawResponse
	err  error
}

func (t *stubTransport) Send(ctx context.Context, endpoint string, fields []Field) (*RawResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.endpoints = append(t.endpoints, endpoint)
	t.fields = append(t.fields, fields)
	if t.err != nil {
		return nil, t.err
	}
	return t.resp, nil
}

func jsonResponse(body string) *RawResponse {
	return &RawResponse{Status: http.StatusOK, Body: []byte(body)}
}

func videoAsset(name string) *filehandler.MediaAsset {
	return filehandler.NewAssetFromBytes(name, "video/mp4", []byte("fake video bytes"))
}

func imageAsset(name string) *filehandler.MediaAsset {
	return filehandler.NewAssetFromBytes(name, "image/jpeg", []byte("fake image bytes"))
}

func requestFor(kind FeatureKind) FeatureRequest {
	desc, _ := Lookup(kind)
	if desc.Accepts == filehandler.CategoryImage {
		assets := make([]*filehandler.MediaAsset, desc.MinAssets)
		for i := range assets {
			assets[i] = imageAsset("frame.jpg")
		}
		return FeatureRequest{Kind: kind, Assets: assets}
	}
	return FeatureRequest{Kind: kind, Assets: []*filehandler.MediaAsset{videoAsset("clip.mp4")}}
}

const testBase = "http://backend.test/api"

func TestProcess_OversizeRejectedWithoutTransport(t *testing.T) {
	probe := &stubProbe{reachable: true}
	transport := &stubTransport{resp: jsonResponse(`{"success":true}`)}
	o := NewOrchestrator(testBase, probe, transport)

	big := &filehandler.MediaAsset{
		Name:     "huge.mp4",
		MIMEType: "video/mp4",
		Category: filehandler.CategoryVideo,
		Size:     filehandler.MaxVideoBytes + 1,
	}
	result := o.Process(context.Background(), FeatureRequest{
		Kind:   FeatureSRGAN,
		Assets: []*filehandler.MediaAsset{big},
	})

	if result.Kind() != ResultFailed {
		t.Fatalf("Kind() = %s, want failed", result.Kind())
	}
	if !strings.Contains(result.Failure.Message, "size limit") {
		t.Errorf("message = %q, want size limit explanation", result.Failure.Message)
	}
	if transport.calls != 0 {
		t.Errorf("transport calls = %d, want 0", transport.calls)
	}
	if probe.calls != 0 {
		t.Errorf("probe calls = %d, want 0", probe.calls)
	}
}

func TestProcess_ImagesToVideoNeedsTwoImages(t *testing.T) {
	transport := &stubTransport{}
	o := NewOrchestrator(testBase, &stubProbe{reachable: true}, transport)

	result := o.Process(context.Background(), FeatureRequest{
		Kind:   FeatureImagesToVideo,
		Assets: []*filehandler.MediaAsset{imageAsset("a.jpg")},
	})

	if result.Kind() != ResultFailed {
		t.Fatalf("Kind() = %s, want failed", result.Kind())
	}
	if !strings.Contains(result.Failure.Message, "at least 2") {
		t.Errorf("message = %q, want minimum count", result.Failure.Message)
	}
	if transport.calls != 0 {
		t.Errorf("transport calls = %d, want 0", transport.calls)
	}
}

func TestProcess_UnreachableSynthesizesEveryFeature(t *testing.T) {
	for _, desc := range Descriptors() {
		t.Run(string(desc.Kind), func(t *testing.T) {
			transport := &stubTransport{}
			o := NewOrchestrator(testBase, &stubProbe{reachable: false}, transport)

			result := o.Process(context.Background(), requestFor(desc.Kind))

			if !result.OK() {
				t.Fatalf("result failed: %s", result.Failure.Message)
			}
			if !result.Mock {
				t.Error("Mock = false, want true")
			}
			if transport.calls != 0 {
				t.Errorf("transport calls = %d, want 0", transport.calls)
			}
			wantKind := ResultMedia
			if desc.Classifies {
				wantKind = ResultClassification
			}
			if result.Kind() != wantKind {
				t.Errorf("Kind() = %s, want %s", result.Kind(), wantKind)
			}
		})
	}
}

func TestProcess_MediaPathBecomesDownloadURL(t *testing.T) {
	tests := []struct {
		name string
		kind FeatureKind
		body string
		want string
	}{
		{
			name: "video path with separator",
			kind: FeatureSRGAN,
			body: `{"success":true,"processedVideoPath":"out/1.jpg"}`,
			want: testBase + "/download/out%2F1.jpg",
		},
		{
			name: "image path",
			kind: FeatureBrighten,
			body: `{"success":true,"processedImagePath":"bright me.png"}`,
			want: testBase + "/download/bright%20me.png",
		},
		{
			name: "inline base64",
			kind: FeatureBrighten,
			body: `{"success":true,"processedImageBase64":"data:image/png;base64,AAAA"}`,
			want: "data:image/png;base64,AAAA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &stubTransport{resp: jsonResponse(tt.body)}
			o := NewOrchestrator(testBase+"/", &stubProbe{reachable: true}, transport)

			result := o.Process(context.Background(), requestFor(tt.kind))

			if result.Kind() != ResultMedia {
				t.Fatalf("Kind() = %s, want media (%+v)", result.Kind(), result.Failure)
			}
			if result.Media.URL != tt.want {
				t.Errorf("URL = %q, want %q", result.Media.URL, tt.want)
			}
			if result.Mock {
				t.Error("Mock = true for a backend result")
			}
		})
	}
}

func TestProcess_DeepfakeFieldsLifted(t *testing.T) {
	transport := &stubTransport{resp: jsonResponse(`{
		"success": true,
		"result": {"is_fake": true, "fake_probability": 0.87, "total_frames": 240, "fake_frames": 209}
	}`)}
	o := NewOrchestrator(testBase, &stubProbe{reachable: true}, transport)

	result := o.Process(context.Background(), requestFor(FeatureDeepfake))

	if result.Kind() != ResultClassification {
		t.Fatalf("Kind() = %s, want classification", result.Kind())
	}
	want := Classification{IsFake: true, FakeProbability: 0.87, TotalFrames: 240, FakeFrames: 209}
	if *result.Classification != want {
		t.Errorf("Classification = %+v, want %+v", *result.Classification, want)
	}
}

func TestProcess_BackendFailures(t *testing.T) {
	tests := []struct {
		name      string
		kind      FeatureKind
		resp      *RawResponse
		err       error
		wantInMsg string
	}{
		{
			name:      "success false",
			kind:      FeatureLLNet,
			resp:      jsonResponse(`{"success":false,"error":"model not loaded"}`),
			wantInMsg: "model not loaded",
		},
		{
			name:      "success false without reason",
			kind:      FeatureLLNet,
			resp:      jsonResponse(`{"success":false}`),
			wantInMsg: genericFailureMessage,
		},
		{
			name:      "unparseable body",
			kind:      FeatureSRGAN,
			resp:      jsonResponse(`<html>oops</html>`),
			wantInMsg: genericFailureMessage,
		},
		{
			name:      "no media path",
			kind:      FeatureSRGAN,
			resp:      jsonResponse(`{"success":true}`),
			wantInMsg: "no processed media",
		},
		{
			name:      "deepfake without result",
			kind:      FeatureDeepfake,
			resp:      jsonResponse(`{"success":true}`),
			wantInMsg: "no detection result",
		},
		{
			name:      "status error with message",
			kind:      FeatureInterpolation,
			err:       &TransportError{Kind: StatusFailure, Status: 500, Message: "CUDA out of memory"},
			wantInMsg: "CUDA out of memory",
		},
		{
			name:      "status error without message",
			kind:      FeatureInterpolation,
			err:       &TransportError{Kind: StatusFailure, Status: 502},
			wantInMsg: genericFailureMessage,
		},
		{
			name:      "network error",
			kind:      FeatureInterpolation,
			err:       &TransportError{Kind: NetworkFailure, Err: errors.New("connection reset")},
			wantInMsg: genericFailureMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &stubTransport{resp: tt.resp, err: tt.err}
			o := NewOrchestrator(testBase, &stubProbe{reachable: true}, transport)

			result := o.Process(context.Background(), requestFor(tt.kind))

			if result.Kind() != ResultFailed {
				t.Fatalf("Kind() = %s, want failed", result.Kind())
			}
			if !strings.Contains(result.Failure.Message, tt.wantInMsg) {
				t.Errorf("message = %q, want it to contain %q", result.Failure.Message, tt.wantInMsg)
			}
			if transport.calls != 1 {
				t.Errorf("transport calls = %d, want exactly 1", transport.calls)
			}
		})
	}
}

func TestProcess_DispatchFields(t *testing.T) {
	transport := &stubTransport{resp: jsonResponse(`{"success":true,"processedVideoPath":"x.mp4"}`)}
	o := NewOrchestrator(testBase, &stubProbe{reachable: true}, transport)

	req := requestFor(FeatureInterpolation)
	req.Options = FeatureOptions{SubFeature: SubFeatureSpeed, SpeedFactor: Float64(2.5)}
	o.Process(context.Background(), req)

	if len(transport.endpoints) != 1 || transport.endpoints[0] != EndpointProcessVideo {
		t.Fatalf("endpoints = %v", transport.endpoints)
	}
	got := map[string]string{}
	for _, f := range transport.fields[0] {
		if f.Files != nil {
			got[f.Name] = f.Files[0].Name
			continue
		}
		got[f.Name] = f.Value
	}
	want := map[string]string{
		"video":       "clip.mp4",
		"feature":     "interpolation",
		"subFeature":  "speed",
		"speedFactor": "2.5",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("field %s = %q, want %q", k, got[k], v)
		}
	}
}

// TestProcess_EndToEnd drives the real probe and transport against an
// httptest backend that mimics the enhancement API.
func TestProcess_EndToEnd(t *testing.T) {
	var mu sync.Mutex
	var processCalls int
	var gotImages []string
	var gotFPS string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("_") == "" {
			t.Error("health check missing cache-buster")
		}
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/api/image-to-video", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		processCalls++

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, `{"error":"bad form"}`, http.StatusBadRequest)
			return
		}
		for _, fh := range r.MultipartForm.File["images"] {
			gotImages = append(gotImages, fh.Filename)
		}
		gotFPS = r.FormValue("fps")
		json.NewEncoder(w).Encode(map[string]any{
			"success":            true,
			"processedVideoPath": "videos/out 1.mp4",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	base := srv.URL + "/api"
	o := NewOrchestrator(base, NewHTTPProbe(0), NewHTTPTransport(base, 0))

	result := o.Process(context.Background(), FeatureRequest{
		Kind:    FeatureImagesToVideo,
		Assets:  []*filehandler.MediaAsset{imageAsset("001.jpg"), imageAsset("002.jpg"), imageAsset("003.jpg")},
		Options: FeatureOptions{FPS: Int(24)},
	})

	if result.Kind() != ResultMedia {
		t.Fatalf("Kind() = %s (%+v)", result.Kind(), result.Failure)
	}
	if want := base + "/download/videos%2Fout%201.mp4"; result.Media.URL != want {
		t.Errorf("URL = %q, want %q", result.Media.URL, want)
	}

	mu.Lock()
	defer mu.Unlock()
	if processCalls != 1 {
		t.Errorf("process calls = %d, want 1", processCalls)
	}
	if strings.Join(gotImages, ",") != "001.jpg,002.jpg,003.jpg" {
		t.Errorf("images = %v, want all three in order", gotImages)
	}
	if gotFPS != "24" {
		t.Errorf("fps = %q, want 24", gotFPS)
	}
}

func TestProcess_EndToEndStatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/api/process-video", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Unsupported feature: warp"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	base := srv.URL + "/api"
	o := NewOrchestrator(base, NewHTTPProbe(0), NewHTTPTransport(base, 0))

	result := o.Process(context.Background(), requestFor(FeatureLowLightTechnique))

	if result.Kind() != ResultFailed {
		t.Fatalf("Kind() = %s, want failed", result.Kind())
	}
	if result.Failure.Message != "Unsupported feature: warp" {
		t.Errorf("message = %q", result.Failure.Message)
	}
}

func TestProcess_RecordsMetrics(t *testing.T) {
	var buf bytes.Buffer
	sink := metrics.NewSink(&buf, "")
	o := NewOrchestrator(testBase, &stubProbe{reachable: false}, &stubTransport{},
		WithMetrics(sink),
		WithSynthesizer(NewSynthesizerWithSource(rand.NewSource(1))))

	o.Process(context.Background(), requestFor(FeatureSRGAN))

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("metrics output is not JSON: %v (%q)", err, buf.String())
	}
	if doc["Feature"] != "srgan" || doc["Path"] != "mock" || doc["Outcome"] != "media" {
		t.Errorf("dimensions = %v/%v/%v", doc["Feature"], doc["Path"], doc["Outcome"])
	}
	if doc["ProcessCount"] != float64(1) {
		t.Errorf("ProcessCount = %v", doc["ProcessCount"])
	}
}

// panicTransport checks that Process turns a panic into a Failed result.
type panicTransport struct{}

func (panicTransport) Send(context.Context, string, []Field) (*RawResponse, error) {
	panic("boom")
}

func TestProcess_RecoversFromPanic(t *testing.T) {
	o := NewOrchestrator(testBase, &stubProbe{reachable: true}, panicTransport{})
	result := o.Process(context.Background(), requestFor(FeatureSRGAN))
	if result.Kind() != ResultFailed {
		t.Errorf("Kind() = %s, want failed", result.Kind())
	}
}

// multipartNames is used by transport tests to list part names in order.
func multipartNames(t *testing.T, r *http.Request) []string {
	t.Helper()
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("bad content type: %v", err)
	}
	mr := multipart.NewReader(r.Body, params["boundary"])
	var names []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		names = append(names, p.FormName())
	}
	return names
}

// A caller that has already given up must get a failure, never a synthesized
// result, even though the health check could not complete.
func TestProcess_CancelledContextNeverMocks(t *testing.T) {
	var processCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/api/process-video", func(w http.ResponseWriter, r *http.Request) {
		processCalls.Add(1)
		w.Write([]byte(`{"success":true,"processedVideoPath":"x.mp4"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	base := srv.URL + "/api"
	o := NewOrchestrator(base, NewHTTPProbe(0), NewHTTPTransport(base, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := o.Process(ctx, requestFor(FeatureSRGAN))

	if result.Mock {
		t.Fatalf("result = %+v, want no synthesized result", result)
	}
	if result.Kind() != ResultFailed || result.FailureMessage() != cancelledMessage {
		t.Errorf("result = %+v, want Failed %q", result, cancelledMessage)
	}
	if n := processCalls.Load(); n != 0 {
		t.Errorf("process calls = %d, want 0", n)
	}
}

func TestProcess_CancelledDuringDispatch(t *testing.T) {
	tr := &stubTransport{err: &TransportError{Kind: NetworkFailure, Err: context.Canceled}}
	o := NewOrchestrator(testBase, &stubProbe{reachable: true}, tr)

	result := o.Process(context.Background(), requestFor(FeatureLLNet))

	if result.Kind() != ResultFailed || result.FailureMessage() != cancelledMessage {
		t.Errorf("result = %+v, want Failed %q", result, cancelledMessage)
	}
	if result.Mock {
		t.Error("cancelled dispatch must not be synthesized")
	}
}
