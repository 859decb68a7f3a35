package enhance

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/fpang/media-enhance-client/internal/filehandler"
)

func TestSynthesize_DeepfakeBounds(t *testing.T) {
	s := NewSynthesizerWithSource(rand.NewSource(42))
	req := requestFor(FeatureDeepfake)

	var fakes, reals int
	for i := 0; i < 1000; i++ {
		r := s.Synthesize(req)
		if r.Kind() != ResultClassification || !r.Mock {
			t.Fatalf("sample %d: kind=%s mock=%v", i, r.Kind(), r.Mock)
		}
		c := r.Classification
		if c.FakeProbability < 0 || c.FakeProbability >= 1 {
			t.Fatalf("sample %d: FakeProbability = %v out of [0,1)", i, c.FakeProbability)
		}
		if c.TotalFrames != 100 {
			t.Fatalf("sample %d: TotalFrames = %d, want 100", i, c.TotalFrames)
		}
		if c.FakeFrames < 0 || c.FakeFrames > c.TotalFrames {
			t.Fatalf("sample %d: FakeFrames = %d out of [0,%d]", i, c.FakeFrames, c.TotalFrames)
		}
		if c.IsFake {
			fakes++
		} else {
			reals++
		}
	}
	if fakes == 0 || reals == 0 {
		t.Errorf("IsFake never varied: %d fake, %d real", fakes, reals)
	}
}

func TestSynthesize_MediaPlaceholder(t *testing.T) {
	s := NewSynthesizerWithSource(rand.NewSource(1))
	req := FeatureRequest{
		Kind:   FeatureLLNet,
		Assets: []*filehandler.MediaAsset{videoAsset("night walk.mp4")},
	}

	r := s.Synthesize(req)

	if r.Kind() != ResultMedia || !r.Mock {
		t.Fatalf("kind=%s mock=%v", r.Kind(), r.Mock)
	}
	if want := "mock://llnet/processed_night%20walk.mp4"; r.Media.URL != want {
		t.Errorf("URL = %q, want %q", r.Media.URL, want)
	}
}

func TestPlaceholderURL_NoAssets(t *testing.T) {
	got := PlaceholderURL(FeatureSRGAN, firstAssetName(FeatureRequest{Kind: FeatureSRGAN}))
	if !strings.HasPrefix(got, "mock://srgan/") {
		t.Errorf("PlaceholderURL = %q", got)
	}
}
