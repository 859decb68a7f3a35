package enhance

import (
	"math/rand"
	"net/url"
	"sync"
	"time"
)

// mockTotalFrames is the frame count reported by synthesized classifications.
const mockTotalFrames = 100

// Synthesizer fabricates plausible results when no backend is reachable.
// It is safe for concurrent use.
type Synthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthesizer seeds a synthesizer from the clock.
func NewSynthesizer() *Synthesizer {
	return NewSynthesizerWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewSynthesizerWithSource uses src for classification scores.
func NewSynthesizerWithSource(src rand.Source) *Synthesizer {
	return &Synthesizer{rng: rand.New(src)}
}

// Synthesize returns an Ok result for req. Media features get a placeholder
// reference derived from the first asset's name. Deepfake detection gets
// random scores: IsFake and FakeProbability are drawn independently.
func (s *Synthesizer) Synthesize(req FeatureRequest) ProcessResult {
	desc, _ := Lookup(req.Kind)

	if desc.Classifies {
		s.mu.Lock()
		c := Classification{
			IsFake:          s.rng.Intn(2) == 1,
			FakeProbability: s.rng.Float64(),
			TotalFrames:     mockTotalFrames,
			FakeFrames:      s.rng.Intn(mockTotalFrames + 1),
		}
		s.mu.Unlock()

		r := ClassificationResult(c)
		r.Mock = true
		return r
	}

	r := MediaResult(PlaceholderURL(req.Kind, firstAssetName(req)))
	r.Mock = true
	return r
}

// PlaceholderURL is the reference used for synthesized media results.
func PlaceholderURL(kind FeatureKind, name string) string {
	return "mock://" + string(kind) + "/processed_" + url.PathEscape(name)
}

func firstAssetName(req FeatureRequest) string {
	if len(req.Assets) == 0 || req.Assets[0] == nil {
		return ""
	}
	return req.Assets[0].Name
}
