package enhance

// ResultKind tags which variant of ProcessResult is populated.
type ResultKind string

const (
	ResultMedia          ResultKind = "media"
	ResultClassification ResultKind = "classification"
	ResultFailed         ResultKind = "failed"
)

// Media is the outcome of a media-producing feature.
type Media struct {
	URL string `json:"url"`
}

// Classification is the outcome of deepfake detection.
type Classification struct {
	IsFake          bool    `json:"isFake"`
	FakeProbability float64 `json:"fakeProbability"`
	TotalFrames     int     `json:"totalFrames"`
	FakeFrames      int     `json:"fakeFrames"`
}

// Failure carries a user-facing failure message.
type Failure struct {
	Message string `json:"message"`
}

// ProcessResult is the normalized outcome of one Process call. Exactly one of
// Media, Classification and Failure is non-nil.
type ProcessResult struct {
	Media          *Media          `json:"media,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Failure        *Failure        `json:"failure,omitempty"`

	// Mock is true when the result was synthesized locally because the
	// backend was unreachable.
	Mock bool `json:"mock,omitempty"`
}

// MediaResult builds an Ok.Media result.
func MediaResult(url string) ProcessResult {
	return ProcessResult{Media: &Media{URL: url}}
}

// ClassificationResult builds an Ok.Classification result.
func ClassificationResult(c Classification) ProcessResult {
	return ProcessResult{Classification: &c}
}

// FailedResult builds a Failed result.
func FailedResult(message string) ProcessResult {
	if message == "" {
		message = genericFailureMessage
	}
	return ProcessResult{Failure: &Failure{Message: message}}
}

// Kind reports which variant is populated. A result with no variant set
// reports ResultFailed.
func (r ProcessResult) Kind() ResultKind {
	switch {
	case r.Failure != nil:
		return ResultFailed
	case r.Classification != nil:
		return ResultClassification
	case r.Media != nil:
		return ResultMedia
	default:
		return ResultFailed
	}
}

// OK is true for both success variants.
func (r ProcessResult) OK() bool {
	return r.Kind() != ResultFailed
}

// FailureMessage returns the failure text, or the generic message when the
// result carries no variant at all.
func (r ProcessResult) FailureMessage() string {
	if r.Failure == nil || r.Failure.Message == "" {
		return genericFailureMessage
	}
	return r.Failure.Message
}

// ProgressState is what a caller displays while a call is in flight.
type ProgressState struct {
	Percent float64 `json:"percent"`
	Label   string  `json:"label"`
}
