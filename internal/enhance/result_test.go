package enhance

import "testing"

func TestProcessResult_Kind(t *testing.T) {
	tests := []struct {
		name   string
		result ProcessResult
		want   ResultKind
		ok     bool
	}{
		{"media", MediaResult("u"), ResultMedia, true},
		{"classification", ClassificationResult(Classification{TotalFrames: 100}), ResultClassification, true},
		{"failed", FailedResult("boom"), ResultFailed, false},
		{"zero value", ProcessResult{}, ResultFailed, false},
		{"mock flag only", ProcessResult{Mock: true}, ResultFailed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Kind(); got != tt.want {
				t.Errorf("Kind() = %s, want %s", got, tt.want)
			}
			if got := tt.result.OK(); got != tt.ok {
				t.Errorf("OK() = %v, want %v", got, tt.ok)
			}
		})
	}
}

func TestProcessResult_FailureMessage(t *testing.T) {
	if got := FailedResult("model not loaded").FailureMessage(); got != "model not loaded" {
		t.Errorf("FailureMessage() = %q", got)
	}
	if got := (ProcessResult{}).FailureMessage(); got != genericFailureMessage {
		t.Errorf("zero value FailureMessage() = %q, want %q", got, genericFailureMessage)
	}
}
