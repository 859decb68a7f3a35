package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fpang/media-enhance-client/internal/enhance"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// progressBarWidth is the number of cells in a rendered bar.
const progressBarWidth = 30

// FormatProgress renders a one-line bar such as
// "[#########.....................]  31% Processing clip.mp4".
func FormatProgress(s enhance.ProgressState) string {
	pct := math.Max(0, math.Min(100, s.Percent))
	filled := int(pct / 100 * progressBarWidth)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", progressBarWidth-filled)
	line := fmt.Sprintf("[%s] %3d%%", bar, int(pct))
	if s.Label != "" {
		line += " " + s.Label
	}
	return line
}

// FormatResult renders a result for humans.
func FormatResult(r enhance.ProcessResult) string {
	var b strings.Builder
	switch r.Kind() {
	case enhance.ResultFailed:
		fmt.Fprintf(&b, "Failed: %s", r.FailureMessage())
	case enhance.ResultClassification:
		c := r.Classification
		verdict := "REAL"
		if c.IsFake {
			verdict = "FAKE"
		}
		fmt.Fprintf(&b, "Verdict: %s\n", verdict)
		fmt.Fprintf(&b, "Fake probability: %.1f%%\n", c.FakeProbability*100)
		fmt.Fprintf(&b, "Fake frames: %d of %d", c.FakeFrames, c.TotalFrames)
	default:
		fmt.Fprintf(&b, "Processed media: %s", r.Media.URL)
	}
	if r.Mock {
		b.WriteString("\n(backend unreachable: synthesized placeholder result)")
	}
	return b.String()
}
