package enhance

import (
	"fmt"
	"math"
	"strconv"

	"github.com/fpang/media-enhance-client/internal/filehandler"
)

// FeatureOptions are the optional, feature-dependent parameters.
type FeatureOptions struct {
	SubFeature  string   `json:"subFeature,omitempty"`
	SpeedFactor *float64 `json:"speedFactor,omitempty"`
	FPS         *int     `json:"fps,omitempty"`
}

// FeatureRequest is one submission: a feature, its input assets and options.
// The assets are borrowed for the duration of one Process call.
type FeatureRequest struct {
	Kind    FeatureKind
	Assets  []*filehandler.MediaAsset
	Options FeatureOptions
}

// Validate checks asset count, category and size, and the options against
// the feature's descriptor. It returns a *ValidationError on violation.
func (r *FeatureRequest) Validate() error {
	desc, ok := Lookup(r.Kind)
	if !ok {
		return invalid("feature", "unknown feature %q", r.Kind)
	}

	n := len(r.Assets)
	switch {
	case desc.MinAssets == desc.MaxAssets && n != desc.MinAssets:
		return invalid("assets", "%s requires exactly %d %s file, got %d", desc.Label, desc.MinAssets, desc.Accepts, n)
	case n < desc.MinAssets:
		return invalid("assets", "%s requires at least %d %ss, got %d", desc.Label, desc.MinAssets, desc.Accepts, n)
	case n > desc.MaxAssets:
		return invalid("assets", "%s accepts at most %d %ss, got %d", desc.Label, desc.MaxAssets, desc.Accepts, n)
	}

	for _, a := range r.Assets {
		if a == nil {
			return invalid("assets", "missing file")
		}
		if a.Category != desc.Accepts {
			return invalid("assets", "%s is not a %s file", a.Name, desc.Accepts)
		}
		if limit := filehandler.MaxBytesFor(desc.Accepts); a.Size > limit {
			return invalid("assets", "%s exceeds the %s size limit for %ss", a.Name, filehandler.FormatSize(limit), desc.Accepts)
		}
	}

	return r.validateOptions()
}

func (r *FeatureRequest) validateOptions() error {
	o := r.Options

	if o.SubFeature != "" {
		if r.Kind != FeatureInterpolation || o.SubFeature != SubFeatureSpeed {
			return invalid("subFeature", "%q is not supported for %s", o.SubFeature, r.Kind)
		}
	}

	if o.SpeedFactor != nil {
		if o.SubFeature != SubFeatureSpeed {
			return invalid("speedFactor", "only applies to speed conversion")
		}
		if *o.SpeedFactor < MinSpeedFactor || *o.SpeedFactor > MaxSpeedFactor {
			return invalid("speedFactor", "must be between %.2f and %.1f, got %g", MinSpeedFactor, MaxSpeedFactor, *o.SpeedFactor)
		}
		if math.Mod(*o.SpeedFactor, SpeedFactorStep) != 0 {
			return invalid("speedFactor", "must be a multiple of %.2f, got %g", SpeedFactorStep, *o.SpeedFactor)
		}
	}

	if o.FPS != nil {
		if r.Kind != FeatureImagesToVideo {
			return invalid("fps", "only applies to %s", FeatureImagesToVideo)
		}
		if *o.FPS < MinFPS || *o.FPS > MaxFPS {
			return invalid("fps", "must be between %d and %d, got %d", MinFPS, MaxFPS, *o.FPS)
		}
	}

	return nil
}

// fields builds the multipart fields for the request: the media under the
// endpoint's field name, the feature discriminator, then options as strings.
func (r *FeatureRequest) fields(desc FeatureDescriptor) []Field {
	fields := make([]Field, 0, 4)

	if desc.MaxAssets > 1 {
		fields = append(fields, FilesField(desc.MediaField, r.Assets...))
	} else {
		fields = append(fields, FileField(desc.MediaField, r.Assets[0]))
	}

	if desc.Discriminator != "" {
		fields = append(fields, StringField("feature", desc.Discriminator))
	}

	if r.Options.SubFeature != "" {
		fields = append(fields, StringField("subFeature", r.Options.SubFeature))
		if r.Options.SubFeature == SubFeatureSpeed {
			speed := DefaultSpeedFactor
			if r.Options.SpeedFactor != nil {
				speed = *r.Options.SpeedFactor
			}
			fields = append(fields, StringField("speedFactor", strconv.FormatFloat(speed, 'f', -1, 64)))
		}
	}

	if r.Kind == FeatureImagesToVideo {
		fps := DefaultFPS
		if r.Options.FPS != nil {
			fps = *r.Options.FPS
		}
		fields = append(fields, StringField("fps", strconv.Itoa(fps)))
	}

	return fields
}

// displayName is the name used for logs and placeholder results.
func (r *FeatureRequest) displayName() string {
	switch len(r.Assets) {
	case 0:
		return ""
	case 1:
		return r.Assets[0].Name
	default:
		return fmt.Sprintf("%s+%d", r.Assets[0].Name, len(r.Assets)-1)
	}
}

// Float64 returns a pointer to v, for optional numeric options.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for optional numeric options.
func Int(v int) *int { return &v }
