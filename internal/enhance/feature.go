// Package enhance orchestrates media processing requests against the remote
// enhancement backend.
//
// One call to Orchestrator.Process validates a FeatureRequest, probes the
// backend, and either dispatches a multipart upload or, when the backend is
// unreachable, synthesizes a placeholder result. Every outcome is normalized
// into a ProcessResult. A Session wraps the orchestrator for one caller (a
// CLI run or one web page) and drives the progress Estimator alongside the
// in-flight call.
package enhance

import (
	"fmt"

	"github.com/fpang/media-enhance-client/internal/filehandler"
)

// FeatureKind selects the enhancement or detection pipeline.
type FeatureKind string

const (
	FeatureInterpolation     FeatureKind = "interpolation"
	FeatureLowLightTechnique FeatureKind = "low_light_technique"
	FeatureLLNet             FeatureKind = "llnet"
	FeatureDeepfake          FeatureKind = "deepfake"
	FeatureSRGAN             FeatureKind = "srgan"
	FeatureImagesToVideo     FeatureKind = "images_to_video"
	FeatureBrighten          FeatureKind = "brighten"
)

// Backend endpoints, relative to the API base.
const (
	EndpointHealth       = "/health"
	EndpointProcessImage = "/process-image"
	EndpointProcessVideo = "/process-video"
	EndpointImageToVideo = "/image-to-video"
	EndpointDownload     = "/download/"
)

// Speed conversion and frame-rate bounds.
const (
	SubFeatureSpeed = "speed"

	MinSpeedFactor     = 0.25
	MaxSpeedFactor     = 4.0
	SpeedFactorStep    = 0.25
	DefaultSpeedFactor = 1.0

	MinFPS     = 1
	MaxFPS     = 120
	DefaultFPS = 30
)

// OptionSpec describes one user-tunable option of a feature.
type OptionSpec struct {
	Name    string  `json:"name"`
	Type    string  `json:"type"` // "number" or "integer"
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step,omitempty"`
	Default float64 `json:"default"`

	// RequiresSubFeature is set when the option only applies to a sub-feature.
	RequiresSubFeature string `json:"requiresSubFeature,omitempty"`
}

// FeatureDescriptor is everything a generic feature page needs to collect
// input for one feature and route it to the backend.
type FeatureDescriptor struct {
	Kind        FeatureKind          `json:"kind"`
	Label       string               `json:"label"`
	Description string               `json:"description"`
	Accepts     filehandler.Category `json:"accepts"`
	MinAssets   int                  `json:"minAssets"`
	MaxAssets   int                  `json:"maxAssets"`
	Options     []OptionSpec         `json:"options,omitempty"`

	// Endpoint is the backend path the request is posted to.
	Endpoint string `json:"endpoint"`
	// MediaField is the multipart field name that carries the asset(s).
	MediaField string `json:"mediaField"`
	// Discriminator is sent as the "feature" field; empty when the
	// endpoint serves a single feature.
	Discriminator string `json:"discriminator,omitempty"`
	// Classifies marks features whose result is a classification, not media.
	Classifies bool `json:"classifies"`
}

var descriptors = []FeatureDescriptor{
	{
		Kind:          FeatureInterpolation,
		Label:         "Frame Interpolation",
		Description:   "Smooth a video by synthesizing intermediate frames, or change its playback speed.",
		Accepts:       filehandler.CategoryVideo,
		MinAssets:     1,
		MaxAssets:     1,
		Endpoint:      EndpointProcessVideo,
		MediaField:    "video",
		Discriminator: string(FeatureInterpolation),
		Options: []OptionSpec{{
			Name:               "speedFactor",
			Type:               "number",
			Min:                MinSpeedFactor,
			Max:                MaxSpeedFactor,
			Step:               SpeedFactorStep,
			Default:            DefaultSpeedFactor,
			RequiresSubFeature: SubFeatureSpeed,
		}},
	},
	{
		Kind:          FeatureLowLightTechnique,
		Label:         "Low Light Enhancement",
		Description:   "Brighten a dark video with traditional enhancement techniques.",
		Accepts:       filehandler.CategoryVideo,
		MinAssets:     1,
		MaxAssets:     1,
		Endpoint:      EndpointProcessVideo,
		MediaField:    "video",
		Discriminator: string(FeatureLowLightTechnique),
	},
	{
		Kind:          FeatureLLNet,
		Label:         "LLNet Enhancement",
		Description:   "Brighten a dark video with the LLNet model.",
		Accepts:       filehandler.CategoryVideo,
		MinAssets:     1,
		MaxAssets:     1,
		Endpoint:      EndpointProcessVideo,
		MediaField:    "video",
		Discriminator: string(FeatureLLNet),
	},
	{
		Kind:          FeatureDeepfake,
		Label:         "Deepfake Detection",
		Description:   "Estimate whether a video has been manipulated.",
		Accepts:       filehandler.CategoryVideo,
		MinAssets:     1,
		MaxAssets:     1,
		Endpoint:      EndpointProcessVideo,
		MediaField:    "video",
		Discriminator: string(FeatureDeepfake),
		Classifies:    true,
	},
	{
		Kind:          FeatureSRGAN,
		Label:         "Super Resolution",
		Description:   "Upscale a video with SRGAN.",
		Accepts:       filehandler.CategoryVideo,
		MinAssets:     1,
		MaxAssets:     1,
		Endpoint:      EndpointProcessVideo,
		MediaField:    "video",
		Discriminator: string(FeatureSRGAN),
	},
	{
		Kind:        FeatureImagesToVideo,
		Label:       "Images to Video",
		Description: "Assemble a sequence of images into a video.",
		Accepts:     filehandler.CategoryImage,
		MinAssets:   2,
		MaxAssets:   filehandler.MaxImagesPerBatch,
		Endpoint:    EndpointImageToVideo,
		MediaField:  "images",
		Options: []OptionSpec{{
			Name:    "fps",
			Type:    "integer",
			Min:     MinFPS,
			Max:     MaxFPS,
			Step:    1,
			Default: DefaultFPS,
		}},
	},
	{
		Kind:        FeatureBrighten,
		Label:       "Image Brightening",
		Description: "Brighten a single low-light image.",
		Accepts:     filehandler.CategoryImage,
		MinAssets:   1,
		MaxAssets:   1,
		Endpoint:    EndpointProcessImage,
		MediaField:  "image",
	},
}

// Descriptors returns every supported feature in display order.
func Descriptors() []FeatureDescriptor {
	out := make([]FeatureDescriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Lookup returns the descriptor for kind.
func Lookup(kind FeatureKind) (FeatureDescriptor, bool) {
	for _, d := range descriptors {
		if d.Kind == kind {
			return d, true
		}
	}
	return FeatureDescriptor{}, false
}

// ParseFeatureKind converts user input into a known FeatureKind.
func ParseFeatureKind(s string) (FeatureKind, error) {
	k := FeatureKind(s)
	if _, ok := Lookup(k); !ok {
		return "", fmt.Errorf("unknown feature %q", s)
	}
	return k, nil
}

// String returns the string representation of the feature kind.
func (k FeatureKind) String() string {
	return string(k)
}
