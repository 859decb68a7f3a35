package main

import (
	"testing"

	"github.com/fpang/media-enhance-client/internal/enhance"
)

func TestFlagName(t *testing.T) {
	tests := map[string]string{
		"speedFactor": "speed-factor",
		"fps":         "fps",
		"subFeature":  "sub-feature",
	}
	for in, want := range tests {
		if got := flagName(in); got != want {
			t.Errorf("flagName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAssetCount(t *testing.T) {
	single, _ := enhance.Lookup(enhance.FeatureSRGAN)
	if got := assetCount(single); got != "1 video" {
		t.Errorf("assetCount(srgan) = %q", got)
	}
	multi, _ := enhance.Lookup(enhance.FeatureImagesToVideo)
	if got := assetCount(multi); got != "2-50 images" {
		t.Errorf("assetCount(images_to_video) = %q", got)
	}
}

// Every option a descriptor advertises must have a matching process flag.
func TestOptionFlagsExist(t *testing.T) {
	for _, d := range enhance.Descriptors() {
		for _, o := range d.Options {
			if processCmd.Flags().Lookup(flagName(o.Name)) == nil {
				t.Errorf("%s: no --%s flag for option %s", d.Kind, flagName(o.Name), o.Name)
			}
		}
	}
}
