package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fpang/media-enhance-client/internal/enhance"
	"github.com/fpang/media-enhance-client/internal/filehandler"
	"github.com/spf13/cobra"
)

var featuresJSONFlag bool

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List the available features and their options",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		descs := enhance.Descriptors()
		if featuresJSONFlag {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(descs)
		}

		for _, d := range descs {
			fmt.Printf("%-20s %s\n", d.Kind, d.Label)
			fmt.Printf("%-20s %s\n", "", d.Description)
			fmt.Printf("%-20s input: %s, max %s each\n", "", assetCount(d), filehandler.FormatSize(filehandler.MaxBytesFor(d.Accepts)))
			for _, o := range d.Options {
				opt := fmt.Sprintf("--%s %g..%g (default %g)", flagName(o.Name), o.Min, o.Max, o.Default)
				if o.RequiresSubFeature != "" {
					opt += " with --sub-feature " + o.RequiresSubFeature
				}
				fmt.Printf("%-20s option: %s\n", "", opt)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	featuresCmd.Flags().BoolVar(&featuresJSONFlag, "json", false, "Print descriptors as JSON")
}

func assetCount(d enhance.FeatureDescriptor) string {
	if d.MinAssets == d.MaxAssets {
		return fmt.Sprintf("%d %s", d.MinAssets, d.Accepts)
	}
	return fmt.Sprintf("%d-%d %ss", d.MinAssets, d.MaxAssets, d.Accepts)
}

// flagName converts an option name such as "speedFactor" into its flag form.
func flagName(option string) string {
	var b strings.Builder
	for i, r := range option {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
