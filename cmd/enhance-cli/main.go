package main

import (
	"os"
	"time"

	"github.com/fpang/media-enhance-client/internal/cli"
	"github.com/fpang/media-enhance-client/internal/config"
	"github.com/fpang/media-enhance-client/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Global flags
var apiBaseFlag string

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "enhance-cli",
	Short: "Submit photos and videos to the media enhancement backend",
	Long: `Enhance CLI sends media to the enhancement backend (frame interpolation,
low-light enhancement, super resolution, deepfake detection, images to video)
and reports the result.

The backend is probed before every request. When it cannot be reached, the
CLI returns a synthesized placeholder result instead of failing.

Examples:
  enhance-cli features
  enhance-cli health
  enhance-cli process --feature srgan --file clip.mp4 --output clip_hd.mp4
  enhance-cli process -f interpolation --file clip.mp4 --sub-feature speed --speed-factor 2
  enhance-cli process -f images_to_video --dir ./frames --fps 24
  enhance-cli process --pick  # Interactive mode - prompts for the feature, native file dialog`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiBaseFlag, "api-base", "", "Backend API base URL, overrides the environment")
	rootCmd.AddCommand(processCmd, healthCmd, featuresCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup initializes logging and configuration shared by every command.
func setup(name string) *cli.Client {
	start := time.Now()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	client := cli.InitClient(cfg, apiBaseFlag)

	logging.NewStartupLogger(name).
		Endpoint("api", client.BaseURL).
		Config("env", cfg.Env).
		Config("probeTimeout", cfg.ProbeTimeout.String()).
		Config("httpTimeout", cfg.HTTPTimeout.String()).
		Feature("metrics", cfg.Metrics).
		InitDuration(time.Since(start)).
		Event(log.Debug()).
		Msg("Startup complete")

	progressInterval = cfg.ProgressInterval
	return client
}
