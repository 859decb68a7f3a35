package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fpang/media-enhance-client/internal/cli"
	"github.com/fpang/media-enhance-client/internal/enhance"
	"github.com/fpang/media-enhance-client/internal/filehandler"
	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// progressInterval is set from configuration by setup.
var progressInterval = enhance.DefaultTickInterval

// process flags
var (
	featureFlag     string
	fileFlags       []string
	dirFlag         string
	pickFlag        bool
	subFeatureFlag  string
	speedFactorFlag float64
	fpsFlag         int
	outputFlag      string
	jsonFlag        bool
	notifyFlag      bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one feature on local media",
	Args:  cobra.NoArgs,
	Run:   runProcess,
}

func init() {
	f := processCmd.Flags()
	f.StringVarP(&featureFlag, "feature", "f", "", "Feature to run (see 'enhance-cli features')")
	f.StringArrayVar(&fileFlags, "file", nil, "Input file; repeat for images_to_video")
	f.StringVarP(&dirFlag, "dir", "d", "", "Directory of inputs, sorted by name (images_to_video)")
	f.BoolVar(&pickFlag, "pick", false, "Choose inputs with the native file dialog")
	f.StringVar(&subFeatureFlag, "sub-feature", "", "Sub-feature (interpolation: speed)")
	f.Float64Var(&speedFactorFlag, "speed-factor", enhance.DefaultSpeedFactor, "Playback speed factor, 0.25 to 4 (with --sub-feature speed)")
	f.IntVar(&fpsFlag, "fps", enhance.DefaultFPS, "Frames per second for images_to_video")
	f.StringVarP(&outputFlag, "output", "o", "", "Download the processed media to this path")
	f.BoolVar(&jsonFlag, "json", false, "Print the result as JSON on stdout")
	f.BoolVar(&notifyFlag, "notify", false, "Show a desktop notification when the request finishes")
}

func runProcess(cmd *cobra.Command, args []string) {
	client := setup("enhance-cli")

	kind := resolveFeature()
	desc, _ := enhance.Lookup(kind)

	assets, err := resolveAssets(desc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load input media")
	}

	req := enhance.FeatureRequest{Kind: kind, Assets: assets, Options: buildOptions(cmd, kind)}

	// Reject locally so the exit status distinguishes bad input.
	if verr := req.Validate(); verr != nil {
		printResult(enhance.FailedResult(verr.Error()))
		os.Exit(cli.ExitCode(enhance.FailedResult(verr.Error()), verr))
	}

	printHeader(client.BaseURL, desc, assets)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := enhance.NewSession(client.Orchestrator,
		enhance.WithTickInterval(progressInterval),
		enhance.WithOnUpdate(func(s enhance.ProgressState) {
			fmt.Fprintf(os.Stderr, "\r%s", cli.FormatProgress(s))
		}))

	start := time.Now()
	if _, err := session.Submit(ctx, req); err != nil {
		log.Fatal().Err(err).Msg("Failed to submit request")
	}

	result, err := session.Wait(ctx)
	fmt.Fprintln(os.Stderr)
	if err != nil || result == nil || ctx.Err() != nil {
		session.Reset()
		log.Warn().Msg("Interrupted, request abandoned")
		os.Exit(130)
	}

	log.Info().
		Str("feature", kind.String()).
		Str("outcome", string(result.Kind())).
		Bool("mock", result.Mock).
		Str("elapsed", cli.FormatDurationShort(time.Since(start))).
		Msg("Request finished")

	printResult(*result)
	if notifyFlag {
		notify(desc, *result)
	}

	if outputFlag != "" && result.Media != nil {
		if err := download(ctx, client, *result, outputFlag); err != nil {
			log.Error().Err(err).Str("output", outputFlag).Msg("Download failed")
			os.Exit(1)
		}
	}

	os.Exit(cli.ExitCode(*result, nil))
}

func resolveFeature() enhance.FeatureKind {
	if featureFlag != "" {
		kind, err := enhance.ParseFeatureKind(featureFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid --feature")
		}
		return kind
	}
	kind, err := cli.PromptForFeature()
	if err != nil {
		log.Fatal().Err(err).Msg("No feature selected")
	}
	return kind
}

// resolveAssets gathers inputs from --file, --dir, --pick, or a prompt, in
// that order of precedence.
func resolveAssets(desc enhance.FeatureDescriptor) ([]*filehandler.MediaAsset, error) {
	switch {
	case len(fileFlags) > 0:
		return filehandler.LoadAssets(fileFlags)

	case dirFlag != "":
		return scanInputDir(cli.ValidateAndResolveDirectory(dirFlag), desc)

	case pickFlag:
		paths, err := pickFiles(desc)
		if err != nil {
			return nil, err
		}
		return filehandler.LoadAssets(paths)

	default:
		cwd, _ := os.Getwd()
		p := cli.PromptForPath("Input "+string(desc.Accepts)+" path", cwd)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return scanInputDir(p, desc)
		}
		return filehandler.LoadAssets([]string{p})
	}
}

// scanInputDir collects the directory's media of the accepted category. It
// reads one file past the feature's ceiling so an oversized directory fails
// validation instead of being silently truncated.
func scanInputDir(dir string, desc enhance.FeatureDescriptor) ([]*filehandler.MediaAsset, error) {
	return filehandler.ScanDirectory(dir, filehandler.ScanOptions{
		Category: desc.Accepts,
		MaxDepth: 1,
		Limit:    desc.MaxAssets + 1,
	})
}

func pickFiles(desc enhance.FeatureDescriptor) ([]string, error) {
	opts := []zenity.Option{
		zenity.Title("Select input for " + desc.Label),
		zenity.FileFilters{{Name: desc.Label, Patterns: filehandler.PickerPatterns(desc.Accepts)}},
	}

	if desc.MaxAssets > 1 {
		paths, err := zenity.SelectFileMultiple(opts...)
		if errors.Is(err, zenity.ErrCanceled) {
			return nil, errors.New("selection canceled")
		}
		return paths, err
	}

	path, err := zenity.SelectFile(opts...)
	if errors.Is(err, zenity.ErrCanceled) {
		return nil, errors.New("selection canceled")
	}
	if err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// buildOptions only forwards flags the user actually set.
func buildOptions(cmd *cobra.Command, kind enhance.FeatureKind) enhance.FeatureOptions {
	opts := enhance.FeatureOptions{SubFeature: subFeatureFlag}
	if cmd.Flags().Changed("speed-factor") {
		opts.SpeedFactor = enhance.Float64(speedFactorFlag)
	}
	if cmd.Flags().Changed("fps") || kind == enhance.FeatureImagesToVideo {
		opts.FPS = enhance.Int(fpsFlag)
	}
	return opts
}

func printHeader(baseURL string, desc enhance.FeatureDescriptor, assets []*filehandler.MediaAsset) {
	if jsonFlag {
		return
	}
	fmt.Println()
	fmt.Println("============================================")
	fmt.Println(desc.Label)
	fmt.Println("============================================")
	fmt.Printf("Backend: %s\n", baseURL)
	for _, a := range assets {
		line := fmt.Sprintf("Input: %s (%s)", a.Name, filehandler.FormatSize(a.Size))
		if s := a.Metadata.Summary(); s != "" {
			line += " - " + s
		}
		fmt.Println(line)
	}
	fmt.Println("--------------------------------------------")
}

func printResult(r enhance.ProcessResult) {
	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(r)
		return
	}
	fmt.Println(cli.FormatResult(r))
}

// notify shows the outcome as a desktop notification; failures are only logged.
func notify(desc enhance.FeatureDescriptor, r enhance.ProcessResult) {
	if err := zenity.Notify(cli.FormatResult(r), zenity.Title(desc.Label)); err != nil {
		log.Warn().Err(err).Msg("Desktop notification failed")
	}
}

func download(ctx context.Context, client *cli.Client, r enhance.ProcessResult, dest string) error {
	if r.Mock || !strings.HasPrefix(r.Media.URL, "http") {
		log.Warn().Str("url", r.Media.URL).Msg("Result has no downloadable media, skipping --output")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	n, err := client.Transport.Download(ctx, r.Media.URL, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return err
	}

	fmt.Printf("Saved %s to %s\n", filehandler.FormatSize(n), dest)
	return nil
}
