package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"gfres/internal/config"
	"gfres/internal/logging"
	"gfres/internal/pipeline"
)

// setup loads the config and builds the logger every command shares.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printErrors(out io.Writer, errs []error) {
	fmt.Fprintf(out, "\nErrors (%d):\n", len(errs))
	for _, item := range errs {
		fmt.Fprintf(out, "  - %v\n", item)
	}
}

func printArchiveSummary(out io.Writer, result *pipeline.Result) {
	if result.Live2D != nil {
		fmt.Fprintf(out, "  Live2D extracted:   %d\n", result.Live2D.Extracted)
		fmt.Fprintf(out, "  Live2D unchanged:   %d\n", result.Live2D.Unchanged)
		fmt.Fprintf(out, "  Live2D installed:   %d\n", result.Live2D.Installed)
	}
	if result.Avatar != nil {
		fmt.Fprintf(out, "  Avatars archived:   %d (unchanged %d)\n", result.Avatar.Processed, result.Avatar.Unchanged)
	}
	if result.Painting != nil {
		fmt.Fprintf(out, "  Paintings archived: %d (unchanged %d)\n", result.Painting.Processed, result.Painting.Unchanged)
	}
	if result.Spine != nil {
		fmt.Fprintf(out, "  Spines collected:   %d\n", result.Spine.Processed)
	}
}

func printResolveSummary(out io.Writer, result *pipeline.Result) {
	if result.Resolve == nil {
		return
	}
	fmt.Fprintf(out, "  Characters:         %d\n", result.Resolve.Characters)
	fmt.Fprintf(out, "  Skins:              %d\n", result.Resolve.Skins)
	if n := len(result.TableProblems); n > 0 {
		fmt.Fprintf(out, "  Table fields ignored: %d\n", n)
	}
}

// finish prints the error list of a run and turns it into the exit status.
// An empty manifest is a warning only.
func finish(out io.Writer, logger *zap.Logger, result *pipeline.Result, label string) error {
	if result.Manifest != nil && result.Manifest.Len() == 0 {
		logger.Warn("manifest is empty", zap.String("run_id", result.RunID))
	}
	errs := result.Errors()
	if len(errs) > 0 {
		printErrors(out, errs)
		return fmt.Errorf("%s completed with errors", label)
	}
	return nil
}
