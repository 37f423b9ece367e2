package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gfres/internal/pipeline"
)

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the character manifest from the resource library",
		Args:  cobra.NoArgs,
		RunE:  runResolve,
	}
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	result, err := pipeline.New(cfg, logger).Resolve(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Resolve complete.")
	fmt.Fprintf(os.Stdout, "  Manifest:           %s\n", cfg.Manifest.Output)
	printResolveSummary(os.Stdout, result)
	return finish(os.Stdout, logger, result, "resolve")
}
