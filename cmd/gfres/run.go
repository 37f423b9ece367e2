package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gfres/internal/pipeline"
)

var runFull bool

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every archival stage and resolve the manifest",
		Args:  cobra.NoArgs,
		RunE:  runRun,
	}
	cmd.Flags().BoolVar(&runFull, "full", false, "Ignore recorded state and process everything")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	result, err := pipeline.New(cfg, logger).Run(ctx, pipeline.Options{Full: runFull})
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Run complete.")
	printArchiveSummary(os.Stdout, result)
	printResolveSummary(os.Stdout, result)
	return finish(os.Stdout, logger, result, "run")
}
