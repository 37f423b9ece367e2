package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gfres/internal/pipeline"
)

var (
	archiveFull   bool
	archiveStages []string
)

func archiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Run archival stages without resolving the manifest",
		Args:  cobra.NoArgs,
		RunE:  runArchive,
	}
	cmd.Flags().BoolVar(&archiveFull, "full", false, "Ignore recorded state and process everything")
	cmd.Flags().StringSliceVar(&archiveStages, "stage", nil, "Stage to run: live2d, avatar, painting or spine (repeatable)")
	return cmd
}

func runArchive(cmd *cobra.Command, args []string) error {
	stages, err := pipeline.ParseStages(archiveStages)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	result, err := pipeline.New(cfg, logger).Archive(ctx, pipeline.Options{Full: archiveFull, Stages: stages})
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Archive complete.")
	printArchiveSummary(os.Stdout, result)
	return finish(os.Stdout, logger, result, "archive")
}
