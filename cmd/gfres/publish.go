package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gfres/internal/publish"
)

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Upload the manifest and resource library to object storage",
		Args:  cobra.NoArgs,
		RunE:  runPublish,
	}
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	publisher, err := publish.NewFromConfig(cfg.Publish, logger, cfg.Workers)
	if err != nil {
		return err
	}

	logger.Info("publishing", zap.String("endpoint", cfg.Publish.Endpoint), zap.String("bucket", cfg.Publish.Bucket))
	result, err := publisher.Publish(ctx, cfg.Manifest.Output, []publish.Tree{
		{Name: "live2d", Root: cfg.Live2D.ResourcePath},
		{Name: "avatar", Root: cfg.Avatar.ResourcePath},
		{Name: "painting", Root: cfg.Painting.ResourcePath},
		{Name: "spine", Root: cfg.Spine.ResourcePath},
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Publish complete.")
	fmt.Fprintf(os.Stdout, "  Objects uploaded:   %d\n", result.Uploaded)
	if len(result.Errors) > 0 {
		printErrors(os.Stdout, result.Errors)
		return fmt.Errorf("publish completed with errors")
	}
	return nil
}
