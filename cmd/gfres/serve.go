package main

import (
	"github.com/spf13/cobra"

	"gfres/internal/mcp"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the character manifest over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	server := mcp.NewServer(mcp.FileLoader{Path: cfg.Manifest.Output}, version)
	return server.Run(ctx, &sdk.StdioTransport{})
}
