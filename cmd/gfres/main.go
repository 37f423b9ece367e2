package main

import (
	"os"

	"github.com/spf13/cobra"

	"gfres/internal/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "gfres",
		Short: "Archive game asset drops and resolve the character manifest",
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "Path to the config file")
	root.AddCommand(runCmd())
	root.AddCommand(archiveCmd())
	root.AddCommand(resolveCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(publishCmd())
	root.AddCommand(initCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
