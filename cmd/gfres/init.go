package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const configTemplate = `version: 1

tables:
  guns: ./data/gun_info.lua
  skins: ./data/skin_info.lua

live2d:
  pack_input: %[1]s/live2d
  pack_output: ./work/live2d_pack
  extractor:
    command: ./bin/live2d-extractor
    timeout: 10m
  extract_output: ./work/live2d_extracted
  resource_path: ./resource/live2d

avatar:
  input: %[1]s/avatar
  resource_path: ./resource/avatar

painting:
  input: %[1]s/painting
  resource_path: ./resource/painting

spine:
  input: %[1]s/spine
  resource_path: ./resource/spine

state:
  driver: json

manifest:
  output: ./resource/characters.json

special_codes:
  M4SOPMODII: m4sopmod2

workers: 0

logging:
  level: info
`

func initCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a gfres.yaml config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("--input is required")
			}
			return runInit(configPath, strings.TrimRight(input, "/"))
		},
	}
	cmd.Flags().StringVar(&input, "input", "./input", "Asset drop folder")
	return cmd
}

func runInit(path, input string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	contents := fmt.Sprintf(configTemplate, input)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(os.Stdout, "Wrote %s\n", path)
	return nil
}
