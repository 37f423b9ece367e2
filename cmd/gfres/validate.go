package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"gfres/internal/manifest"
	"gfres/internal/pipeline"
	"gfres/internal/validate"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every manifest reference against the resource library",
		Args:  cobra.NoArgs,
		RunE:  runValidate,
	}
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	m, err := manifest.Read(cfg.Manifest.Output)
	if err != nil {
		return err
	}

	report, err := validate.Run(ctx, m, pipeline.Roots(cfg))
	if err != nil {
		return err
	}

	errorIssues := report.Errors()
	warnIssues := report.Warnings()

	if len(errorIssues) == 0 && len(warnIssues) == 0 {
		fmt.Fprintln(os.Stdout, "No issues found.")
		return nil
	}

	if len(errorIssues) > 0 {
		fmt.Fprintf(os.Stdout, "Errors (%d):\n", len(errorIssues))
		printIssues(os.Stdout, errorIssues)
	}
	if len(warnIssues) > 0 {
		if len(errorIssues) > 0 {
			fmt.Fprintln(os.Stdout, "")
		}
		fmt.Fprintf(os.Stdout, "Warnings (%d):\n", len(warnIssues))
		printIssues(os.Stdout, warnIssues)
	}

	if len(errorIssues) > 0 {
		return fmt.Errorf("validation found errors")
	}
	return nil
}

func printIssues(out io.Writer, issues []validate.Issue) {
	for _, issue := range issues {
		location := issue.Character
		if issue.Skin != "" {
			location = fmt.Sprintf("%s [%s]", issue.Character, issue.Skin)
		}
		if issue.Path != "" {
			location = fmt.Sprintf("%s (%s)", location, issue.Path)
		}
		fmt.Fprintf(out, "  - %s: %s (%s)\n", location, issue.Message, issue.Code)
	}
}
