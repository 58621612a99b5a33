package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synapse-hq/synapse/internal/config"
)

func CheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check graph/vector consistency",
		Long:  "Verify chunk ownership and graph/vector parity; optionally re-embed chunks missing from the vector store",
		RunE:  runCheck,
	}

	cmd.Flags().Bool("reconcile", false, "Re-embed graph-only chunks after the check")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := buildApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	report, err := app.checker.Check(ctx)
	if err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}

	outputFormat, _ := cmd.Flags().GetString("output")
	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Checked %d documents, %d chunks\n", report.DocumentsChecked, report.ChunksChecked)
		if report.Clean() {
			fmt.Println("No violations found.")
		} else {
			for _, v := range report.Violations {
				fmt.Printf("  violation: %s\n", v)
			}
		}
	}

	reconcile, _ := cmd.Flags().GetBool("reconcile")
	if reconcile && len(report.GraphOnlyChunks) > 0 {
		repaired, err := app.checker.Reconcile(ctx)
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}
		fmt.Printf("Re-embedded %d chunks\n", len(repaired))
	}

	if !report.Clean() && !reconcile {
		return fmt.Errorf("%d violations found", len(report.Violations))
	}
	return nil
}
