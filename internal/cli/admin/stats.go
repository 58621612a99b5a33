package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synapse-hq/synapse/internal/config"
)

func StatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show graph statistics",
		Long:  "Print node and edge counts for the configured graph backend",
		RunE:  runStats,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
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

	stats, err := app.graphStore.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	outputFormat, _ := cmd.Flags().GetString("output")
	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	fmt.Printf("Documents:      %d\n", stats.Documents)
	fmt.Printf("Chunks:         %d\n", stats.Chunks)
	fmt.Printf("Entities:       %d\n", stats.Entities)
	fmt.Printf("CONTAINS edges: %d\n", stats.ContainsEdges)
	fmt.Printf("MENTIONS edges: %d\n", stats.MentionsEdges)
	if len(stats.EntitiesByType) > 0 {
		fmt.Println("Entities by type:")
		for entityType, count := range stats.EntitiesByType {
			fmt.Printf("  %-8s %d\n", entityType, count)
		}
	}
	return nil
}
