package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synapse-hq/synapse/internal/config"
	"github.com/synapse-hq/synapse/internal/search"
)

func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search ingested documents",
		Long:  "Run a vector, graph or hybrid search over the configured backends",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().StringP("mode", "m", "hybrid", "Search mode (vector, graph or hybrid)")
	cmd.Flags().IntP("top-k", "k", 10, "Maximum number of results")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	mode, _ := cmd.Flags().GetString("mode")
	topK, _ := cmd.Flags().GetInt("top-k")
	outputFormat, _ := cmd.Flags().GetString("output")

	output, err := app.searchSvc.Search(ctx, search.SearchInput{
		Query: args[0],
		Mode:  search.Mode(mode),
		TopK:  topK,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	if output.Degraded {
		fmt.Println("(vector store unavailable, graph-only results)")
	}
	if len(output.Results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, r := range output.Results {
		fmt.Printf("%2d. [%.4f] %s (%s)\n", i+1, r.Score, r.ChunkID, r.DocumentID)
		if len(r.MatchedEntities) > 0 {
			fmt.Printf("    entities: %v\n", r.MatchedEntities)
		}
		fmt.Printf("    %s\n", r.Snippet)
	}
	return nil
}
