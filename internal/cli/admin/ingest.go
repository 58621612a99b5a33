package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/synapse-hq/synapse/internal/config"
	"github.com/synapse-hq/synapse/internal/ingest"
)

func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file> [file...]",
		Short: "Ingest one or more documents",
		Long:  "Chunk, extract entities, embed and store text files in the configured backends",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIngest,
	}

	cmd.Flags().String("id", "", "Document id (single file only, defaults to content hash)")
	cmd.Flags().Bool("replace", false, "Replace previously ingested documents with the same ids")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docID, _ := cmd.Flags().GetString("id")
	replace, _ := cmd.Flags().GetBool("replace")
	outputFormat, _ := cmd.Flags().GetString("output")

	if docID != "" && len(args) > 1 {
		return fmt.Errorf("--id cannot be used with multiple input files")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := buildApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	results := make([]*ingest.IngestionResult, 0, len(args))
	for _, path := range args {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ingestion interrupted: %w", err)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read input file %s: %w", path, err)
		}

		result, err := app.ingestSvc.IngestDocument(ctx, ingest.IngestInput{
			DocumentID: docID,
			Source:     filepath.Base(path),
			Content:    string(content),
			Replace:    replace,
		})
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		results = append(results, result)
	}

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	for _, result := range results {
		fmt.Printf("Document ingested: %s (%d chunks, %d entities)\n",
			result.DocumentID, len(result.ChunkIDs), result.EntityCount)
		for _, w := range result.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}
	return nil
}
