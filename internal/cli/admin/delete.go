package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/synapse-hq/synapse/internal/config"
)

func DeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete an ingested document",
		Long:  "Remove a document and its chunks, mention edges and vectors from every store",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
}

func runDelete(cmd *cobra.Command, args []string) error {
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

	if err := app.ingestSvc.DeleteDocument(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	fmt.Printf("Document deleted: %s\n", args[0])
	return nil
}
