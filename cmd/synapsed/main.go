package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synapse-hq/synapse/internal/cli"
	"github.com/synapse-hq/synapse/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "synapsed",
		Short: "Synapse daemon and CLI",
		Long:  "Synapse daemon for running the graph-RAG API server and managing the document stores",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())
	rootCmd.AddCommand(admin.SearchCmd())
	rootCmd.AddCommand(admin.StatsCmd())
	rootCmd.AddCommand(admin.CheckCmd())
	rootCmd.AddCommand(admin.DeleteCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
