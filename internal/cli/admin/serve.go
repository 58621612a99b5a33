package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/synapse-hq/synapse/internal/api/handlers"
	"github.com/synapse-hq/synapse/internal/config"
	"github.com/synapse-hq/synapse/internal/jobs"
	"github.com/synapse-hq/synapse/internal/server"
	"github.com/synapse-hq/synapse/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the synapse API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	app, err := buildApp(ctx, cfg, !noMigrate)
	if err != nil {
		return err
	}
	defer app.Close(ctx)

	log.Printf("stores ready (graph=%s, vectors=%s)", cfg.GraphBackend, cfg.VectorBackend)

	var reconcileWorker *jobs.Worker
	if cfg.ReconcileIntervalSeconds > 0 {
		interval := time.Duration(cfg.ReconcileIntervalSeconds) * time.Second
		reconcileWorker = jobs.NewWorker(jobs.NewReconcileProcessor(app.checker), interval)
		go reconcileWorker.Start(ctx)
		log.Printf("reconcile worker started (interval %v)", interval)
	}

	router := server.NewRouter(server.RouterConfig{
		IngestHandler:    handlers.NewIngestHandler(app.ingestSvc),
		SearchHandler:    handlers.NewSearchHandler(app.searchSvc),
		DocumentHandler:  handlers.NewDocumentHandler(app.graphStore, app.ingestSvc),
		GraphHandler:     handlers.NewGraphHandler(app.graphStore),
		IntegrityHandler: handlers.NewIntegrityHandler(app.checker),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if reconcileWorker != nil {
		reconcileWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}
