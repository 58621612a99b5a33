package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/synapse-hq/synapse/internal/chunker"
	"github.com/synapse-hq/synapse/internal/config"
	"github.com/synapse-hq/synapse/internal/database"
	"github.com/synapse-hq/synapse/internal/embedding"
	"github.com/synapse-hq/synapse/internal/extractor"
	"github.com/synapse-hq/synapse/internal/graph"
	"github.com/synapse-hq/synapse/internal/ingest"
	"github.com/synapse-hq/synapse/internal/integrity"
	"github.com/synapse-hq/synapse/internal/search"
	"github.com/synapse-hq/synapse/internal/storage"
	"github.com/synapse-hq/synapse/internal/vector"
)

// app bundles the wired services shared by the admin commands. One-shot
// commands and the server build the exact same stack from config.
type app struct {
	cfg *config.Config

	graphStore  graph.Store
	vectorStore vector.Store
	embedder    embedding.Client
	extractor   extractor.Extractor

	ingestSvc *ingest.Service
	searchSvc *search.Service
	checker   *integrity.Checker

	closers []func(ctx context.Context)
}

func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}

// buildApp wires the configured backends into services. With migrate set,
// pending schema migrations run before any store is touched.
func buildApp(ctx context.Context, cfg *config.Config, runMigrate bool) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.HasOpenAI() {
		a.embedder = embedding.NewOpenAIClientWithConfig(embedding.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Dimensions: cfg.EmbeddingDimensions,
		})
	} else {
		log.Println("no OpenAI API key configured, using deterministic stub embeddings")
		a.embedder = embedding.NewDeterministic()
	}

	needsPostgres := cfg.GraphBackend == "postgres" || cfg.VectorBackend == "postgres"
	if needsPostgres {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) { pool.Close() })
		log.Println("connected to database")

		if runMigrate {
			if err := runMigrations(cfg.DatabaseURL); err != nil {
				a.Close(ctx)
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		if cfg.GraphBackend == "postgres" {
			a.graphStore = graph.NewPostgresStore(pool)
		}
		if cfg.VectorBackend == "postgres" {
			a.vectorStore = vector.NewPostgresStore(pool, a.embedder.Dimension())
		}
	}

	switch cfg.GraphBackend {
	case "memory":
		a.graphStore = graph.NewMemoryStore()
	case "neo4j":
		store, err := graph.NewNeo4jStore(ctx, graph.Neo4jConfig{
			URI:      cfg.Neo4jURI,
			User:     cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
		})
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
		}
		a.closers = append(a.closers, func(ctx context.Context) { _ = store.Close(ctx) })
		a.graphStore = store
	}
	if cfg.VectorBackend == "memory" {
		a.vectorStore = vector.NewMemoryStore(a.embedder.Dimension())
	}

	a.extractor = extractor.NewRuleExtractor()

	ingestOpts := []ingest.Option{
		ingest.WithChunkConfig(chunker.Config{
			ChunkSize: cfg.ChunkSize,
			Overlap:   cfg.ChunkOverlap,
			Strategy:  chunker.Strategy(cfg.ChunkStrategy),
		}),
		ingest.WithMaxConcurrency(cfg.IngestConcurrency),
		ingest.WithStageTimeout(time.Duration(cfg.StageTimeoutSeconds) * time.Second),
	}

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		ingestOpts = append(ingestOpts, ingest.WithArchiver(s3Client))
	}

	a.ingestSvc = ingest.NewService(a.graphStore, a.vectorStore, a.embedder, a.extractor, ingestOpts...)
	a.searchSvc = search.NewService(a.graphStore, a.vectorStore, a.embedder, a.extractor,
		search.WithWeights(search.Weights{
			Vector: cfg.SearchVectorWeight,
			Graph:  cfg.SearchGraphWeight,
		}))
	a.checker = integrity.NewChecker(a.graphStore, a.vectorStore, a.embedder)

	return a, nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else {
		log.Printf("migrations: database is at version %d", version)
	}

	return nil
}
