package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// GraphBackend selects the graph store: memory, postgres or neo4j.
	GraphBackend string `envconfig:"GRAPH_BACKEND" default:"memory"`
	// VectorBackend selects the vector store: memory or postgres.
	VectorBackend string `envconfig:"VECTOR_BACKEND" default:"memory"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	Neo4jURI      string `envconfig:"NEO4J_URI"`
	Neo4jUser     string `envconfig:"NEO4J_USER" default:"neo4j"`
	Neo4jPassword string `envconfig:"NEO4J_PASSWORD"`
	Neo4jDatabase string `envconfig:"NEO4J_DATABASE"`

	// Chunking
	ChunkSize     int    `envconfig:"CHUNK_SIZE" default:"1200"`
	ChunkOverlap  int    `envconfig:"CHUNK_OVERLAP" default:"200"`
	ChunkStrategy string `envconfig:"CHUNK_STRATEGY" default:"sentence-boundary"`

	// Embeddings: with an OpenAI key the real model is used, otherwise the
	// deterministic stub (development only).
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	// Hybrid search fusion weights.
	SearchVectorWeight float64 `envconfig:"SEARCH_VECTOR_WEIGHT" default:"0.5"`
	SearchGraphWeight  float64 `envconfig:"SEARCH_GRAPH_WEIGHT" default:"0.5"`

	// Ingestion fan-out bound.
	IngestConcurrency int `envconfig:"INGEST_CONCURRENCY" default:"4"`
	// Per-call bound for extraction and embedding during ingestion.
	StageTimeoutSeconds int `envconfig:"STAGE_TIMEOUT_SECONDS" default:"30"`

	// Raw document archive (optional).
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"synapse-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Periodic integrity reconciliation; 0 disables the worker.
	ReconcileIntervalSeconds int `envconfig:"RECONCILE_INTERVAL_SECONDS" default:"0"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("SYNAPSE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate fails fast on configuration the backends cannot start with.
func (c *Config) Validate() error {
	switch c.GraphBackend {
	case "memory", "postgres", "neo4j":
	default:
		return fmt.Errorf("unknown graph backend %q", c.GraphBackend)
	}
	switch c.VectorBackend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown vector backend %q", c.VectorBackend)
	}
	if (c.GraphBackend == "postgres" || c.VectorBackend == "postgres") && c.DatabaseURL == "" {
		return fmt.Errorf("postgres backend requires SYNAPSE_DATABASE_URL")
	}
	if c.GraphBackend == "neo4j" && c.Neo4jURI == "" {
		return fmt.Errorf("neo4j backend requires SYNAPSE_NEO4J_URI")
	}
	if c.SearchVectorWeight < 0 || c.SearchGraphWeight < 0 || c.SearchVectorWeight+c.SearchGraphWeight == 0 {
		return fmt.Errorf("search weights must be non-negative and not both zero")
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
