// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config with defaults; Load(ctx) layers file and env on top.
// - Keys are flat snake_case so that MATCH_<KEY> env vars map one to one.
package config

import (
	"runtime"
)

// Embedding provider names.
const (
	ProviderHashing = "hashing"
	ProviderOpenAI  = "openai"
	ProviderCohere  = "cohere"
)

// Similarity index backend names.
const (
	BackendHNSW  = "hnsw"
	BackendRedis = "redis"
)

// Brand store names.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DefaultTopK is used when a request does not ask for a specific K.
	DefaultTopK int `koanf:"default_top_k"`

	// MaxTopK caps the requested K.
	MaxTopK int `koanf:"max_top_k"`

	// QueryTopN is the number of neighbors fetched per attribute partition.
	QueryTopN int `koanf:"query_top_n"`

	// ScoreCeiling is the upper bound of normalized per-attribute scores.
	ScoreCeiling float64 `koanf:"score_ceiling"`

	// Embedding provider settings.
	EmbeddingProvider  string `koanf:"embedding_provider"`
	EmbeddingModel     string `koanf:"embedding_model"`
	EmbeddingDimension int    `koanf:"embedding_dimension"`
	EmbeddingAPIKey    string `koanf:"embedding_api_key"`
	EmbeddingBaseURL   string `koanf:"embedding_base_url"`
	EmbeddingInputType string `koanf:"embedding_input_type"`
	EmbeddingTimeoutMS int    `koanf:"embedding_timeout_ms"`

	// BreakerMaxFailures trips the embedding breaker after this many consecutive failures.
	// Zero disables the breaker.
	BreakerMaxFailures int `koanf:"breaker_max_failures"`
	BreakerTimeoutMS   int `koanf:"breaker_timeout_ms"`

	// IndexBackend selects the similarity index: hnsw or redis.
	IndexBackend string `koanf:"index_backend"`

	RedisAddr          string `koanf:"redis_addr"`
	RedisPassword      string `koanf:"redis_password"`
	RedisDB            int    `koanf:"redis_db"`
	RedisIndexPrefix   string `koanf:"redis_index_prefix"`
	RedisCreateIndexes bool   `koanf:"redis_create_indexes"`

	// BrandStore selects the brand document store: memory or sqlite.
	BrandStore string `koanf:"brand_store"`
	SQLiteDSN  string `koanf:"sqlite_dsn"`

	// IngestQueueSize bounds the in-memory influencer ingest queue.
	IngestQueueSize int `koanf:"ingest_queue_size"`

	// IngestWorkerCount sets the number of ingest workers.
	IngestWorkerCount int `koanf:"ingest_worker_count"`

	// DedupeSize sets the size of the profile fingerprint cache.
	DedupeSize int `koanf:"dedupe_size"`

	// CataloguePath optionally names a YAML catalogue preloaded at start.
	CataloguePath string `koanf:"catalogue_path"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		DefaultTopK:        3,
		MaxTopK:            50,
		QueryTopN:          10,
		ScoreCeiling:       10,
		EmbeddingProvider:  ProviderHashing,
		EmbeddingModel:     "embed-multilingual-v3.0",
		EmbeddingDimension: 1024,
		EmbeddingInputType: "classification",
		EmbeddingTimeoutMS: 10_000,
		BreakerMaxFailures: 5,
		BreakerTimeoutMS:   30_000,
		IndexBackend:       BackendHNSW,
		RedisAddr:          "localhost:6379",
		RedisIndexPrefix:   "brandmatch",
		BrandStore:         StoreMemory,
		SQLiteDSN:          "file:brandmatch.db?_pragma=busy_timeout(5000)",
		IngestQueueSize:    10_000,
		IngestWorkerCount:  runtime.NumCPU(),
		DedupeSize:         100_000,
	}
}
