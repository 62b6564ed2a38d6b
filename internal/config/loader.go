package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "MATCH_"
	envConfig  = "MATCH_CONFIG"
	keyDivider = "."
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if MATCH_CONFIG is set
//  3. env (prefix MATCH_)
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(keyDivider)

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// MATCH_QUERY_TOP_N -> query_top_n. MATCH_CONFIG itself is not a key.
	envProvider := env.Provider(envPrefix, keyDivider, func(s string) string {
		if s == envConfig {
			return ""
		}
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DefaultTopK <= 0:
		return fmt.Errorf("%w: default_top_k must be positive", ErrInvalidConfig)
	case c.MaxTopK < c.DefaultTopK:
		return fmt.Errorf("%w: max_top_k (%d) must be >= default_top_k (%d)", ErrInvalidConfig, c.MaxTopK, c.DefaultTopK)
	case c.QueryTopN <= 0:
		return fmt.Errorf("%w: query_top_n must be positive", ErrInvalidConfig)
	case c.ScoreCeiling <= 0:
		return fmt.Errorf("%w: score_ceiling must be positive", ErrInvalidConfig)
	case c.EmbeddingDimension <= 0:
		return fmt.Errorf("%w: embedding_dimension must be positive", ErrInvalidConfig)
	case c.IngestQueueSize <= 0 || c.IngestWorkerCount <= 0:
		return fmt.Errorf("%w: ingest queue size and worker count must be positive", ErrInvalidConfig)
	}

	switch c.EmbeddingProvider {
	case ProviderHashing:
	case ProviderOpenAI, ProviderCohere:
		if c.EmbeddingAPIKey == "" {
			return fmt.Errorf("%w: embedding_api_key is required for %s", ErrInvalidConfig, c.EmbeddingProvider)
		}
	default:
		return fmt.Errorf("%w: unknown embedding_provider %q", ErrInvalidConfig, c.EmbeddingProvider)
	}

	switch c.IndexBackend {
	case BackendHNSW:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr is required for the redis backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown index_backend %q", ErrInvalidConfig, c.IndexBackend)
	}

	switch c.BrandStore {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLiteDSN == "" {
			return fmt.Errorf("%w: sqlite_dsn is required for the sqlite store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown brand_store %q", ErrInvalidConfig, c.BrandStore)
	}
	return nil
}
