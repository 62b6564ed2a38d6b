package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/okian/brandmatch/internal/adapters/breaker"
	"github.com/okian/brandmatch/internal/adapters/embedding/cohere"
	"github.com/okian/brandmatch/internal/adapters/embedding/hashing"
	"github.com/okian/brandmatch/internal/adapters/embedding/openai"
	"github.com/okian/brandmatch/internal/adapters/index/hnswindex"
	"github.com/okian/brandmatch/internal/adapters/index/redisindex"
	"github.com/okian/brandmatch/internal/adapters/repository"
	service "github.com/okian/brandmatch/internal/app"
	"github.com/okian/brandmatch/internal/config"
	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/embedding"
	"github.com/okian/brandmatch/internal/domain/ranking"
	"github.com/okian/brandmatch/internal/domain/scoring"
	"github.com/okian/brandmatch/internal/domain/similarity"
	"github.com/okian/brandmatch/pkg/logger"
)

// buildService assembles the service from cfg. cleanup releases the
// backends opened here and is safe to call after a failed build.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	emb, err := buildEmbedder(cfg, log)
	if err != nil {
		return nil, cleanup, err
	}
	ix, closeIndex, err := buildIndex(ctx, cfg, log)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, closeIndex)

	brands, err := buildBrandStore(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	var query similarity.Client = ix
	if cfg.BreakerMaxFailures > 0 {
		emb = breaker.NewProvider("embedding."+cfg.EmbeddingProvider, emb, breakerOptions(cfg, log)...)
		query = breaker.NewClient("index."+cfg.IndexBackend, ix, breakerOptions(cfg, log)...)
	}

	svc := service.New(
		service.WithLogger(log.Named("service")),
		service.WithEmbedder(emb),
		service.WithIndex(query),
		service.WithIndexWriter(ix),
		service.WithBrandStore(brands),
		service.WithNormalizer(scoring.NewNormalizer(scoring.WithCeiling(cfg.ScoreCeiling))),
		service.WithAggregator(ranking.NewAggregator(ranking.WithDefaultTopK(cfg.DefaultTopK))),
		service.WithQueryTopN(cfg.QueryTopN),
		service.WithMaxTopK(cfg.MaxTopK),
		service.WithWorkerCount(cfg.IngestWorkerCount),
		service.WithQueueSize(cfg.IngestQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
	)
	return svc, cleanup, nil
}

func breakerOptions(cfg *config.Config, log logger.Logger) []breaker.Option {
	return []breaker.Option{
		breaker.WithMaxFailures(cfg.BreakerMaxFailures),
		breaker.WithTimeout(time.Duration(cfg.BreakerTimeoutMS) * time.Millisecond),
		breaker.WithLogger(log.Named("breaker")),
	}
}

func buildEmbedder(cfg *config.Config, log logger.Logger) (embedding.Provider, error) {
	timeout := time.Duration(cfg.EmbeddingTimeoutMS) * time.Millisecond
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		return openai.New(cfg.EmbeddingAPIKey,
			openai.WithModel(cfg.EmbeddingModel),
			openai.WithDimension(cfg.EmbeddingDimension),
			openai.WithBaseURL(cfg.EmbeddingBaseURL),
			openai.WithTimeout(timeout),
			openai.WithLogger(log.Named("embedding.openai")),
		)
	case config.ProviderCohere:
		return cohere.New(cfg.EmbeddingAPIKey,
			cohere.WithModel(cfg.EmbeddingModel),
			cohere.WithInputType(cfg.EmbeddingInputType),
			cohere.WithDimension(cfg.EmbeddingDimension),
			cohere.WithBaseURL(cfg.EmbeddingBaseURL),
			cohere.WithTimeout(timeout),
			cohere.WithLogger(log.Named("embedding.cohere")),
		)
	case config.ProviderHashing:
		return hashing.New(hashing.WithDimension(cfg.EmbeddingDimension)), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding_provider %q", config.ErrInvalidConfig, cfg.EmbeddingProvider)
	}
}

func buildIndex(ctx context.Context, cfg *config.Config, log logger.Logger) (similarity.Index, func() error, error) {
	switch cfg.IndexBackend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("%w: redis ping %s: %w", similarity.ErrIndexUnavailable, cfg.RedisAddr, err)
		}
		ix := redisindex.New(rdb,
			redisindex.WithPrefix(cfg.RedisIndexPrefix),
			redisindex.WithDimension(cfg.EmbeddingDimension),
			redisindex.WithLogger(log.Named("redisindex")),
		)
		if cfg.RedisCreateIndexes {
			if err := ix.EnsureIndexes(ctx); err != nil {
				_ = rdb.Close()
				return nil, nil, err
			}
		}
		return ix, rdb.Close, nil
	case config.BackendHNSW:
		ix := hnswindex.New(
			hnswindex.WithPartitions(attribute.Partitions()...),
			hnswindex.WithDimension(cfg.EmbeddingDimension),
		)
		return ix, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown index_backend %q", config.ErrInvalidConfig, cfg.IndexBackend)
	}
}

func buildBrandStore(ctx context.Context, cfg *config.Config) (repository.BrandStore, error) {
	switch cfg.BrandStore {
	case config.StoreSQLite:
		return repository.OpenSQLite(ctx, cfg.SQLiteDSN)
	case config.StoreMemory:
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown brand_store %q", config.ErrInvalidConfig, cfg.BrandStore)
	}
}
