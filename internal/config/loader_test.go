package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/okian/brandmatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DefaultTopK, convey.ShouldEqual, 3)
				convey.So(cfg.QueryTopN, convey.ShouldEqual, 10)
				convey.So(cfg.EmbeddingProvider, convey.ShouldEqual, config.ProviderHashing)
				convey.So(cfg.IndexBackend, convey.ShouldEqual, config.BackendHNSW)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("MATCH_ADDR", ":8080")
			_ = os.Setenv("MATCH_QUERY_TOP_N", "25")
			_ = os.Setenv("MATCH_SCORE_CEILING", "100")
			_ = os.Setenv("MATCH_REDIS_CREATE_INDEXES", "true")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueryTopN, convey.ShouldEqual, 25)
				convey.So(cfg.ScoreCeiling, convey.ShouldEqual, 100.0)
				convey.So(cfg.RedisCreateIndexes, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
default_top_k: 5
index_backend: redis
redis_addr: "redis:6379"
`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MATCH_CONFIG", tmpFile)
			_ = os.Setenv("MATCH_ADDR", ":7070")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.DefaultTopK, convey.ShouldEqual, 5)
				convey.So(cfg.IndexBackend, convey.ShouldEqual, "redis")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "redis:6379")
				convey.So(cfg.EmbeddingDimension, convey.ShouldEqual, 1024)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("MATCH_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("MATCH_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("MATCH_QUERY_TOP_N", "not_a_number")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("MATCH_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given default config", t, func() {
		cfg := config.New()

		convey.Convey("Then it validates", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When default_top_k exceeds max_top_k", func() {
			cfg.DefaultTopK = 10
			cfg.MaxTopK = 5
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the embedding dimension is not positive", func() {
			cfg.EmbeddingDimension = 0
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("When a remote provider has no api key", func() {
			cfg.EmbeddingProvider = config.ProviderCohere
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "embedding_api_key")

			cfg.EmbeddingAPIKey = "secret"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When names are unknown", func() {
			bad := *cfg
			bad.EmbeddingProvider = "word2vec"
			convey.So(bad.Validate(), convey.ShouldNotBeNil)

			bad = *cfg
			bad.IndexBackend = "pinecone"
			convey.So(bad.Validate(), convey.ShouldNotBeNil)

			bad = *cfg
			bad.BrandStore = "mongo"
			convey.So(bad.Validate(), convey.ShouldNotBeNil)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "MATCH_") {
			_ = os.Unsetenv(name)
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "brandmatch-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
