package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fyerfyer/doc-chunk-system/internal/chunker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.False(t, cfg.Queue.Enable)
	assert.Equal(t, "hybrid", cfg.Chunking.Strategy)
	assert.Equal(t, 100, cfg.Chunking.PageThreshold)
	assert.Equal(t, 150000, cfg.Chunking.TokenThreshold)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	content := `
storage:
  type: minio
  endpoint: localhost:9000
  bucket: test-bucket
chunking:
  strategy: fixed-pages
  page_threshold: 50
  fixed_pages:
    chunk_size_pages: 20
    overlap_pages: 2
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "minio", cfg.Storage.Type)
	assert.Equal(t, "test-bucket", cfg.Storage.Bucket)
	assert.Equal(t, "fixed-pages", cfg.Chunking.Strategy)
	assert.Equal(t, 50, cfg.Chunking.PageThreshold)
	assert.Equal(t, 20, cfg.Chunking.FixedPages.ChunkSizePages)
	// 未覆盖的配置保持默认值
	assert.Equal(t, 150000, cfg.Chunking.TokenThreshold)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestToChunkerConfig(t *testing.T) {
	t.Run("DefaultsAreValid", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)

		chunkerCfg := cfg.Chunking.ToChunkerConfig()
		require.NoError(t, chunkerCfg.Validate())
		assert.Equal(t, chunker.StrategyHybrid, chunkerCfg.Strategy)
		require.NotNil(t, chunkerCfg.Hybrid)
		assert.Nil(t, chunkerCfg.FixedPages)
		assert.Nil(t, chunkerCfg.TokenBased)
	})

	t.Run("SelectsVariantByStrategy", func(t *testing.T) {
		cc := ChunkingConfig{
			Strategy:        "token-based",
			PageThreshold:   100,
			TokenThreshold:  150000,
			MaxConcurrency:  5,
			MinSuccessRatio: 0.5,
			TokenBased:      TokenBasedConfig{MaxTokensPerChunk: 100000, OverlapTokens: 5000},
			Hybrid:          HybridConfig{TargetTokensPerChunk: 80000, MaxPagesPerChunk: 99},
		}

		chunkerCfg := cc.ToChunkerConfig()
		require.NoError(t, chunkerCfg.Validate())
		require.NotNil(t, chunkerCfg.TokenBased)
		assert.Nil(t, chunkerCfg.Hybrid, "only the selected strategy section must be set")
	})
}
