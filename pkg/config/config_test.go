package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/index", cfg.Index.DataDir)
	assert.Equal(t, 150*time.Millisecond, cfg.Search.TimeBudget)
	assert.Equal(t, 8, cfg.Index.WordsBlockBits)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edge.yaml")
	body := []byte(`
index:
  dataDir: /srv/index
  docsBlockBits: 5
search:
  timeBudget: 2s
  defaultLimit: 10
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	t.Setenv("EI_REDIS_ADDR", "cache:6379")
	t.Setenv("EI_CONSTRUCTION_PARALLELISM", "9")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/index", cfg.Index.DataDir)
	assert.Equal(t, 5, cfg.Index.DocsBlockBits)
	assert.Equal(t, 8, cfg.Index.WordsBlockBits, "unset keys keep their default")
	assert.Equal(t, 2*time.Second, cfg.Search.TimeBudget)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 9, cfg.Construction.Parallelism)
}

func TestValidateRejectsBadBlockBits(t *testing.T) {
	cfg := defaultConfig()
	cfg.Index.DocsBlockBits = 30
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Search.TimeBudget = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
