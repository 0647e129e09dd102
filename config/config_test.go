package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REDIS_ADDR", "REDIS_DB",
		"OLLAMA_BASE_URL", "OLLAMA_CHAT_MODEL", "OLLAMA_VISION_MODEL", "OLLAMA_EMBEDDING_MODEL",
		"DATA_DIR", "DB_PATH", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.Equal(t, "pandoc", cfg.Report.PandocPath)
	assert.Equal(t, map[string]int{"critical": 6, "default": 3, "low": 1}, cfg.Worker.Queues)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9999"
retrieval:
  top_k: 8
chunking:
  chunk_size: 500
  overlap: 50
ollama:
  chat_model: mistral
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, "mistral", cfg.Ollama.ChatModel)
	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("redis:\n  addr: file:6379\n"), 0644))

	t.Setenv("REDIS_ADDR", "env:6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env:6380", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
retrieval:
  top_k: -1
chunking:
  chunk_size: 0
  overlap: -5
worker:
  concurrency: 0
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
	assert.Equal(t, 0, cfg.Chunking.Overlap)
	assert.Equal(t, 5, cfg.Worker.Concurrency)
}

func TestLoad_MalformedYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
