package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, "llama3-8b-8192", cfg.ChatLLM.Model)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9001"
rag:
  chunk_size: 500
  chunk_overlap: 50
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9001", cfg.Server.Addr)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	// Untouched sections keep their defaults.
	assert.Equal(t, "llama2", cfg.EmbedLLM.Model)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("PERSIST_DIRECTORY", "/tmp/idx")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gsk_test", cfg.ChatLLM.Key)
	assert.Equal(t, "/tmp/idx", cfg.RAG.PersistDir)
}
