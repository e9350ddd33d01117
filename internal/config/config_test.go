package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"KNOWLEDGE_AGENT_CONFIG", "DATABASE_DSN", "LLM_BASE_URL",
		"LLM_API_KEY", "LISTEN_ADDR", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Server.MaxInFlight)
	assert.Equal(t, time.Hour, cfg.Pipeline.FetchInterval.Std())
	assert.Equal(t, 3*time.Minute, cfg.Pipeline.ProcessInterval.Std())
	assert.Equal(t, 3, cfg.Pipeline.RetryCeiling)
	assert.Equal(t, 72*time.Hour, cfg.Pipeline.FreshnessWindow.Std())
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 8000, cfg.Retrieval.ContextBudget)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "newsapi", cfg.Sources[0].Kind)
	assert.Equal(t, "scrape", cfg.Sources[1].Kind)
}

func TestLoadFromFileWithEnvOverrides(t *testing.T) {
	raw := `
server:
  addr: ":9090"
  maxInFlight: 2
pipeline:
  fetchInterval: 30m
  processInterval: 45s
  retryCeiling: 5
retrieval:
  topK: 7
llm:
  provider: openai
  model: gpt-4o-mini
safety:
  advicePhrases:
    - "insider tip"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	t.Setenv("KNOWLEDGE_AGENT_CONFIG", path)
	t.Setenv("DATABASE_DSN", "postgres://env-user:secret@db:5432/agent")
	t.Setenv("LISTEN_ADDR", ":7070")
	t.Setenv("LLM_API_KEY", "test-key")

	cfg := Load()

	// File values survive where no env override exists.
	assert.Equal(t, 2, cfg.Server.MaxInFlight)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.FetchInterval.Std())
	assert.Equal(t, 45*time.Second, cfg.Pipeline.ProcessInterval.Std())
	assert.Equal(t, 5, cfg.Pipeline.RetryCeiling)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, []string{"insider tip"}, cfg.Safety.AdvicePhrases)

	// Environment wins over the file.
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "postgres://env-user:secret@db:5432/agent", cfg.Database.DSN)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)

	// Untouched sections keep their defaults.
	assert.Equal(t, 8000, cfg.Retrieval.ContextBudget)
	assert.Equal(t, 72*time.Hour, cfg.Pipeline.FreshnessWindow.Std())
}

func TestLoadUnreadableFileFallsBack(t *testing.T) {
	t.Setenv("KNOWLEDGE_AGENT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestFloorsRecoverZeroedKnobs(t *testing.T) {
	raw := `
server:
  maxInFlight: 0
retrieval:
  topK: 0
  contextBudget: 0
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	t.Setenv("KNOWLEDGE_AGENT_CONFIG", path)

	cfg := Load()
	assert.Equal(t, 8, cfg.Server.MaxInFlight)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 8000, cfg.Retrieval.ContextBudget)
}

func TestDurationUnmarshal(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte(`90s`), &d))
	assert.Equal(t, 90*time.Second, d.Std())

	require.Error(t, yaml.Unmarshal([]byte(`"not a duration"`), &d))
}
