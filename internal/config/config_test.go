package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GROQ_API_KEY", "ANTHROPIC_API_KEY", "TAVILY_API_KEY", "YOUTUBE_API_KEY",
		"GITHUB_TOKEN", "REDDIT_CLIENT_ID", "REDDIT_CLIENT_SECRET",
		"AINEWS_DB", "AINEWS_ADDR", "CORS_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	clearEnvOverrides(t)

	cfg := DefaultConfig()
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "data/ainews.db", cfg.Database.Path)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, "claude-3-haiku-20240307", cfg.Summarizer.Model)
	assert.Equal(t, 30, cfg.Fetch.MaxPerSource)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnvOverrides(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Addr, cfg.Server.Addr)
	assert.Empty(t, cfg.LLM.GroqAPIKey)
}

func TestLoadYAML(t *testing.T) {
	clearEnvOverrides(t)

	path := filepath.Join(t.TempDir(), "ainews.yaml")
	data := []byte(`
server:
  addr: ":9090"
  cors_origins:
    - "http://example.com"
llm:
  groq_api_key: "gsk_test"
  timeout: "5s"
tools:
  disabled:
    - youtube
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"http://example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "gsk_test", cfg.LLM.GroqAPIKey)
	assert.Equal(t, 5*time.Second, cfg.GetLLMTimeout())

	// Fields absent from the file keep their defaults.
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, "data/ainews.db", cfg.Database.Path)

	assert.False(t, cfg.ToolEnabled("youtube"))
	assert.True(t, cfg.ToolEnabled("arxiv"))
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ainews.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("GROQ_API_KEY", "gsk_env")
	t.Setenv("TAVILY_API_KEY", "tvly_env")
	t.Setenv("AINEWS_ADDR", ":7777")
	t.Setenv("AINEWS_DB", "/tmp/other.db")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "gsk_env", cfg.LLM.GroqAPIKey)
	assert.Equal(t, "tvly_env", cfg.Tools.TavilyAPIKey)
	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("GROQ_API_KEY", "gsk_env")

	path := filepath.Join(t.TempDir(), "ainews.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  groq_api_key: gsk_file\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gsk_env", cfg.LLM.GroqAPIKey)
}

func TestDurationGetterFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "not-a-duration"
	cfg.Tools.RequestTimeout = "-3s"
	cfg.Fetch.Timeout = ""

	assert.Equal(t, 60*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 15*time.Second, cfg.GetToolTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetFetchTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetSummarizerTimeout())
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Addr = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Fetch.MaxPerSource = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Database.HistoryPath = ""
	assert.Error(t, cfg.Validate())
}

func TestStaticSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	var snap Snapshot = Static{C: cfg}
	assert.Same(t, cfg, snap.Current())
}
