// Package config loads and watches the ainews configuration: a YAML file,
// an optional .env file, and environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no --config flag is given.
const DefaultPath = "ainews.yaml"

// Config is the full ainews configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Tools      ToolsConfig      `yaml:"tools"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig names the two SQLite files.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	HistoryPath string `yaml:"history_path"`
}

// LLMConfig configures the Groq chat-completions client driving the agent.
type LLMConfig struct {
	GroqAPIKey string `yaml:"groq_api_key"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Timeout    string `yaml:"timeout"`
}

// SummarizerConfig configures the Anthropic client used for article
// summaries and LLM categorization.
type SummarizerConfig struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	Model           string `yaml:"model"`
	BaseURL         string `yaml:"base_url"`
	Timeout         string `yaml:"timeout"`
}

// ToolsConfig carries the research-tool credentials and per-call limits.
// Disabled lists tool names that should report a missing dependency.
type ToolsConfig struct {
	TavilyAPIKey   string   `yaml:"tavily_api_key"`
	YouTubeAPIKey  string   `yaml:"youtube_api_key"`
	GitHubToken    string   `yaml:"github_token"`
	RequestTimeout string   `yaml:"request_timeout"`
	Disabled       []string `yaml:"disabled"`
}

// FetchConfig controls article ingestion.
type FetchConfig struct {
	Timeout            string `yaml:"timeout"`
	MaxPerSource       int    `yaml:"max_per_source"`
	RedditClientID     string `yaml:"reddit_client_id"`
	RedditClientSecret string `yaml:"reddit_client_secret"`
}

// LoggingConfig controls the zap root logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8000",
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Path:        "data/ainews.db",
			HistoryPath: "data/research_history.db",
		},
		LLM: LLMConfig{
			Model:   "llama-3.1-8b-instant",
			BaseURL: "https://api.groq.com/openai/v1",
			Timeout: "60s",
		},
		Summarizer: SummarizerConfig{
			Model:   "claude-3-haiku-20240307",
			BaseURL: "https://api.anthropic.com/v1",
			Timeout: "30s",
		},
		Tools: ToolsConfig{
			RequestTimeout: "15s",
		},
		Fetch: FetchConfig{
			Timeout:      "30s",
			MaxPerSource: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path, layering a best-effort .env and
// environment overrides on top. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	// .env mirrors local development setups; absence is not an error.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		c.LLM.GroqAPIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Summarizer.AnthropicAPIKey = v
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		c.Tools.TavilyAPIKey = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		c.Tools.YouTubeAPIKey = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.Tools.GitHubToken = v
	}
	if v := os.Getenv("REDDIT_CLIENT_ID"); v != "" {
		c.Fetch.RedditClientID = v
	}
	if v := os.Getenv("REDDIT_CLIENT_SECRET"); v != "" {
		c.Fetch.RedditClientSecret = v
	}
	if v := os.Getenv("AINEWS_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("AINEWS_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := make([]string, 0, 4)
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				origins = append(origins, s)
			}
		}
		c.Server.CORSOrigins = origins
	}
}

// Validate checks the fields every subsystem depends on.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Database.HistoryPath == "" {
		return fmt.Errorf("database.history_path must not be empty")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	if c.Fetch.MaxPerSource < 1 {
		return fmt.Errorf("fetch.max_per_source must be at least 1, got %d", c.Fetch.MaxPerSource)
	}
	return nil
}

// ToolEnabled reports whether a research tool is enabled. Tools listed under
// tools.disabled report a missing dependency and drop out of advertisement.
func (c *Config) ToolEnabled(name string) bool {
	for _, d := range c.Tools.Disabled {
		if d == name {
			return false
		}
	}
	return true
}

// GetLLMTimeout returns the Groq request timeout.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// GetSummarizerTimeout returns the Anthropic request timeout.
func (c *Config) GetSummarizerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Summarizer.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetToolTimeout returns the per-call budget for research tool providers.
func (c *Config) GetToolTimeout() time.Duration {
	d, err := time.ParseDuration(c.Tools.RequestTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// GetFetchTimeout returns the HTTP timeout for article fetchers.
func (c *Config) GetFetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Fetch.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Snapshot hands out the current configuration. Components that must see
// credential changes without a restart (the tool capability probe) read
// through this instead of holding a *Config.
type Snapshot interface {
	Current() *Config
}

// Static is a Snapshot that never changes; used by the CLI one-shot
// commands and in tests.
type Static struct {
	C *Config
}

// Current implements Snapshot.
func (s Static) Current() *Config { return s.C }
