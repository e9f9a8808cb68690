package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ainews/internal/agent"
	"ainews/internal/config"
	"ainews/internal/fetch"
	"ainews/internal/llm"
	"ainews/internal/logging"
	"ainews/internal/store"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ainews",
	Short: "AI News Tracker - aggregate, search and research AI news",
	Long: `ainews tracks AI and machine learning news from arXiv, research lab
blogs, HuggingFace and community aggregators, stores it in SQLite with
full-text search, and answers research questions through an LLM agent
with nine search tools.

Start the HTTP API with "ainews serve", pull fresh articles with
"ainews fetch", or ask a question with "ainews research".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(bookmarkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore opens the article database named in the config.
func openStore() (*store.Store, error) {
	st, err := store.Open(cfg.Database.Path, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("open article store: %w", err)
	}
	return st, nil
}

// newFetchService assembles the ingestion pipeline over the given store.
func newFetchService(st *store.Store) *fetch.Service {
	client := &http.Client{Timeout: cfg.GetFetchTimeout()}
	fetchLogger := logger.Named("fetch")
	return fetch.NewService(st, fetchLogger,
		fetch.NewArxivFetcher(client),
		fetch.NewHuggingFaceFetcher(client, fetchLogger),
		fetch.NewBlogFetcher(client, fetchLogger),
		fetch.NewAggregatorFetcher(client, fetchLogger),
	)
}

// newOrchestrator assembles the research agent. history may be nil to skip
// run recording.
func newOrchestrator(snapshot config.Snapshot, history agent.RunRecorder) *agent.Orchestrator {
	groq := llm.NewGroqClientWithConfig(llm.Config{
		APIKey:  cfg.LLM.GroqAPIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.GetLLMTimeout(),
	})
	registry := agent.NewRegistry(snapshot, logger.Named("agent"))
	pool := agent.NewPool(0)
	return agent.NewOrchestrator(registry, pool, groq, history, logger.Named("agent"))
}
