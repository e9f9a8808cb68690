package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ainews/internal/api"
	"ainews/internal/config"
	"ainews/internal/llm"
	"ainews/internal/store"
	"ainews/internal/summarize"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Starts the REST API on the configured address and watches the config
file for changes, so credentials added while the server runs are picked
up without a restart.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	history, err := store.OpenHistory(cfg.Database.HistoryPath)
	if err != nil {
		return fmt.Errorf("open research history: %w", err)
	}
	defer history.Close()

	watcher := config.NewWatcher(configPath, cfg, logger.Named("config"))
	watcher.OnReload(func(c *config.Config) {
		logger.Info("configuration reloaded",
			zap.Bool("llm_configured", c.LLM.GroqAPIKey != ""),
			zap.Bool("summarizer_configured", c.Summarizer.AnthropicAPIKey != ""))
	})
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	anthropic := llm.NewAnthropicClientWithConfig(llm.Config{
		APIKey:  cfg.Summarizer.AnthropicAPIKey,
		BaseURL: cfg.Summarizer.BaseURL,
		Model:   cfg.Summarizer.Model,
		Timeout: cfg.GetSummarizerTimeout(),
	})

	srv := api.NewServer(api.Options{
		Store:       st,
		Refresher:   newFetchService(st),
		Summarizer:  summarize.NewService(anthropic, logger.Named("summarize")),
		Researcher:  newOrchestrator(watcher, history),
		Logger:      logger.Named("api"),
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
