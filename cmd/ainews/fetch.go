package main

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
)

var fetchMax int

var fetchCmd = &cobra.Command{
	Use:   "fetch [source]",
	Short: "Pull fresh articles into the database",
	Long: `Fetches articles from every registered source, or from a single source
when one is named (arxiv, huggingface, blogs, aggregators). Articles are
deduplicated against each other and against the database.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().IntVar(&fetchMax, "max", 0, "Max articles per source (0 uses the configured default)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	svc := newFetchService(st)

	if len(args) == 1 {
		report, err := svc.RefreshSource(ctx, args[0], fetchMax)
		if err != nil {
			return err
		}
		fmt.Printf("%s: fetched %d, unique %d, new %d\n",
			report.Source, report.Fetched, report.Unique, report.Saved)
		return nil
	}

	budget := fetchMax
	if budget <= 0 {
		budget = cfg.Fetch.MaxPerSource
	}
	report, err := svc.RefreshAll(ctx, budget)
	if err != nil {
		return err
	}

	fmt.Printf("Fetched %d articles (%d unique, %d new)\n\n",
		report.TotalFetched, report.UniqueArticles, report.Saved)

	names := make([]string, 0, len(report.Sources))
	for name := range report.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sr := report.Sources[name]
		line := fmt.Sprintf("  %-13s %3d  %s", name, sr.Fetched, sr.Status)
		if sr.Error != "" {
			line += ": " + sr.Error
		}
		fmt.Println(line)
	}
	return nil
}
