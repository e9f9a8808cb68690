package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ainews/internal/export"
	"ainews/internal/store"
)

var (
	searchLimit int

	exportOut        string
	exportFormat     string
	exportLimit      int
	exportSource     string
	exportCategory   string
	exportDays       int
	exportBookmarked bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over stored articles",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a digest of stored articles to a file",
	Long: `Writes a digest of stored articles to a Markdown or PDF file. The
selection accepts the same filters as the article listing API.`,
	RunE: runExport,
}

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark",
	Short: "Manage bookmarked articles",
}

var bookmarkAddCmd = &cobra.Command{
	Use:   "add [id]",
	Short: "Bookmark an article",
	Args:  cobra.ExactArgs(1),
	RunE:  runBookmarkAdd,
}

var bookmarkRemoveCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Remove a bookmark",
	Args:  cobra.ExactArgs(1),
	RunE:  runBookmarkRemove,
}

var bookmarkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bookmarked articles",
	RunE:  runBookmarkList,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Max results")

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default ainews_digest.<format>)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "md", "Output format: md or pdf")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 50, "Max articles")
	exportCmd.Flags().StringVar(&exportSource, "source", "", "Only articles from this source")
	exportCmd.Flags().StringVar(&exportCategory, "category", "", "Only articles with this category")
	exportCmd.Flags().IntVar(&exportDays, "days", 0, "Only articles published in the last N days")
	exportCmd.Flags().BoolVar(&exportBookmarked, "bookmarked", false, "Only bookmarked articles")

	bookmarkCmd.AddCommand(bookmarkAddCmd)
	bookmarkCmd.AddCommand(bookmarkRemoveCmd)
	bookmarkCmd.AddCommand(bookmarkListCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	query := strings.Join(args, " ")
	articles, err := st.SearchArticles(context.Background(), query, searchLimit)
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		fmt.Printf("No articles match %q\n", query)
		return nil
	}

	fmt.Printf("Found %d articles\n\n", len(articles))
	printArticles(articles)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "md" && exportFormat != "pdf" {
		return fmt.Errorf("unsupported format %q (want md or pdf)", exportFormat)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	filter := store.ListFilter{
		Source:   exportSource,
		Category: exportCategory,
		Days:     exportDays,
		Limit:    exportLimit,
	}
	if cmd.Flags().Changed("bookmarked") {
		filter.Bookmarked = &exportBookmarked
	}
	articles, err := st.ListArticles(context.Background(), filter)
	if err != nil {
		return err
	}

	var data []byte
	if exportFormat == "pdf" {
		data, err = export.DigestPDF(articles)
		if err != nil {
			return err
		}
	} else {
		data = []byte(export.Digest(articles))
	}

	out := exportOut
	if out == "" {
		out = "ainews_digest." + exportFormat
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("Wrote %d articles to %s\n", len(articles), out)
	return nil
}

func runBookmarkAdd(cmd *cobra.Command, args []string) error {
	return toggleBookmark(args[0], true)
}

func runBookmarkRemove(cmd *cobra.Command, args []string) error {
	return toggleBookmark(args[0], false)
}

func toggleBookmark(rawID string, add bool) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid article id %q", rawID)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	var (
		article *store.Article
		changed bool
	)
	if add {
		article, changed, err = st.Bookmark(ctx, id)
	} else {
		article, changed, err = st.Unbookmark(ctx, id)
	}
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("article %d not found", id)
	}
	if err != nil {
		return err
	}

	switch {
	case add && changed:
		fmt.Printf("Bookmarked: %s\n", article.Title)
	case add:
		fmt.Printf("Already bookmarked: %s\n", article.Title)
	case changed:
		fmt.Printf("Removed bookmark: %s\n", article.Title)
	default:
		fmt.Printf("Not bookmarked: %s\n", article.Title)
	}
	return nil
}

func runBookmarkList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	articles, err := st.ListBookmarks(context.Background())
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		fmt.Println("No bookmarks")
		return nil
	}

	fmt.Printf("%d bookmarked articles\n\n", len(articles))
	printArticles(articles)
	return nil
}

func printArticles(articles []store.Article) {
	for _, a := range articles {
		fmt.Printf("  %5d  %s\n", a.ID, a.Title)

		meta := a.Source
		if len(a.Categories) > 0 {
			meta += " | " + strings.Join(a.Categories, ", ")
		}
		if a.PublishedAt != nil {
			meta += " | " + a.PublishedAt.Format("2006-01-02")
		}
		fmt.Printf("         %s\n", mutedStyle.Render(meta))
		fmt.Printf("         %s\n", a.URL)
	}
}
