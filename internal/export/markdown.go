// Package export renders stored articles as Markdown and PDF documents.
package export

import (
	"fmt"
	"strings"

	"ainews/internal/store"
)

const footer = "---\n\n*Exported from AI News Tracker*\n"

func authorsLine(article store.Article) string {
	if len(article.Authors) == 0 {
		return "Unknown"
	}
	return strings.Join(article.Authors, ", ")
}

func categoriesLine(article store.Article) string {
	if len(article.Categories) == 0 {
		return "Uncategorized"
	}
	return strings.Join(article.Categories, ", ")
}

// Markdown renders a single article as a standalone Markdown document.
func Markdown(article store.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", article.Title)
	fmt.Fprintf(&b, "**Authors:** %s\n\n", authorsLine(article))
	fmt.Fprintf(&b, "**Source:** %s | **Categories:** %s\n\n", article.Source, categoriesLine(article))
	fmt.Fprintf(&b, "**URL:** [%s](%s)\n\n", article.URL, article.URL)
	if article.PublishedAt != nil {
		fmt.Fprintf(&b, "**Published:** %s\n\n", article.PublishedAt.Format("2006-01-02"))
	}
	if article.Summary != "" {
		fmt.Fprintf(&b, "## AI Summary\n\n%s\n\n", article.Summary)
	}
	if article.Abstract != "" {
		fmt.Fprintf(&b, "## Abstract\n\n%s\n\n", article.Abstract)
	}
	if article.Content != "" {
		fmt.Fprintf(&b, "## Content\n\n%s\n\n", article.Content)
	}
	b.WriteString(footer)
	return b.String()
}

// Digest renders several articles into one Markdown document, used by the CLI
// for file export and terminal rendering.
func Digest(articles []store.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# AI News Digest\n\n*%d articles*\n\n", len(articles))
	for i, article := range articles {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, article.Title)
		fmt.Fprintf(&b, "**Source:** %s | **Categories:** %s\n\n", article.Source, categoriesLine(article))
		if article.PublishedAt != nil {
			fmt.Fprintf(&b, "**Published:** %s\n\n", article.PublishedAt.Format("2006-01-02"))
		}
		fmt.Fprintf(&b, "[%s](%s)\n\n", article.URL, article.URL)

		text := article.Summary
		if text == "" {
			text = article.Abstract
		}
		if text != "" {
			fmt.Fprintf(&b, "%s\n\n", text)
		}
	}
	b.WriteString(footer)
	return b.String()
}
