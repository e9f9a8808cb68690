package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-pdf/fpdf"

	"ainews/internal/store"
)

// maxUpstreamPDFSize caps how much of an upstream PDF is buffered in memory.
var maxUpstreamPDFSize int64 = 25 << 20

// PDF renders an article into a PDF document with the same sections as the
// Markdown export.
func PDF(article store.Article) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	translate := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetTitle(translate(article.Title), false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.MultiCell(0, 8, translate(article.Title), "", "L", false)
	doc.Ln(2)

	doc.SetFont("Helvetica", "", 10)
	doc.SetTextColor(90, 90, 90)
	doc.MultiCell(0, 5, translate("Authors: "+authorsLine(article)), "", "L", false)
	doc.MultiCell(0, 5, translate(fmt.Sprintf("Source: %s | Categories: %s",
		article.Source, categoriesLine(article))), "", "L", false)
	if article.PublishedAt != nil {
		doc.MultiCell(0, 5, "Published: "+article.PublishedAt.Format("2006-01-02"), "", "L", false)
	}
	doc.MultiCell(0, 5, translate(article.URL), "", "L", false)
	doc.SetTextColor(0, 0, 0)
	doc.Ln(4)

	section := func(heading, body string) {
		if body == "" {
			return
		}
		doc.SetFont("Helvetica", "B", 12)
		doc.MultiCell(0, 6, heading, "", "L", false)
		doc.Ln(1)
		doc.SetFont("Helvetica", "", 10)
		doc.MultiCell(0, 5, translate(body), "", "L", false)
		doc.Ln(3)
	}
	section("AI Summary", article.Summary)
	section("Abstract", article.Abstract)
	section("Content", article.Content)

	doc.SetFont("Helvetica", "I", 8)
	doc.MultiCell(0, 4, "Exported from AI News Tracker", "", "L", false)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// DigestPDF renders several articles into one PDF document, mirroring the
// Markdown digest.
func DigestPDF(articles []store.Article) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	translate := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetTitle("AI News Digest", false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 18)
	doc.MultiCell(0, 9, "AI News Digest", "", "L", false)
	doc.SetFont("Helvetica", "I", 10)
	doc.SetTextColor(90, 90, 90)
	doc.MultiCell(0, 5, fmt.Sprintf("%d articles", len(articles)), "", "L", false)
	doc.SetTextColor(0, 0, 0)
	doc.Ln(4)

	for i, article := range articles {
		doc.SetFont("Helvetica", "B", 13)
		doc.MultiCell(0, 7, translate(fmt.Sprintf("%d. %s", i+1, article.Title)), "", "L", false)

		doc.SetFont("Helvetica", "", 9)
		doc.SetTextColor(90, 90, 90)
		doc.MultiCell(0, 5, translate(fmt.Sprintf("Source: %s | Categories: %s",
			article.Source, categoriesLine(article))), "", "L", false)
		if article.PublishedAt != nil {
			doc.MultiCell(0, 5, "Published: "+article.PublishedAt.Format("2006-01-02"), "", "L", false)
		}
		doc.MultiCell(0, 5, translate(article.URL), "", "L", false)
		doc.SetTextColor(0, 0, 0)

		text := article.Summary
		if text == "" {
			text = article.Abstract
		}
		if text != "" {
			doc.SetFont("Helvetica", "", 10)
			doc.MultiCell(0, 5, translate(text), "", "L", false)
		}
		doc.Ln(4)
	}

	doc.SetFont("Helvetica", "I", 8)
	doc.MultiCell(0, 4, "Exported from AI News Tracker", "", "L", false)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// DownloadPDF fetches an upstream PDF, typically the arXiv copy of a paper.
// It rejects oversized files and responses that are not PDFs, such as rate
// limit pages.
func DownloadPDF(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamPDFSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxUpstreamPDFSize {
		return nil, fmt.Errorf("pdf exceeds %d byte limit", maxUpstreamPDFSize)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, fmt.Errorf("upstream response is not a pdf")
	}
	return data, nil
}
