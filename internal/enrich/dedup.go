package enrich

import (
	"regexp"
	"strings"

	"ainews/internal/store"
)

// Two titles count as duplicates when the overlap of their word sets exceeds
// this share of the larger set.
const titleOverlapThreshold = 0.8

var nonWord = regexp.MustCompile(`[^\w\s]`)

// Deduplicate drops articles that repeat an earlier source_id or whose title
// is a near-duplicate of an earlier one. Only kept articles feed the seen
// sets, so a skipped duplicate never shadows a later distinct article.
func Deduplicate(articles []store.Article) []store.Article {
	seenIDs := make(map[string]struct{}, len(articles))
	var seenTitles []map[string]struct{}

	unique := make([]store.Article, 0, len(articles))
	for _, a := range articles {
		if _, ok := seenIDs[a.SourceID]; ok {
			continue
		}

		words := titleWords(a.Title)
		if isNearDuplicate(words, seenTitles) {
			continue
		}

		seenIDs[a.SourceID] = struct{}{}
		seenTitles = append(seenTitles, words)
		unique = append(unique, a)
	}
	return unique
}

func titleWords(title string) map[string]struct{} {
	normalized := nonWord.ReplaceAllString(strings.ToLower(title), "")
	words := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		words[w] = struct{}{}
	}
	return words
}

func isNearDuplicate(words map[string]struct{}, seen []map[string]struct{}) bool {
	for _, prev := range seen {
		longest := len(words)
		if len(prev) > longest {
			longest = len(prev)
		}
		if longest == 0 {
			continue
		}

		overlap := 0
		for w := range words {
			if _, ok := prev[w]; ok {
				overlap++
			}
		}
		if float64(overlap)/float64(longest) > titleOverlapThreshold {
			return true
		}
	}
	return false
}
