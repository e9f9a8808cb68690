// Package summarize generates article summaries and category labels through
// a completion model.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no API key was provided for the
// summarizer backend.
var ErrNotConfigured = errors.New("summarizer not configured")

const (
	summaryMaxTokens  = 300
	categoryMaxTokens = 100

	// Keeps long article bodies inside the prompt token budget.
	maxContentRunes = 5000
)

// Completer is the completion-model client used for summaries.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
	Configured() bool
}

type Service struct {
	completer Completer
	logger    *zap.Logger
}

func NewService(completer Completer, logger *zap.Logger) *Service {
	return &Service{completer: completer, logger: logger}
}

// Configured reports whether summaries can be generated.
func (s *Service) Configured() bool {
	return s.completer != nil && s.completer.Configured()
}

// Summarize produces a two-to-three sentence summary of an article.
func (s *Service) Summarize(ctx context.Context, title, abstract, content string) (string, error) {
	if !s.Configured() {
		return "", ErrNotConfigured
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Title: %s\n\n", title)
	if abstract != "" {
		fmt.Fprintf(&text, "Abstract: %s\n\n", abstract)
	}
	if content != "" {
		fmt.Fprintf(&text, "Content: %s", clipRunes(content, maxContentRunes))
	}

	prompt := fmt.Sprintf(`Please provide a concise summary of the following AI research paper or article.
Focus on:
1. Key findings or main contribution
2. Methodology (if applicable)
3. Practical implications

Keep the summary to 2-3 sentences maximum.

%s

Summary:`, text.String())

	out, err := s.completer.Complete(ctx, prompt, summaryMaxTokens)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	summary := strings.TrimSpace(out)
	s.logger.Debug("summary generated",
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("summary_chars", len(summary)))
	return summary, nil
}

// Categorize asks the model for one to three category labels.
func (s *Service) Categorize(ctx context.Context, title, abstract string) ([]string, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	prompt := fmt.Sprintf(`Categorize the following AI research paper or article into one or more of these categories:
- NLP (Natural Language Processing)
- Computer Vision
- Machine Learning
- Reinforcement Learning
- Generative AI
- AI Safety
- Robotics
- Neural Networks
- LLM (Large Language Models)

Return only the category names, separated by commas. Choose 1-3 most relevant categories.

Title: %s
Abstract: %s

Categories:`, title, abstract)

	out, err := s.completer.Complete(ctx, prompt, categoryMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("categorize article: %w", err)
	}

	var categories []string
	for _, part := range strings.Split(out, ",") {
		if name := strings.TrimSpace(part); name != "" {
			categories = append(categories, name)
		}
	}
	return categories, nil
}

func clipRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
