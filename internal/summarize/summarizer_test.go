package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCompleter struct {
	configured   bool
	reply        string
	err          error
	gotPrompt    string
	gotMaxTokens int
}

func (s *stubCompleter) Complete(_ context.Context, prompt string, maxTokens int) (string, error) {
	s.gotPrompt = prompt
	s.gotMaxTokens = maxTokens
	return s.reply, s.err
}

func (s *stubCompleter) Configured() bool { return s.configured }

func TestSummarizeNotConfigured(t *testing.T) {
	svc := NewService(&stubCompleter{configured: false}, zap.NewNop())
	_, err := svc.Summarize(context.Background(), "Title", "Abstract", "")
	require.ErrorIs(t, err, ErrNotConfigured)

	svc = NewService(nil, zap.NewNop())
	_, err = svc.Summarize(context.Background(), "Title", "Abstract", "")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestSummarizeBuildsPrompt(t *testing.T) {
	stub := &stubCompleter{configured: true, reply: "  A tidy summary.  "}
	svc := NewService(stub, zap.NewNop())

	summary, err := svc.Summarize(context.Background(),
		"Attention Is All You Need", "We propose the transformer.", "Full body text.")
	require.NoError(t, err)

	assert.Equal(t, "A tidy summary.", summary)
	assert.Equal(t, 300, stub.gotMaxTokens)
	assert.True(t, strings.HasPrefix(stub.gotPrompt, "Please provide a concise summary"))
	assert.True(t, strings.HasSuffix(stub.gotPrompt, "Summary:"))
	assert.Contains(t, stub.gotPrompt, "Title: Attention Is All You Need\n\n")
	assert.Contains(t, stub.gotPrompt, "Abstract: We propose the transformer.\n\n")
	assert.Contains(t, stub.gotPrompt, "Content: Full body text.")
}

func TestSummarizeOmitsEmptySections(t *testing.T) {
	stub := &stubCompleter{configured: true, reply: "ok"}
	svc := NewService(stub, zap.NewNop())

	_, err := svc.Summarize(context.Background(), "Bare title", "", "")
	require.NoError(t, err)

	assert.Contains(t, stub.gotPrompt, "Title: Bare title")
	assert.NotContains(t, stub.gotPrompt, "Abstract:")
	assert.NotContains(t, stub.gotPrompt, "Content:")
}

func TestSummarizeClipsLongContent(t *testing.T) {
	stub := &stubCompleter{configured: true, reply: "ok"}
	svc := NewService(stub, zap.NewNop())

	_, err := svc.Summarize(context.Background(), "T", "", strings.Repeat("x", 6000))
	require.NoError(t, err)
	assert.Equal(t, 5000, strings.Count(stub.gotPrompt, "x"))
}

func TestSummarizeCompleterError(t *testing.T) {
	stub := &stubCompleter{configured: true, err: errors.New("boom")}
	svc := NewService(stub, zap.NewNop())

	_, err := svc.Summarize(context.Background(), "T", "", "")
	require.EqualError(t, err, "generate summary: boom")
}

func TestCategorizeSplitsReply(t *testing.T) {
	stub := &stubCompleter{configured: true, reply: "NLP, Machine Learning , LLM,"}
	svc := NewService(stub, zap.NewNop())

	categories, err := svc.Categorize(context.Background(), "Prompting tricks", "We prompt models.")
	require.NoError(t, err)

	assert.Equal(t, []string{"NLP", "Machine Learning", "LLM"}, categories)
	assert.Equal(t, 100, stub.gotMaxTokens)
	assert.Contains(t, stub.gotPrompt, "- LLM (Large Language Models)")
	assert.Contains(t, stub.gotPrompt, "Title: Prompting tricks")
	assert.True(t, strings.HasSuffix(stub.gotPrompt, "Categories:"))
}

func TestCategorizeNotConfigured(t *testing.T) {
	svc := NewService(&stubCompleter{}, zap.NewNop())
	_, err := svc.Categorize(context.Background(), "T", "A")
	require.ErrorIs(t, err, ErrNotConfigured)
}
