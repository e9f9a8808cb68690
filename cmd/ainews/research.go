package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ainews/internal/agent"
	"ainews/internal/config"
	"ainews/internal/store"
)

var (
	researchSource  string
	researchTimeout time.Duration

	headingStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	availableStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	missingKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	disabledStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var researchCmd = &cobra.Command{
	Use:   "research [query]",
	Short: "Ask the research agent a question",
	Long: `Runs the research agent: an LLM selects from nine search tools (arXiv,
Wikipedia, web search, YouTube, Semantic Scholar, HuggingFace, GitHub,
Papers With Code, Anthropic research) and synthesizes an answer. Without
a Groq API key every available tool is queried directly instead.

Use --source to query a single tool and print its raw results.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List research tools and their availability",
	RunE:  runSources,
}

func init() {
	researchCmd.Flags().StringVar(&researchSource, "source", "", "Query a single tool (arxiv, wikipedia, tavily, ...)")
	researchCmd.Flags().DurationVar(&researchTimeout, "timeout", 3*time.Minute, "Overall research deadline")
}

func runResearch(cmd *cobra.Command, args []string) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(sigCtx, researchTimeout)
	defer cancel()

	var recorder agent.RunRecorder
	if history, err := store.OpenHistory(cfg.Database.HistoryPath); err != nil {
		logger.Warn("research history disabled", zap.Error(err))
	} else {
		recorder = history
		defer history.Close()
	}

	orch := newOrchestrator(config.Static{C: cfg}, recorder)
	query := strings.Join(args, " ")

	if researchSource != "" {
		outcome, err := orch.SearchSource(ctx, query, researchSource)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(outcome.Results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	outcome := orch.Research(ctx, query)
	if outcome.Response != "" {
		fmt.Print(renderMarkdown(outcome.Response))
	} else {
		fmt.Println(mutedStyle.Render("No synthesis (direct fan-out mode). Use --source to see raw results."))
	}

	fmt.Println()
	fmt.Println(headingStyle.Render("Sources"))
	keys := make([]string, 0, len(outcome.Sources))
	for key := range outcome.Sources {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("  %-18s %s\n", key, mutedStyle.Render(describeSource(outcome.Sources[key])))
	}
	return nil
}

func runSources(cmd *cobra.Command, args []string) error {
	orch := newOrchestrator(config.Static{C: cfg}, nil)

	fmt.Println(headingStyle.Render("Research tools"))
	for _, info := range orch.Tools() {
		var status string
		switch info.Capability {
		case agent.CapabilityAvailable:
			status = availableStyle.Render("available")
		case agent.CapabilityMissingCredential:
			status = missingKeyStyle.Render("missing credential")
		default:
			status = disabledStyle.Render("disabled")
		}
		line := fmt.Sprintf("  %-24s %-18s %s", info.Name, info.Key, status)
		if info.RequiresKey {
			line += mutedStyle.Render("  (API key)")
		}
		fmt.Println(line)
	}
	return nil
}

// renderMarkdown pretty-prints the synthesis for the terminal, falling back
// to the raw text when no renderer can be built.
func renderMarkdown(text string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return text + "\n"
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return rendered
}

// describeSource summarizes one aggregated-source value for the counts table.
func describeSource(v any) string {
	switch t := v.(type) {
	case nil:
		return "no results"
	case []agent.Record:
		if len(t) == 1 {
			if msg, ok := t[0]["error"].(string); ok {
				return "error: " + msg
			}
		}
		return fmt.Sprintf("%d results", len(t))
	case agent.Record:
		if msg, ok := t["error"].(string); ok {
			return "error: " + msg
		}
		if results, ok := t["results"].([]agent.Record); ok {
			return fmt.Sprintf("answer + %d results", len(results))
		}
		return "1 result"
	default:
		return "1 result"
	}
}
