package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ainews/internal/llm"
	"ainews/internal/store"
)

const (
	// Hard ceiling on tool-exec rounds per research run. Bounds LLM spend
	// and latency; not tunable per request.
	maxIterations = 5

	maxResponseTokens = 1024

	systemPrompt = "You are a research assistant specializing in AI and machine learning. " +
		"You have access to tools for searching academic papers (arXiv, Semantic Scholar, Papers With Code), " +
		"Wikipedia, the web (Tavily), YouTube, HuggingFace models, GitHub repositories, and Anthropic research articles. " +
		"Use the most relevant tools to find information about the user's query. " +
		"You can call multiple tools and refine your searches. " +
		"After gathering enough information, provide a comprehensive 2-3 paragraph summary that synthesizes findings " +
		"and cites which sources the information comes from."

	synthesisPrompt = "Please provide your final summary now based on all the information gathered."

	domainContext        = "AI machine learning deep learning"
	youtubeDomainContext = "AI machine learning tutorial deep learning neural network"
)

// ErrUnknownSource marks a single-source query against a key no tool owns.
var ErrUnknownSource = errors.New("unknown source")

// ChatClient is the LLM boundary the orchestrator drives. Configured reports
// whether a credential is present without making a call.
type ChatClient interface {
	Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatMessage, error)
	Configured() bool
}

// RunRecorder persists one row per research run for the history log.
type RunRecorder interface {
	RecordRun(ctx context.Context, run store.ResearchRun) error
}

// Orchestrator owns the conversation with the LLM and dispatches requested
// tool calls through the shared pool. Conversation state and the source map
// are allocated per invocation, so a single orchestrator serves concurrent
// requests without locking.
type Orchestrator struct {
	registry *Registry
	pool     *Pool
	client   ChatClient
	history  RunRecorder
	logger   *zap.Logger
}

// NewOrchestrator wires the orchestrator. client may be nil when no LLM
// credential exists; history may be nil to disable run recording.
func NewOrchestrator(registry *Registry, pool *Pool, client ChatClient, history RunRecorder, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		pool:     pool,
		client:   client,
		history:  history,
		logger:   logger,
	}
}

// Tools lists every registered tool with its current capability.
func (o *Orchestrator) Tools() []ToolInfo {
	return o.registry.Tools()
}

// Research answers a query by letting the LLM drive tool selection. The
// returned outcome always succeeds: provider failures are error records
// inside Sources, and an LLM failure falls back to the direct fan-out.
func (o *Orchestrator) Research(ctx context.Context, query string) Outcome {
	start := time.Now()

	if o.client == nil || !o.client.Configured() {
		o.logger.Info("no LLM credential configured, running direct fan-out",
			zap.String("query", query))
		return o.fanOut(ctx, query, start)
	}
	schemas := o.registry.Schemas()
	if len(schemas) == 0 {
		o.logger.Warn("no tools available, running direct fan-out",
			zap.String("query", query))
		return o.fanOut(ctx, query, start)
	}

	messages := []llm.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: "Research the following topic in the context of AI and machine learning: " + query},
	}
	sources := NewAggregatedSources()

	iterations := 0
	toolCalls := 0
	for iterations < maxIterations {
		msg, err := o.client.Chat(ctx, llm.ChatRequest{
			Messages:    messages,
			Tools:       schemas,
			ToolChoice:  "auto",
			Temperature: 0,
			MaxTokens:   maxResponseTokens,
		})
		if err != nil {
			o.logger.Warn("LLM call failed, running direct fan-out", zap.Error(err))
			return o.fanOut(ctx, query, start)
		}

		if len(msg.ToolCalls) == 0 {
			o.recordRun(ctx, store.ResearchRun{
				Query:       query,
				Mode:        store.RunModeAgent,
				Iterations:  iterations,
				ToolCalls:   toolCalls,
				DurationMS:  time.Since(start).Milliseconds(),
				Synthesized: msg.Content != "",
			})
			return Outcome{Query: query, Response: msg.Content, Sources: sources, Success: true}
		}

		messages = append(messages, msg)
		toolCalls += len(msg.ToolCalls)
		messages = append(messages, o.executeBatch(ctx, query, msg.ToolCalls, sources)...)
		iterations++

		o.logger.Debug("agent iteration complete",
			zap.Int("iteration", iterations),
			zap.Int("tool_calls", len(msg.ToolCalls)))
	}

	// The model was still requesting tools when the budget ran out; ask for
	// the summary once more with tool calling switched off.
	messages = append(messages, llm.ChatMessage{Role: "user", Content: synthesisPrompt})
	response := ""
	msg, err := o.client.Chat(ctx, llm.ChatRequest{
		Messages:    messages,
		Temperature: 0,
		MaxTokens:   maxResponseTokens,
	})
	if err != nil {
		o.logger.Warn("final synthesis call failed", zap.Error(err))
	} else {
		response = msg.Content
	}

	o.recordRun(ctx, store.ResearchRun{
		Query:       query,
		Mode:        store.RunModeAgent,
		Iterations:  iterations,
		ToolCalls:   toolCalls,
		DurationMS:  time.Since(start).Milliseconds(),
		Synthesized: response != "",
	})
	return Outcome{Query: query, Response: response, Sources: sources, Success: true}
}

// SearchSource queries exactly one tool by its response key, bypassing the
// LLM. The query gets the same domain-context augmentation as fan-out mode.
func (o *Orchestrator) SearchSource(ctx context.Context, query, source string) (SourceOutcome, error) {
	start := time.Now()

	info, ok := o.registry.ToolByKey(source)
	if !ok {
		return SourceOutcome{}, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}

	_, result := o.registry.Execute(ctx, info.Name, contextQuery(source, query), 0)

	o.recordRun(ctx, store.ResearchRun{
		Query:      query,
		Mode:       store.RunModeSource,
		Source:     source,
		ToolCalls:  1,
		DurationMS: time.Since(start).Milliseconds(),
	})
	return SourceOutcome{Query: query, Source: source, Results: result.Value(), Success: true}, nil
}

type batchItem struct {
	key    string
	result ToolResult
}

type toolArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// executeBatch runs every requested call concurrently and returns one tool
// turn per request, in the order the model asked for them, each tagged with
// its correlation id. Results land in sources under the tool's response key;
// an unknown tool yields an error turn and leaves sources untouched.
func (o *Orchestrator) executeBatch(ctx context.Context, query string, calls []llm.ToolCall, sources AggregatedSources) []llm.ChatMessage {
	items := RunBatch(ctx, o.pool, len(calls), func(ctx context.Context, i int) batchItem {
		call := calls[i]
		args := toolArgs{}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || args.Query == "" {
			args = toolArgs{Query: query}
		}
		key, result := o.registry.Execute(ctx, call.Function.Name, args.Query, args.MaxResults)
		return batchItem{key: key, result: result}
	})

	turns := make([]llm.ChatMessage, 0, len(calls))
	for i, item := range items {
		if item.key != "" {
			sources.Merge(item.key, item.result)
		}
		turns = append(turns, llm.ChatMessage{
			Role:       "tool",
			Content:    marshalToolContent(item.result),
			ToolCallID: calls[i].ID,
		})
	}
	return turns
}

// fanOut runs every available tool directly against the query with domain
// context appended. Used when no LLM credential exists or the LLM fails.
func (o *Orchestrator) fanOut(ctx context.Context, query string, start time.Time) Outcome {
	var available []ToolInfo
	for _, info := range o.registry.Tools() {
		if info.Capability == CapabilityAvailable {
			available = append(available, info)
		}
	}

	sources := NewAggregatedSources()
	items := RunBatch(ctx, o.pool, len(available), func(ctx context.Context, i int) batchItem {
		info := available[i]
		key, result := o.registry.Execute(ctx, info.Name, contextQuery(info.Key, query), 0)
		return batchItem{key: key, result: result}
	})
	for _, item := range items {
		if item.key != "" {
			sources.Merge(item.key, item.result)
		}
	}

	o.recordRun(ctx, store.ResearchRun{
		Query:      query,
		Mode:       store.RunModeFallback,
		ToolCalls:  len(available),
		DurationMS: time.Since(start).Milliseconds(),
	})
	return Outcome{Query: query, Sources: sources, Success: true}
}

// contextQuery pins a fan-out or single-source query to the AI/ML domain.
// The video search gets a longer context; the organization research page is
// already domain-specific and takes the query as-is.
func contextQuery(key, query string) string {
	switch key {
	case "anthropic":
		return query
	case "youtube":
		return query + " " + youtubeDomainContext
	default:
		return query + " " + domainContext
	}
}

func (o *Orchestrator) recordRun(ctx context.Context, run store.ResearchRun) {
	if o.history == nil {
		return
	}
	if err := o.history.RecordRun(ctx, run); err != nil {
		o.logger.Warn("failed to record research run", zap.Error(err))
	}
}

func marshalToolContent(result ToolResult) string {
	b, err := json.Marshal(result.Value())
	if err != nil {
		return `{"error":"failed to encode tool result"}`
	}
	return string(b)
}
