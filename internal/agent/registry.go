package agent

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ainews/internal/config"
	"ainews/internal/llm"
)

// toolEntry parametrizes one provider: its advertised schema, its response
// key, the credential it needs (if any), and the function that performs the
// outbound call and maps the response to records.
type toolEntry struct {
	name         string
	key          string
	description  string
	queryDesc    string
	maxDesc      string
	defaultMax   int
	maxCap       int
	objectShaped bool
	credential   func(*config.Config) string
	run          func(ctx context.Context, cfg *config.Config, query string, maxResults int) ToolResult
}

func (t *toolEntry) errorResult(format string, args ...any) ToolResult {
	if t.objectShaped {
		return errorObject(format, args...)
	}
	return errorRecords(format, args...)
}

// ToolInfo describes one registered tool for callers that list sources.
type ToolInfo struct {
	Name        string     `json:"name"`
	Key         string     `json:"key"`
	Description string     `json:"description"`
	RequiresKey bool       `json:"requires_api_key"`
	Capability  Capability `json:"-"`
}

// endpoints collects the base URLs of every external dependency so tests can
// point providers at local servers.
type endpoints struct {
	arxiv            string
	wikipediaAPI     string
	wikipediaSummary string
	tavily           string
	youtube          string
	semanticScholar  string
	huggingface      string
	github           string
	papersWithCode   string
	anthropic        string
}

func defaultEndpoints() endpoints {
	return endpoints{
		arxiv:            "http://export.arxiv.org/api/query",
		wikipediaAPI:     "https://en.wikipedia.org/w/api.php",
		wikipediaSummary: "https://en.wikipedia.org/api/rest_v1/page/summary",
		tavily:           "https://api.tavily.com/search",
		youtube:          "https://www.googleapis.com/youtube/v3/search",
		semanticScholar:  "https://api.semanticscholar.org/graph/v1/paper/search",
		huggingface:      "https://huggingface.co/api/models",
		github:           "https://api.github.com/search/repositories",
		papersWithCode:   "https://huggingface.co/api/daily_papers",
		anthropic:        "https://www.anthropic.com/research",
	}
}

// Registry holds the fixed set of tools and re-evaluates their availability
// against the current configuration on every call, so credentials supplied
// through a config reload take effect without a restart.
type Registry struct {
	cfg       config.Snapshot
	client    *http.Client
	logger    *zap.Logger
	endpoints endpoints
	tools     []toolEntry
	byName    map[string]*toolEntry
	byKey     map[string]*toolEntry
}

func NewRegistry(cfg config.Snapshot, logger *zap.Logger) *Registry {
	timeout := cfg.Current().GetToolTimeout()
	r := &Registry{
		cfg:       cfg,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		endpoints: defaultEndpoints(),
	}
	r.tools = []toolEntry{
		{
			name:        "search_arxiv",
			key:         "arxiv",
			description: "Search arXiv for academic papers and preprints about AI, machine learning, and related topics. Use for research, algorithms, models, or technical concepts.",
			queryDesc:   "Search query for arXiv. Include relevant technical terms.",
			maxDesc:     "Maximum number of papers to return (1-10, default 5)",
			defaultMax:  5,
			maxCap:      10,
			run:         r.searchArxiv,
		},
		{
			name:        "search_wikipedia",
			key:         "wikipedia",
			description: "Search Wikipedia for general knowledge articles. Use for background information, definitions, history, or broader context.",
			queryDesc:   "Search query for Wikipedia",
			maxDesc:     "Maximum number of articles to return (1-5, default 3)",
			defaultMax:  3,
			maxCap:      5,
			run:         r.searchWikipedia,
		},
		{
			name:         "search_web",
			key:          "tavily",
			description:  "Search the web for recent news, blog posts, tutorials, and general content. Use for current events, recent developments, or practical information.",
			queryDesc:    "Search query for the web",
			maxDesc:      "Maximum number of results to return (1-10, default 5)",
			defaultMax:   5,
			maxCap:       10,
			objectShaped: true,
			credential:   func(c *config.Config) string { return c.Tools.TavilyAPIKey },
			run:          r.searchTavily,
		},
		{
			name:        "search_youtube",
			key:         "youtube",
			description: "Search YouTube for educational videos, tutorials, and presentations. Use when visual explanations or conference talks would be helpful.",
			queryDesc:   "YouTube search query. Include terms like 'tutorial', 'explained' for better results.",
			maxDesc:     "Maximum number of videos to return (1-10, default 5)",
			defaultMax:  5,
			maxCap:      10,
			credential:  func(c *config.Config) string { return c.Tools.YouTubeAPIKey },
			run:         r.searchYouTube,
		},
		{
			name:        "search_semantic_scholar",
			key:         "semantic_scholar",
			description: "Search Semantic Scholar for academic papers with citation counts. Use for finding highly-cited or recent research papers.",
			queryDesc:   "Search query for academic papers",
			maxDesc:     "Maximum number of papers to return (1-10, default 5)",
			defaultMax:  5,
			maxCap:      10,
			run:         r.searchSemanticScholar,
		},
		{
			name:        "search_huggingface",
			key:         "huggingface",
			description: "Search HuggingFace Hub for ML models. Use when looking for pre-trained models, fine-tuned models, or model architectures.",
			queryDesc:   "Search query for models (e.g., 'text classification', 'llama')",
			maxDesc:     "Maximum number of models to return (1-10, default 5)",
			defaultMax:  5,
			maxCap:      10,
			run:         r.searchHuggingFace,
		},
		{
			name:        "search_github",
			key:         "github",
			description: "Search GitHub for ML/AI repositories. Use for finding open-source implementations, libraries, and tools.",
			queryDesc:   "Search query for repositories",
			maxDesc:     "Maximum number of repositories to return (1-10, default 5)",
			defaultMax:  5,
			maxCap:      10,
			run:         r.searchGitHub,
		},
		{
			name:        "search_papers_with_code",
			key:         "papers_with_code",
			description: "Search Papers With Code for papers that have code implementations. Use when looking for reproducible research with code.",
			queryDesc:   "Search query for papers with code",
			maxDesc:     "Maximum number of papers to return (1-10, default 5)",
			defaultMax:  5,
			maxCap:      10,
			run:         r.searchPapersWithCode,
		},
		{
			name:        "search_anthropic",
			key:         "anthropic",
			description: "Search Anthropic's research page for articles about Claude, constitutional AI, and AI safety. Use for Anthropic-specific research.",
			queryDesc:   "Search query for Anthropic research",
			maxDesc:     "Maximum number of articles to return (1-5, default 5)",
			defaultMax:  5,
			maxCap:      5,
			run:         r.searchAnthropic,
		},
	}
	r.byName = make(map[string]*toolEntry, len(r.tools))
	r.byKey = make(map[string]*toolEntry, len(r.tools))
	for i := range r.tools {
		r.byName[r.tools[i].name] = &r.tools[i]
		r.byKey[r.tools[i].key] = &r.tools[i]
	}
	return r
}

func (r *Registry) capability(t *toolEntry, cfg *config.Config) Capability {
	if !cfg.ToolEnabled(t.name) {
		return CapabilityMissingDependency
	}
	if t.credential != nil && t.credential(cfg) == "" {
		return CapabilityMissingCredential
	}
	return CapabilityAvailable
}

// Tools reports every registered tool with its current capability, in
// registration order.
func (r *Registry) Tools() []ToolInfo {
	cfg := r.cfg.Current()
	infos := make([]ToolInfo, 0, len(r.tools))
	for i := range r.tools {
		t := &r.tools[i]
		infos = append(infos, ToolInfo{
			Name:        t.name,
			Key:         t.key,
			Description: t.description,
			RequiresKey: t.credential != nil,
			Capability:  r.capability(t, cfg),
		})
	}
	return infos
}

// ToolByKey resolves a response key to its tool, for single-source queries.
func (r *Registry) ToolByKey(key string) (ToolInfo, bool) {
	t, ok := r.byKey[key]
	if !ok {
		return ToolInfo{}, false
	}
	return ToolInfo{
		Name:        t.name,
		Key:         t.key,
		Description: t.description,
		RequiresKey: t.credential != nil,
		Capability:  r.capability(t, r.cfg.Current()),
	}, true
}

// Schemas advertises the function-calling schema of every currently available
// tool. Availability is computed fresh on each call.
func (r *Registry) Schemas() []llm.ToolSchema {
	cfg := r.cfg.Current()
	schemas := make([]llm.ToolSchema, 0, len(r.tools))
	for i := range r.tools {
		t := &r.tools[i]
		if r.capability(t, cfg) != CapabilityAvailable {
			continue
		}
		schemas = append(schemas, llm.ToolSchema{
			Type: "function",
			Function: llm.FunctionSchema{
				Name:        t.name,
				Description: t.description,
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": t.queryDesc,
						},
						"max_results": map[string]any{
							"type":        "integer",
							"description": t.maxDesc,
						},
					},
					"required": []string{"query"},
				},
			},
		})
	}
	return schemas
}

// Execute runs one tool by name and returns its response key alongside the
// result. An unknown name yields an empty key and an error object; provider
// and credential failures come back as error records under the tool's own
// shape, never as panics or Go errors.
func (r *Registry) Execute(ctx context.Context, name, query string, maxResults int) (string, ToolResult) {
	t, ok := r.byName[name]
	if !ok {
		return "", errorObject("Unknown tool: %s", name)
	}

	cfg := r.cfg.Current()
	if !cfg.ToolEnabled(t.name) {
		return t.key, t.errorResult("tool not available: %s", t.name)
	}

	if maxResults <= 0 {
		maxResults = t.defaultMax
	}
	if maxResults > t.maxCap {
		maxResults = t.maxCap
	}

	start := time.Now()
	result := t.run(ctx, cfg, query, maxResults)
	r.logger.Debug("tool executed",
		zap.String("tool", t.name),
		zap.String("query", query),
		zap.Duration("elapsed", time.Since(start)))
	return t.key, result
}
