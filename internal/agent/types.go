// Package agent implements the LLM-driven research loop: a registry of nine
// search tool providers, a bounded worker pool that executes requested tool
// calls concurrently, and an orchestrator that feeds tool results back to the
// LLM until it stops requesting tools or the iteration cap forces a final
// synthesis. Without an LLM credential the orchestrator degrades to a direct
// parallel fan-out across every available tool.
package agent

import "fmt"

// Record is one normalized result row returned by a tool provider. Field
// names vary per provider (papers carry authors and abstracts, repositories
// carry stars and topics).
type Record map[string]any

// ToolResult is either a sequence of records or a single object, never both.
// Most providers are list-shaped; web search returns one object holding an
// answer plus its supporting results. Provider failures are encoded in the
// same shapes as {"error": message} values.
type ToolResult struct {
	Records []Record
	Object  Record
}

// Value returns the form that is serialized into tool turns and merged into
// AggregatedSources: the object if present, otherwise the record list, never
// nil for a list-shaped result.
func (r ToolResult) Value() any {
	if r.Object != nil {
		return r.Object
	}
	if r.Records != nil {
		return r.Records
	}
	return []Record{}
}

func listResult(records []Record) ToolResult { return ToolResult{Records: records} }

func objectResult(obj Record) ToolResult { return ToolResult{Object: obj} }

func errorRecords(format string, args ...any) ToolResult {
	return ToolResult{Records: []Record{{"error": fmt.Sprintf(format, args...)}}}
}

func errorObject(format string, args ...any) ToolResult {
	return ToolResult{Object: Record{"error": fmt.Sprintf(format, args...)}}
}

// AggregatedSources maps every response key to the latest result reported
// under it. The key set is fixed for the life of the process: callers always
// see all nine keys no matter which tools actually ran. List-shaped keys
// start as empty lists; the web search key starts as nil because it holds a
// single object once populated.
type AggregatedSources map[string]any

func NewAggregatedSources() AggregatedSources {
	return AggregatedSources{
		"arxiv":            []Record{},
		"wikipedia":        []Record{},
		"tavily":           nil,
		"youtube":          []Record{},
		"semantic_scholar": []Record{},
		"huggingface":      []Record{},
		"github":           []Record{},
		"papers_with_code": []Record{},
		"anthropic":        []Record{},
	}
}

// Merge stores a tool result under its response key. A repeat call to the
// same tool overwrites the prior value; results are never accumulated.
func (s AggregatedSources) Merge(key string, result ToolResult) {
	s[key] = result.Value()
}

// Outcome is the result of one research run. Success is always true: provider
// failures surface as error records inside Sources, never as a failed run.
type Outcome struct {
	Query    string            `json:"query"`
	Response string            `json:"response"`
	Sources  AggregatedSources `json:"sources"`
	Success  bool              `json:"success"`
}

// SourceOutcome is the result of querying a single tool directly.
type SourceOutcome struct {
	Query   string `json:"query"`
	Source  string `json:"source"`
	Results any    `json:"results"`
	Success bool   `json:"success"`
}

// Capability reports why a tool is or is not usable right now.
type Capability int

const (
	CapabilityAvailable Capability = iota
	CapabilityMissingCredential
	CapabilityMissingDependency
)

func (c Capability) String() string {
	switch c {
	case CapabilityAvailable:
		return "available"
	case CapabilityMissingCredential:
		return "missing_credential"
	case CapabilityMissingDependency:
		return "missing_dependency"
	default:
		return "unknown"
	}
}
