// Package harness implements the SearchHarness contract: a bounded,
// multi-turn LLM ↔ tool loop that, given a query and a checked-out
// repository, returns a set of files and line ranges it believes a
// reference patch would touch. The control flow is adapted from
// codegraph/assistant/runner.go's runConversation loop, generalized
// from that file's fixed Neo4j tool set to the pluggable tool
// registries in tools.go.
package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/humanbeeng/codelocbench/internal/astindex"
	"github.com/humanbeeng/codelocbench/internal/llmclient"
	"github.com/humanbeeng/codelocbench/internal/otelx"
	"github.com/humanbeeng/codelocbench/internal/ranges"
	"github.com/humanbeeng/codelocbench/internal/trace"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var harnessTracer = otelx.Tracer("codelocbench/harness")

// Bounds constrains one harness invocation.
type Bounds struct {
	// MaxTurns is a hard cap on agent iterations. On reaching it, the
	// harness must either have received a report_back in that final
	// turn or the result is marked Partial.
	MaxTurns int
}

// ReturnedFiles is the harness's output for one case: the set of
// files and line ranges it believes are relevant, with path
// normalization deferred to the caller per spec.
type ReturnedFiles map[string][]ranges.Range

// Result is the harness's return contract for one invocation.
type Result struct {
	Files     ReturnedFiles
	Partial   bool
	TurnsUsed int
	Error     string
}

const reportBackToolName = "report_back"

const systemPrompt = `You are a code search agent. You are given a natural-language description of an issue or change and a checked-out repository. Use the available tools to locate the file regions a fix would need to touch, then call report_back exactly once with your answer. Do not guess file paths; verify every path you return by viewing or listing it first.`

func reportBackDef() llmclient.ToolDef {
	return llmclient.ToolDef{
		Name:        reportBackToolName,
		Description: "Report the final set of files and line ranges relevant to the query. Call this exactly once, when you are done searching.",
		Strict:      true,
		Parameters: map[string]any{
			"properties": map[string]any{
				"files": map[string]any{
					"type":        "object",
					"description": "Map of file path to a list of [start_line, end_line] 1-indexed inclusive ranges.",
					"additionalProperties": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}, "minItems": 2, "maxItems": 2},
					},
				},
				"explanation": map[string]any{"type": "string", "description": "Brief rationale for the returned files."},
			},
			"required": []string{"files", "explanation"},
		},
	}
}

type reportBackArgs struct {
	Files       map[string][][2]int `json:"files"`
	Explanation string              `json:"explanation"`
}

// SingleChannel is the single-channel SearchHarness variant: one
// agent, one tool set, and a report_back tool as the terminal signal.
// By default the tool set is lexical (view/list/grep), optionally
// augmented with semantic symbol lookups when an astindex.Index is
// supplied; setting SymbolOnly drops the lexical tools entirely, so
// DualChannel can assemble a genuinely disjoint symbol-only channel
// per spec §4.7.
type SingleChannel struct {
	Client      llmclient.Client
	Index       *astindex.Index // optional pre-built index; overrides AutoIndex when set
	AutoIndex   bool            // when true and Index is nil, build one from repoRoot on each Run
	SymbolOnly  bool            // when true, suppress view_file/list_directory/grep
	TraceSink   *trace.Sink     // optional; nil disables trace emission
	ChannelName string          // used only in trace/log context, e.g. "lexical"
}

// Run executes the bounded agent loop against repoRoot for query,
// returning once the model calls report_back or the turn budget is
// exhausted.
func (h *SingleChannel) Run(ctx context.Context, query, repoRoot string, bounds Bounds) (Result, error) {
	if bounds.MaxTurns < 1 {
		return Result{}, fmt.Errorf("harness: max_turns must be >= 1, got %d", bounds.MaxTurns)
	}

	reg := NewRegistry()
	if !h.SymbolOnly {
		if err := newFSTools(reg, repoRoot); err != nil {
			return Result{}, err
		}
	}
	idx := h.Index
	if idx == nil && h.AutoIndex {
		// Best-effort: a repo this harness can't parse (or isn't Go)
		// just runs without find_symbol rather than failing the case.
		if built, err := astindex.Build(repoRoot); err == nil {
			idx = built
		}
	}
	if idx != nil {
		if err := newSymbolTools(reg, idx, repoRoot); err != nil {
			return Result{}, err
		}
	}
	if err := reg.Add(reportBackDef(), nil); err != nil {
		return Result{}, err
	}

	conversation := []llmclient.Message{
		{Kind: llmclient.KindMessage, Role: "system", Content: systemPrompt},
		{Kind: llmclient.KindMessage, Role: "user", Content: query},
	}

	for turn := 1; turn <= bounds.MaxTurns; turn++ {
		result, done := h.runTurn(ctx, turn, reg, &conversation)
		if done {
			return result, nil
		}
	}

	return Result{Partial: true, TurnsUsed: bounds.MaxTurns}, nil
}

// runTurn executes one agent turn: a model call, any requested tool
// calls, and trace emission. done is true once a report_back or
// terminal error ends the run; conversation is updated in place.
func (h *SingleChannel) runTurn(ctx context.Context, turn int, reg *Registry, conversation *[]llmclient.Message) (Result, bool) {
	turnCtx, span := harnessTracer.Start(ctx, "harness.turn", oteltrace.WithAttributes(
		attribute.Int("turn", turn),
		attribute.String("channel", h.ChannelName),
	))
	defer span.End()

	*conversation = sanitizeHistory(repairOrphanToolCalls(*conversation))

	start := time.Now()
	resp, err := h.Client.Respond(turnCtx, *conversation, reg.Defs())
	latency := time.Since(start)
	if err != nil {
		h.emitTrace(turn, nil, nil, latency, nil)
		return Result{Partial: true, TurnsUsed: turn - 1, Error: err.Error()}, true
	}

	var reportBack *reportBackArgs
	var toolResults []trace.ToolResult
	var callOutputs []llmclient.Message

	nonTerminal := make([]llmclient.ToolCall, 0, len(resp.ToolCalls))
	for _, call := range resp.ToolCalls {
		if call.Name == reportBackToolName {
			var args reportBackArgs
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				toolResults = append(toolResults, trace.ToolResult{Name: call.Name, Result: "Error: malformed report_back arguments: " + err.Error()})
				continue
			}
			reportBack = &args
			continue
		}
		nonTerminal = append(nonTerminal, call)
	}

	if len(nonTerminal) > 0 {
		results := h.executeToolCalls(turnCtx, reg, nonTerminal)
		for _, r := range results {
			toolResults = append(toolResults, trace.ToolResult{Name: r.call.Name, Result: r.output})
			callOutputs = append(callOutputs,
				llmclient.Message{Kind: llmclient.KindFunctionCall, FunctionName: r.call.Name, Arguments: r.call.Arguments, CallID: r.call.CallID},
				llmclient.Message{Kind: llmclient.KindFunctionOutput, CallID: r.call.CallID, Content: r.output},
			)
		}
	}

	var reportBackPayload any
	if reportBack != nil {
		reportBackPayload = reportBack
	}
	h.emitTrace(turn, toolResults, reportBackPayload, latency, resp)

	if reportBack != nil {
		return Result{Files: normalizeReportBack(reportBack.Files), TurnsUsed: turn}, true
	}

	if len(nonTerminal) == 0 {
		// The model neither called a tool nor reported back: nudge it
		// rather than spin silently for the remaining budget.
		*conversation = append(*conversation, llmclient.Message{
			Kind: llmclient.KindMessage, Role: "assistant", Content: resp.Text,
		}, llmclient.Message{
			Kind: llmclient.KindMessage, Role: "user",
			Content: "Use a tool to continue searching, or call report_back if you are done.",
		})
		return Result{}, false
	}

	*conversation = append(*conversation, callOutputs...)
	return Result{}, false
}

type toolCallResult struct {
	call   llmclient.ToolCall
	output string
}

// executeToolCalls runs every call concurrently, mirroring the
// teacher's one-goroutine-per-call + WaitGroup pattern in
// runConversation (each goroutine writes only its own slot of the
// results slice, so no mutex is needed), and converts handler errors into the "Error: ..."
// string form TraceAnalyzer's failed-tool-call detection expects.
func (h *SingleChannel) executeToolCalls(ctx context.Context, reg *Registry, calls []llmclient.ToolCall) []toolCallResult {
	results := make([]toolCallResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llmclient.ToolCall) {
			defer wg.Done()
			out, err := reg.Handle(ctx, call.Name, json.RawMessage(call.Arguments))
			if err != nil {
				out = "Error: " + err.Error()
			}
			results[i] = toolCallResult{call: call, output: out}
		}(i, call)
	}
	wg.Wait()
	return results
}

func (h *SingleChannel) emitTrace(turn int, toolResults []trace.ToolResult, reportBack any, latency time.Duration, resp *llmclient.Response) {
	if h.TraceSink == nil {
		return
	}
	rec := trace.Record{
		Turn:         turn,
		ToolResults:  toolResults,
		ReportBack:   reportBack,
		LLMLatencyMs: float64(latency.Microseconds()) / 1000.0,
	}
	if resp != nil {
		rec.LLMResponse = &trace.LLMResponse{Usage: &trace.Usage{
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.CompletionTokens,
		}}
	}
	_ = h.TraceSink.Write(rec) // trace emission is best-effort; a write failure must not abort the search
}

func normalizeReportBack(files map[string][][2]int) ReturnedFiles {
	out := make(ReturnedFiles, len(files))
	for path, spans := range files {
		rs := make([]ranges.Range, 0, len(spans))
		for _, s := range spans {
			if s[1] < s[0] {
				continue
			}
			rs = append(rs, ranges.Range{Start: s[0], End: s[1]})
		}
		if len(rs) == 0 {
			continue
		}
		sort.Slice(rs, func(i, j int) bool { return rs[i].Start < rs[j].Start })
		out[path] = ranges.Merge(rs)
	}
	return out
}
