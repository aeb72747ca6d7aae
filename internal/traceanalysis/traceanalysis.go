// Package traceanalysis implements TraceAnalyzer: it ingests the
// per-turn trace a SearchHarness emits and computes the behavioral
// statistics spec.md §4.10 names, translated directly from
// original_source/benchmark/analysis/trace_analyzer.py.
package traceanalysis

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/humanbeeng/codelocbench/internal/trace"
)

// FailedToolCall is one tool result whose text looked like an error.
type FailedToolCall struct {
	Turn         int
	Name         string
	ErrorPreview string
}

// Analysis is one case's behavioral profile, the Go counterpart of
// the Python TraceAnalysis dataclass.
type Analysis struct {
	CaseID                string
	TotalTurns            int
	ReportBackTurn        *int
	ReportBackOnLastTurn  bool
	ToolCallsPerTurn      []int
	ToolFrequencyTrend    string
	ViewDirectoryFirst    bool
	ZeroToolCallTurns     []int
	FailedToolCalls       []FailedToolCall
	TotalLLMLatencyMs     float64
	TotalPromptTokens     int
	TotalCompletionTokens int
	ToolTypeCounts        map[string]int
}

// HasFailedToolCalls reports whether any turn's tool result looked
// like an error.
func (a Analysis) HasFailedToolCalls() bool {
	return len(a.FailedToolCalls) > 0
}

// viewDirectoryToolName is the lexical channel's directory-listing
// tool; its presence (or absence) in the first turn answers Q3.
const viewDirectoryToolName = "list_directory"

// AnalyzeSingle computes one case's Analysis from its ordered
// TurnRecords (records must already be in turn order, as trace.Load
// returns them).
func AnalyzeSingle(caseID string, records []trace.Record) Analysis {
	if len(records) == 0 {
		return Analysis{CaseID: caseID, ToolFrequencyTrend: "flat"}
	}

	totalTurns := len(records)

	var totalLatency float64
	var totalPrompt, totalCompletion int
	toolTypeCounts := make(map[string]int)
	for _, r := range records {
		totalLatency += r.LLMLatencyMs
		if r.LLMResponse != nil && r.LLMResponse.Usage != nil {
			totalPrompt += r.LLMResponse.Usage.PromptTokens
			totalCompletion += r.LLMResponse.Usage.CompletionTokens
		}
		for _, tr := range r.ToolResults {
			name := tr.Name
			if name == "" {
				name = "unknown"
			}
			toolTypeCounts[name]++
		}
	}

	var reportBackTurn *int
	for _, r := range records {
		if r.ReportBack != nil {
			turn := r.Turn
			reportBackTurn = &turn
			break
		}
	}
	reportBackOnLastTurn := reportBackTurn != nil && *reportBackTurn == totalTurns

	toolCallsPerTurn := make([]int, len(records))
	for i, r := range records {
		toolCallsPerTurn[i] = len(r.ToolResults)
	}

	trendCounts := toolCallsPerTurn
	if reportBackOnLastTurn && len(toolCallsPerTurn) > 1 {
		trendCounts = toolCallsPerTurn[:len(toolCallsPerTurn)-1]
	}
	trend := classifyTrend(trendCounts)

	viewDirectoryFirst := false
	for _, tr := range records[0].ToolResults {
		if tr.Name == viewDirectoryToolName {
			viewDirectoryFirst = true
			break
		}
	}

	var zeroTurns []int
	for i, c := range toolCallsPerTurn {
		if c == 0 {
			zeroTurns = append(zeroTurns, i+1)
		}
	}

	var failed []FailedToolCall
	for _, r := range records {
		for _, tr := range r.ToolResults {
			if strings.HasPrefix(tr.Result, "Error:") {
				preview := tr.Result
				if len(preview) > 200 {
					preview = preview[:200]
				}
				failed = append(failed, FailedToolCall{Turn: r.Turn, Name: tr.Name, ErrorPreview: preview})
			}
		}
	}

	return Analysis{
		CaseID:                caseID,
		TotalTurns:            totalTurns,
		ReportBackTurn:        reportBackTurn,
		ReportBackOnLastTurn:  reportBackOnLastTurn,
		ToolCallsPerTurn:      toolCallsPerTurn,
		ToolFrequencyTrend:    trend,
		ViewDirectoryFirst:    viewDirectoryFirst,
		ZeroToolCallTurns:     zeroTurns,
		FailedToolCalls:       failed,
		TotalLLMLatencyMs:     totalLatency,
		TotalPromptTokens:     totalPrompt,
		TotalCompletionTokens: totalCompletion,
		ToolTypeCounts:        toolTypeCounts,
	}
}

// classifyTrend labels the direction of tool_calls_per_turn's
// consecutive differences: flat if every diff is zero, decreasing if
// >=70% of diffs are negative, increasing if >=70% are positive,
// otherwise irregular.
func classifyTrend(counts []int) string {
	if len(counts) <= 1 {
		return "flat"
	}

	diffs := make([]int, len(counts)-1)
	allZero := true
	neg, pos := 0, 0
	for i := 0; i < len(counts)-1; i++ {
		d := counts[i+1] - counts[i]
		diffs[i] = d
		if d != 0 {
			allZero = false
		}
		if d < 0 {
			neg++
		} else if d > 0 {
			pos++
		}
	}
	if allZero {
		return "flat"
	}
	total := float64(len(diffs))
	if float64(neg)/total >= 0.7 {
		return "decreasing"
	}
	if float64(pos)/total >= 0.7 {
		return "increasing"
	}
	return "irregular"
}

// AnalyzeDir analyzes every *.jsonl trace file in dir, sorted by
// filename, one Analysis per file (each file is taken as one case).
func AnalyzeDir(dir string) ([]Analysis, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("traceanalysis: glob %s: %w", dir, err)
	}
	sort.Strings(paths)

	out := make([]Analysis, 0, len(paths))
	for _, p := range paths {
		records, err := trace.Load(p)
		if err != nil {
			return nil, fmt.Errorf("traceanalysis: load %s: %w", p, err)
		}
		caseID := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		out = append(out, AnalyzeSingle(caseID, records))
	}
	return out, nil
}
