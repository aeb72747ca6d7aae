package traceanalysis

import (
	"fmt"
	"sort"
	"strings"
)

// NameCount pairs a name with an occurrence count, used for the
// most-common tool/failure listings.
type NameCount struct {
	Name  string
	Count int
}

// Summary is the cross-case aggregate TraceAnalyzer computes, keyed
// by the same Q1-Q7 behavioral questions the Python report covers.
type Summary struct {
	TotalCases int

	ReportBackOnLastTurn    int
	ReportBackOnLastTurnPct float64
	NoReportBack            int

	TrendCounts         map[string]int
	AvgToolCallsPerTurn []float64

	ViewDirectoryFirstTurn    int
	ViewDirectoryFirstTurnPct float64

	HasZeroToolCallTurns    int
	HasZeroToolCallTurnsPct float64
	ZeroTurnPositions       []int

	HasFailedToolCalls    int
	HasFailedToolCallsPct float64
	TopFailedTools        []NameCount

	AvgLLMLatencyMs     float64
	AvgPromptTokens     float64
	AvgCompletionTokens float64

	TopToolTypes []NameCount
}

// AggregateSummary computes Summary across every case's Analysis.
func AggregateSummary(analyses []Analysis) Summary {
	n := len(analyses)
	if n == 0 {
		return Summary{}
	}

	rbLast, rbNone := 0, 0
	trendCounts := make(map[string]int)
	maxTurns := 0
	for _, a := range analyses {
		if a.ReportBackOnLastTurn {
			rbLast++
		}
		if a.ReportBackTurn == nil {
			rbNone++
		}
		trendCounts[a.ToolFrequencyTrend]++
		if a.TotalTurns > maxTurns {
			maxTurns = a.TotalTurns
		}
	}

	avgPerPosition := make([]float64, maxTurns)
	for pos := 0; pos < maxTurns; pos++ {
		sum, count := 0, 0
		for _, a := range analyses {
			if pos < len(a.ToolCallsPerTurn) {
				sum += a.ToolCallsPerTurn[pos]
				count++
			}
		}
		if count > 0 {
			avgPerPosition[pos] = float64(sum) / float64(count)
		}
	}

	vdFirst := 0
	hasZero := 0
	var allZeroTurns []int
	hasFailed := 0
	failedCounts := make(map[string]int)
	globalToolCounts := make(map[string]int)
	var totalLatency float64
	var totalPrompt, totalCompletion int

	for _, a := range analyses {
		if a.ViewDirectoryFirst {
			vdFirst++
		}
		if len(a.ZeroToolCallTurns) > 0 {
			hasZero++
			allZeroTurns = append(allZeroTurns, a.ZeroToolCallTurns...)
		}
		if a.HasFailedToolCalls() {
			hasFailed++
		}
		for _, fc := range a.FailedToolCalls {
			failedCounts[fc.Name]++
		}
		for name, c := range a.ToolTypeCounts {
			globalToolCounts[name] += c
		}
		totalLatency += a.TotalLLMLatencyMs
		totalPrompt += a.TotalPromptTokens
		totalCompletion += a.TotalCompletionTokens
	}

	sort.Ints(allZeroTurns)
	allZeroTurns = dedupeInts(allZeroTurns)

	return Summary{
		TotalCases:                n,
		ReportBackOnLastTurn:      rbLast,
		ReportBackOnLastTurnPct:   float64(rbLast) / float64(n),
		NoReportBack:              rbNone,
		TrendCounts:               trendCounts,
		AvgToolCallsPerTurn:       avgPerPosition,
		ViewDirectoryFirstTurn:    vdFirst,
		ViewDirectoryFirstTurnPct: float64(vdFirst) / float64(n),
		HasZeroToolCallTurns:      hasZero,
		HasZeroToolCallTurnsPct:   float64(hasZero) / float64(n),
		ZeroTurnPositions:         allZeroTurns,
		HasFailedToolCalls:        hasFailed,
		HasFailedToolCallsPct:     float64(hasFailed) / float64(n),
		TopFailedTools:            topN(failedCounts, 10),
		AvgLLMLatencyMs:           totalLatency / float64(n),
		AvgPromptTokens:           float64(totalPrompt) / float64(n),
		AvgCompletionTokens:       float64(totalCompletion) / float64(n),
		TopToolTypes:              topN(globalToolCounts, 15),
	}
}

func dedupeInts(sorted []int) []int {
	out := sorted[:0]
	var prev int
	first := true
	for _, v := range sorted {
		if first || v != prev {
			out = append(out, v)
			prev = v
			first = false
		}
	}
	return out
}

func topN(counts map[string]int, n int) []NameCount {
	out := make([]NameCount, 0, len(counts))
	for name, c := range counts {
		out = append(out, NameCount{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// FormatReport renders a human-readable summary, mirroring the
// section layout of the Python report (Q1 through Q7).
func FormatReport(analyses []Analysis) string {
	summary := AggregateSummary(analyses)
	n := summary.TotalCases
	if n == 0 {
		return "No trace data found."
	}

	var b strings.Builder
	bar := strings.Repeat("=", 58)
	fmt.Fprintf(&b, "%s\nTRACE ANALYSIS REPORT (%d cases)\n%s\n", bar, n, bar)

	fmt.Fprintf(&b, "\nQ1: report_back position\n")
	fmt.Fprintf(&b, "  report_back on final turn: %d/%d (%.1f%%)\n", summary.ReportBackOnLastTurn, n, summary.ReportBackOnLastTurnPct*100)
	notLast := n - summary.ReportBackOnLastTurn - summary.NoReportBack
	fmt.Fprintf(&b, "  not on final turn:         %d/%d (%.1f%%)\n", notLast, n, float64(notLast)/float64(n)*100)
	if summary.NoReportBack > 0 {
		fmt.Fprintf(&b, "  no report_back:            %d/%d (%.1f%%)\n", summary.NoReportBack, n, float64(summary.NoReportBack)/float64(n)*100)
	}

	fmt.Fprintf(&b, "\nQ2: Tool-call frequency trend\n")
	for _, trend := range []string{"decreasing", "flat", "increasing", "irregular"} {
		if c, ok := summary.TrendCounts[trend]; ok {
			fmt.Fprintf(&b, "  %-20s: %d/%d (%.1f%%)\n", trend, c, n, float64(c)/float64(n)*100)
		}
	}
	if len(summary.AvgToolCallsPerTurn) > 0 {
		preview := summary.AvgToolCallsPerTurn
		if len(preview) > 10 {
			preview = preview[:10]
		}
		fmt.Fprintf(&b, "  Avg tool calls per turn: %v\n", preview)
	}

	fmt.Fprintf(&b, "\nQ3: view_directory on first turn\n")
	fmt.Fprintf(&b, "  first turn includes view_directory: %d/%d (%.1f%%)\n", summary.ViewDirectoryFirstTurn, n, summary.ViewDirectoryFirstTurnPct*100)

	fmt.Fprintf(&b, "\nQ4: Turns with zero tool calls\n")
	fmt.Fprintf(&b, "  cases with a 0-tool-call turn: %d/%d (%.1f%%)\n", summary.HasZeroToolCallTurns, n, summary.HasZeroToolCallTurnsPct*100)
	if len(summary.ZeroTurnPositions) > 0 {
		fmt.Fprintf(&b, "  affected turns: %v\n", summary.ZeroTurnPositions)
	}

	fmt.Fprintf(&b, "\nQ5: Failed tool calls\n")
	fmt.Fprintf(&b, "  cases with failed tools: %d/%d (%.1f%%)\n", summary.HasFailedToolCalls, n, summary.HasFailedToolCallsPct*100)
	if len(summary.TopFailedTools) > 0 {
		parts := make([]string, len(summary.TopFailedTools))
		for i, nc := range summary.TopFailedTools {
			parts[i] = fmt.Sprintf("%s (%d)", nc.Name, nc.Count)
		}
		fmt.Fprintf(&b, "  most common failed tools: %s\n", strings.Join(parts, ", "))
	}

	fmt.Fprintf(&b, "\nQ6: LLM Latency & Token Usage\n")
	fmt.Fprintf(&b, "  Avg LLM latency: %.0fms\n", summary.AvgLLMLatencyMs)
	fmt.Fprintf(&b, "  Avg prompt tokens: %.0f\n", summary.AvgPromptTokens)
	fmt.Fprintf(&b, "  Avg completion tokens: %.0f\n", summary.AvgCompletionTokens)

	fmt.Fprintf(&b, "\nQ7: Tool Type Distribution\n")
	for _, nc := range summary.TopToolTypes {
		fmt.Fprintf(&b, "  %-30s: %d\n", nc.Name, nc.Count)
	}

	return b.String()
}
