package traceanalysis_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/humanbeeng/codelocbench/internal/trace"
	"github.com/humanbeeng/codelocbench/internal/traceanalysis"
)

func recordsWithToolCounts(counts []int, reportBackOnLast bool) []trace.Record {
	records := make([]trace.Record, len(counts))
	for i, c := range counts {
		var results []trace.ToolResult
		for j := 0; j < c; j++ {
			results = append(results, trace.ToolResult{Name: "view_file", Result: "ok"})
		}
		records[i] = trace.Record{Turn: i + 1, ToolResults: results}
	}
	if reportBackOnLast && len(records) > 0 {
		records[len(records)-1].ReportBack = map[string]any{"files": []string{"a.go"}}
	}
	return records
}

var _ = Describe("tool frequency trend classification", func() {
	// S6 — exact scenarios from spec.md.
	It("classifies [5,4,3,2,1] as decreasing", func() {
		a := traceanalysis.AnalyzeSingle("case", recordsWithToolCounts([]int{5, 4, 3, 2, 1}, false))
		Expect(a.ToolFrequencyTrend).To(Equal("decreasing"))
	})

	It("classifies [1,1,1,1] as flat", func() {
		a := traceanalysis.AnalyzeSingle("case", recordsWithToolCounts([]int{1, 1, 1, 1}, false))
		Expect(a.ToolFrequencyTrend).To(Equal("flat"))
	})

	It("classifies [1,5,2,6,3] as irregular", func() {
		a := traceanalysis.AnalyzeSingle("case", recordsWithToolCounts([]int{1, 5, 2, 6, 3}, false))
		Expect(a.ToolFrequencyTrend).To(Equal("irregular"))
	})

	It("excludes the last turn when report_back lands on it, and still classifies the rest as decreasing", func() {
		// [5,4,3,2] with a 5th report-back-only turn -> still decreasing once excluded.
		records := recordsWithToolCounts([]int{5, 4, 3, 2, 0}, true)
		a := traceanalysis.AnalyzeSingle("case", records)
		Expect(a.TotalTurns).To(Equal(5))
		Expect(a.ReportBackOnLastTurn).To(BeTrue())
		Expect(a.ToolFrequencyTrend).To(Equal("decreasing"))
	})
})

var _ = Describe("AnalyzeSingle", func() {
	It("reports report_back_turn as the first turn with a non-null report_back", func() {
		records := []trace.Record{
			{Turn: 1, ToolResults: []trace.ToolResult{{Name: "grep", Result: "ok"}}},
			{Turn: 2, ReportBack: map[string]any{"files": []string{"a.go"}}},
		}
		a := traceanalysis.AnalyzeSingle("case", records)
		Expect(a.ReportBackTurn).NotTo(BeNil())
		Expect(*a.ReportBackTurn).To(Equal(2))
		Expect(a.ReportBackOnLastTurn).To(BeTrue())
	})

	It("detects view_directory in the first turn via list_directory", func() {
		records := []trace.Record{
			{Turn: 1, ToolResults: []trace.ToolResult{{Name: "list_directory", Result: "a.go\nb.go"}}},
		}
		a := traceanalysis.AnalyzeSingle("case", records)
		Expect(a.ViewDirectoryFirst).To(BeTrue())
	})

	It("flags turns with zero tool calls", func() {
		records := []trace.Record{
			{Turn: 1, ToolResults: []trace.ToolResult{{Name: "grep", Result: "ok"}}},
			{Turn: 2},
			{Turn: 3, ToolResults: []trace.ToolResult{{Name: "grep", Result: "ok"}}},
		}
		a := traceanalysis.AnalyzeSingle("case", records)
		Expect(a.ZeroToolCallTurns).To(Equal([]int{2}))
	})

	It("collects tool results whose text begins with Error: as failed calls", func() {
		records := []trace.Record{
			{Turn: 1, ToolResults: []trace.ToolResult{
				{Name: "view_file", Result: "Error: no such file"},
				{Name: "grep", Result: "ok"},
			}},
		}
		a := traceanalysis.AnalyzeSingle("case", records)
		Expect(a.HasFailedToolCalls()).To(BeTrue())
		Expect(a.FailedToolCalls).To(HaveLen(1))
		Expect(a.FailedToolCalls[0].Name).To(Equal("view_file"))
	})

	It("sums token usage and latency across turns", func() {
		records := []trace.Record{
			{Turn: 1, LLMLatencyMs: 100, LLMResponse: &trace.LLMResponse{Usage: &trace.Usage{PromptTokens: 10, CompletionTokens: 5}}},
			{Turn: 2, LLMLatencyMs: 50, LLMResponse: &trace.LLMResponse{Usage: &trace.Usage{PromptTokens: 20, CompletionTokens: 8}}},
		}
		a := traceanalysis.AnalyzeSingle("case", records)
		Expect(a.TotalLLMLatencyMs).To(BeNumerically("==", 150))
		Expect(a.TotalPromptTokens).To(Equal(30))
		Expect(a.TotalCompletionTokens).To(Equal(13))
	})

	It("returns a flat-trend empty analysis for no turns at all", func() {
		a := traceanalysis.AnalyzeSingle("case", nil)
		Expect(a.TotalTurns).To(Equal(0))
		Expect(a.ToolFrequencyTrend).To(Equal("flat"))
		Expect(a.ReportBackTurn).To(BeNil())
	})
})

var _ = Describe("AggregateSummary", func() {
	It("computes Q1-Q7 aggregates across multiple cases", func() {
		analyses := []traceanalysis.Analysis{
			traceanalysis.AnalyzeSingle("c1", recordsWithToolCounts([]int{5, 4, 3, 2, 1}, true)),
			traceanalysis.AnalyzeSingle("c2", recordsWithToolCounts([]int{1, 1, 1}, false)),
		}
		summary := traceanalysis.AggregateSummary(analyses)
		Expect(summary.TotalCases).To(Equal(2))
		Expect(summary.ReportBackOnLastTurn).To(Equal(1))
		Expect(summary.NoReportBack).To(Equal(1))
		Expect(summary.TrendCounts["decreasing"]).To(Equal(1))
		Expect(summary.TrendCounts["flat"]).To(Equal(1))
	})

	It("formats a non-empty human-readable report", func() {
		analyses := []traceanalysis.Analysis{
			traceanalysis.AnalyzeSingle("c1", recordsWithToolCounts([]int{2, 1}, true)),
		}
		report := traceanalysis.FormatReport(analyses)
		Expect(report).To(ContainSubstring("TRACE ANALYSIS REPORT"))
		Expect(report).To(ContainSubstring("Q1:"))
		Expect(report).To(ContainSubstring("Q7:"))
	})

	It("returns a no-data message for an empty analysis set", func() {
		Expect(traceanalysis.FormatReport(nil)).To(Equal("No trace data found."))
	})
})
