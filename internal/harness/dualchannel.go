package harness

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/humanbeeng/codelocbench/internal/astindex"
	"github.com/humanbeeng/codelocbench/internal/llmclient"
	"github.com/humanbeeng/codelocbench/internal/ranges"
	"github.com/humanbeeng/codelocbench/internal/trace"
)

// ChannelEvidence is one sub-harness's contribution to a dual-channel
// run: its own report_back payload plus how many turns it spent.
type ChannelEvidence struct {
	Name      string
	Files     ReturnedFiles
	TurnsUsed int
	Partial   bool
	Error     string
}

// DualChannel runs a "lexical" sub-harness (view/list/grep only) and a
// "semantic" sub-harness (symbol/type lookups only, backed by an
// astindex.Index built from the checked-out repo) independently, then
// invokes a merger agent for one additional turn to union and
// deduplicate their findings. Per the dual-channel contract, the
// merger must never introduce a file unseen in either channel; if the
// merger call errors, Run falls back to a plain union of the two
// channels merged through RangeAlgebra.
type DualChannel struct {
	Client llmclient.Client
	// Index, when set, is used for the semantic sub-harness instead of
	// building one from repoRoot on each Run.
	Index     *astindex.Index
	TraceSink *trace.Sink
}

func (d *DualChannel) Run(ctx context.Context, query, repoRoot string, bounds Bounds) (Result, error) {
	lexical := &SingleChannel{Client: d.Client, TraceSink: d.TraceSink, ChannelName: "lexical"}
	semantic := &SingleChannel{Client: d.Client, Index: d.Index, AutoIndex: true, SymbolOnly: true, TraceSink: d.TraceSink, ChannelName: "semantic"}

	lexResult, err := lexical.Run(ctx, query, repoRoot, bounds)
	if err != nil {
		return Result{}, fmt.Errorf("harness: lexical channel: %w", err)
	}
	semResult, err := semantic.Run(ctx, query, repoRoot, bounds)
	if err != nil {
		return Result{}, fmt.Errorf("harness: semantic channel: %w", err)
	}

	lex := ChannelEvidence{Name: "lexical", Files: lexResult.Files, TurnsUsed: lexResult.TurnsUsed, Partial: lexResult.Partial, Error: lexResult.Error}
	sem := ChannelEvidence{Name: "semantic", Files: semResult.Files, TurnsUsed: semResult.TurnsUsed, Partial: semResult.Partial, Error: semResult.Error}

	merged, err := d.merge(ctx, query, lex, sem)
	turnsUsed := lexResult.TurnsUsed + semResult.TurnsUsed + 1
	if err != nil {
		merged = fallbackUnion(lex, sem)
		turnsUsed = lexResult.TurnsUsed + semResult.TurnsUsed
	}

	return Result{
		Files:     merged,
		Partial:   lexResult.Partial && semResult.Partial,
		TurnsUsed: turnsUsed,
	}, nil
}

const mergerToolName = "merge_evidence"

func mergerToolDef() llmclient.ToolDef {
	return llmclient.ToolDef{
		Name:        mergerToolName,
		Description: "Submit the deduplicated union of relevant files and ranges from both channels.",
		Strict:      true,
		Parameters: map[string]any{
			"properties": map[string]any{
				"files": map[string]any{
					"type": "object",
					"additionalProperties": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}, "minItems": 2, "maxItems": 2},
					},
				},
			},
			"required": []string{"files"},
		},
	}
}

// merge invokes a single agent turn over both channels' evidence,
// constrained to a tool whose only valid response is a union of the
// files each channel already reported.
func (d *DualChannel) merge(ctx context.Context, query string, lex, sem ChannelEvidence) (ReturnedFiles, error) {
	reg := NewRegistry()
	if err := reg.Add(mergerToolDef(), nil); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Query: %s\n\nLexical channel evidence:\n%s\n\nSemantic channel evidence:\n%s\n\nUnion and deduplicate these into one file→ranges map using merge_evidence. Do not invent files that appear in neither channel.",
		query, renderEvidence(lex), renderEvidence(sem),
	)
	conversation := []llmclient.Message{
		{Kind: llmclient.KindMessage, Role: "system", Content: "You reconcile two independent code-search channels into one answer."},
		{Kind: llmclient.KindMessage, Role: "user", Content: prompt},
	}

	resp, err := d.Client.Respond(ctx, conversation, reg.Defs())
	if err != nil {
		return nil, err
	}
	for _, call := range resp.ToolCalls {
		if call.Name != mergerToolName {
			continue
		}
		var args struct {
			Files map[string][][2]int `json:"files"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, err
		}
		allowed := allowedPaths(lex, sem)
		filtered := make(map[string][][2]int, len(args.Files))
		for path, spans := range args.Files {
			if allowed[path] {
				filtered[path] = spans
			}
		}
		return normalizeReportBack(filtered), nil
	}
	return nil, fmt.Errorf("harness: merger turn produced no merge_evidence call")
}

func allowedPaths(lex, sem ChannelEvidence) map[string]bool {
	allowed := make(map[string]bool, len(lex.Files)+len(sem.Files))
	for path := range lex.Files {
		allowed[path] = true
	}
	for path := range sem.Files {
		allowed[path] = true
	}
	return allowed
}

// fallbackUnion unions both channels' files directly, merging each
// path's ranges via RangeAlgebra, used when the merger turn itself
// fails rather than losing both channels' work.
func fallbackUnion(lex, sem ChannelEvidence) ReturnedFiles {
	out := make(ReturnedFiles)
	for path, rs := range lex.Files {
		out[path] = append(out[path], rs...)
	}
	for path, rs := range sem.Files {
		out[path] = append(out[path], rs...)
	}
	for path, rs := range out {
		out[path] = ranges.Merge(rs)
	}
	return out
}

func renderEvidence(c ChannelEvidence) string {
	if len(c.Files) == 0 {
		return "(no files reported)"
	}
	out := ""
	for path, rs := range c.Files {
		out += fmt.Sprintf("%s: %v\n", path, rs)
	}
	return out
}
