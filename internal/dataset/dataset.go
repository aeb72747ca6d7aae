// Package dataset defines the canonical DatasetCase record and its
// JSONL persistence, following the shape of the Python reference
// implementation's benchmark/schemas.py one-for-one.
package dataset

import (
	"github.com/humanbeeng/codelocbench/internal/ranges"
)

// Solvability carries LLM-evaluated solvability metadata for a case.
type Solvability struct {
	Solvable     bool     `json:"solvable"`
	Confidence   float64  `json:"confidence"`
	Evidence     []string `json:"evidence,omitempty"`
	RejectReason *string  `json:"reject_reason,omitempty"`
}

// GroundTruthEntry is one function-anchored ground-truth location, the
// on-disk counterpart of groundtruth.Entry.
type GroundTruthEntry struct {
	Path         string         `json:"path"`
	Function     string         `json:"function"`
	Class        *string        `json:"class,omitempty"`
	Range        [2]int         `json:"range"`
	TargetRanges [][2]int       `json:"target_ranges,omitempty"`
	Signature    *string        `json:"signature,omitempty"`
}

// ToRange converts the on-disk [2]int pair to a ranges.Range.
func (g GroundTruthEntry) ToRange() ranges.Range {
	return ranges.Range{Start: g.Range[0], End: g.Range[1]}
}

// ToTargetRanges converts the on-disk target ranges, falling back to
// the full Range when none were recorded (matching the original's
// ground_truth_files property).
func (g GroundTruthEntry) ToTargetRanges() []ranges.Range {
	if len(g.TargetRanges) == 0 {
		return []ranges.Range{g.ToRange()}
	}
	out := make([]ranges.Range, 0, len(g.TargetRanges))
	for _, r := range g.TargetRanges {
		out = append(out, ranges.Range{Start: r[0], End: r[1]})
	}
	return out
}

// ContextEntry is an optional related, non-modified function offered
// as auxiliary context signal.
type ContextEntry struct {
	Path            string   `json:"path"`
	Function        string   `json:"function"`
	Range           [2]int   `json:"range"`
	Signature       *string  `json:"signature,omitempty"`
	RelevanceScore  *float64 `json:"relevance_score,omitempty"`
}

// Case is the canonical benchmark case record, loaded and saved as one
// JSON object per line of a DatasetCase JSONL file.
type Case struct {
	ID           string             `json:"id"`
	Query        string             `json:"query"`
	Repo         string             `json:"repo"`
	BaseCommit   string             `json:"base_commit"`
	HardGT       []GroundTruthEntry `json:"hard_gt"`
	SoftContext  []ContextEntry     `json:"soft_context,omitempty"`
	Solvability  *Solvability       `json:"solvability,omitempty"`
	IssueURL     *string            `json:"issue_url,omitempty"`
	PRURL        *string            `json:"pr_url,omitempty"`
}

// GroundTruthFiles returns {path -> merge(target_ranges)}, the
// "target ground truth" view: the lines the agent must find.
func (c Case) GroundTruthFiles() map[string][]ranges.Range {
	files := make(map[string][]ranges.Range)
	for _, gt := range c.HardGT {
		files[gt.Path] = append(files[gt.Path], gt.ToTargetRanges()...)
	}
	for path, rs := range files {
		files[path] = ranges.Merge(rs)
	}
	return files
}

// GroundTruthContextFiles returns {path -> merge(full scopes)}, the
// looser "context ground truth" view used to measure whether the agent
// returned enough surrounding context.
func (c Case) GroundTruthContextFiles() map[string][]ranges.Range {
	files := make(map[string][]ranges.Range)
	for _, gt := range c.HardGT {
		files[gt.Path] = append(files[gt.Path], gt.ToRange())
	}
	for path, rs := range files {
		files[path] = ranges.Merge(rs)
	}
	return files
}

// FunctionTarget names one function-level scoring target.
type FunctionTarget struct {
	Path      string
	Name      string
	Container *string
	Ranges    []ranges.Range
}

// GroundTruthFunctions returns the function-level scoring targets
// derived from HardGT, one per entry.
func (c Case) GroundTruthFunctions() []FunctionTarget {
	out := make([]FunctionTarget, 0, len(c.HardGT))
	for _, gt := range c.HardGT {
		out = append(out, FunctionTarget{
			Path:      gt.Path,
			Name:      gt.Function,
			Container: gt.Class,
			Ranges:    []ranges.Range{gt.ToRange()},
		})
	}
	return out
}
