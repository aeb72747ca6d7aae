// Package groundtruth builds function-anchored ground truth records
// from a patch-derived {path -> changed lines} map and an ASTIndex,
// following the clustering and quality-guard algorithm of the original
// benchmark's GroundTruthBuilder.
package groundtruth

import (
	"fmt"
	"sort"

	"github.com/humanbeeng/codelocbench/internal/astindex"
	"github.com/humanbeeng/codelocbench/internal/ranges"
)

const (
	// TargetRangeGap is the default clustering gap used when grouping
	// changed lines within one function into target sub-ranges.
	TargetRangeGap = 3
	// MaxTargetRangesPerFunction caps the number of clustered
	// sub-ranges kept per function before collapsing to a single
	// bounding range.
	MaxTargetRangesPerFunction = 2
	// MaxGTBlocks rejects a case whose changes touch more distinct
	// functions than this.
	MaxGTBlocks = 10
	// SingleLineRatioThreshold rejects a case where more than this
	// fraction of selected functions are single-line spans (parser
	// noise or a mistargeted diff).
	SingleLineRatioThreshold = 0.5
)

// ErrNoValidFunctionGT is returned when no changed line falls inside
// any indexed function across all eligible files.
var ErrNoValidFunctionGT = fmt.Errorf("groundtruth: no valid function ground truth")

// ErrTooManyBlocks is returned when the quality guard on distinct
// function count trips.
var ErrTooManyBlocks = fmt.Errorf("groundtruth: too many distinct functions (quality guard)")

// ErrSingleLineRatioExceeded is returned when too many selected
// functions are single-line spans.
var ErrSingleLineRatioExceeded = fmt.Errorf("groundtruth: single-line function ratio exceeded (quality guard)")

// Entry is one function-anchored ground-truth record: the full
// enclosing scope plus the clustered sub-ranges that were actually
// changed within it.
type Entry struct {
	Path         string
	Function     string
	Class        string // enclosing type name, "" if none
	Signature    string
	Range        ranges.Range
	TargetRanges []ranges.Range
}

// Index is the subset of astindex.Index's contract GroundTruthBuilder
// depends on, so callers can supply a fake in tests without building a
// real Go package.
type Index interface {
	FindEnclosing(path string, line int) (astindex.Definition, bool)
}

// Build constructs GroundTruthEntry records from changed, a map of
// already eligibility-filtered repo-relative paths to their changed
// line numbers, using idx to resolve enclosing functions.
//
// Per spec: for each changed line, select its smallest enclosing
// function; for each selected function, cluster the changed lines that
// fall inside its scope into target ranges (gap = TargetRangeGap,
// max MaxTargetRangesPerFunction clusters else a single bounding
// range); clamp every target range into the function's scope; dedupe
// by (path, class, function, start_line); then apply quality guards.
func Build(idx Index, changed map[string][]int) ([]Entry, error) {
	type key struct {
		path, class, function string
		start                 int
	}

	selected := make(map[key]astindex.Definition)
	linesByFunc := make(map[key][]int)

	for path, lines := range changed {
		for _, line := range lines {
			def, ok := idx.FindEnclosing(path, line)
			if !ok {
				continue
			}
			k := key{path: path, class: def.Container, function: def.Name, start: def.StartLine}
			selected[k] = def
			linesByFunc[k] = append(linesByFunc[k], line)
		}
	}

	if len(selected) == 0 {
		return nil, ErrNoValidFunctionGT
	}

	if len(selected) > MaxGTBlocks {
		return nil, ErrTooManyBlocks
	}

	singleLine := 0
	entries := make([]Entry, 0, len(selected))

	keys := make([]key, 0, len(selected))
	for k := range selected {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].path != keys[j].path {
			return keys[i].path < keys[j].path
		}
		return keys[i].start < keys[j].start
	})

	for _, k := range keys {
		def := selected[k]
		scope := ranges.Range{Start: def.StartLine, End: def.EndLine}
		if scope.Start == scope.End {
			singleLine++
		}

		clusters := ranges.Cluster(linesByFunc[k], TargetRangeGap)
		if len(clusters) > MaxTargetRangesPerFunction {
			min, max := clusters[0].Start, clusters[0].End
			for _, c := range clusters[1:] {
				if c.Start < min {
					min = c.Start
				}
				if c.End > max {
					max = c.End
				}
			}
			clusters = []ranges.Range{{Start: min, End: max}}
		}

		target := make([]ranges.Range, 0, len(clusters))
		for _, c := range clusters {
			if clamped, ok := ranges.Clamp(c, scope); ok {
				target = append(target, clamped)
			}
		}
		if len(target) == 0 {
			continue
		}

		entries = append(entries, Entry{
			Path:         k.path,
			Function:     k.function,
			Class:        k.class,
			Signature:    def.Signature,
			Range:        scope,
			TargetRanges: ranges.Merge(target),
		})
	}

	if len(entries) == 0 {
		return nil, ErrNoValidFunctionGT
	}

	if float64(singleLine)/float64(len(entries)) > SingleLineRatioThreshold {
		return nil, ErrSingleLineRatioExceeded
	}

	return entries, nil
}
