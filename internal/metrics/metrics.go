// Package metrics implements MetricsEngine: the file/line/function
// measures and combined Fβ scores spec.md §4.9 defines, translated
// from original_source/benchmark/evaluation/metrics.py's exact-path
// variant (this benchmark never falls back to basename matching, per
// internal/paths.Match's contract).
package metrics

import (
	"github.com/humanbeeng/codelocbench/internal/dataset"
	"github.com/humanbeeng/codelocbench/internal/paths"
	"github.com/humanbeeng/codelocbench/internal/ranges"
)

// Files is a path -> merged line ranges view, shared by both the
// harness's returned files and a case's ground truth files.
type Files map[string][]ranges.Range

func normalize(files Files, repoRoot string) Files {
	out := make(Files, len(files))
	for p, rs := range files {
		np := paths.Normalize(p, repoRoot)
		if np == "" {
			continue
		}
		out[np] = append(out[np], rs...)
	}
	for p, rs := range out {
		out[p] = ranges.Merge(rs)
	}
	return out
}

func keys(f Files) []string {
	ks := make([]string, 0, len(f))
	for k := range f {
		ks = append(ks, k)
	}
	return ks
}

// FileRecall is the fraction of ground-truth files the harness found.
// An empty ground truth set is vacuously fully recalled.
func FileRecall(returned, groundTruth Files, repoRoot string) float64 {
	if len(groundTruth) == 0 {
		return 1.0
	}
	ret := normalize(returned, repoRoot)
	gt := normalize(groundTruth, repoRoot)
	if len(gt) == 0 {
		return 1.0
	}
	matched := paths.Match(keys(gt), keys(ret))
	return float64(len(matched)) / float64(len(gt))
}

// FilePrecision is the fraction of returned files that are in ground truth.
func FilePrecision(returned, groundTruth Files, repoRoot string) float64 {
	if len(returned) == 0 {
		return 0.0
	}
	ret := normalize(returned, repoRoot)
	if len(ret) == 0 {
		return 0.0
	}
	gt := normalize(groundTruth, repoRoot)
	matched := paths.Match(keys(gt), keys(ret))
	return float64(len(matched)) / float64(len(ret))
}

// LineCoverage is the fraction of ground-truth lines any returned
// range overlaps: the denominator counts the lines of every
// ground-truth file, the numerator only overlaps in matched files.
func LineCoverage(returned, groundTruth Files, repoRoot string) float64 {
	if len(groundTruth) == 0 {
		return 0.0
	}
	ret := normalize(returned, repoRoot)
	gt := normalize(groundTruth, repoRoot)

	totalGT, covered := 0, 0
	for path, gtRanges := range gt {
		totalGT += ranges.Length(gtRanges)
		if retRanges, ok := ret[path]; ok {
			covered += ranges.IntersectionLength(gtRanges, retRanges)
		}
	}
	if totalGT == 0 {
		return 0.0
	}
	return float64(covered) / float64(totalGT)
}

// LinePrecision is the fraction of returned lines (across every
// returned file, matched or not) that land inside ground truth.
// Returned files absent from ground truth contribute only to the
// denominator, penalizing over-broad returns.
func LinePrecision(returned, groundTruth Files, repoRoot string) float64 {
	if len(returned) == 0 {
		return 0.0
	}
	ret := normalize(returned, repoRoot)
	gt := normalize(groundTruth, repoRoot)

	totalRet, correct := 0, 0
	for path, retRanges := range ret {
		totalRet += ranges.Length(retRanges)
		if gtRanges, ok := gt[path]; ok {
			correct += ranges.IntersectionLength(retRanges, gtRanges)
		}
	}
	if totalRet == 0 {
		return 0.0
	}
	return float64(correct) / float64(totalRet)
}

// LinePrecisionMatched is line precision restricted to files that
// appear in both sets, a pure measure of range accuracy that doesn't
// penalize returning unrelated files (FilePrecision covers that).
func LinePrecisionMatched(returned, groundTruth Files, repoRoot string) float64 {
	if len(returned) == 0 {
		return 0.0
	}
	ret := normalize(returned, repoRoot)
	gt := normalize(groundTruth, repoRoot)

	totalMatched, correct := 0, 0
	for path, retRanges := range ret {
		gtRanges, ok := gt[path]
		if !ok {
			continue
		}
		totalMatched += ranges.Length(retRanges)
		correct += ranges.IntersectionLength(retRanges, gtRanges)
	}
	if totalMatched == 0 {
		return 0.0
	}
	return float64(correct) / float64(totalMatched)
}

// LineIoUMatched is intersection-over-union of line ranges, summed
// across files present in both sets.
func LineIoUMatched(returned, groundTruth Files, repoRoot string) float64 {
	if len(returned) == 0 || len(groundTruth) == 0 {
		return 0.0
	}
	ret := normalize(returned, repoRoot)
	gt := normalize(groundTruth, repoRoot)

	intersection, union := 0, 0
	for path, gtRanges := range gt {
		retRanges, ok := ret[path]
		if !ok {
			continue
		}
		inter := ranges.IntersectionLength(gtRanges, retRanges)
		intersection += inter
		union += ranges.Length(gtRanges) + ranges.Length(retRanges) - inter
	}
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// FunctionHits reports how many target functions have any line
// overlap with the returned ranges in their (matched) file, and how
// many targets were considered. targets is normally produced by
// dataset.Case.GroundTruthFunctions().
func FunctionHits(returned Files, targets []dataset.FunctionTarget, repoRoot string) (hits, total int) {
	if len(targets) == 0 {
		return 0, 0
	}
	ret := normalize(returned, repoRoot)

	for _, target := range targets {
		np := paths.Normalize(target.Path, repoRoot)
		merged := ranges.Merge(target.Ranges)
		if np == "" || len(merged) == 0 {
			continue
		}
		total++
		retRanges, ok := ret[np]
		if !ok {
			continue
		}
		if ranges.IntersectionLength(merged, retRanges) > 0 {
			hits++
		}
	}
	return hits, total
}

// FBeta computes the Fβ score for a precision/recall pair:
// Fβ = (1+β²)·P·R / (β²·P+R). Returns 0 when both P and R are 0.
func FBeta(precision, recall, beta float64) float64 {
	denom := beta*beta*precision + recall
	if denom == 0 {
		return 0
	}
	return (1 + beta*beta) * precision * recall / denom
}

// JointScore is the combined file- and line-level Fβ measure.
type JointScore struct {
	FilePrecision float64
	FileRecall    float64
	FileF         float64
	LinePrecision float64
	LineRecall    float64
	LineF         float64
	JointF        float64
}

// JointFBeta combines file-level and line-level Fβ into one score:
// JointF = fileWeight·Fβ_file + (1−fileWeight)·Fβ_line. fileWeight
// defaults to 0.5 when <= 0, matching spec.md §4.9's default.
func JointFBeta(returned, groundTruth Files, beta, fileWeight float64, repoRoot string) JointScore {
	if fileWeight <= 0 {
		fileWeight = 0.5
	}

	fp := FilePrecision(returned, groundTruth, repoRoot)
	fr := FileRecall(returned, groundTruth, repoRoot)
	ff := FBeta(fp, fr, beta)

	lp := LinePrecision(returned, groundTruth, repoRoot)
	lr := LineCoverage(returned, groundTruth, repoRoot) // line recall == coverage
	lf := FBeta(lp, lr, beta)

	return JointScore{
		FilePrecision: fp,
		FileRecall:    fr,
		FileF:         ff,
		LinePrecision: lp,
		LineRecall:    lr,
		LineF:         lf,
		JointF:        fileWeight*ff + (1-fileWeight)*lf,
	}
}
