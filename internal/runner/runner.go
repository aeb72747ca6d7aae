// Package runner implements BenchmarkRunner: the sequential per-case
// pipeline that provisions each case's repository, invokes a
// SearchHarness, scores the result, and assembles a results.Summary —
// translated from original_source/benchmark/runner/executor.py's
// BenchmarkRunner.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/humanbeeng/codelocbench/internal/astindex"
	"github.com/humanbeeng/codelocbench/internal/dataset"
	"github.com/humanbeeng/codelocbench/internal/harness"
	"github.com/humanbeeng/codelocbench/internal/logging"
	"github.com/humanbeeng/codelocbench/internal/metrics"
	"github.com/humanbeeng/codelocbench/internal/otelx"
	"github.com/humanbeeng/codelocbench/internal/ranges"
	"github.com/humanbeeng/codelocbench/internal/results"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var runnerTracer = otelx.Tracer("codelocbench/runner")

// SearchHarness is the contract BenchmarkRunner drives: both
// harness.SingleChannel and harness.DualChannel satisfy it.
type SearchHarness interface {
	Run(ctx context.Context, query, repoRoot string, bounds harness.Bounds) (harness.Result, error)
}

// RepoProvisioner ensures a case's repository is checked out locally
// and returns its path. *reposync.Provisioner is the production
// implementation; tests substitute a fake to avoid shelling out to git.
type RepoProvisioner interface {
	Ensure(ctx context.Context, repo, commit string) (string, error)
}

// ProgressFunc is invoked after each case completes, current/total are
// 1-indexed/total case counts; a nil ProgressFunc disables reporting.
type ProgressFunc func(current, total int, caseID string)

// Config tunes one BenchmarkRunner's behavior.
type Config struct {
	RunID                     string  // stamped onto RunMetadata and every case's log/span context
	Beta                      float64 // Fβ beta, default 0.5 when <= 0 (favors precision)
	FileWeight                float64 // joint-score file weight, default 0.5 when <= 0
	MaxTurns                  int     // harness turn budget, required >= 1
	NormalizeGroundTruthToAST bool    // re-anchor ground truth to AST-enclosing scopes before scoring
	Provider                  string  // recorded in RunMetadata only
	Model                     string
	BaseURL                   string
	HarnessCommit             string
}

// Runner executes the benchmark: provision -> harness -> metrics ->
// append-result, sequential per case (spec.md's within-case ordering
// invariant; cross-case parallelism is the caller's responsibility).
type Runner struct {
	Config      Config
	Provisioner RepoProvisioner
	Harness     SearchHarness
	Progress    ProgressFunc
}

// RunBenchmark executes every case in order and returns the aggregate summary.
func (r *Runner) RunBenchmark(ctx context.Context, cases []dataset.Case) (results.Summary, error) {
	started := time.Now()
	ctx = logging.WithFields(ctx, logging.Fields{RunID: r.Config.RunID})

	caseResults := make([]results.Result, 0, len(cases))
	caseRefs := make([]results.CaseRef, 0, len(cases))
	for i, c := range cases {
		caseRefs = append(caseRefs, results.CaseRef{ID: c.ID, Repo: c.Repo, BaseCommit: c.BaseCommit})

		res := r.runCase(ctx, c)
		caseResults = append(caseResults, res)

		if r.Progress != nil {
			r.Progress(i+1, len(cases), c.ID)
		}
	}

	completed := time.Now()
	meta := results.BuildRunMetadata(results.BuildRunMetadataInput{
		RunID:         r.Config.RunID,
		Cases:         caseRefs,
		Provider:      r.Config.Provider,
		Model:         r.Config.Model,
		BaseURL:       r.Config.BaseURL,
		MaxTurns:      r.Config.MaxTurns,
		HarnessCommit: r.Config.HarnessCommit,
		StartedAt:     started,
		CompletedAt:   completed,
	})

	return results.Summary{
		Metadata:   meta,
		TotalCases: len(caseResults),
		Stats:      aggregateStats(caseResults),
		Results:    caseResults,
	}, nil
}

func (r *Runner) runCase(ctx context.Context, c dataset.Case) results.Result {
	ctx, span := runnerTracer.Start(ctx, "benchmark.case", oteltrace.WithAttributes(
		attribute.String("case_id", c.ID),
		attribute.String("repo", c.Repo),
	))
	defer span.End()
	ctx = logging.WithFields(ctx, logging.Fields{CaseID: c.ID, Repo: c.Repo, Component: "runner"})
	slog.InfoContext(ctx, "case started")

	gtFiles := metrics.Files(c.GroundTruthFiles())
	gtContextFiles := metrics.Files(c.GroundTruthContextFiles())
	functionTargets := c.GroundTruthFunctions()

	prepStart := time.Now()
	repoPath, err := r.Provisioner.Ensure(ctx, c.Repo, c.BaseCommit)
	repoPrepMs := msSince(prepStart)
	if err != nil {
		res := failureResult(c, gtFiles, functionTargets, fmt.Errorf("provision repo: %w", err))
		res.RepoPrepMs = repoPrepMs
		return res
	}

	if r.Config.NormalizeGroundTruthToAST {
		if idx, idxErr := astindex.Build(repoPath); idxErr == nil {
			gtFiles = normalizeToAST(idx, gtFiles)
		}
	}

	searchStart := time.Now()
	harnessResult, err := r.Harness.Run(ctx, c.Query, repoPath, harness.Bounds{MaxTurns: r.Config.MaxTurns})
	latencyMs := msSince(searchStart)
	if err != nil {
		res := failureResult(c, gtFiles, functionTargets, err)
		res.RepoPrepMs = repoPrepMs
		return res
	}

	returned := metrics.Files(harnessResult.Files)
	beta := r.Config.Beta
	if beta <= 0 {
		beta = 0.5 // BenchmarkRunner's own default, favors precision over recall
	}
	fileWeight := r.Config.FileWeight
	if fileWeight <= 0 {
		fileWeight = 0.5
	}

	fileRecall := metrics.FileRecall(returned, gtFiles, repoPath)
	filePrecision := metrics.FilePrecision(returned, gtFiles, repoPath)
	fileF1 := metrics.FBeta(filePrecision, fileRecall, 1.0)
	lineCoverage := metrics.LineCoverage(returned, gtFiles, repoPath)
	linePrecision := metrics.LinePrecision(returned, gtFiles, repoPath)
	lineF1 := metrics.FBeta(linePrecision, lineCoverage, 1.0)
	linePrecisionMatched := metrics.LinePrecisionMatched(returned, gtFiles, repoPath)
	lineIoUMatched := metrics.LineIoUMatched(returned, gtFiles, repoPath)
	joint := metrics.JointFBeta(returned, gtFiles, beta, fileWeight, repoPath)
	contextLineCoverage := metrics.LineCoverage(returned, gtContextFiles, repoPath)
	contextLinePrecisionMatched := metrics.LinePrecisionMatched(returned, gtContextFiles, repoPath)
	functionsHit, functionsTotal := metrics.FunctionHits(returned, functionTargets, repoPath)
	functionHitRate := 0.0
	if functionsTotal > 0 {
		functionHitRate = float64(functionsHit) / float64(functionsTotal)
	}

	var errPtr *string
	if harnessResult.Error != "" {
		e := harnessResult.Error
		errPtr = &e
	}

	if errPtr != nil {
		slog.ErrorContext(ctx, "case finished with an error", "err", *errPtr, "turns_used", harnessResult.TurnsUsed)
	} else {
		slog.InfoContext(ctx, "case finished", "joint_f", joint.JointF, "turns_used", harnessResult.TurnsUsed)
	}

	return results.Result{
		CaseID:                      c.ID,
		Repo:                        c.Repo,
		Success:                     !harnessResult.Partial && errPtr == nil,
		ReturnedFilesCount:          len(returned),
		GroundTruthFilesCount:       len(gtFiles),
		FileRecall:                  fileRecall,
		FilePrecision:               filePrecision,
		FileF1:                      fileF1,
		LineCoverage:                lineCoverage,
		LinePrecision:               linePrecision,
		LineF1:                      lineF1,
		LinePrecisionMatched:        linePrecisionMatched,
		LineIoUMatched:              lineIoUMatched,
		FileFBeta:                   joint.FileF,
		LineFBeta:                   joint.LineF,
		JointF:                      joint.JointF,
		ContextLineCoverage:         contextLineCoverage,
		ContextLinePrecisionMatched: contextLinePrecisionMatched,
		FunctionHitRate:             functionHitRate,
		FunctionsHit:                functionsHit,
		FunctionsTotal:              functionsTotal,
		TurnsUsed:                   harnessResult.TurnsUsed,
		LatencyMs:                   latencyMs,
		RepoPrepMs:                  repoPrepMs,
		Partial:                     harnessResult.Partial,
		Error:                       errPtr,
		ReturnedFiles:               toRawRanges(returned),
	}
}

func failureResult(c dataset.Case, gtFiles metrics.Files, functionTargets []dataset.FunctionTarget, err error) results.Result {
	msg := err.Error()
	return results.Result{
		CaseID:                c.ID,
		Repo:                  c.Repo,
		Success:               false,
		GroundTruthFilesCount: len(gtFiles),
		FunctionsTotal:        len(functionTargets),
		Partial:               true,
		Error:                 &msg,
		ReturnedFiles:         map[string][][2]int{},
	}
}

func normalizeToAST(idx *astindex.Index, files metrics.Files) metrics.Files {
	out := make(metrics.Files, len(files))
	for path, rs := range files {
		var normalized []ranges.Range
		for _, r := range rs {
			def, ok := idx.FindEnclosing(path, r.Start)
			if !ok {
				normalized = append(normalized, r)
				continue
			}
			normalized = append(normalized, ranges.Range{Start: def.StartLine, End: def.EndLine})
		}
		out[path] = ranges.Merge(normalized)
	}
	return out
}

func toRawRanges(files metrics.Files) map[string][][2]int {
	out := make(map[string][][2]int, len(files))
	for path, rs := range files {
		pairs := make([][2]int, len(rs))
		for i, r := range rs {
			pairs[i] = [2]int{r.Start, r.End}
		}
		out[path] = pairs
	}
	return out
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

// aggregateStats computes the run-level stats dict, one mean per
// metric across all cases, mirroring _compute_summary's field set.
// function_cases/avg_function_hit_rate average only over cases that
// actually carried function-level ground truth.
func aggregateStats(rs []results.Result) map[string]float64 {
	if len(rs) == 0 {
		return map[string]float64{}
	}

	n := float64(len(rs))
	successes := 0
	var sumReturned, sumGT float64
	var sumFileRecall, sumFilePrecision, sumFileF1 float64
	var sumLineCoverage, sumLinePrecision, sumLineF1 float64
	var sumLinePrecisionMatched, sumLineIoUMatched float64
	var sumFileFBeta, sumLineFBeta, sumJointF float64
	var sumTurns, sumLatency, sumRepoPrep float64

	functionCases := 0
	var sumFunctionHitRate float64

	for _, r := range rs {
		if r.Success {
			successes++
		}
		sumReturned += float64(r.ReturnedFilesCount)
		sumGT += float64(r.GroundTruthFilesCount)
		sumFileRecall += r.FileRecall
		sumFilePrecision += r.FilePrecision
		sumFileF1 += r.FileF1
		sumLineCoverage += r.LineCoverage
		sumLinePrecision += r.LinePrecision
		sumLineF1 += r.LineF1
		sumLinePrecisionMatched += r.LinePrecisionMatched
		sumLineIoUMatched += r.LineIoUMatched
		sumFileFBeta += r.FileFBeta
		sumLineFBeta += r.LineFBeta
		sumJointF += r.JointF
		sumTurns += float64(r.TurnsUsed)
		sumLatency += r.LatencyMs
		sumRepoPrep += r.RepoPrepMs
		if r.FunctionsTotal > 0 {
			functionCases++
			sumFunctionHitRate += r.FunctionHitRate
		}
	}

	avgFunctionHitRate := 0.0
	if functionCases > 0 {
		avgFunctionHitRate = sumFunctionHitRate / float64(functionCases)
	}

	return map[string]float64{
		"success_rate":               float64(successes) / n,
		"avg_returned_files":         sumReturned / n,
		"avg_ground_truth_files":     sumGT / n,
		"avg_file_recall":            sumFileRecall / n,
		"avg_file_precision":         sumFilePrecision / n,
		"avg_file_f1":                sumFileF1 / n,
		"avg_line_coverage":          sumLineCoverage / n,
		"avg_line_precision":         sumLinePrecision / n,
		"avg_line_f1":                sumLineF1 / n,
		"avg_line_precision_matched": sumLinePrecisionMatched / n,
		"avg_line_iou_matched":       sumLineIoUMatched / n,
		"avg_file_f_beta":            sumFileFBeta / n,
		"avg_line_f_beta":            sumLineFBeta / n,
		"avg_joint_f":                sumJointF / n,
		"function_cases":             float64(functionCases),
		"avg_function_hit_rate":      avgFunctionHitRate,
		"avg_turns":                  sumTurns / n,
		"avg_latency_ms":             sumLatency / n,
		"avg_repo_prep_ms":           sumRepoPrep / n,
	}
}
