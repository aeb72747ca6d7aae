// Package results implements ResultsStore: per-case BenchmarkResult
// persistence plus the aggregate BenchmarkSummary, translated from
// original_source/benchmark/runner/results.py's JSONL + .report.json
// layout, using cockroachdb/errors at this package's I/O boundary per
// the ambient error-handling convention.
package results

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Result is one case's scored outcome, the on-disk counterpart of the
// Python BenchmarkResult dataclass. success = !partial && error == nil.
type Result struct {
	CaseID                      string              `json:"case_id"`
	Repo                        string              `json:"repo"`
	Success                     bool                `json:"success"`
	ReturnedFilesCount          int                 `json:"returned_files_count"`
	GroundTruthFilesCount       int                 `json:"ground_truth_files_count"`
	FileRecall                  float64             `json:"file_recall"`
	FilePrecision               float64             `json:"file_precision"`
	FileF1                      float64             `json:"file_f1"`
	LineCoverage                float64             `json:"line_coverage"`
	LinePrecision               float64             `json:"line_precision"`
	LineF1                      float64             `json:"line_f1"`
	LinePrecisionMatched        float64             `json:"line_precision_matched"`
	LineIoUMatched              float64             `json:"line_iou_matched"`
	FileFBeta                   float64             `json:"file_f_beta"`
	LineFBeta                   float64             `json:"line_f_beta"`
	JointF                      float64             `json:"joint_f"`
	ContextLineCoverage         float64             `json:"context_line_coverage"`
	ContextLinePrecisionMatched float64             `json:"context_line_precision_matched"`
	FunctionHitRate             float64             `json:"function_hit_rate"`
	FunctionsHit                int                 `json:"functions_hit"`
	FunctionsTotal              int                 `json:"functions_total"`
	TurnsUsed                   int                 `json:"turns_used"`
	LatencyMs                   float64             `json:"latency_ms"`
	RepoPrepMs                  float64             `json:"repo_prep_ms"`
	Partial                     bool                `json:"partial"`
	Error                       *string             `json:"error,omitempty"`
	ReturnedFiles               map[string][][2]int `json:"returned_files"`
}

// Summary aggregates every case's Result plus reproducibility metadata.
type Summary struct {
	Metadata   RunMetadata        `json:"metadata"`
	TotalCases int                `json:"total_cases"`
	Stats      map[string]float64 `json:"stats"`
	Results    []Result           `json:"results"`
}

// Save writes results.jsonl (one Result per line) and results.report.json
// (the metadata envelope, total_cases, aggregate stats, and the full
// results list) alongside outputPath, creating parent directories as
// needed. outputPath's extension is replaced with .jsonl / .report.json.
func Save(outputPath string, summary Summary) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return errors.Wrapf(err, "results: create output dir for %s", outputPath)
	}

	jsonlPath := withExt(outputPath, ".jsonl")
	f, err := os.Create(jsonlPath)
	if err != nil {
		return errors.Wrapf(err, "results: create %s", jsonlPath)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range summary.Results {
		if err := enc.Encode(r); err != nil {
			return errors.Wrapf(err, "results: encode result %s", r.CaseID)
		}
	}

	reportPath := withExt(outputPath, ".report.json")
	reportFile, err := os.Create(reportPath)
	if err != nil {
		return errors.Wrapf(err, "results: create %s", reportPath)
	}
	defer reportFile.Close()

	reportEnc := json.NewEncoder(reportFile)
	reportEnc.SetIndent("", "  ")
	report := map[string]any{
		"metadata":    summary.Metadata,
		"total_cases": summary.TotalCases,
		"stats":       summary.Stats,
		"results":     summary.Results,
	}
	if err := reportEnc.Encode(report); err != nil {
		return errors.Wrap(err, "results: encode report")
	}
	return nil
}

func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// SanitizeEndpointURL strips credentials, query, and fragment from a
// provider endpoint URL before it's recorded in RunMetadata, so a
// benchmark report never leaks an API key embedded in a base URL.
func SanitizeEndpointURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
