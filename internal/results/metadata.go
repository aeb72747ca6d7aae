package results

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
)

// RunMetadata is the reproducibility envelope attached to a Summary:
// dataset identity, provider config (sanitized), and timing, following
// original_source/benchmark/runner/metadata.py's build_run_metadata shape.
type RunMetadata struct {
	Run         RunInfo         `json:"run"`
	Dataset     DatasetInfo     `json:"dataset"`
	Search      SearchInfo      `json:"search"`
	Environment EnvironmentInfo `json:"environment"`
}

// RunInfo records when a benchmark run happened and how long it took.
type RunInfo struct {
	RunID        string  `json:"run_id,omitempty"`
	CasesLoaded  int     `json:"cases_loaded"`
	StartedAtUTC string  `json:"started_at_utc"`
	CompletedUTC string  `json:"completed_at_utc"`
	DurationSecs float64 `json:"duration_s"`
}

// CaseRef identifies one case within a run without repeating its full record.
type CaseRef struct {
	ID         string `json:"id"`
	Repo       string `json:"repo"`
	BaseCommit string `json:"base_commit"`
}

// DatasetInfo identifies the dataset a run was executed against.
type DatasetInfo struct {
	ReposDir      string    `json:"repos_dir"`
	Cases         []CaseRef `json:"cases"`
	DatasetPath   string    `json:"dataset_path,omitempty"`
	DatasetSHA256 string    `json:"dataset_sha256,omitempty"`
}

// SearchInfo records the harness's provider configuration, with the
// endpoint URL always passed through SanitizeEndpointURL first.
type SearchInfo struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	BaseURL       string `json:"base_url,omitempty"`
	MaxTurns      int    `json:"max_turns"`
	HarnessCommit string `json:"harness_commit,omitempty"`
}

// EnvironmentInfo records the runtime the benchmark executed under.
type EnvironmentInfo struct {
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// BuildRunMetadataInput collects the values needed to build a RunMetadata.
type BuildRunMetadataInput struct {
	RunID         string
	ReposDir      string
	Cases         []CaseRef
	DatasetPath   string
	Provider      string
	Model         string
	BaseURL       string
	MaxTurns      int
	HarnessCommit string
	StartedAt     time.Time
	CompletedAt   time.Time
}

// BuildRunMetadata assembles a RunMetadata, sanitizing the endpoint URL
// and hashing the dataset file (best effort; a missing/unreadable
// dataset file just omits the hash rather than failing the run).
func BuildRunMetadata(in BuildRunMetadataInput) RunMetadata {
	dataset := DatasetInfo{ReposDir: in.ReposDir, Cases: in.Cases}
	if in.DatasetPath != "" {
		dataset.DatasetPath = in.DatasetPath
		if sum, err := sha256File(in.DatasetPath); err == nil {
			dataset.DatasetSHA256 = sum
		}
	}

	return RunMetadata{
		Run: RunInfo{
			RunID:        in.RunID,
			CasesLoaded:  len(in.Cases),
			StartedAtUTC: in.StartedAt.UTC().Format(time.RFC3339),
			CompletedUTC: in.CompletedAt.UTC().Format(time.RFC3339),
			DurationSecs: roundTo(in.CompletedAt.Sub(in.StartedAt).Seconds(), 1),
		},
		Dataset: dataset,
		Search: SearchInfo{
			Provider:      in.Provider,
			Model:         in.Model,
			BaseURL:       SanitizeEndpointURL(in.BaseURL),
			MaxTurns:      in.MaxTurns,
			HarnessCommit: in.HarnessCommit,
		},
		Environment: EnvironmentInfo{
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		},
	}
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "results: open %s for hashing", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "results: hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func roundTo(v float64, places int) float64 {
	mult := 1.0
	for i := 0; i < places; i++ {
		mult *= 10
	}
	return float64(int64(v*mult+0.5)) / mult
}
