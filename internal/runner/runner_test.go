package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/humanbeeng/codelocbench/internal/dataset"
	"github.com/humanbeeng/codelocbench/internal/harness"
	"github.com/humanbeeng/codelocbench/internal/ranges"
)

type fakeProvisioner struct {
	path string
	err  error
}

func (f *fakeProvisioner) Ensure(ctx context.Context, repo, commit string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

type fakeHarness struct {
	result harness.Result
	err    error
}

func (f *fakeHarness) Run(ctx context.Context, query, repoRoot string, bounds harness.Bounds) (harness.Result, error) {
	if f.err != nil {
		return harness.Result{}, f.err
	}
	return f.result, nil
}

func widgetCase() dataset.Case {
	return dataset.Case{
		ID:         "case-1",
		Query:      "where is the widget parsed?",
		Repo:       "acme/widgets",
		BaseCommit: "deadbeef",
		HardGT: []dataset.GroundTruthEntry{
			{Path: "widget.go", Function: "Parse", Range: [2]int{1, 20}, TargetRanges: [][2]int{{5, 10}}},
		},
	}
}

func TestRunBenchmarkScoresAPerfectMatch(t *testing.T) {
	r := &Runner{
		Config:      Config{MaxTurns: 5},
		Provisioner: &fakeProvisioner{path: "/repo"},
		Harness: &fakeHarness{result: harness.Result{
			Files:     harness.ReturnedFiles{"widget.go": []ranges.Range{{Start: 5, End: 10}}},
			TurnsUsed: 2,
		}},
	}

	summary, err := r.RunBenchmark(context.Background(), []dataset.Case{widgetCase()})
	require.NoError(t, err)
	require.Equal(t, 1, summary.TotalCases)

	res := summary.Results[0]
	require.True(t, res.Success)
	require.Equal(t, 1.0, res.FileRecall)
	require.Equal(t, 1.0, res.FilePrecision)
	require.Equal(t, 1.0, res.JointF)
	require.Equal(t, 1.0, summary.Stats["success_rate"])
}

func TestRunBenchmarkMarksProvisionFailureAsPartial(t *testing.T) {
	r := &Runner{
		Config:      Config{MaxTurns: 5},
		Provisioner: &fakeProvisioner{err: errors.New("clone failed")},
		Harness:     &fakeHarness{},
	}

	summary, err := r.RunBenchmark(context.Background(), []dataset.Case{widgetCase()})
	require.NoError(t, err)

	res := summary.Results[0]
	require.False(t, res.Success)
	require.True(t, res.Partial)
	require.NotNil(t, res.Error)
	require.NotEmpty(t, *res.Error)
}

func TestRunBenchmarkMarksHarnessErrorAsPartial(t *testing.T) {
	r := &Runner{
		Config:      Config{MaxTurns: 5},
		Provisioner: &fakeProvisioner{path: "/repo"},
		Harness:     &fakeHarness{err: errors.New("transport error")},
	}

	summary, err := r.RunBenchmark(context.Background(), []dataset.Case{widgetCase()})
	require.NoError(t, err)

	res := summary.Results[0]
	require.False(t, res.Success)
	require.True(t, res.Partial)
	require.GreaterOrEqual(t, res.RepoPrepMs, 0.0)
}

func TestRunBenchmarkProgressCallback(t *testing.T) {
	var calls []int
	r := &Runner{
		Config:      Config{MaxTurns: 5},
		Provisioner: &fakeProvisioner{path: "/repo"},
		Harness:     &fakeHarness{result: harness.Result{TurnsUsed: 1}},
		Progress: func(current, total int, caseID string) {
			calls = append(calls, current)
		},
	}

	cases := []dataset.Case{widgetCase(), widgetCase()}
	_, err := r.RunBenchmark(context.Background(), cases)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, calls)
}

