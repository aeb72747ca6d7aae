// Command codelocbench is the thinnest possible front-end over
// internal/runner: load config, load a dataset, run the benchmark,
// save the results. Grounded on cmd/relay/main.go's signal-context and
// fail-fast-with-os.Exit(1) shape; out-of-scope CLI territory per
// SPEC_FULL.md §3's "Progress reporting" note beyond this.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/humanbeeng/codelocbench/internal/config"
	"github.com/humanbeeng/codelocbench/internal/dataset"
	"github.com/humanbeeng/codelocbench/internal/harness"
	"github.com/humanbeeng/codelocbench/internal/idgen"
	"github.com/humanbeeng/codelocbench/internal/llmclient"
	"github.com/humanbeeng/codelocbench/internal/logging"
	"github.com/humanbeeng/codelocbench/internal/otelx"
	"github.com/humanbeeng/codelocbench/internal/reposync"
	"github.com/humanbeeng/codelocbench/internal/results"
	"github.com/humanbeeng/codelocbench/internal/runner"
	"github.com/humanbeeng/codelocbench/internal/trace"
	"github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	datasetPath := flag.String("dataset", "", "path to a ground-truth dataset JSONL file")
	outputPath := flag.String("output", "results/run", "output path (without extension) for the .jsonl/.report.json pair")
	dualChannel := flag.Bool("dual-channel", false, "use the dual-channel (lexical + semantic) search harness instead of single-channel")
	normalizeAST := flag.Bool("normalize-ast", false, "re-anchor ground-truth ranges to enclosing AST boundaries before scoring")
	tracePath := flag.String("trace", "", "optional path to write a per-turn JSONL trace")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logging.Setup(cfg)

	if err := idgen.Init(1); err != nil {
		slog.Error("failed to initialize run ID generator", "err", err)
		os.Exit(1)
	}

	if *datasetPath == "" {
		slog.Error("-dataset is required")
		os.Exit(1)
	}

	fmt.Printf("codelocbench version: %s\n", version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tel, err := otelx.Setup(ctx, cfg.OTel, otelx.Options{ServiceName: cfg.OTel.ServiceName, ServiceVersion: version})
	if err != nil {
		slog.Error("failed to set up telemetry", "err", err)
		os.Exit(1)
	}
	if tel != nil {
		defer tel.Shutdown(ctx)
	}

	if err := run(ctx, cfg, *datasetPath, *outputPath, *dualChannel, *normalizeAST, *tracePath); err != nil {
		slog.Error("benchmark run failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, datasetPath, outputPath string, dualChannel, normalizeAST bool, tracePath string) error {
	runID := idgen.NewRunID()
	ctx = logging.WithFields(ctx, logging.Fields{RunID: runID, Component: "codelocbench"})
	slog.InfoContext(ctx, "starting benchmark run", "run_id", runID)

	cases, skipped, err := dataset.LoadJSONL(datasetPath)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	for _, s := range skipped {
		slog.WarnContext(ctx, "skipped dataset entry", "err", s)
	}
	slog.InfoContext(ctx, "loaded dataset", "cases", len(cases), "skipped", len(skipped))

	client, err := llmclient.New(llmclient.Config{
		APIKey:  cfg.Search.APIKey,
		BaseURL: cfg.Search.BaseURL,
		Model:   cfg.Search.Model,
	})
	if err != nil {
		return fmt.Errorf("build search client: %w", err)
	}

	var traceSink *trace.Sink
	if tracePath != "" {
		traceSink, err = trace.NewSink(tracePath)
		if err != nil {
			return fmt.Errorf("open trace sink: %w", err)
		}
		defer traceSink.Close()
	}

	var searchHarness runner.SearchHarness
	if dualChannel {
		searchHarness = &harness.DualChannel{Client: client, TraceSink: traceSink}
	} else {
		searchHarness = &harness.SingleChannel{Client: client, AutoIndex: true, TraceSink: traceSink}
	}

	var locker reposync.Locker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		locker = reposync.NewRedisLocker(redisClient)
		slog.InfoContext(ctx, "using redis-backed provisioning lock")
	}
	provisioner := reposync.NewProvisioner(cfg.ReposDir, locker)

	bench := &runner.Runner{
		Config: runner.Config{
			RunID:                     runID,
			Beta:                      cfg.Beta,
			FileWeight:                cfg.FileWeight,
			MaxTurns:                  cfg.MaxTurns,
			NormalizeGroundTruthToAST: normalizeAST,
			Provider:                  "openai-compatible",
			Model:                     cfg.Search.Model,
			BaseURL:                   cfg.Search.BaseURL,
			HarnessCommit:             version,
		},
		Provisioner: provisioner,
		Harness:     searchHarness,
		Progress:    renderProgress(len(cases)),
	}

	summary, err := bench.RunBenchmark(ctx, cases)
	if err != nil {
		return fmt.Errorf("run benchmark: %w", err)
	}

	if err := results.Save(outputPath, summary); err != nil {
		return fmt.Errorf("save results: %w", err)
	}

	slog.InfoContext(ctx, "benchmark run complete",
		"total_cases", summary.TotalCases,
		"success_rate", summary.Stats["success_rate"],
		"avg_joint_f", summary.Stats["avg_joint_f"],
	)
	return nil
}

// renderProgress returns a ProgressFunc that draws a basic ASCII
// progress bar to stderr after each case, the original's
// runner/executor.py behavior moved out of internal/runner per
// SPEC_FULL.md §3 (runner stays free of terminal-rendering concerns).
func renderProgress(total int) runner.ProgressFunc {
	if total == 0 {
		return nil
	}
	return func(current, total int, caseID string) {
		const width = 30
		filled := width * current / total
		bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
		fmt.Fprintf(os.Stderr, "\r[%s] %d/%d %s", bar, current, total, caseID)
		if current == total {
			fmt.Fprintln(os.Stderr)
		}
	}
}
