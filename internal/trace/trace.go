// Package trace defines the per-turn record a SearchHarness emits and
// the JSONL sink/source used to persist and later replay it, shared
// between internal/harness (producer) and internal/traceanalysis
// (consumer).
package trace

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
)

// ToolResult is one tool invocation's outcome within a turn.
type ToolResult struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}

// Usage carries token accounting for one turn's LLM call, when the
// provider reports it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// LLMResponse is the subset of a turn's LLM response TraceAnalyzer
// inspects.
type LLMResponse struct {
	Usage *Usage `json:"usage,omitempty"`
}

// Record is one line of a case's trace JSONL file: one agent
// decision + tool execution cycle.
type Record struct {
	Turn         int          `json:"turn"`
	ToolResults  []ToolResult `json:"tool_results"`
	ReportBack   any          `json:"report_back,omitempty"`
	LLMLatencyMs float64      `json:"llm_latency_ms"`
	LLMResponse  *LLMResponse `json:"llm_response,omitempty"`
}

// Sink appends Records to one trace JSONL file in the order they are
// written. It does not split records by case: cmd/codelocbench opens a
// single Sink for the whole run and hands it to every case's harness
// (both channels in dual-channel mode), so that file holds the turns
// of every harness run one after another, each run numbering its own
// turns. It is safe for concurrent use.
type Sink struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// NewSink creates (or truncates) the trace file at path.
func NewSink(path string) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "trace: create %s", path)
	}
	return &Sink{f: f, w: bufio.NewWriter(f)}, nil
}

// Write appends one Record as a JSON line.
func (s *Sink) Write(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "trace: marshal record")
	}
	if _, err := s.w.Write(data); err != nil {
		return errors.Wrap(err, "trace: write record")
	}
	return s.w.WriteByte('\n')
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		return errors.Wrap(err, "trace: flush")
	}
	return s.f.Close()
}

// Load reads every Record from a case's trace JSONL file, in turn
// order as written.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "trace: open %s", path)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, errors.Wrapf(err, "trace: decode %s", path)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "trace: scan %s", path)
	}
	return records, nil
}
