package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/humanbeeng/codelocbench/internal/llmclient"
)

// scriptedClient replays a fixed sequence of Responses, ignoring the
// conversation/tools it's given, so Run's control flow can be tested
// without a real provider.
type scriptedClient struct {
	responses []llmclient.Response
	calls     int
}

func (s *scriptedClient) Model() string { return "scripted" }

func (s *scriptedClient) Respond(_ context.Context, _ []llmclient.Message, _ []llmclient.ToolDef) (*llmclient.Response, error) {
	if s.calls >= len(s.responses) {
		return &llmclient.Response{}, nil
	}
	r := s.responses[s.calls]
	s.calls++
	return &r, nil
}

func writeRepoFile(t *testing.T, root, name, contents string) {
	t.Helper()
	full := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestSingleChannelRunReturnsOnReportBack(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "widget.go", "package widget\n\nfunc Do() {}\n")

	client := &scriptedClient{responses: []llmclient.Response{
		{ToolCalls: []llmclient.ToolCall{{CallID: "c1", Name: "view_file", Arguments: `{"file_path":"widget.go","offset":1,"limit":10}`}}},
		{ToolCalls: []llmclient.ToolCall{{CallID: "c2", Name: reportBackToolName, Arguments: `{"files":{"widget.go":[[3,3]]},"explanation":"found it"}`}}},
	}}

	h := &SingleChannel{Client: client}
	result, err := h.Run(context.Background(), "where is Do defined?", root, Bounds{MaxTurns: 5})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Partial {
		t.Fatalf("expected non-partial result, got %+v", result)
	}
	if result.TurnsUsed != 2 {
		t.Fatalf("expected 2 turns used, got %d", result.TurnsUsed)
	}
	rs, ok := result.Files["widget.go"]
	if !ok || len(rs) != 1 || rs[0].Start != 3 || rs[0].End != 3 {
		t.Fatalf("unexpected files: %+v", result.Files)
	}
}

func TestSingleChannelRunMarksPartialOnBudgetExhaustion(t *testing.T) {
	root := t.TempDir()
	writeRepoFile(t, root, "widget.go", "package widget\n")

	client := &scriptedClient{responses: []llmclient.Response{
		{ToolCalls: []llmclient.ToolCall{{CallID: "c1", Name: "view_file", Arguments: `{"file_path":"widget.go","offset":1,"limit":10}`}}},
		{ToolCalls: []llmclient.ToolCall{{CallID: "c2", Name: "view_file", Arguments: `{"file_path":"widget.go","offset":1,"limit":10}`}}},
	}}

	h := &SingleChannel{Client: client}
	result, err := h.Run(context.Background(), "where is Do defined?", root, Bounds{MaxTurns: 2})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Partial {
		t.Fatalf("expected partial result after exhausting budget, got %+v", result)
	}
	if result.TurnsUsed != 2 {
		t.Fatalf("expected turns_used == max_turns, got %d", result.TurnsUsed)
	}
}

func TestSingleChannelRunSurfacesTransportErrorAsPartial(t *testing.T) {
	root := t.TempDir()

	client := &erroringClient{}
	h := &SingleChannel{Client: client}
	result, err := h.Run(context.Background(), "q", root, Bounds{MaxTurns: 3})
	if err != nil {
		t.Fatalf("Run should surface the error in Result, not return it: %v", err)
	}
	if !result.Partial || result.Error == "" {
		t.Fatalf("expected partial result with error message, got %+v", result)
	}
}

type erroringClient struct{}

func (e *erroringClient) Model() string { return "erroring" }
func (e *erroringClient) Respond(context.Context, []llmclient.Message, []llmclient.ToolDef) (*llmclient.Response, error) {
	return nil, errTransport
}

var errTransport = &transportError{}

type transportError struct{}

func (e *transportError) Error() string { return "transport failure" }
