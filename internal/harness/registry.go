package harness

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/humanbeeng/codelocbench/internal/llmclient"
)

// ToolHandler executes one tool call and returns its result text (or
// an error, which the loop converts into a synthetic "Error: ..."
// result so TraceAnalyzer's failed-tool-call detection keeps working).
type ToolHandler func(ctx context.Context, args json.RawMessage) (string, error)

// Registry holds the tool definitions and matching handlers available
// to one harness channel, following the teacher's ToolRegistry shape
// (golang/assistant/tool_registry.go) but targeting llmclient.ToolDef
// instead of binding directly to the Responses API types.
type Registry struct {
	defs     []llmclient.ToolDef
	handlers map[string]ToolHandler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]ToolHandler)}
}

// Add registers a tool definition and its handler. Tool names must be
// unique within a registry.
func (r *Registry) Add(def llmclient.ToolDef, handler ToolHandler) error {
	if def.Name == "" {
		return fmt.Errorf("harness: tool definition must have a name")
	}
	if _, exists := r.handlers[def.Name]; exists {
		return fmt.Errorf("harness: tool %q already registered", def.Name)
	}
	r.defs = append(r.defs, def)
	r.handlers[def.Name] = handler
	return nil
}

// Defs returns the tool definitions to send to the model.
func (r *Registry) Defs() []llmclient.ToolDef {
	return append([]llmclient.ToolDef(nil), r.defs...)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Handle executes the handler registered for name.
func (r *Registry) Handle(ctx context.Context, name string, args json.RawMessage) (string, error) {
	h, ok := r.handlers[name]
	if !ok {
		return "", fmt.Errorf("harness: no handler registered for tool %q", name)
	}
	return h(ctx, args)
}
