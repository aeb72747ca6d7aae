// Package llmclient wraps the OpenAI Responses API behind a narrow
// tool-calling contract, the way codegraph/assistant/runner.go talks
// to it directly but generalized so internal/harness can drive any
// provider satisfying the same shape.
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

// Config configures a Client.
type Config struct {
	APIKey       string
	BaseURL      string
	Organization string
	Model        string
}

// ToolDef describes one callable tool, rendered to the provider's
// function-calling schema by Respond.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
	Strict      bool
}

// Message is one conversation turn: a plain message, a requested tool
// call, or a tool's result, matching the three conversationItem kinds
// the teacher's runner.go threads through its own loop.
type Message struct {
	Role         string // "system", "user", "assistant"
	Content      string
	FunctionName string // set when Kind == Kind FunctionCall
	Arguments    string
	CallID       string
	Kind         MessageKind
}

// MessageKind distinguishes the three message shapes a Responses-API
// conversation needs.
type MessageKind int

const (
	KindMessage MessageKind = iota
	KindFunctionCall
	KindFunctionOutput
)

// ToolCall is one call the model requested in a turn.
type ToolCall struct {
	CallID    string
	Name      string
	Arguments string
}

// Response is the model's answer for one turn: optional text plus any
// tool calls it requested.
type Response struct {
	Text             string
	ToolCalls        []ToolCall
	PromptTokens     int
	CompletionTokens int
}

// Client drives one Responses-API turn given the full conversation and
// tool set so far.
type Client interface {
	Respond(ctx context.Context, conversation []Message, tools []ToolDef) (*Response, error)
	Model() string
}

type client struct {
	openai openai.Client
	model  string
}

// New builds a Client. APIKey is required; BaseURL/Organization are
// optional overrides for self-hosted or proxied endpoints.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llmclient: API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-5-codex"
	}

	return &client{openai: openai.NewClient(opts...), model: model}, nil
}

func (c *client) Model() string { return c.model }

func (c *client) Respond(ctx context.Context, conversation []Message, tools []ToolDef) (*Response, error) {
	params := responses.ResponseNewParams{
		Model:             shared.ResponsesModel(c.model),
		Input:             responses.ResponseNewParamsInputUnion{OfInputItemList: buildInputItems(conversation)},
		Tools:             toResponseTools(tools),
		ParallelToolCalls: param.NewOpt(true),
		Reasoning: shared.ReasoningParam{
			Effort: shared.ReasoningEffortMedium,
		},
	}
	params.ToolChoice.OfToolChoiceMode = param.NewOpt(responses.ToolChoiceOptionsAuto)

	start := time.Now()
	resp, err := c.openai.Responses.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "llmclient: create response")
	}
	if resp == nil {
		return nil, errors.New("llmclient: nil response from provider")
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("llmclient: provider error: %s (code=%s)", resp.Error.Message, resp.Error.Code)
	}

	result := &Response{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}

	var text strings.Builder
	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			msg := item.AsMessage()
			if seg := extractMessageText(msg); seg != "" {
				if text.Len() > 0 {
					text.WriteString("\n")
				}
				text.WriteString(seg)
			}
		case "function_call":
			call := item.AsFunctionCall()
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				CallID:    call.CallID,
				Name:      call.Name,
				Arguments: call.Arguments,
			})
		}
	}
	result.Text = strings.TrimSpace(text.String())

	_ = time.Since(start) // latency is measured by the caller, which owns per-turn timing

	return result, nil
}

func buildInputItems(conversation []Message) responses.ResponseInputParam {
	items := make(responses.ResponseInputParam, 0, len(conversation))
	for _, m := range conversation {
		switch m.Kind {
		case KindMessage:
			items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRole(m.Role)))
		case KindFunctionCall:
			items = append(items, responses.ResponseInputItemParamOfFunctionCall(m.Arguments, m.CallID, m.FunctionName))
		case KindFunctionOutput:
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(m.CallID, m.Content))
		}
	}
	return items
}

func toResponseTools(tools []ToolDef) []responses.ToolUnionParam {
	out := make([]responses.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		params := make(map[string]any, len(t.Parameters)+2)
		for k, v := range t.Parameters {
			params[k] = v
		}
		if _, ok := params["type"]; !ok {
			params["type"] = "object"
		}
		params["additionalProperties"] = false

		fn := responses.FunctionToolParam{
			Name:        t.Name,
			Description: param.NewOpt(t.Description),
			Parameters:  params,
			Strict:      param.NewOpt(t.Strict),
		}
		out = append(out, responses.ToolUnionParam{OfFunction: &fn})
	}
	return out
}

func extractMessageText(msg responses.ResponseOutputMessage) string {
	var sb strings.Builder
	for _, content := range msg.Content {
		switch content.Type {
		case "output_text":
			sb.WriteString(content.AsOutputText().Text)
		case "refusal":
			sb.WriteString(content.AsRefusal().Refusal)
		}
	}
	return strings.TrimSpace(sb.String())
}

// SchemaFrom reflects v's exported fields and jsonschema struct tags
// into a tool parameter schema, mirroring relay/common/llm.GenerateSchemaFrom
// so tool definitions stay in sync with the arg structs their handlers parse.
func SchemaFrom(v any) map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(out, "$schema")
	delete(out, "title")
	return out
}

// IsRetryable reports whether a failed Respond call is worth retrying:
// context cancellation/deadlines are never retryable; everything else
// is left to the caller's own retry policy, since the openai-go v3
// client already retries transient 429/5xx responses internally.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return ctx.Err() == nil
}
