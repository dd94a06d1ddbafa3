package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/autosint/engine/pkg/apperr"
)

// AnthropicClient implements Client on top of Anthropic's Messages API.
type AnthropicClient struct {
	msg   messagesService
	model string
}

// messagesService captures the subset of *sdk.MessageService this package
// exercises, so tests can substitute a stub without a live API key.
type messagesService interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// NewAnthropicClient builds a Client from an API key and model identifier
// (the provider/model named under llm.analyst or llm.processor in
// engine.yaml).
func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("llm: anthropic api key is required")
	}
	if model == "" {
		return nil, errors.New("llm: model identifier is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{msg: &c.Messages, model: model}, nil
}

// Complete translates Request into a Messages.New call and maps the
// response back into provider-agnostic content blocks.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages:  encodeMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}
	return decodeResponse(msg), nil
}

func encodeMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Type {
			case "text":
				if b.Text != "" {
					blocks = append(blocks, sdk.NewTextBlock(b.Text))
				}
			case "tool_use":
				blocks = append(blocks, sdk.NewToolUseBlock(b.ToolUseID, decodeToolInput(b.ToolInput), b.ToolName))
			case "tool_result":
				blocks = append(blocks, sdk.NewToolResultBlock(b.ToolUseID, b.ToolResultContent, b.IsError))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case RoleUser:
			out = append(out, sdk.NewUserMessage(blocks...))
		case RoleAssistant:
			out = append(out, sdk.NewAssistantMessage(blocks...))
		}
	}
	return out
}

// decodeToolInput unmarshals a raw tool_input payload into the any the SDK
// expects for a tool_use block's input field.
func decodeToolInput(raw []byte) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{}
	}
	return v
}

func encodeTools(specs []ToolSpec) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		var schema map[string]any
		_ = json.Unmarshal(s.Parameters, &schema)
		out = append(out, sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{
			Type:       "object",
			Properties: schema["properties"],
		}, s.Name))
	}
	return out
}

func decodeResponse(msg *sdk.Message) *Response {
	resp := &Response{
		StopReason:   StopReason(msg.StopReason),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case sdk.TextBlock:
			resp.Content = append(resp.Content, ContentBlock{Type: "text", Text: variant.Text})
		case sdk.ToolUseBlock:
			input, _ := json.Marshal(variant.Input)
			resp.Content = append(resp.Content, ContentBlock{
				Type:      "tool_use",
				ToolUseID: variant.ID,
				ToolName:  variant.Name,
				ToolInput: input,
			})
		}
	}
	return resp
}

// classifyError maps an Anthropic SDK error into the apperr taxonomy so the
// session runtime and circuit breaker can make correct retry/suspend
// decisions.
func classifyError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return apperr.New(apperr.KindAuth, "llm", err)
		case 429:
			return apperr.New(apperr.KindRateLimited, "llm", err)
		case 400:
			if strings.Contains(apiErr.Error(), "context") && strings.Contains(apiErr.Error(), "token") {
				return apperr.New(apperr.KindContextWindow, "llm", err)
			}
			return apperr.New(apperr.KindValidation, "llm", err)
		default:
			if apiErr.StatusCode >= 500 {
				return apperr.New(apperr.KindTransient, "llm", err)
			}
		}
	}
	return apperr.New(apperr.KindHardDependency, "llm", fmt.Errorf("unclassified provider error: %w", err))
}
