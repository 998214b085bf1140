package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicReasoner talks to the Anthropic Messages API with tool use.
type AnthropicReasoner struct {
	Client    anthropic.Client
	Model     string
	MaxTokens int64
}

func NewAnthropicReasoner(apiKey, model string, maxTokens int, opts ...option.RequestOption) *AnthropicReasoner {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &AnthropicReasoner{
		Client:    anthropic.NewClient(opts...),
		Model:     model,
		MaxTokens: int64(maxTokens),
	}
}

func (r *AnthropicReasoner) Respond(ctx context.Context, req Request) (Response, error) {
	tools, err := toolParams(req.Tools)
	if err != nil {
		return Response{}, err
	}
	msg, err := r.Client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.Model),
		MaxTokens: r.MaxTokens,
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages:  messageParams(req.Transcript),
		Tools:     tools,
	})
	if err != nil {
		return Response{}, err
	}
	var resp Response
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Segments = append(resp.Segments, Segment{Text: b.Text})
		case anthropic.ToolUseBlock:
			resp.Segments = append(resp.Segments, Segment{Call: &ToolCall{ID: b.ID, Name: b.Name, Input: b.Input}})
		}
	}
	return resp, nil
}

func toolParams(specs []ToolSpec) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		var schema struct {
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		}
		if err := json.Unmarshal(spec.Schema, &schema); err != nil {
			return nil, fmt.Errorf("tool %s schema: %w", spec.Name, err)
		}
		if schema.Properties == nil {
			schema.Properties = map[string]any{}
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        spec.Name,
			Description: anthropic.String(spec.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema.Properties,
				Required:   schema.Required,
			},
		}})
	}
	return out, nil
}

func messageParams(turns []Turn) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, turn := range turns {
		var blocks []anthropic.ContentBlockParamUnion
		for _, seg := range turn.Segments {
			switch {
			case seg.Call != nil:
				blocks = append(blocks, anthropic.NewToolUseBlock(seg.Call.ID, normalizeInput(seg.Call.Input), seg.Call.Name))
			case seg.Text != "":
				blocks = append(blocks, anthropic.NewTextBlock(seg.Text))
			}
		}
		for _, res := range turn.Results {
			blocks = append(blocks, anthropic.NewToolResultBlock(res.CallID, res.Content, res.IsError))
		}
		if turn.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}
