// Package anthropic provides a model wrapper for the Anthropic Claude API.
// Response chaining, provider-enforced reply schemas and server-side web
// search are not available through the Messages API surface used here, so
// requests carrying those features are rejected rather than silently
// degraded.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/model"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       string(anthropic.ModelClaude3_5Sonnet20241022),
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       string(anthropic.ModelClaude3_5Sonnet20241022),
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

// Generate implements model.Model. It adapts the Anthropic Messages API (with
// function/tool calling) into the normalized response shape.
func (m *Model) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	if req.PreviousResponseID != "" {
		return nil, fmt.Errorf("anthropic adapter does not support response chaining")
	}
	if req.ReplySchema != nil {
		return nil, fmt.Errorf("anthropic adapter does not support enforced reply schemas")
	}
	if req.EnableWebSearch {
		return nil, fmt.Errorf("anthropic adapter does not support server-side web search")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.opts.Model),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.InputText())),
		},
	}

	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}

	if len(req.Tools) > 0 {
		params.Tools = m.buildTools(req.Tools)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var items []model.OutputItem

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			textBlock := block.AsText()
			if textBlock.Text != "" {
				items = append(items, model.TextItem{Text: textBlock.Text})
			}
		case "tool_use":
			toolBlock := block.AsToolUse()
			var args json.RawMessage
			if toolBlock.Input != nil {
				if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
					args = argsBytes
				}
			}
			items = append(items, model.FunctionCallItem{
				CallID:    toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}

	out := &model.Response{ID: resp.ID, Items: items}
	if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		}
	}

	return out, nil
}

// buildTools converts normalized tool definitions to Anthropic tool format.
func (m *Model) buildTools(tools []core.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if tool.Parameters != nil {
			if properties, exists := tool.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := tool.Parameters["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []interface{}:
					var reqStrings []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							reqStrings = append(reqStrings, s)
						}
					}
					inputSchema.Required = reqStrings
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
	}

	return anthropicTools
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
