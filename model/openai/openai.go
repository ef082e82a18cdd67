// Package openai provides a model wrapper for the OpenAI Responses API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/twitchax/triage-bot/model"
)

// Options configures the OpenAI model adapter (model id, output token cap,
// API key). Extend via functional options to preserve stability.
type Options struct {
	Model           string
	MaxOutputTokens int64
	APIKey          string
}

// Model wraps the OpenAI Responses API behind the generic model.Model
// interface. The Responses API is used rather than Chat Completions because
// it natively supports response chaining via previous response ids, which the
// assistant loop relies on.
type Model struct {
	client openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:           "gpt-4o",
		MaxOutputTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	return &Model{
		client: openai.NewClient(clientOpts...),
		opts:   opts,
	}
}

// Generate implements model.Model. It maps the normalized request onto one
// Responses API call and converts the output items back into the normalized
// closed set.
func (m *Model) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	params := responses.ResponseNewParams{
		Model:           m.opts.Model,
		MaxOutputTokens: openai.Int(m.opts.MaxOutputTokens),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(req.InputText())},
	}

	if req.Instructions != "" {
		params.Instructions = openai.String(req.Instructions)
	}

	if req.PreviousResponseID != "" {
		params.PreviousResponseID = openai.String(req.PreviousResponseID)
	}

	if tools := m.buildTools(req); len(tools) > 0 {
		params.Tools = tools
	}

	if req.ReplySchema != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   req.ReplySchema.Name,
					Schema: req.ReplySchema.Schema,
					Strict: openai.Bool(req.ReplySchema.Strict),
				},
			},
		}
	}

	resp, err := m.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses api error: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty response from openai responses api")
	}

	items := make([]model.OutputItem, 0, len(resp.Output))

	for i := range resp.Output {
		item := &resp.Output[i]

		switch item.Type {
		case "message":
			msg := item.AsMessage()
			for j := range msg.Content {
				content := &msg.Content[j]
				switch content.Type {
				case "output_text":
					items = append(items, model.TextItem{Text: content.Text})
				case "refusal":
					items = append(items, model.RefusalItem{Reason: content.Refusal})
				}
			}
		case "function_call":
			fc := item.AsFunctionCall()
			callID := fc.CallID
			if callID == "" {
				callID = fc.ID
			}
			items = append(items, model.FunctionCallItem{
				CallID:    callID,
				Name:      fc.Name,
				Arguments: json.RawMessage(fc.Arguments),
			})
		case "web_search_call":
			items = append(items, model.WebSearchItem{ID: item.ID})
		case "reasoning":
			// Internal chain-of-thought, not surfaced to callers.
			continue
		default:
			continue
		}
	}

	out := &model.Response{ID: resp.ID, Items: items}
	if resp.Usage.TotalTokens > 0 {
		out.Usage = &model.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}
	}

	return out, nil
}

// buildTools converts normalized tool definitions to Responses API format and
// appends the provider-hosted web search tool when requested.
func (m *Model) buildTools(req model.Request) []responses.ToolUnionParam {
	tools := make([]responses.ToolUnionParam, 0, len(req.Tools)+1)

	for _, t := range req.Tools {
		tools = append(tools, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.Parameters),
			},
		})
	}

	if req.EnableWebSearch {
		tools = append(tools, responses.ToolUnionParam{
			OfWebSearchPreview: &responses.WebSearchToolParam{
				Type: responses.WebSearchToolTypeWebSearchPreview,
			},
		})
	}

	return tools
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
