package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/logging"
	"github.com/twitchax/triage-bot/model"
	"github.com/twitchax/triage-bot/tool"
)

// ErrIterationLimit is returned by Driver.Run when the tool loop does not
// reach a terminal response within the configured iteration limit.
var ErrIterationLimit = errors.New("assistant loop exceeded iteration limit")

const defaultMaxIterations = 5

const assistantInstructions = `You are a triage assistant embedded in a team chat workspace. ` +
	`You classify and respond to messages in channels you are invited to. Be concise and ` +
	`helpful; do not fabricate information. Your final answer must be the structured reply ` +
	`JSON you were given a schema for.`

const mentionDirective = `Only take action when the message warrants it. If the message does ` +
	`not concern you and requires no triage, reply with a NoAction response. When the user ` +
	`asks you to remember something for the channel, record it with update_channel_context. ` +
	`When the user asks you to change your standing instructions for the channel, replace ` +
	`them with set_channel_directive. Never mutate channel state unless explicitly asked.`

// replySchemaName identifies the structured reply format to the provider.
const replySchemaName = "triage_reply"

// Toolset is the view of the tool registry the driver needs: membership
// checks for the parser and definitions to offer to the model.
// *tool.Registry satisfies it.
type Toolset interface {
	Has(name string) bool
	Definitions() []core.ToolDefinition
}

// ToolResult is the outcome of one dispatched tool-shaped action, fed back
// to the model as the next turn's input.
type ToolResult struct {
	CallID string
	Output string
}

// DispatchFunc applies parsed actions to the outside world. Returning no
// results terminates the loop; returning results continues it with the
// results as follow-up input.
type DispatchFunc func(ctx context.Context, actions []core.Action) ([]ToolResult, error)

// Driver runs the assistant conversation for one compiled context: call the
// model, parse, dispatch, and loop on tool output until terminal.
type Driver struct {
	model         model.Model
	toolset       Toolset
	builtins      tool.Builtins
	maxIterations int
	logger        logging.Logger
}

// DriverOptions configures a Driver.
type DriverOptions struct {
	// Toolset supplies registered tools. Nil means built-ins only.
	Toolset Toolset

	// MaxIterations bounds the tool loop. Defaults to 5.
	MaxIterations int

	// Logger receives driver activity. Defaults to a no-op logger.
	Logger logging.Logger
}

// NewDriver creates a Driver around the given assistant model, which is
// typically retry-wrapped.
func NewDriver(m model.Model, optFns ...func(o *DriverOptions)) *Driver {
	opts := DriverOptions{
		MaxIterations: defaultMaxIterations,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Driver{
		model:         m,
		toolset:       opts.Toolset,
		builtins:      tool.NewBuiltins(),
		maxIterations: opts.MaxIterations,
		logger:        opts.Logger,
	}
}

// Run drives the assistant over the compiled context until dispatch reports
// a terminal turn. Effects happen through the dispatch callback; Run itself
// only talks to the model.
func (d *Driver) Run(ctx context.Context, compiled *core.CompiledContext, dispatch DispatchFunc) error {
	tools := d.offeredTools(compiled.UserMessage)
	compiled.Tools = tools

	req := model.Request{
		Instructions: assistantInstructions,
		Segments:     buildSegments(compiled),
		Tools:        tools,
		ReplySchema:  &model.ReplySchema{Name: replySchemaName, Schema: replySchema(), Strict: true},
	}

	previousResponseID := ""
	for iteration := 1; iteration <= d.maxIterations; iteration++ {
		req.PreviousResponseID = previousResponseID

		resp, err := d.model.Generate(ctx, req)
		if err != nil {
			return fmt.Errorf("assistant call: %w", err)
		}

		actions, err := ParseResponse(resp, d.toolset, d.logger)
		if err != nil {
			return err
		}

		d.logger.Debug("driver.turn",
			"channel_id", compiled.ChannelID,
			"iteration", iteration,
			"actions", len(actions),
		)

		results, err := dispatch(ctx, actions)
		if err != nil {
			return fmt.Errorf("dispatch actions: %w", err)
		}
		if len(results) == 0 {
			return nil
		}

		previousResponseID = resp.ID
		req = model.Request{
			Instructions: assistantInstructions,
			Segments:     resultSegments(results),
			Tools:        tools,
			ReplySchema:  &model.ReplySchema{Name: replySchemaName, Schema: replySchema(), Strict: true},
		}
	}

	d.logger.Warn("driver.iteration_limit", "channel_id", compiled.ChannelID, "limit", d.maxIterations)
	return ErrIterationLimit
}

// offeredTools implements the tool-permission policy: the state-mutating
// built-ins are withheld unless the triggering message contains a trigger
// keyword, so the model cannot spontaneously mutate channel state.
func (d *Driver) offeredTools(message string) []core.ToolDefinition {
	var tools []core.ToolDefinition
	if containsTrigger(message) {
		tools = append(tools, d.builtins.Definitions()...)
	}
	if d.toolset != nil {
		tools = append(tools, d.toolset.Definitions()...)
	}
	return tools
}

func containsTrigger(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "remember") || strings.Contains(lower, "directive")
}

// buildSegments lays out the initial input. Identity and policy segments
// come before user content so the model treats them as framing.
func buildSegments(c *core.CompiledContext) []model.Segment {
	return []model.Segment{
		{Label: "Bot User ID", Text: c.BotUserID},
		{Label: "Assistant Directive", Text: mentionDirective},
		{Label: "Channel Directive", Text: c.Directive},
		{Label: "Channel Context", Text: c.ChannelContext},
		{Label: "Thread Context", Text: c.ThreadContext},
		{Label: "Web Search Findings", Text: c.WebSearchFindings},
		{Label: "Message Search Findings", Text: c.MessageSearchFindings},
		{Label: "User Message", Text: c.UserMessage},
	}
}

func resultSegments(results []ToolResult) []model.Segment {
	segments := make([]model.Segment, 0, len(results))
	for _, r := range results {
		segments = append(segments, model.Segment{
			Label: fmt.Sprintf("Tool Output (%s)", r.CallID),
			Text:  r.Output,
		})
	}
	return segments
}

// replySchema is the JSON schema the provider enforces on the assistant's
// structured reply.
func replySchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type": map[string]any{
				"type": "string",
				"enum": []any{replyTypeNoAction, replyTypeReplyToThread},
			},
			"thread_ts": map[string]any{
				"type": []any{"string", "null"},
			},
			"classification": map[string]any{
				"type": []any{"string", "null"},
				"enum": []any{
					string(core.ClassificationBug),
					string(core.ClassificationFeature),
					string(core.ClassificationQuestion),
					string(core.ClassificationIncident),
					string(core.ClassificationOther),
					nil,
				},
			},
			"message": map[string]any{
				"type": []any{"string", "null"},
			},
		},
		"required":             []any{"type", "thread_ts", "classification", "message"},
		"additionalProperties": false,
	}
}
