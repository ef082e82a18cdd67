package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/twitchax/triage-bot/agent"
	"github.com/twitchax/triage-bot/chat"
	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/logging"
	"github.com/twitchax/triage-bot/metrics"
	"github.com/twitchax/triage-bot/store"
)

// dispatcher applies one event's parsed actions to the outside world and
// collects the tool outputs the model still needs to see.
type dispatcher struct {
	store    store.Store
	chat     chat.Service
	invoker  ToolInvoker
	recorder *metrics.Recorder
	logger   logging.Logger
	event    core.ChatEvent
}

func newDispatcher(st store.Store, ch chat.Service, invoker ToolInvoker, recorder *metrics.Recorder, logger logging.Logger, event core.ChatEvent) *dispatcher {
	return &dispatcher{
		store:    st,
		chat:     ch,
		invoker:  invoker,
		recorder: recorder,
		logger:   logger,
		event:    event,
	}
}

// dispatch is the agent.DispatchFunc for the event. Chat and storage
// failures fail the pipeline; a registered tool failure is fed back to the
// model as the tool's output instead, so the model can recover.
func (d *dispatcher) dispatch(ctx context.Context, actions []core.Action) ([]agent.ToolResult, error) {
	var results []agent.ToolResult

	for _, action := range actions {
		d.recorder.IncAction(actionName(action))

		switch a := action.(type) {
		case core.NoAction:
			d.logger.Warn("dispatch.no_action", "channel_id", d.event.ChannelID, "event_id", d.event.ID)

		case core.Reply:
			if err := d.reply(ctx, a); err != nil {
				return nil, err
			}

		case core.SetDirective:
			if err := d.store.UpdateDirective(ctx, d.event.ChannelID, d.event.Raw, a.Notes); err != nil {
				return nil, fmt.Errorf("update directive: %w", err)
			}
			results = append(results, agent.ToolResult{CallID: a.CallID, Output: "Directive updated."})

		case core.AppendContext:
			if err := d.store.AppendContext(ctx, d.event.ChannelID, d.event.Raw, a.Notes); err != nil {
				return nil, fmt.Errorf("append context: %w", err)
			}
			results = append(results, agent.ToolResult{CallID: a.CallID, Output: "Context recorded."})

		case core.InvokeTool:
			results = append(results, d.invokeTool(ctx, a))

		default:
			return nil, fmt.Errorf("unhandled action %T", action)
		}
	}

	return results, nil
}

// reply reacts to the triggering message with the classification emoji and
// posts the reply into the thread.
func (d *dispatcher) reply(ctx context.Context, a core.Reply) error {
	if err := d.chat.ReactToMessage(ctx, d.event.ChannelID, d.event.ThreadID, a.Classification.Emoji()); err != nil {
		return fmt.Errorf("react to message: %w", err)
	}

	threadID := a.ThreadID
	if threadID == "" {
		threadID = d.event.ThreadID
	}
	if err := d.chat.SendMessage(ctx, d.event.ChannelID, threadID, a.Message); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

func (d *dispatcher) invokeTool(ctx context.Context, a core.InvokeTool) agent.ToolResult {
	if d.invoker == nil {
		return agent.ToolResult{CallID: a.CallID, Output: "Tool invocation failed: no tool registry configured."}
	}

	start := time.Now()
	output, err := d.invoker.Invoke(ctx, a.ToolName, a.Arguments)
	d.recorder.ObserveToolInvocation(a.ToolName, err == nil, time.Since(start))
	if err != nil {
		d.logger.Warn("dispatch.tool_failed",
			"channel_id", d.event.ChannelID,
			"tool", a.ToolName,
			"error", err,
		)
		return agent.ToolResult{CallID: a.CallID, Output: fmt.Sprintf("Tool invocation failed: %v", err)}
	}
	return agent.ToolResult{CallID: a.CallID, Output: string(output)}
}

func actionName(action core.Action) string {
	switch action.(type) {
	case core.NoAction:
		return "NoAction"
	case core.Reply:
		return "Reply"
	case core.SetDirective:
		return "SetDirective"
	case core.AppendContext:
		return "AppendContext"
	case core.InvokeTool:
		return "InvokeTool"
	default:
		return "Unknown"
	}
}
