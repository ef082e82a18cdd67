package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/internal/testutil"
	"github.com/twitchax/triage-bot/model"
	"github.com/twitchax/triage-bot/tool"
)

const noActionJSON = `{"type":"NoAction","thread_ts":null,"classification":null,"message":null}`

func noActionResponse(id string) *model.Response {
	return &model.Response{ID: id, Items: []model.OutputItem{model.TextItem{Text: noActionJSON}}}
}

func terminalDispatch(collected *[]core.Action) DispatchFunc {
	return func(_ context.Context, actions []core.Action) ([]ToolResult, error) {
		*collected = append(*collected, actions...)
		return nil, nil
	}
}

func compiledFor(message string) *core.CompiledContext {
	return &core.CompiledContext{
		UserMessage:           message,
		BotUserID:             "UBOT",
		ChannelID:             "C1",
		ThreadID:              "1724.0001",
		Directive:             core.DirectiveUnsetNotes,
		ChannelContext:        "No context recorded.",
		ThreadContext:         "",
		WebSearchFindings:     "",
		MessageSearchFindings: "No relevant messages found.",
	}
}

func toolNames(defs []core.ToolDefinition) []string {
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}
	return names
}

func TestDriver_ToolGating(t *testing.T) {
	registry := testutil.NewStaticToolset("lookup_ticket")

	// Without a trigger keyword the built-ins stay withheld.
	m := model.NewMockModel("assistant", "mock")
	m.QueueResponse(noActionResponse("r1"))

	driver := NewDriver(m, func(o *DriverOptions) { o.Toolset = registry })
	var actions []core.Action
	require.NoError(t, driver.Run(context.Background(), compiledFor("the deploy is broken"), terminalDispatch(&actions)))

	require.Equal(t, 1, m.Calls())
	names := toolNames(m.Requests()[0].Tools)
	assert.Equal(t, []string{"lookup_ticket"}, names)

	// With "remember" in the message the full set is offered.
	m = model.NewMockModel("assistant", "mock")
	m.QueueResponse(noActionResponse("r1"))

	driver = NewDriver(m, func(o *DriverOptions) { o.Toolset = registry })
	require.NoError(t, driver.Run(context.Background(), compiledFor("please remember this"), terminalDispatch(&actions)))

	names = toolNames(m.Requests()[0].Tools)
	assert.Contains(t, names, tool.SetChannelDirectiveName)
	assert.Contains(t, names, tool.UpdateChannelContextName)
	assert.Contains(t, names, "lookup_ticket")

	// "directive" triggers the full set too.
	m = model.NewMockModel("assistant", "mock")
	m.QueueResponse(noActionResponse("r1"))

	driver = NewDriver(m, func(o *DriverOptions) { o.Toolset = registry })
	require.NoError(t, driver.Run(context.Background(), compiledFor("set your Directive to X"), terminalDispatch(&actions)))

	names = toolNames(m.Requests()[0].Tools)
	assert.Contains(t, names, tool.SetChannelDirectiveName)
}

func TestDriver_SegmentLayout(t *testing.T) {
	m := model.NewMockModel("assistant", "mock")
	m.QueueResponse(noActionResponse("r1"))

	driver := NewDriver(m)
	var actions []core.Action
	require.NoError(t, driver.Run(context.Background(), compiledFor("hello there"), terminalDispatch(&actions)))

	req := m.Requests()[0]
	require.Len(t, req.Segments, 8)

	// Identity and policy lead, the user message comes last.
	assert.Equal(t, "Bot User ID", req.Segments[0].Label)
	assert.Equal(t, "Assistant Directive", req.Segments[1].Label)
	assert.Equal(t, "User Message", req.Segments[7].Label)
	assert.Equal(t, "hello there", req.Segments[7].Text)

	require.NotNil(t, req.ReplySchema)
	assert.Equal(t, replySchemaName, req.ReplySchema.Name)
	assert.True(t, req.ReplySchema.Strict)
}

func TestDriver_FollowUpLoop(t *testing.T) {
	m := model.NewMockModel("assistant", "mock")
	m.QueueResponse(&model.Response{ID: "r1", Items: []model.OutputItem{
		model.FunctionCallItem{
			CallID:    "call-1",
			Name:      "lookup_ticket",
			Arguments: json.RawMessage(`{"id":"TICKET-42"}`),
		},
	}})
	m.QueueResponse(noActionResponse("r2"))

	registry := testutil.NewStaticToolset("lookup_ticket")
	driver := NewDriver(m, func(o *DriverOptions) { o.Toolset = registry })

	dispatch := func(_ context.Context, actions []core.Action) ([]ToolResult, error) {
		var results []ToolResult
		for _, a := range actions {
			if invoke, ok := a.(core.InvokeTool); ok {
				results = append(results, ToolResult{CallID: invoke.CallID, Output: `{"status":"open"}`})
			}
		}
		return results, nil
	}

	require.NoError(t, driver.Run(context.Background(), compiledFor("check TICKET-42"), dispatch))
	require.Equal(t, 2, m.Calls())

	// The follow-up turn chains to the first response and carries the output.
	second := m.Requests()[1]
	assert.Equal(t, "r1", second.PreviousResponseID)
	require.Len(t, second.Segments, 1)
	assert.Contains(t, second.Segments[0].Label, "call-1")
	assert.Contains(t, second.Segments[0].Text, `"status":"open"`)
}

func TestDriver_IterationLimit(t *testing.T) {
	m := model.NewMockModel("assistant", "mock")
	registry := testutil.NewStaticToolset("lookup_ticket")
	for i := 0; i < 10; i++ {
		m.QueueResponse(&model.Response{ID: "loop", Items: []model.OutputItem{
			model.FunctionCallItem{CallID: "call-x", Name: "lookup_ticket", Arguments: json.RawMessage(`{}`)},
		}})
	}

	driver := NewDriver(m, func(o *DriverOptions) {
		o.Toolset = registry
		o.MaxIterations = 3
	})

	dispatch := func(_ context.Context, _ []core.Action) ([]ToolResult, error) {
		return []ToolResult{{CallID: "call-x", Output: "more"}}, nil
	}

	err := driver.Run(context.Background(), compiledFor("loop forever"), dispatch)
	require.ErrorIs(t, err, ErrIterationLimit)
	assert.Equal(t, 3, m.Calls())
}

func TestDriver_ModelErrorPropagates(t *testing.T) {
	m := model.NewMockModel("assistant", "mock")
	m.QueueError(context.DeadlineExceeded)

	driver := NewDriver(m)
	var actions []core.Action
	err := driver.Run(context.Background(), compiledFor("hello"), terminalDispatch(&actions))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assistant call")
}

func TestDriver_RememberScenario(t *testing.T) {
	// The bot must record a fact with a context append, not a directive
	// replacement, when asked to remember something.
	m := model.NewMockModel("assistant", "mock")
	m.QueueResponse(&model.Response{ID: "r1", Items: []model.OutputItem{
		model.FunctionCallItem{
			CallID:    "call-1",
			Name:      tool.UpdateChannelContextName,
			Arguments: json.RawMessage(`{"message":"The on-call is @X"}`),
		},
	}})
	m.QueueResponse(noActionResponse("r2"))

	driver := NewDriver(m)

	var collected []core.Action
	dispatch := func(_ context.Context, actions []core.Action) ([]ToolResult, error) {
		collected = append(collected, actions...)
		var results []ToolResult
		for _, a := range actions {
			if appendCtx, ok := a.(core.AppendContext); ok {
				results = append(results, ToolResult{CallID: appendCtx.CallID, Output: "recorded"})
			}
		}
		return results, nil
	}

	require.NoError(t, driver.Run(context.Background(), compiledFor("please remember that the on-call is @X"), dispatch))

	var appends []core.AppendContext
	for _, a := range collected {
		switch action := a.(type) {
		case core.AppendContext:
			appends = append(appends, action)
		case core.SetDirective:
			t.Fatalf("unexpected SetDirective action: %+v", action)
		}
	}
	require.Len(t, appends, 1)
	assert.True(t, strings.Contains(appends[0].Notes, "@X"))

	// Both built-ins were offered, so the discrimination was the model's.
	names := toolNames(m.Requests()[0].Tools)
	assert.Contains(t, names, tool.SetChannelDirectiveName)
	assert.Contains(t, names, tool.UpdateChannelContextName)
}
