package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/internal/testutil"
	"github.com/twitchax/triage-bot/model"
	"github.com/twitchax/triage-bot/tool"
)

const noActionText = `{"type":"NoAction","thread_ts":null,"classification":null,"message":null}`

func testEvent(text string) core.ChatEvent {
	return core.NewChatEvent("C1", "1724.0001", "U100", text, json.RawMessage(`{"text":"`+text+`"}`))
}

func TestHandleEvent_HelperFailureSkipsAssistant(t *testing.T) {
	st := testutil.NewMemStore()
	ch := &testutil.RecordingChat{BotID: "UBOT"}
	helpers := &testutil.HelperModel{WebErr: errors.New("provider down")}
	assistant := model.NewMockModel("assistant", "mock")

	eng := New(st, ch, assistant, helpers)

	err := eng.HandleEvent(context.Background(), testEvent("hello"))
	require.Error(t, err)

	// The assistant must never be called when compilation fails.
	assert.Zero(t, assistant.Calls())
}

func TestHandleEvent_SelfMessageSkipped(t *testing.T) {
	st := testutil.NewMemStore()
	ch := &testutil.RecordingChat{BotID: "UBOT"}
	helpers := &testutil.HelperModel{}
	assistant := model.NewMockModel("assistant", "mock")

	eng := New(st, ch, assistant, helpers)

	event := core.NewChatEvent("C1", "1724.0001", "UBOT", "my own message", nil)
	require.NoError(t, eng.HandleEvent(context.Background(), event))
	assert.Zero(t, assistant.Calls())
	assert.Zero(t, helpers.Calls())
	assert.Empty(t, st.Messages("C1"))
}

func TestHandleEvent_ReplyFlow(t *testing.T) {
	st := testutil.NewMemStore()
	ch := &testutil.RecordingChat{BotID: "UBOT"}
	helpers := &testutil.HelperModel{WebText: "nothing relevant"}

	assistant := model.NewMockModel("assistant", "mock")
	assistant.QueueResponse(&model.Response{ID: "r1", Items: []model.OutputItem{
		model.TextItem{Text: `{"type":"ReplyToThread","thread_ts":"1724.0001","classification":"Bug","message":"Tracking this as a bug."}`},
	}})

	eng := New(st, ch, assistant, helpers)

	require.NoError(t, eng.HandleEvent(context.Background(), testEvent("the deploy is broken")))

	// Message recorded, reaction added, reply sent.
	assert.Equal(t, []string{"the deploy is broken"}, st.Messages("C1"))
	assert.Equal(t, []string{"bug"}, ch.ReactionEmojis())
	assert.Equal(t, []string{"Tracking this as a bug."}, ch.SentTexts())
}

func TestHandleEvent_DirectiveUpdateAndFollowUp(t *testing.T) {
	st := testutil.NewMemStore()
	ch := &testutil.RecordingChat{BotID: "UBOT"}
	helpers := &testutil.HelperModel{WebText: "n/a"}

	assistant := model.NewMockModel("assistant", "mock")
	assistant.QueueResponse(&model.Response{ID: "r1", Items: []model.OutputItem{
		model.FunctionCallItem{
			CallID:    "call-1",
			Name:      tool.SetChannelDirectiveName,
			Arguments: json.RawMessage(`{"message":"Answer in French."}`),
		},
	}})
	assistant.QueueResponse(&model.Response{ID: "r2", Items: []model.OutputItem{
		model.TextItem{Text: noActionText},
	}})

	eng := New(st, ch, assistant, helpers)

	require.NoError(t, eng.HandleEvent(context.Background(), testEvent("set your directive to answer in French")))

	assert.Equal(t, "Answer in French.", st.Directive("C1"))

	// The confirmation went back to the model as the next turn's input.
	require.Equal(t, 2, assistant.Calls())
	second := assistant.Requests()[1]
	assert.Equal(t, "r1", second.PreviousResponseID)
	require.Len(t, second.Segments, 1)
	assert.Contains(t, second.Segments[0].Text, "Directive updated.")
}

func TestHandleEvent_ContextAppend(t *testing.T) {
	st := testutil.NewMemStore()
	ch := &testutil.RecordingChat{BotID: "UBOT"}
	helpers := &testutil.HelperModel{WebText: "n/a"}

	assistant := model.NewMockModel("assistant", "mock")
	assistant.QueueResponse(&model.Response{ID: "r1", Items: []model.OutputItem{
		model.FunctionCallItem{
			CallID:    "call-1",
			Name:      tool.UpdateChannelContextName,
			Arguments: json.RawMessage(`{"message":"The on-call is @X"}`),
		},
	}})
	assistant.QueueResponse(&model.Response{ID: "r2", Items: []model.OutputItem{
		model.TextItem{Text: noActionText},
	}})

	eng := New(st, ch, assistant, helpers)

	require.NoError(t, eng.HandleEvent(context.Background(), testEvent("please remember that the on-call is @X")))

	notes := st.ContextNotes("C1")
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0], "@X")
	assert.Empty(t, st.Directive("C1"))
}

func TestHandleEvent_ToolErrorFedBack(t *testing.T) {
	st := testutil.NewMemStore()
	ch := &testutil.RecordingChat{BotID: "UBOT"}
	helpers := &testutil.HelperModel{WebText: "n/a"}
	invoker := &testutil.Invoker{Err: errors.New("subprocess exited")}
	registry := testutil.NewStaticToolset("lookup_ticket")

	assistant := model.NewMockModel("assistant", "mock")
	assistant.QueueResponse(&model.Response{ID: "r1", Items: []model.OutputItem{
		model.FunctionCallItem{CallID: "call-1", Name: "lookup_ticket", Arguments: json.RawMessage(`{}`)},
	}})
	assistant.QueueResponse(&model.Response{ID: "r2", Items: []model.OutputItem{
		model.TextItem{Text: noActionText},
	}})

	eng := New(st, ch, assistant, helpers, func(o *Options) {
		o.Toolset = registry
		o.Invoker = invoker
	})

	// A failing tool does not fail the pipeline; the error text goes back
	// to the model instead.
	require.NoError(t, eng.HandleEvent(context.Background(), testEvent("check TICKET-42")))

	assert.Equal(t, []string{"lookup_ticket"}, invoker.Invoked())
	require.Equal(t, 2, assistant.Calls())
	second := assistant.Requests()[1]
	require.Len(t, second.Segments, 1)
	assert.Contains(t, second.Segments[0].Text, "Tool invocation failed")
	assert.Contains(t, second.Segments[0].Text, "subprocess exited")
}

func TestHandleEvent_ToolSuccessFedBack(t *testing.T) {
	st := testutil.NewMemStore()
	ch := &testutil.RecordingChat{BotID: "UBOT"}
	helpers := &testutil.HelperModel{WebText: "n/a"}
	invoker := &testutil.Invoker{Output: json.RawMessage(`{"content":[{"type":"text","text":"open"}]}`)}
	registry := testutil.NewStaticToolset("lookup_ticket")

	assistant := model.NewMockModel("assistant", "mock")
	assistant.QueueResponse(&model.Response{ID: "r1", Items: []model.OutputItem{
		model.FunctionCallItem{CallID: "call-1", Name: "lookup_ticket", Arguments: json.RawMessage(`{"id":"TICKET-42"}`)},
	}})
	assistant.QueueResponse(&model.Response{ID: "r2", Items: []model.OutputItem{
		model.TextItem{Text: noActionText},
	}})

	eng := New(st, ch, assistant, helpers, func(o *Options) {
		o.Toolset = registry
		o.Invoker = invoker
	})

	require.NoError(t, eng.HandleEvent(context.Background(), testEvent("check TICKET-42")))

	second := assistant.Requests()[1]
	require.Len(t, second.Segments, 1)
	assert.Contains(t, second.Segments[0].Text, `"open"`)
}

func TestDispatch_Async(t *testing.T) {
	st := testutil.NewMemStore()
	ch := &testutil.RecordingChat{BotID: "UBOT"}
	helpers := &testutil.HelperModel{WebText: "n/a"}

	assistant := model.NewMockModel("assistant", "mock")
	assistant.QueueResponse(&model.Response{ID: "r1", Items: []model.OutputItem{
		model.TextItem{Text: noActionText},
	}})

	eng := New(st, ch, assistant, helpers)

	eng.Dispatch(context.Background(), testEvent("hello"))
	eng.Wait()

	assert.Equal(t, 1, assistant.Calls())
	assert.Equal(t, []string{"hello"}, st.Messages("C1"))
}
