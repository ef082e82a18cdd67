package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/internal/testutil"
	"github.com/twitchax/triage-bot/store"
)

func newTestEvent(channelID, text string) core.ChatEvent {
	return core.NewChatEvent(channelID, "1724000000.000100", "U100", text, nil)
}

func TestCompile_Success(t *testing.T) {
	st := testutil.NewMemStore()
	st.SearchResult = "- deploy broke again\n"
	ch := &testutil.RecordingChat{BotID: "UBOT", ThreadText: "[1] U100: earlier message"}
	helper := &testutil.HelperModel{WebText: "web findings here", TermText: "deploy, outage"}

	compiler := NewCompiler(st, ch, helper)

	compiled, err := compiler.Compile(context.Background(), newTestEvent("C1", "the deploy is broken"), "UBOT")
	require.NoError(t, err)

	assert.Equal(t, "the deploy is broken", compiled.UserMessage)
	assert.Equal(t, "UBOT", compiled.BotUserID)
	assert.Equal(t, "C1", compiled.ChannelID)
	assert.Equal(t, core.DirectiveUnsetNotes, compiled.Directive)
	assert.Equal(t, "[1] U100: earlier message", compiled.ThreadContext)
	assert.Equal(t, "web findings here", compiled.WebSearchFindings)
	assert.Equal(t, "- deploy broke again\n", compiled.MessageSearchFindings)

	// The search ran once with the helper's terms.
	require.Equal(t, []string{"deploy, outage"}, st.SearchTerms())
}

func TestCompile_HelperFailureFailsWhole(t *testing.T) {
	st := testutil.NewMemStore()
	ch := &testutil.RecordingChat{BotID: "UBOT"}
	helper := &testutil.HelperModel{WebErr: errors.New("provider unavailable"), TermText: "deploy"}

	compiler := NewCompiler(st, ch, helper)

	compiled, err := compiler.Compile(context.Background(), newTestEvent("C1", "hello"), "UBOT")
	require.Error(t, err)
	assert.Nil(t, compiled)
	assert.Contains(t, err.Error(), "compile context")
}

func TestCompile_MessageSearchFailureFailsWhole(t *testing.T) {
	st := testutil.NewMemStore()
	ch := &testutil.RecordingChat{BotID: "UBOT"}
	helper := &testutil.HelperModel{WebText: "fine", TermErr: errors.New("provider unavailable")}

	compiler := NewCompiler(st, ch, helper)

	_, err := compiler.Compile(context.Background(), newTestEvent("C1", "hello"), "UBOT")
	require.Error(t, err)
	assert.Zero(t, st.SearchCalls())
}

func TestCompile_EmptyTermsShortCircuit(t *testing.T) {
	for _, terms := range []string{"", " , ,, ", "\t\n"} {
		st := testutil.NewMemStore()
		ch := &testutil.RecordingChat{BotID: "UBOT"}
		helper := &testutil.HelperModel{WebText: "fine", TermText: terms}

		compiler := NewCompiler(st, ch, helper)

		compiled, err := compiler.Compile(context.Background(), newTestEvent("C1", "hello"), "UBOT")
		require.NoError(t, err, "terms %q", terms)

		// No storage search happens and the sentinel is used directly.
		assert.Zero(t, st.SearchCalls(), "terms %q", terms)
		assert.Equal(t, store.NoRelevantMessages, compiled.MessageSearchFindings, "terms %q", terms)
	}
}

func TestEmptyTerms(t *testing.T) {
	assert.True(t, emptyTerms(""))
	assert.True(t, emptyTerms("  "))
	assert.True(t, emptyTerms(",,,"))
	assert.True(t, emptyTerms(" , \t,\n, "))
	assert.False(t, emptyTerms("deploy"))
	assert.False(t, emptyTerms(" , deploy , "))
}
