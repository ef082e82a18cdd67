package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitchax/triage-bot/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetOrCreateChannelInstallsSentinel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ch, err := s.GetOrCreateChannel(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "C1", ch.ID)
	assert.Equal(t, core.DirectiveUnsetNotes, ch.Directive.Notes)

	// Second call returns the existing record, not a new sentinel.
	require.NoError(t, s.UpdateDirective(ctx, "C1", nil, "be terse"))
	ch, err = s.GetOrCreateChannel(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "be terse", ch.Directive.Notes)
}

func TestDirectiveReplacedContextAppended(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateDirective(ctx, "C1", nil, "A"))
	require.NoError(t, s.UpdateDirective(ctx, "C1", nil, "B"))

	ch, err := s.GetOrCreateChannel(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "B", ch.Directive.Notes)

	require.NoError(t, s.AppendContext(ctx, "C1", nil, "A"))
	require.NoError(t, s.AppendContext(ctx, "C1", nil, "B"))

	entries, err := s.ContextEntries(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "A", entries[0].Notes)
	assert.Equal(t, "B", entries[1].Notes)
}

func TestGetContextSerialization(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	text, err := s.GetContext(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, NoContextRecorded, text)

	require.NoError(t, s.AppendContext(ctx, "C1", nil, "on-call is @alice"))
	text, err = s.GetContext(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "- on-call is @alice", text)
}

func TestSearchMessagesRanking(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "C1", nil, "deploy failed on staging"))
	require.NoError(t, s.AppendMessage(ctx, "C1", nil, "deploy failed and rollback failed"))
	require.NoError(t, s.AppendMessage(ctx, "C1", nil, "lunch plans"))
	require.NoError(t, s.AppendMessage(ctx, "C2", nil, "deploy failed elsewhere"))

	result, err := s.SearchMessages(ctx, "C1", "deploy, rollback")
	require.NoError(t, err)

	// Two-term match ranks above single-term; other channel excluded.
	assert.Contains(t, result, "rollback failed")
	assert.Contains(t, result, "staging")
	assert.NotContains(t, result, "lunch")
	assert.NotContains(t, result, "elsewhere")
	assert.Less(t, strings.Index(result, "rollback failed"), strings.Index(result, "staging"))
}

func TestSearchMessagesNoMatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "C1", nil, "hello world"))

	result, err := s.SearchMessages(ctx, "C1", "kubernetes")
	require.NoError(t, err)
	assert.Equal(t, NoRelevantMessages, result)

	// Degenerate term strings never hit the database meaningfully.
	result, err = s.SearchMessages(ctx, "C1", " , ,, ")
	require.NoError(t, err)
	assert.Equal(t, NoRelevantMessages, result)
}

func TestSearchMessagesCap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < searchResultLimit+10; i++ {
		require.NoError(t, s.AppendMessage(ctx, "C1", nil, fmt.Sprintf("incident report %d", i)))
	}

	result, err := s.SearchMessages(ctx, "C1", "incident")
	require.NoError(t, err)

	lines := 1
	for _, r := range result {
		if r == '\n' {
			lines++
		}
	}
	assert.Equal(t, searchResultLimit, lines)
}
