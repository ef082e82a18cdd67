// Package store defines the persistence contract consumed by the
// orchestration engine and provides the SQLite-backed production
// implementation.
package store

import (
	"context"
	"encoding/json"

	"github.com/twitchax/triage-bot/core"
)

// NoRelevantMessages is returned by message search when nothing matches and
// by the context compiler when no search is issued at all.
const NoRelevantMessages = "No relevant messages found."

// NoContextRecorded is the serialized channel context when a channel has no
// entries yet.
const NoContextRecorded = "No context recorded."

// Store is the storage collaborator contract. Implementations must be safe
// for concurrent use from many goroutines; concurrent writes to the same
// channel resolve last-write-wins.
type Store interface {
	// GetOrCreateChannel returns the channel record, creating it with the
	// unset directive sentinel on first reference.
	GetOrCreateChannel(ctx context.Context, channelID string) (core.Channel, error)

	// UpdateDirective replaces the channel's directive wholesale.
	UpdateDirective(ctx context.Context, channelID string, raw json.RawMessage, notes string) error

	// AppendContext records one new context entry for the channel.
	AppendContext(ctx context.Context, channelID string, raw json.RawMessage, notes string) error

	// GetContext returns the channel's context entries serialized for
	// prompting, oldest first.
	GetContext(ctx context.Context, channelID string) (string, error)

	// ContextEntries returns the channel's raw context entries, oldest first.
	ContextEntries(ctx context.Context, channelID string) ([]core.ChannelContextEntry, error)

	// AppendMessage records an inbound message so it becomes searchable.
	AppendMessage(ctx context.Context, channelID string, raw json.RawMessage, text string) error

	// SearchMessages runs a ranked full-text search over recorded messages.
	// Terms are comma separated and OR-combined; each message scores the sum
	// of its per-term matches, results are capped at 50, highest score first.
	SearchMessages(ctx context.Context, channelID, terms string) (string, error)

	// Close releases the underlying storage handle.
	Close() error
}
