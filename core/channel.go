package core

import (
	"encoding/json"
	"time"
)

// DirectiveUnsetNotes is the sentinel directive text a channel carries until
// an explicit set-directive action replaces it.
const DirectiveUnsetNotes = "No directive set."

// ChannelDirective is the single standing instruction set for a channel.
// It is mutated only by an explicit set-directive action and always replaced
// wholesale, never appended. Raw preserves the triggering platform message.
type ChannelDirective struct {
	Raw       json.RawMessage `json:"raw,omitempty"`
	Notes     string          `json:"notes"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ChannelContextEntry is one accreted fact about a channel. Entries share the
// directive's shape but are append-only and ordered by creation.
type ChannelContextEntry struct {
	Raw       json.RawMessage `json:"raw,omitempty"`
	Notes     string          `json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
}

// Channel is the persisted record for one chat channel. A channel record
// exists once the channel has been referenced; creation installs the unset
// directive sentinel.
type Channel struct {
	ID        string           `json:"id"`
	Directive ChannelDirective `json:"directive"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewChannel returns a channel record with the unset directive sentinel.
func NewChannel(id string) Channel {
	now := time.Now().UTC()
	return Channel{
		ID:        id,
		Directive: ChannelDirective{Notes: DirectiveUnsetNotes, UpdatedAt: now},
		CreatedAt: now,
	}
}
