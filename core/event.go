package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChatEvent is an inbound message from the chat platform. After construction
// it should be treated as immutable. It captures:
//   - Correlation (ID, ChannelID, ThreadID)
//   - The author and message body
//   - The raw platform payload (kept opaque for persistence)
//   - High precision UTC timestamp
//
// ThreadID may equal the message's own timestamp when the message starts a
// new thread.
type ChatEvent struct {
	ID        string          `json:"id"`
	ChannelID string          `json:"channel_id"`
	ThreadID  string          `json:"thread_id"`
	UserID    string          `json:"user_id"`
	Text      string          `json:"text"`
	Raw       json.RawMessage `json:"raw,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewChatEvent creates a chat event with a fresh id and UTC timestamp.
func NewChatEvent(channelID, threadID, userID, text string, raw json.RawMessage) ChatEvent {
	return ChatEvent{
		ID:        NewID(),
		ChannelID: channelID,
		ThreadID:  threadID,
		UserID:    userID,
		Text:      text,
		Raw:       raw,
		Timestamp: time.Now().UTC(),
	}
}

// NewID generates a new unique identifier.
func NewID() string { return uuid.NewString() }
