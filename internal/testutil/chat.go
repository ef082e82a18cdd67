package testutil

import (
	"context"
	"errors"
	"sync"
)

// Message is one recorded SendMessage call.
type Message struct {
	ChannelID string
	ThreadID  string
	Text      string
}

// Reaction is one recorded ReactToMessage call.
type Reaction struct {
	ChannelID string
	ThreadID  string
	Emoji     string
}

// RecordingChat implements the chat service contract in memory. Configure
// BotID and ThreadText before use; SendMessage and ReactToMessage calls are
// recorded for assertions.
type RecordingChat struct {
	mu sync.Mutex

	// BotID is returned by BotUserID. An empty value makes BotUserID fail.
	BotID string

	// ThreadText is returned by GetThreadContext for every thread.
	ThreadText string

	sent      []Message
	reactions []Reaction
}

func (c *RecordingChat) SendMessage(_ context.Context, channelID, threadID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, Message{ChannelID: channelID, ThreadID: threadID, Text: text})
	return nil
}

func (c *RecordingChat) ReactToMessage(_ context.Context, channelID, threadID, emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactions = append(c.reactions, Reaction{ChannelID: channelID, ThreadID: threadID, Emoji: emoji})
	return nil
}

func (c *RecordingChat) GetThreadContext(_ context.Context, _, _ string) (string, error) {
	return c.ThreadText, nil
}

func (c *RecordingChat) BotUserID(_ context.Context) (string, error) {
	if c.BotID == "" {
		return "", errors.New("no bot user id configured")
	}
	return c.BotID, nil
}

// Sent returns a copy of the recorded messages in call order.
func (c *RecordingChat) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}

// SentTexts returns just the message bodies in call order.
func (c *RecordingChat) SentTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sent))
	for _, m := range c.sent {
		out = append(out, m.Text)
	}
	return out
}

// Reactions returns a copy of the recorded reactions in call order.
func (c *RecordingChat) Reactions() []Reaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Reaction, len(c.reactions))
	copy(out, c.reactions)
	return out
}

// ReactionEmojis returns just the reaction emoji names in call order.
func (c *RecordingChat) ReactionEmojis() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.reactions))
	for _, r := range c.reactions {
		out = append(out, r.Emoji)
	}
	return out
}
