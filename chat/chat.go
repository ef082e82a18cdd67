// Package chat defines the chat platform contract consumed by the
// orchestration engine and provides the Slack-backed production
// implementation.
package chat

import "context"

// Service is the chat collaborator contract. Implementations must be safe
// for concurrent use from many goroutines.
type Service interface {
	// SendMessage posts text into the given thread of a channel.
	SendMessage(ctx context.Context, channelID, threadID, text string) error

	// ReactToMessage adds an emoji reaction to the message identified by its
	// thread timestamp.
	ReactToMessage(ctx context.Context, channelID, threadID, emoji string) error

	// GetThreadContext returns the thread history serialized for prompting.
	GetThreadContext(ctx context.Context, channelID, threadID string) (string, error)

	// BotUserID returns the bot's own user id on the platform.
	BotUserID(ctx context.Context) (string, error)
}
