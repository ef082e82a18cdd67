package core

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// CompiledContext is the ephemeral per-event aggregate consumed by the
// assistant driver. It is built fresh for every inbound event, never
// persisted, and owned exclusively by the orchestration call that created it.
type CompiledContext struct {
	// UserMessage is the serialized triggering message.
	UserMessage string
	// BotUserID identifies the bot on the chat platform.
	BotUserID string
	// ChannelID / ThreadID locate the triggering message.
	ChannelID string
	ThreadID  string
	// Directive is the channel's current standing instruction text.
	Directive string
	// ChannelContext is the accreted channel facts, serialized.
	ChannelContext string
	// ThreadContext is the thread history, serialized.
	ThreadContext string
	// WebSearchFindings is the web-search helper agent's output.
	WebSearchFindings string
	// MessageSearchFindings is the ranked message-search output (or the
	// no-relevant-messages sentinel).
	MessageSearchFindings string
	// Tools is the set of tools currently offered to the model.
	Tools []ToolDefinition
}
