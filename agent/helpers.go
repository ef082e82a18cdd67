package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/twitchax/triage-bot/logging"
	"github.com/twitchax/triage-bot/model"
)

const webSearchInstructions = `You are a research assistant for a chat triage bot. ` +
	`Use web search to find information relevant to the user's message, taking the ` +
	`channel directive and recent conversation into account. Summarize your findings ` +
	`concisely. If nothing on the web is relevant, say so in one sentence.`

const messageSearchInstructions = `You are a search-term generator for a chat triage bot. ` +
	`Given the user's message and surrounding context, produce a comma-separated list of ` +
	`search terms that would locate related messages in the channel history. Respond with ` +
	`the terms only, no prose. If no search is warranted, respond with an empty string.`

// HelperContext is the slice of the compiled context that the helper agents
// receive. Both helpers see the same inputs.
type HelperContext struct {
	UserMessage    string
	BotUserID      string
	ChannelID      string
	Directive      string
	ChannelContext string
	ThreadContext  string
}

func (h HelperContext) segments() []model.Segment {
	return []model.Segment{
		{Label: "Bot User ID", Text: h.BotUserID},
		{Label: "Channel ID", Text: h.ChannelID},
		{Label: "Channel Directive", Text: h.Directive},
		{Label: "Channel Context", Text: h.ChannelContext},
		{Label: "Thread Context", Text: h.ThreadContext},
		{Label: "User Message", Text: h.UserMessage},
	}
}

// HelperOptions configures a helper agent.
type HelperOptions struct {
	// Logger receives helper activity. Defaults to a no-op logger.
	Logger logging.Logger
}

// WebSearchAgent asks a model with web search enabled to gather outside
// information relevant to the triggering message.
type WebSearchAgent struct {
	model  model.Model
	logger logging.Logger
}

// NewWebSearchAgent creates a web-search helper backed by the given model.
func NewWebSearchAgent(m model.Model, optFns ...func(o *HelperOptions)) *WebSearchAgent {
	opts := HelperOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &WebSearchAgent{model: m, logger: opts.Logger}
}

// Search runs the helper and returns a prose summary of web findings.
func (a *WebSearchAgent) Search(ctx context.Context, hc HelperContext) (string, error) {
	resp, err := a.model.Generate(ctx, model.Request{
		Instructions:    webSearchInstructions,
		Segments:        hc.segments(),
		EnableWebSearch: true,
	})
	if err != nil {
		return "", fmt.Errorf("web search helper: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	a.logger.Debug("helper.websearch.done", "channel_id", hc.ChannelID, "chars", len(text))
	return text, nil
}

// MessageSearchAgent asks a model to distill the event into search terms for
// the channel message history.
type MessageSearchAgent struct {
	model  model.Model
	logger logging.Logger
}

// NewMessageSearchAgent creates a message-search helper backed by the given model.
func NewMessageSearchAgent(m model.Model, optFns ...func(o *HelperOptions)) *MessageSearchAgent {
	opts := HelperOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &MessageSearchAgent{model: m, logger: opts.Logger}
}

// Terms runs the helper and returns a comma-separated list of search terms.
// The list may be empty when the helper decides no search is warranted.
func (a *MessageSearchAgent) Terms(ctx context.Context, hc HelperContext) (string, error) {
	resp, err := a.model.Generate(ctx, model.Request{
		Instructions: messageSearchInstructions,
		Segments:     hc.segments(),
	})
	if err != nil {
		return "", fmt.Errorf("message search helper: %w", err)
	}

	terms := strings.TrimSpace(resp.Text())
	a.logger.Debug("helper.messagesearch.done", "channel_id", hc.ChannelID, "terms", terms)
	return terms, nil
}

// emptyTerms reports whether a term list contains nothing searchable, i.e.
// it is empty once commas and whitespace are removed.
func emptyTerms(terms string) bool {
	stripped := strings.Map(func(r rune) rune {
		if r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, terms)
	return stripped == ""
}
