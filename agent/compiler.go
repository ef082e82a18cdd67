package agent

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/twitchax/triage-bot/chat"
	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/logging"
	"github.com/twitchax/triage-bot/model"
	"github.com/twitchax/triage-bot/store"
)

// Compiler gathers everything the assistant needs to handle one chat event:
// the stored channel directive and context, the thread history from the chat
// service, and the findings of the two helper agents.
type Compiler struct {
	store         store.Store
	chat          chat.Service
	webSearch     *WebSearchAgent
	messageSearch *MessageSearchAgent
	logger        logging.Logger
}

// CompilerOptions configures a Compiler.
type CompilerOptions struct {
	// Logger receives compiler activity. Defaults to a no-op logger.
	Logger logging.Logger
}

// NewCompiler creates a Compiler. The helper model is used for both helper
// agents; callers typically pass a retry-wrapped model.
func NewCompiler(st store.Store, ch chat.Service, helperModel model.Model, optFns ...func(o *CompilerOptions)) *Compiler {
	opts := CompilerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Compiler{
		store:         st,
		chat:          ch,
		webSearch:     NewWebSearchAgent(helperModel, func(o *HelperOptions) { o.Logger = opts.Logger }),
		messageSearch: NewMessageSearchAgent(helperModel, func(o *HelperOptions) { o.Logger = opts.Logger }),
		logger:        opts.Logger,
	}
}

// Compile assembles the full context for an event. The two helper agents run
// concurrently; the first failure cancels the other and fails the whole
// compilation, so a partially compiled context is never returned.
func (c *Compiler) Compile(ctx context.Context, event core.ChatEvent, botUserID string) (*core.CompiledContext, error) {
	channel, err := c.store.GetOrCreateChannel(ctx, event.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("load channel: %w", err)
	}

	channelContext, err := c.store.GetContext(ctx, event.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("load channel context: %w", err)
	}

	threadContext, err := c.chat.GetThreadContext(ctx, event.ChannelID, event.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("load thread context: %w", err)
	}

	hc := HelperContext{
		UserMessage:    event.Text,
		BotUserID:      botUserID,
		ChannelID:      event.ChannelID,
		Directive:      channel.Directive.Notes,
		ChannelContext: channelContext,
		ThreadContext:  threadContext,
	}

	var webFindings, messageFindings string

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		findings, err := c.webSearch.Search(gctx, hc)
		if err != nil {
			return err
		}
		webFindings = findings
		return nil
	})

	g.Go(func() error {
		terms, err := c.messageSearch.Terms(gctx, hc)
		if err != nil {
			return err
		}
		if emptyTerms(terms) {
			messageFindings = store.NoRelevantMessages
			return nil
		}
		findings, err := c.store.SearchMessages(gctx, event.ChannelID, terms)
		if err != nil {
			return fmt.Errorf("search messages: %w", err)
		}
		messageFindings = findings
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compile context: %w", err)
	}

	c.logger.Debug("compiler.done",
		"channel_id", event.ChannelID,
		"web_chars", len(webFindings),
		"message_chars", len(messageFindings),
	)

	return &core.CompiledContext{
		UserMessage:           event.Text,
		BotUserID:             botUserID,
		ChannelID:             event.ChannelID,
		ThreadID:              event.ThreadID,
		Directive:             channel.Directive.Notes,
		ChannelContext:        channelContext,
		ThreadContext:         threadContext,
		WebSearchFindings:     webFindings,
		MessageSearchFindings: messageFindings,
	}, nil
}
