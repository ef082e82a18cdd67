// Package triagebot provides a high-level façade over the triage pipeline:
// configuration, storage, chat, models, tool discovery and the orchestration
// engine. Most applications interact with this package by:
//  1. Loading a config.Config (config.Load or DefaultConfig)
//  2. Creating a Bot via New() (optionally overriding collaborators)
//  3. Feeding inbound chat events to Dispatch
//
// The façade delegates orchestration to engine.Engine while keeping setup
// ergonomics concise. Collaborator overrides are intended for tests and for
// embedding the pipeline behind a different chat platform.
package triagebot

import (
	"context"
	"errors"
	"fmt"

	"github.com/twitchax/triage-bot/chat"
	"github.com/twitchax/triage-bot/config"
	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/engine"
	"github.com/twitchax/triage-bot/logging"
	"github.com/twitchax/triage-bot/metrics"
	"github.com/twitchax/triage-bot/model"
	"github.com/twitchax/triage-bot/model/anthropic"
	"github.com/twitchax/triage-bot/model/openai"
	"github.com/twitchax/triage-bot/store"
	"github.com/twitchax/triage-bot/tool"
)

// Options overrides collaborators that New would otherwise build from the
// configuration.
type Options struct {
	// Store overrides the SQLite store.
	Store store.Store

	// Chat overrides the Slack service.
	Chat chat.Service

	// AssistantModel overrides the configured assistant model. The override
	// is used as-is; wrap it in model.NewRetryModel yourself if needed.
	AssistantModel model.Model

	// HelperModel overrides the configured helper model, same contract as
	// AssistantModel.
	HelperModel model.Model

	// Recorder overrides the metrics recorder. Nil with metrics disabled in
	// the config means no recording.
	Recorder *metrics.Recorder

	// Logger overrides the logger built from the config's log section.
	Logger logging.Logger
}

// Bot aggregates the wired pipeline and owns the lifecycle of its
// collaborators.
type Bot struct {
	cfg      *config.Config
	engine   *engine.Engine
	registry *tool.Registry
	store    store.Store
	chat     chat.Service
	recorder *metrics.Recorder
	logger   logging.Logger
}

// New wires a Bot from the configuration. Tool discovery runs eagerly; a
// failure at any configured source fails construction.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Bot, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(&logging.LoggerConfig{
			Level:     logging.ParseLogLevel(cfg.Log.Level),
			Format:    cfg.Log.Format,
			Output:    logging.DefaultLoggerConfig().Output,
			AddSource: false,
			Component: "triage-bot",
		})
	}

	st := opts.Store
	ownStore := st == nil
	if st == nil {
		var err error
		st, err = store.NewSQLiteStore(cfg.Store.Path, func(o *store.SQLiteOptions) {
			o.Logger = logger
		})
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	ch := opts.Chat
	if ch == nil {
		ch = chat.NewSlackService(cfg.Chat.BotToken, func(o *chat.SlackOptions) {
			o.Logger = logger
		})
	}

	recorder := opts.Recorder
	if recorder == nil && cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder()
	}

	assistant := opts.AssistantModel
	if assistant == nil {
		var err error
		assistant, err = buildRetryModel(cfg.Model, logger, recorder)
		if err != nil {
			return nil, fmt.Errorf("assistant model: %w", err)
		}
	}

	helper := opts.HelperModel
	if helper == nil {
		var err error
		helper, err = buildRetryModel(cfg.HelperModel, logger, recorder)
		if err != nil {
			return nil, fmt.Errorf("helper model: %w", err)
		}
	}

	registry, err := tool.Discover(ctx, cfg.Tools, func(o *tool.RegistryOptions) {
		o.Logger = logger
	})
	if err != nil {
		if ownStore {
			_ = st.Close()
		}
		return nil, fmt.Errorf("discover tools: %w", err)
	}

	eng := engine.New(st, ch, assistant, helper, func(o *engine.Options) {
		o.Toolset = registry
		o.Invoker = registry
		o.Recorder = recorder
		o.Logger = logger
	})

	return &Bot{
		cfg:      cfg,
		engine:   eng,
		registry: registry,
		store:    st,
		chat:     ch,
		recorder: recorder,
		logger:   logger,
	}, nil
}

// buildRetryModel builds the configured provider adapter and wraps it with
// retry, logging and retry-count metrics.
func buildRetryModel(mc config.ModelConfig, logger logging.Logger, recorder *metrics.Recorder) (model.Model, error) {
	inner, err := buildModel(mc)
	if err != nil {
		return nil, err
	}
	info := inner.Info()
	return model.NewRetryModel(inner, func(o *model.RetryOptions) {
		o.Logger = logger
		o.OnRetry = func() { recorder.IncModelRetry(info.Provider) }
		o.OnResult = func(success bool, usage *model.TokenUsage) {
			var in, out int64
			if usage != nil {
				in, out = int64(usage.PromptTokens), int64(usage.CompletionTokens)
			}
			recorder.ObserveModelRequest(info.Provider, info.Name, success, in, out)
		}
	}), nil
}

// buildModel maps a model config section to a provider adapter.
func buildModel(mc config.ModelConfig) (model.Model, error) {
	switch mc.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			if mc.MaxOutputTokens > 0 {
				o.MaxOutputTokens = mc.MaxOutputTokens
			}
			o.APIKey = mc.APIKey
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			if mc.MaxOutputTokens > 0 {
				o.MaxTokens = mc.MaxOutputTokens
			}
			o.APIKey = mc.APIKey
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}

// Dispatch hands an inbound chat event to the engine asynchronously.
func (b *Bot) Dispatch(ctx context.Context, event core.ChatEvent) {
	b.engine.Dispatch(ctx, event)
}

// HandleEvent runs the pipeline for one event synchronously. Primarily for
// tests and batch-style callers.
func (b *Bot) HandleEvent(ctx context.Context, event core.ChatEvent) error {
	return b.engine.HandleEvent(ctx, event)
}

// Engine exposes the underlying engine, e.g. to Wait on shutdown.
func (b *Bot) Engine() *engine.Engine { return b.engine }

// Config returns the configuration the Bot was built from.
func (b *Bot) Config() *config.Config { return b.cfg }

// Close waits for in-flight events and releases the tool transports and the
// storage handle.
func (b *Bot) Close() error {
	b.engine.Wait()

	var errs []error
	if b.registry != nil {
		if err := b.registry.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close registry: %w", err))
		}
	}
	if err := b.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
