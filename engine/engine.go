package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/twitchax/triage-bot/agent"
	"github.com/twitchax/triage-bot/chat"
	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/logging"
	"github.com/twitchax/triage-bot/metrics"
	"github.com/twitchax/triage-bot/model"
	"github.com/twitchax/triage-bot/store"
)

// ToolInvoker is the slice of the tool registry the dispatcher needs.
// *tool.Registry satisfies it.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, error)
}

// Engine coordinates one triage pipeline: storage, chat, helper agents,
// assistant driver, and tool registry. Safe for concurrent use.
type Engine struct {
	store    store.Store
	chat     chat.Service
	compiler *agent.Compiler
	driver   *agent.Driver
	invoker  ToolInvoker
	recorder *metrics.Recorder
	logger   logging.Logger

	wg sync.WaitGroup
}

// Options configures an Engine.
type Options struct {
	// Toolset supplies registered tools to the assistant driver and the
	// dispatcher. Nil means built-ins only.
	Toolset agent.Toolset

	// Invoker executes registered tool calls. Usually the same value as
	// Toolset (the registry implements both).
	Invoker ToolInvoker

	// Recorder receives pipeline metrics. Nil disables recording.
	Recorder *metrics.Recorder

	// Logger receives engine activity. Defaults to a no-op logger.
	Logger logging.Logger
}

// New wires an Engine from its collaborators. The assistant model handles
// the main conversation; the helper model serves the two context helpers.
// Both are typically retry-wrapped.
func New(st store.Store, ch chat.Service, assistantModel, helperModel model.Model, optFns ...func(o *Options)) *Engine {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	compiler := agent.NewCompiler(st, ch, helperModel, func(o *agent.CompilerOptions) {
		o.Logger = opts.Logger
	})
	driver := agent.NewDriver(assistantModel, func(o *agent.DriverOptions) {
		o.Toolset = opts.Toolset
		o.Logger = opts.Logger
	})

	return &Engine{
		store:    st,
		chat:     ch,
		compiler: compiler,
		driver:   driver,
		invoker:  opts.Invoker,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

// Dispatch handles the event on its own goroutine and returns immediately.
// Failures are logged, not returned; there is no ordering guarantee between
// events on the same channel.
func (e *Engine) Dispatch(ctx context.Context, event core.ChatEvent) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		start := time.Now()

		err := e.HandleEvent(ctx, event)
		e.recorder.ObserveEvent(err == nil, time.Since(start))
		if err != nil {
			e.logger.Error("engine.event.failed",
				"channel_id", event.ChannelID,
				"event_id", event.ID,
				"error", err,
			)
			return
		}
		e.logger.Info("engine.event.handled",
			"channel_id", event.ChannelID,
			"event_id", event.ID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()
}

// Wait blocks until all dispatched events have finished. Used on shutdown.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// HandleEvent runs the full pipeline for one event synchronously.
func (e *Engine) HandleEvent(ctx context.Context, event core.ChatEvent) error {
	botUserID, err := e.chat.BotUserID(ctx)
	if err != nil {
		return fmt.Errorf("resolve bot user id: %w", err)
	}

	// The bot's own messages must not feed back into the pipeline.
	if event.UserID == botUserID {
		e.logger.Debug("engine.event.self_skipped", "event_id", event.ID)
		return nil
	}

	if _, err := e.store.GetOrCreateChannel(ctx, event.ChannelID); err != nil {
		return fmt.Errorf("ensure channel: %w", err)
	}
	if err := e.store.AppendMessage(ctx, event.ChannelID, event.Raw, event.Text); err != nil {
		return fmt.Errorf("record message: %w", err)
	}

	compiled, err := e.compiler.Compile(ctx, event, botUserID)
	if err != nil {
		return err
	}

	dispatcher := newDispatcher(e.store, e.chat, e.invoker, e.recorder, e.logger, event)
	return e.driver.Run(ctx, compiled, dispatcher.dispatch)
}
