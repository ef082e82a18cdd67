package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/twitchax/triage-bot/config"
	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/logging"
)

// Source wraps one configured tool source. The transport is established
// lazily on first use and cached for the process lifetime.
type Source struct {
	cfg    config.ToolSource
	logger logging.Logger

	mu        sync.Mutex
	transport transport
}

func newSource(cfg config.ToolSource, logger logging.Logger) *Source {
	return &Source{cfg: cfg, logger: logger}
}

// connect returns the cached transport, establishing and handshaking it on
// first use.
func (s *Source) connect(ctx context.Context) (transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport != nil {
		return s.transport, nil
	}

	var t transport
	switch s.cfg.Kind() {
	case config.SourceKindLocal:
		st, err := newStdioTransport(s.cfg.Command, s.cfg.Args, s.cfg.Env, s.logger)
		if err != nil {
			return nil, err
		}
		t = st
	case config.SourceKindRemote:
		t = newHTTPTransport(s.cfg.URL, s.cfg.Headers, s.logger)
	default:
		return nil, fmt.Errorf("tool source %q has unknown kind", s.cfg.Name)
	}

	if err := handshake(ctx, t, s.cfg.Name); err != nil {
		_ = t.Close()
		return nil, err
	}

	s.transport = t

	return t, nil
}

func (s *Source) listTools(ctx context.Context) ([]toolInfo, error) {
	t, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	var result toolsListResult
	if err := callMethod(ctx, t, s.cfg.Name, methodToolsList, nil, &result); err != nil {
		return nil, err
	}

	return result.Tools, nil
}

func (s *Source) call(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, error) {
	t, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	req := &jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      nextRequestID(),
		Method:  methodToolsCall,
		Params:  toolsCallParams{Name: name, Arguments: arguments},
	}

	resp, err := t.roundTrip(ctx, req)
	if err != nil {
		return nil, &Error{Tool: name, Message: err.Error(), Code: CodeTransport}
	}
	if resp.Error != nil {
		return nil, &Error{Tool: name, Message: resp.Error.Message, Code: CodeTransport, Details: resp.Error}
	}

	var result toolsCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, &Error{Tool: name, Message: fmt.Sprintf("failed to decode call result: %v", err), Code: CodeTransport}
	}

	if result.IsError {
		return nil, &Error{Tool: name, Message: result.text(), Code: CodeExecution}
	}

	return json.RawMessage(resp.Result), nil
}

func (s *Source) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport == nil {
		return nil
	}
	err := s.transport.Close()
	s.transport = nil
	return err
}

// RegisteredTool is one externally registered tool: its declarative surface
// plus a handle to the source that serves it.
type RegisteredTool struct {
	Name        string
	Description string
	Parameters  map[string]any
	source      *Source
}

// Definition converts the tool to the shape offered to models.
func (t *RegisteredTool) Definition() core.ToolDefinition {
	return core.ToolDefinition{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
}

// Registry is the flat, name-keyed collection of externally registered tools.
// Built once at startup; read-mostly and safe for concurrent use afterwards.
type Registry struct {
	logger  logging.Logger
	sources []*Source
	tools   map[string]*RegisteredTool
}

// RegistryOptions configures tool discovery.
type RegistryOptions struct {
	Logger logging.Logger
	// DiscoveryTimeout bounds the whole discovery step.
	DiscoveryTimeout time.Duration
}

// Discover connects to every configured source concurrently, lists each
// source's tools and aggregates them into one registry. A failure at any
// source fails the whole discovery; no partial registry is returned.
func Discover(ctx context.Context, sources []config.ToolSource, optFns ...func(o *RegistryOptions)) (*Registry, error) {
	opts := RegistryOptions{
		Logger:           logging.NoOpLogger{},
		DiscoveryTimeout: 30 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.DiscoveryTimeout)
	defer cancel()

	reg := &Registry{
		logger: opts.Logger,
		tools:  make(map[string]*RegisteredTool),
	}

	type sourceTools struct {
		source *Source
		tools  []toolInfo
	}

	results := make([]sourceTools, len(sources))
	g, gctx := errgroup.WithContext(ctx)

	for i, cfg := range sources {
		src := newSource(cfg, opts.Logger)
		reg.sources = append(reg.sources, src)

		g.Go(func() error {
			tools, err := src.listTools(gctx)
			if err != nil {
				return fmt.Errorf("discovery failed for tool source %q: %w", cfg.Name, err)
			}
			results[i] = sourceTools{source: src, tools: tools}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		_ = reg.Close()
		return nil, err
	}

	for _, result := range results {
		for _, info := range result.tools {
			if IsBuiltin(info.Name) {
				_ = reg.Close()
				return nil, fmt.Errorf("tool source %q registers reserved name %q", result.source.cfg.Name, info.Name)
			}
			reg.tools[info.Name] = &RegisteredTool{
				Name:        info.Name,
				Description: info.Description,
				Parameters:  info.InputSchema,
				source:      result.source,
			}
		}
	}

	opts.Logger.Info("tool.registry.discovered", "sources", len(sources), "tools", len(reg.tools))

	return reg, nil
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Definitions returns all registered tools in the shape offered to models.
func (r *Registry) Definitions() []core.ToolDefinition {
	defs := make([]core.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

// Invoke looks up the owning source's cached transport and issues a
// synchronous call/response exchange. The returned value is opaque JSON
// passed back to the assistant driver as the tool's output.
func (r *Registry) Invoke(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, &Error{Tool: name, Message: "tool is not registered", Code: CodeValidation}
	}

	start := time.Now()
	result, err := t.source.call(ctx, name, arguments)
	if err != nil {
		r.logger.Error("tool.invoke.failed", "tool", name, "duration_ms", time.Since(start).Milliseconds(), "error", err.Error())
		return nil, err
	}

	r.logger.Info("tool.invoke.success", "tool", name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// Close tears down every established transport.
func (r *Registry) Close() error {
	var firstErr error
	for _, src := range r.sources {
		if err := src.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
