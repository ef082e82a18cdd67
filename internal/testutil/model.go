package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/model"
)

// HelperModel answers the two context helpers deterministically even when
// they run concurrently, by switching on the request's web-search flag.
type HelperModel struct {
	mu sync.Mutex

	// WebText is the web-search helper's answer; WebErr makes it fail.
	WebText string
	WebErr  error

	// TermText is the message-search helper's term list; TermErr makes it fail.
	TermText string
	TermErr  error

	calls int
}

func (m *HelperModel) Generate(_ context.Context, req model.Request) (*model.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if req.EnableWebSearch {
		if m.WebErr != nil {
			return nil, m.WebErr
		}
		return &model.Response{
			ID:    "helper-web",
			Items: []model.OutputItem{model.TextItem{Text: m.WebText}},
		}, nil
	}

	if m.TermErr != nil {
		return nil, m.TermErr
	}
	return &model.Response{
		ID:    "helper-terms",
		Items: []model.OutputItem{model.TextItem{Text: m.TermText}},
	}, nil
}

func (m *HelperModel) Info() model.Info {
	return model.Info{Name: "helper-double", Provider: "mock"}
}

// Calls returns the number of Generate invocations recorded so far.
func (m *HelperModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// StaticToolset exposes a fixed tool list to the driver and parser.
type StaticToolset struct {
	Defs []core.ToolDefinition
}

// NewStaticToolset builds a toolset of named tools with empty schemas.
func NewStaticToolset(names ...string) *StaticToolset {
	defs := make([]core.ToolDefinition, 0, len(names))
	for _, n := range names {
		defs = append(defs, core.ToolDefinition{Name: n})
	}
	return &StaticToolset{Defs: defs}
}

func (t *StaticToolset) Has(name string) bool {
	for _, d := range t.Defs {
		if d.Name == name {
			return true
		}
	}
	return false
}

func (t *StaticToolset) Definitions() []core.ToolDefinition {
	return t.Defs
}

// Invoker implements the tool invoker contract with a scripted outcome,
// recording invoked tool names.
type Invoker struct {
	mu sync.Mutex

	// Output is returned by Invoke when Err is nil.
	Output json.RawMessage

	// Err makes Invoke fail.
	Err error

	names []string
}

func (f *Invoker) Invoke(_ context.Context, name string, _ json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Output, nil
}

// Invoked returns the invoked tool names in call order.
func (f *Invoker) Invoked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}
