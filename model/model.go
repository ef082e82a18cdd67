package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/twitchax/triage-bot/core"
)

// Segment is one labeled input segment of a model request. Segment order is
// significant: identity and policy segments precede user content so the model
// treats them as non-negotiable framing.
type Segment struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// ReplySchema is a provider-enforced JSON schema constraining the model's
// structured text output.
type ReplySchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

// Request captures the normalized model input produced by the agents.
// Unified across vendors so downstream logic does not need per-provider branching.
type Request struct {
	Instructions string                `json:"instructions"` // Instructions for the model
	Segments     []Segment             `json:"segments"`     // Ordered labeled input segments
	Tools        []core.ToolDefinition `json:"tools,omitempty"`
	ReplySchema  *ReplySchema          `json:"reply_schema,omitempty"`
	// PreviousResponseID chains this request onto a prior response so the
	// provider maintains turn-level context across loop iterations.
	PreviousResponseID string `json:"previous_response_id,omitempty"`
	// EnableWebSearch offers the provider's built-in web search tool.
	EnableWebSearch bool `json:"enable_web_search,omitempty"`
}

// InputText renders the labeled segments into one prompt string, preserving
// segment order.
func (r Request) InputText() string {
	var out string
	for _, s := range r.Segments {
		if s.Label != "" {
			out += s.Label + ":\n"
		}
		out += s.Text + "\n\n"
	}
	return out
}

// OutputItem represents a polymorphic item of a model response. Concrete item
// types implement the unexported isOutputItem marker enabling a closed set.
type OutputItem interface{ isOutputItem() }

// TextItem is a plain or structured text output item.
type TextItem struct {
	Text string
}

// isOutputItem implements the OutputItem interface for TextItem.
func (TextItem) isOutputItem() {}

// RefusalItem indicates the provider refused to answer.
type RefusalItem struct {
	Reason string
}

// isOutputItem implements the OutputItem interface for RefusalItem.
func (RefusalItem) isOutputItem() {}

// FunctionCallItem is a tool/function invocation request surfaced by the model.
type FunctionCallItem struct {
	CallID    string          // Correlates the call with the result fed back to the model
	Name      string          // Tool / function name
	Arguments json.RawMessage // Serialized JSON argument payload
}

// isOutputItem implements the OutputItem interface for FunctionCallItem.
func (FunctionCallItem) isOutputItem() {}

// WebSearchItem records a provider-side web search performed during the turn.
type WebSearchItem struct {
	ID string
}

// isOutputItem implements the OutputItem interface for WebSearchItem.
func (WebSearchItem) isOutputItem() {}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the normalized outcome of one model call. ID is the
// provider-assigned response id used for chained follow-up requests.
type Response struct {
	ID    string
	Items []OutputItem
	Usage *TokenUsage
}

// Text concatenates all text items of the response.
func (r *Response) Text() string {
	var out string
	for _, item := range r.Items {
		if t, ok := item.(TextItem); ok {
			out += t.Text
		}
	}
	return out
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the agents to drive generation.
// Generate is synchronous; the assistant loop is strictly sequential per
// invocation, so there is no streaming surface to expose.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Responses are served from a FIFO script; every request is recorded so tests
// can assert on call counts and request shapes. Safe for concurrent use.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	script   []scriptStep
	requests []Request
}

type scriptStep struct {
	resp *Response
	err  error
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
	}
}

// QueueResponse appends a scripted response served in FIFO order.
func (m *MockModel) QueueResponse(resp *Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scriptStep{resp: resp})
}

// QueueError appends a scripted error served in FIFO order.
func (m *MockModel) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scriptStep{err: err})
}

// Calls returns the number of Generate invocations recorded so far.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests in call order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model; serves the next scripted step, or a deterministic
// echo response once the script is exhausted.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.script) > 0 {
		step := m.script[0]
		m.script = m.script[1:]
		if step.err != nil {
			return nil, step.err
		}
		return step.resp, nil
	}

	var last string
	if len(req.Segments) > 0 {
		last = req.Segments[len(req.Segments)-1].Text
	}
	return &Response{
		ID:    fmt.Sprintf("mock-resp-%d", len(m.requests)),
		Items: []OutputItem{TextItem{Text: fmt.Sprintf("Mock response to: %s", last)}},
	}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
