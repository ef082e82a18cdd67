package core

import "encoding/json"

// Action represents one typed outcome of a model turn. Concrete action types
// implement the unexported isAction marker enabling a closed set.
type Action interface{ isAction() }

// NoAction indicates the model decided the event needs no response.
type NoAction struct{}

// isAction implements the Action interface for NoAction.
func (NoAction) isAction() {}

// Reply posts a message into a thread, optionally tagged with a triage
// classification. Reply terminates its branch of the turn, so it carries no
// call id.
type Reply struct {
	ThreadID       string         // Thread timestamp the reply targets
	Classification Classification // Optional triage category ("" when absent)
	Message        string         // Message body to post
}

// isAction implements the Action interface for Reply.
func (Reply) isAction() {}

// SetDirective replaces the channel's standing directive wholesale.
type SetDirective struct {
	CallID string // Correlates the tool call with the result fed back to the model
	Notes  string // New directive text
}

// isAction implements the Action interface for SetDirective.
func (SetDirective) isAction() {}

// AppendContext records one new fact about the channel. Entries are
// append-only; nothing in this system deletes them.
type AppendContext struct {
	CallID string
	Notes  string
}

// isAction implements the Action interface for AppendContext.
func (AppendContext) isAction() {}

// InvokeTool calls an externally registered tool by name. The dispatcher
// feeds the tool's output back into the model loop keyed by CallID.
type InvokeTool struct {
	CallID    string
	ToolName  string
	Arguments json.RawMessage // Opaque JSON argument payload
}

// isAction implements the Action interface for InvokeTool.
func (InvokeTool) isAction() {}

// Classification is the triage category the model assigns to a reply.
type Classification string

const (
	// ClassificationBug marks a defect report.
	ClassificationBug Classification = "Bug"
	// ClassificationFeature marks a feature request.
	ClassificationFeature Classification = "Feature"
	// ClassificationQuestion marks a question.
	ClassificationQuestion Classification = "Question"
	// ClassificationIncident marks an active incident.
	ClassificationIncident Classification = "Incident"
	// ClassificationOther marks anything that fits no other category.
	ClassificationOther Classification = "Other"
)

// Emoji returns the reaction emoji used to tag the triggering message before
// a classified reply is posted. Unknown or absent classifications fall back
// to grey_question.
func (c Classification) Emoji() string {
	switch c {
	case ClassificationQuestion:
		return "question"
	case ClassificationFeature:
		return "bulb"
	case ClassificationBug:
		return "bug"
	case ClassificationIncident:
		return "warning"
	default:
		return "grey_question"
	}
}
