package tool

import (
	"encoding/json"
	"fmt"

	"github.com/twitchax/triage-bot/core"
	"github.com/twitchax/triage-bot/internal/util"
)

// Reserved names of the built-in state-mutating tools. These are matched by
// the response parser, never dispatched through the registry.
const (
	SetChannelDirectiveName  = "set_channel_directive"
	UpdateChannelContextName = "update_channel_context"
)

// messageSchema is the shared parameter shape of both built-ins: a single
// required string field.
func messageSchema(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": description,
			},
		},
		"required":             []string{"message"},
		"additionalProperties": false,
	}
}

// Builtins holds the fixed built-in tool definitions. Construct once at
// engine construction time and pass down; the definitions are immutable
// configuration, not ambient global state.
type Builtins struct {
	SetChannelDirective  core.ToolDefinition
	UpdateChannelContext core.ToolDefinition
}

// NewBuiltins constructs the built-in tool definitions.
func NewBuiltins() Builtins {
	return Builtins{
		SetChannelDirective: core.ToolDefinition{
			Name:        SetChannelDirectiveName,
			Description: "Replace the channel's standing directive with a new one. The previous directive is discarded.",
			Parameters:  messageSchema("The new directive for the channel."),
		},
		UpdateChannelContext: core.ToolDefinition{
			Name:        UpdateChannelContextName,
			Description: "Record a new fact about the channel. Existing context is preserved.",
			Parameters:  messageSchema("The fact to record about the channel."),
		},
	}
}

// Definitions returns both built-ins in declaration order.
func (b Builtins) Definitions() []core.ToolDefinition {
	return []core.ToolDefinition{b.SetChannelDirective, b.UpdateChannelContext}
}

// IsBuiltin reports whether name is one of the reserved built-in tool names.
func IsBuiltin(name string) bool {
	return name == SetChannelDirectiveName || name == UpdateChannelContextName
}

// DecodeMessageArg validates a built-in call's arguments against the shared
// single-string-field schema and extracts the message.
func DecodeMessageArg(toolName string, arguments json.RawMessage) (string, error) {
	var args map[string]any
	if err := json.Unmarshal(arguments, &args); err != nil {
		return "", &Error{
			Tool:    toolName,
			Message: fmt.Sprintf("arguments are not valid JSON: %v", err),
			Code:    CodeValidation,
		}
	}

	if err := util.ValidateParameters(args, messageSchema("")); err != nil {
		return "", &Error{
			Tool:    toolName,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	message, _ := args["message"].(string)
	return message, nil
}
