// Package tool implements the tool-invocation subsystem: fixed built-in tool
// definitions the model may call, plus a registry client that discovers and
// invokes externally registered tools over subprocess or HTTP transports
// speaking a JSON-RPC discovery+invoke protocol.
package tool

import (
	"fmt"
)

// Error codes used across tool failures.
const (
	// CodeValidation marks schema / argument mismatches.
	CodeValidation = "VALIDATION_ERROR"
	// CodeExecution marks failures reported by the tool itself.
	CodeExecution = "EXECUTION_ERROR"
	// CodeTransport marks transport-level failures reaching the tool source.
	CodeTransport = "TRANSPORT_ERROR"
)

// Error represents errors that occur during tool discovery or invocation.
type Error struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewError creates a new Error with the specified details.
func NewError(tool, message, code string) *Error {
	return &Error{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
