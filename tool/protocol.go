package tool

import (
	"encoding/json"
	"strings"
)

// The tool source protocol is JSON-RPC 2.0 with MCP-style methods: an
// initialize handshake, a tools/list discovery call and tools/call
// invocations. Local sources frame messages as line-delimited JSON over
// stdio; remote sources exchange one frame per HTTP request.
const (
	protocolVersion = "2024-11-05"

	methodInitialize  = "initialize"
	methodInitialized = "notifications/initialized"
	methodToolsList   = "tools/list"
	methodToolsCall   = "tools/call"
)

// jsonrpcRequest represents a JSON-RPC 2.0 request.
type jsonrpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// jsonrpcResponse represents a JSON-RPC 2.0 response.
type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

// jsonrpcError represents a JSON-RPC 2.0 error.
type jsonrpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// initializeParams is the handshake payload sent to every source.
type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// toolInfo is one tool descriptor in a tools/list result.
type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// toolsListResult is the result payload of tools/list.
type toolsListResult struct {
	Tools []toolInfo `json:"tools"`
}

// toolsCallParams is the params payload of tools/call.
type toolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// contentItem is one item of a tools/call result's content array.
type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// toolsCallResult is the result payload of tools/call. Tool-reported failures
// arrive as a normal result carrying isError, not as a JSON-RPC error.
type toolsCallResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// text joins the textual content items of a call result.
func (r toolsCallResult) text() string {
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		if c.Type == "text" && c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}
