package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// transport is one established connection to a tool source. Implementations
// must be safe for concurrent use; the registry shares one transport per
// source across all invocations for the process lifetime.
type transport interface {
	// roundTrip sends a request and returns the matching response.
	roundTrip(ctx context.Context, req *jsonrpcRequest) (*jsonrpcResponse, error)

	// notify sends a notification (no response expected).
	notify(ctx context.Context, method string) error

	// Close releases the transport's resources.
	Close() error
}

// requestID hands out process-unique JSON-RPC ids.
var requestID atomic.Int64

func nextRequestID() int64 { return requestID.Add(1) }

// callMethod performs one request/response exchange and unmarshals the result,
// converting JSON-RPC errors into transport errors.
func callMethod(ctx context.Context, t transport, sourceName, method string, params, out interface{}) error {
	req := &jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      nextRequestID(),
		Method:  method,
		Params:  params,
	}

	resp, err := t.roundTrip(ctx, req)
	if err != nil {
		return &Error{
			Tool:    sourceName,
			Message: fmt.Sprintf("%s failed: %v", method, err),
			Code:    CodeTransport,
		}
	}

	if resp.Error != nil {
		return &Error{
			Tool:    sourceName,
			Message: fmt.Sprintf("%s rejected: %s", method, resp.Error.Message),
			Code:    CodeTransport,
			Details: resp.Error,
		}
	}

	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return &Error{
				Tool:    sourceName,
				Message: fmt.Sprintf("failed to decode %s result: %v", method, err),
				Code:    CodeTransport,
			}
		}
	}

	return nil
}

// handshake performs the initialize exchange followed by the initialized
// notification.
func handshake(ctx context.Context, t transport, sourceName string) error {
	params := initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: "triage-bot", Version: "1.0.0"},
	}

	if err := callMethod(ctx, t, sourceName, methodInitialize, params, nil); err != nil {
		return err
	}

	return t.notify(ctx, methodInitialized)
}
