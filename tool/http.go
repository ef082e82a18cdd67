package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/twitchax/triage-bot/logging"
)

// httpTransport speaks JSON-RPC with a remote tool endpoint, one frame per
// HTTP POST. Static headers from the source configuration are attached to
// every request.
type httpTransport struct {
	url     string
	headers map[string]string
	client  *http.Client
	logger  logging.Logger
}

func newHTTPTransport(url string, headers map[string]string, logger logging.Logger) *httpTransport {
	return &httpTransport{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

// roundTrip implements transport.
func (t *httpTransport) roundTrip(ctx context.Context, req *jsonrpcRequest) (*jsonrpcResponse, error) {
	body, err := t.post(ctx, req)
	if err != nil {
		return nil, err
	}

	var resp jsonrpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed tool response: %w", err)
	}

	return &resp, nil
}

// notify implements transport. Notification responses carry no body worth
// decoding; a 2xx status is sufficient.
func (t *httpTransport) notify(ctx context.Context, method string) error {
	_, err := t.post(ctx, &jsonrpcRequest{JSONRPC: "2.0", Method: method})
	return err
}

func (t *httpTransport) post(ctx context.Context, frame *jsonrpcRequest) ([]byte, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build tool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tool request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("tool endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Close implements transport. HTTP connections are pooled by the client;
// there is nothing to tear down.
func (t *httpTransport) Close() error { return nil }
