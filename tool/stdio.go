package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/twitchax/triage-bot/logging"
)

// stdioTransport speaks line-delimited JSON-RPC with a spawned subprocess
// over its stdin/stdout. Exchanges are serialized under a mutex; the protocol
// is strictly call/response so there is nothing to pipeline.
type stdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	logger logging.Logger

	mu sync.Mutex
}

// newStdioTransport spawns the subprocess and wires its pipes. The child's
// stderr is passed through for operator diagnosis.
func newStdioTransport(command string, args []string, env map[string]string, logger logging.Logger) (*stdioTransport, error) {
	cmd := exec.Command(command, args...)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin pipe for %s: %w", command, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe for %s: %w", command, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start tool subprocess %s: %w", command, err)
	}

	logger.Info("tool.transport.spawned", "command", command, "pid", cmd.Process.Pid)

	return &stdioTransport{
		cmd:    cmd,
		stdin:  stdin,
		reader: bufio.NewReader(stdout),
		logger: logger,
	}, nil
}

// roundTrip implements transport. Lines that are not a response to the
// request (server-initiated notifications) are skipped.
func (t *stdioTransport) roundTrip(ctx context.Context, req *jsonrpcRequest) (*jsonrpcResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.write(req); err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line, err := t.reader.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read tool response: %w", err)
		}

		var resp jsonrpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, fmt.Errorf("malformed tool response: %w", err)
		}

		if !idsEqual(resp.ID, req.ID) {
			t.logger.Debug("tool.transport.skipped_frame", "id", resp.ID)
			continue
		}

		return &resp, nil
	}
}

// notify implements transport.
func (t *stdioTransport) notify(_ context.Context, method string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.write(&jsonrpcRequest{JSONRPC: "2.0", Method: method})
}

func (t *stdioTransport) write(req *jsonrpcRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode tool request: %w", err)
	}
	data = append(data, '\n')
	if _, err := t.stdin.Write(data); err != nil {
		return fmt.Errorf("failed to write tool request: %w", err)
	}
	return nil
}

// closeWaitTimeout bounds how long Close waits for a child that ignores
// stdin EOF before killing it.
var closeWaitTimeout = 5 * time.Second

// Close implements transport. Closing stdin signals the child to exit; a
// child that does not exit within closeWaitTimeout is killed so shutdown
// never hangs on a misbehaving tool server.
func (t *stdioTransport) Close() error {
	_ = t.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(closeWaitTimeout):
		t.logger.Warn("tool.transport.kill", "pid", t.cmd.Process.Pid)
		_ = t.cmd.Process.Kill()
		<-done
		return fmt.Errorf("tool subprocess ignored shutdown and was killed")
	}
}

// idsEqual compares JSON-RPC ids across the numeric representations JSON
// decoding may produce.
func idsEqual(a, b interface{}) bool {
	return normalizeID(a) == normalizeID(b)
}

func normalizeID(id interface{}) interface{} {
	switch v := id.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		return id
	}
}
