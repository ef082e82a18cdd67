package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/twitchax/triage-bot/logging"
)

const defaultSlackBaseURL = "https://slack.com/api"

// SlackService implements Service against the Slack Web API.
type SlackService struct {
	token   string
	baseURL string
	client  *http.Client
	logger  logging.Logger

	mu        sync.Mutex
	botUserID string
}

// SlackOptions configures construction of a SlackService.
type SlackOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     logging.Logger
}

// NewSlackService creates a Slack-backed chat service authenticated with the
// given bot token.
func NewSlackService(token string, optFns ...func(o *SlackOptions)) *SlackService {
	opts := SlackOptions{
		BaseURL:    defaultSlackBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &SlackService{
		token:   token,
		baseURL: opts.BaseURL,
		client:  opts.HTTPClient,
		logger:  opts.Logger,
	}
}

// apiEnvelope is the common Slack Web API response wrapper.
type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// SendMessage implements Service via chat.postMessage.
func (s *SlackService) SendMessage(ctx context.Context, channelID, threadID, text string) error {
	payload := map[string]any{
		"channel": channelID,
		"text":    text,
	}
	if threadID != "" {
		payload["thread_ts"] = threadID
	}

	var envelope apiEnvelope
	if err := s.postJSON(ctx, "chat.postMessage", payload, &envelope); err != nil {
		return err
	}
	if !envelope.OK {
		return fmt.Errorf("slack chat.postMessage failed: %s", envelope.Error)
	}

	s.logger.Info("chat.message.sent", "channel_id", channelID, "thread_id", threadID)

	return nil
}

// ReactToMessage implements Service via reactions.add. An already-present
// reaction is not treated as an error.
func (s *SlackService) ReactToMessage(ctx context.Context, channelID, threadID, emoji string) error {
	payload := map[string]any{
		"channel":   channelID,
		"timestamp": threadID,
		"name":      emoji,
	}

	var envelope apiEnvelope
	if err := s.postJSON(ctx, "reactions.add", payload, &envelope); err != nil {
		return err
	}
	if !envelope.OK && envelope.Error != "already_reacted" {
		return fmt.Errorf("slack reactions.add failed: %s", envelope.Error)
	}

	return nil
}

// threadMessage is the subset of a Slack message consumed for prompting.
type threadMessage struct {
	User string `json:"user"`
	Text string `json:"text"`
	TS   string `json:"ts"`
}

// GetThreadContext implements Service via conversations.replies. Messages are
// rendered one per line, oldest first.
func (s *SlackService) GetThreadContext(ctx context.Context, channelID, threadID string) (string, error) {
	query := url.Values{}
	query.Set("channel", channelID)
	query.Set("ts", threadID)

	var resp struct {
		apiEnvelope
		Messages []threadMessage `json:"messages"`
	}
	if err := s.get(ctx, "conversations.replies", query, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("slack conversations.replies failed: %s", resp.Error)
	}

	lines := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", msg.TS, msg.User, msg.Text))
	}

	return strings.Join(lines, "\n"), nil
}

// BotUserID implements Service via auth.test. The id is fetched once and
// cached for the process lifetime.
func (s *SlackService) BotUserID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.botUserID != "" {
		return s.botUserID, nil
	}

	var resp struct {
		apiEnvelope
		UserID string `json:"user_id"`
	}
	if err := s.postJSON(ctx, "auth.test", map[string]any{}, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("slack auth.test failed: %s", resp.Error)
	}

	s.botUserID = resp.UserID

	return s.botUserID, nil
}

func (s *SlackService) postJSON(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.token)

	return s.do(req, method, out)
}

func (s *SlackService) get(ctx context.Context, method string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+method+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	return s.do(req, method, out)
}

func (s *SlackService) do(req *http.Request, method string, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	return nil
}
