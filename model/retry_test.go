package model

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		PerAttemptTimeout: time.Second,
		InitialDelay:      time.Millisecond,
		BackoffFactor:     2.0,
	}
}

func TestRetryModel_ExhaustsAttemptBudget(t *testing.T) {
	inner := NewMockModel("stub", "mock")
	inner.QueueError(errors.New("timeout"))
	inner.QueueError(errors.New("timeout"))
	inner.QueueError(errors.New("timeout"))

	retries := 0
	rm := NewRetryModel(inner, func(o *RetryOptions) {
		o.Config = fastRetryConfig()
		o.OnRetry = func() { retries++ }
	})

	_, err := rm.Generate(context.Background(), Request{Segments: []Segment{{Text: "hi"}}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, inner.Calls())
	assert.Equal(t, 2, retries)
}

func TestRetryModel_SucceedsOnSecondAttempt(t *testing.T) {
	inner := NewMockModel("stub", "mock")
	inner.QueueError(errors.New("connection reset"))
	inner.QueueResponse(&Response{ID: "resp-1", Items: []OutputItem{TextItem{Text: "ok"}}})

	rm := NewRetryModel(inner, func(o *RetryOptions) { o.Config = fastRetryConfig() })

	resp, err := rm.Generate(context.Background(), Request{Segments: []Segment{{Text: "hi"}}})
	assert.NoError(t, err)
	assert.Equal(t, "resp-1", resp.ID)
	assert.Equal(t, 2, inner.Calls())
}

func TestRetryModel_ReportsAttemptOutcomes(t *testing.T) {
	inner := NewMockModel("stub", "mock")
	inner.QueueError(errors.New("connection reset"))
	inner.QueueResponse(&Response{
		ID:    "resp-1",
		Items: []OutputItem{TextItem{Text: "ok"}},
		Usage: &TokenUsage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
	})

	var outcomes []bool
	var reported *TokenUsage
	rm := NewRetryModel(inner, func(o *RetryOptions) {
		o.Config = fastRetryConfig()
		o.OnResult = func(success bool, usage *TokenUsage) {
			outcomes = append(outcomes, success)
			if usage != nil {
				reported = usage
			}
		}
	})

	_, err := rm.Generate(context.Background(), Request{Segments: []Segment{{Text: "hi"}}})
	assert.NoError(t, err)
	assert.Equal(t, []bool{false, true}, outcomes)
	assert.NotNil(t, reported)
	assert.Equal(t, 12, reported.PromptTokens)
	assert.Equal(t, 3, reported.CompletionTokens)
}

func TestRetryModel_ClassifierStopsRetry(t *testing.T) {
	inner := NewMockModel("stub", "mock")
	inner.QueueError(errors.New("400 bad request"))

	cfg := fastRetryConfig()
	cfg.Classifier = func(err error) bool { return false }

	rm := NewRetryModel(inner, func(o *RetryOptions) { o.Config = cfg })

	_, err := rm.Generate(context.Background(), Request{Segments: []Segment{{Text: "hi"}}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "non-retryable")
	assert.Equal(t, 1, inner.Calls())
}

func TestRetryModel_BackoffDoubles(t *testing.T) {
	rm := NewRetryModel(NewMockModel("stub", "mock"), func(o *RetryOptions) {
		o.Config = RetryConfig{MaxAttempts: 3, InitialDelay: time.Second, BackoffFactor: 2.0}
	})
	assert.Equal(t, time.Second, rm.calculateDelay(2))
	assert.Equal(t, 2*time.Second, rm.calculateDelay(3))
	assert.Equal(t, 4*time.Second, rm.calculateDelay(4))
}

func TestMockModel_ScriptAndRecording(t *testing.T) {
	m := NewMockModel("stub", "mock")
	m.QueueResponse(&Response{ID: "a", Items: []OutputItem{TextItem{Text: "first"}}})

	resp, err := m.Generate(context.Background(), Request{Segments: []Segment{{Label: "User Message", Text: "hello"}}})
	assert.NoError(t, err)
	assert.Equal(t, "a", resp.ID)
	assert.Equal(t, "first", resp.Text())

	// Script exhausted, fall back to echo.
	resp, err = m.Generate(context.Background(), Request{Segments: []Segment{{Text: "again"}}})
	assert.NoError(t, err)
	assert.Contains(t, resp.Text(), "again")

	assert.Equal(t, 2, m.Calls())
	reqs := m.Requests()
	assert.Equal(t, "hello", reqs[0].Segments[0].Text)
}

func TestRequestInputTextOrdersSegments(t *testing.T) {
	req := Request{Segments: []Segment{
		{Label: "Bot ID", Text: "U1"},
		{Label: "User Message", Text: "hi"},
	}}
	text := req.InputText()
	assert.Less(t, strings.Index(text, "Bot ID"), strings.Index(text, "User Message"))
	assert.True(t, strings.Index(text, "Bot ID") >= 0)
}
