package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	return NewRecorder(func(o *RecorderOptions) {
		o.Registerer = prometheus.NewRegistry()
	})
}

func TestObserveEvent(t *testing.T) {
	r := newTestRecorder(t)

	r.ObserveEvent(true, 150*time.Millisecond)
	r.ObserveEvent(true, 50*time.Millisecond)
	r.ObserveEvent(false, 10*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.eventsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.eventsTotal.WithLabelValues("error")))
}

func TestObserveModelRequest(t *testing.T) {
	r := newTestRecorder(t)

	r.ObserveModelRequest("openai", "gpt-4o", true, 100, 40)
	r.ObserveModelRequest("openai", "gpt-4o", false, 0, 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.modelRequestsTotal.WithLabelValues("openai", "gpt-4o", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.modelRequestsTotal.WithLabelValues("openai", "gpt-4o", "error")))

	// Tokens only count on success.
	assert.Equal(t, float64(100), testutil.ToFloat64(r.tokensTotal.WithLabelValues("openai", "gpt-4o", "input")))
	assert.Equal(t, float64(40), testutil.ToFloat64(r.tokensTotal.WithLabelValues("openai", "gpt-4o", "output")))
}

func TestToolAndActionCounters(t *testing.T) {
	r := newTestRecorder(t)

	r.IncAction("Reply")
	r.IncAction("Reply")
	r.IncAction("SetDirective")
	r.ObserveToolInvocation("lookup_ticket", true, 20*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.actionsTotal.WithLabelValues("Reply")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.actionsTotal.WithLabelValues("SetDirective")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.toolInvocationsTotal.WithLabelValues("lookup_ticket", "success")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder

	require.NotPanics(t, func() {
		r.ObserveEvent(true, time.Millisecond)
		r.ObserveModelRequest("openai", "gpt-4o", true, 1, 1)
		r.IncModelRetry("openai")
		r.IncAction("NoAction")
		r.ObserveToolInvocation("x", false, time.Millisecond)
	})
}
