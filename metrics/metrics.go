// Package metrics provides Prometheus-based metrics for the triage pipeline:
// event handling, model calls, dispatched actions, and tool invocations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder registers and records the pipeline's metrics. A nil *Recorder is
// valid and records nothing, so callers do not need to guard call sites.
type Recorder struct {
	eventsTotal          *prometheus.CounterVec
	eventDuration        *prometheus.HistogramVec
	modelRequestsTotal   *prometheus.CounterVec
	modelRetriesTotal    *prometheus.CounterVec
	tokensTotal          *prometheus.CounterVec
	actionsTotal         *prometheus.CounterVec
	toolInvocationsTotal *prometheus.CounterVec
	toolDuration         *prometheus.HistogramVec
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	// Registerer receives the collectors. Defaults to the global registerer;
	// tests pass a fresh prometheus.NewRegistry().
	Registerer prometheus.Registerer
}

// NewRecorder creates a Recorder and registers its collectors.
func NewRecorder(optFns ...func(o *RecorderOptions)) *Recorder {
	opts := RecorderOptions{Registerer: prometheus.DefaultRegisterer}
	for _, fn := range optFns {
		fn(&opts)
	}
	factory := promauto.With(opts.Registerer)

	return &Recorder{
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triagebot_events_total",
				Help: "Total number of handled chat events by outcome",
			},
			[]string{"outcome"},
		),
		eventDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "triagebot_event_duration_seconds",
				Help:    "End-to-end duration of event handling in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		modelRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triagebot_model_requests_total",
				Help: "Total number of model requests by provider, model, and outcome",
			},
			[]string{"provider", "model", "outcome"},
		),
		modelRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triagebot_model_retries_total",
				Help: "Total number of retried model attempts by provider",
			},
			[]string{"provider"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triagebot_model_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),
		actionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triagebot_actions_total",
				Help: "Total number of dispatched actions by kind",
			},
			[]string{"action"},
		),
		toolInvocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triagebot_tool_invocations_total",
				Help: "Total number of registry tool invocations by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "triagebot_tool_duration_seconds",
				Help:    "Duration of registry tool invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
	}
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// ObserveEvent records one handled chat event.
func (r *Recorder) ObserveEvent(success bool, duration time.Duration) {
	if r == nil {
		return
	}
	outcome := outcomeLabel(success)
	r.eventsTotal.WithLabelValues(outcome).Inc()
	r.eventDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveModelRequest records one model call and its token usage.
func (r *Recorder) ObserveModelRequest(provider, model string, success bool, inputTokens, outputTokens int64) {
	if r == nil {
		return
	}
	r.modelRequestsTotal.WithLabelValues(provider, model, outcomeLabel(success)).Inc()
	if success {
		r.tokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
		r.tokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// IncModelRetry counts one retried model attempt.
func (r *Recorder) IncModelRetry(provider string) {
	if r == nil {
		return
	}
	r.modelRetriesTotal.WithLabelValues(provider).Inc()
}

// IncAction counts one dispatched action by kind.
func (r *Recorder) IncAction(action string) {
	if r == nil {
		return
	}
	r.actionsTotal.WithLabelValues(action).Inc()
}

// ObserveToolInvocation records one registry tool invocation.
func (r *Recorder) ObserveToolInvocation(tool string, success bool, duration time.Duration) {
	if r == nil {
		return
	}
	r.toolInvocationsTotal.WithLabelValues(tool, outcomeLabel(success)).Inc()
	r.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// NewServer builds an HTTP server that exposes the scrape endpoint at
// /metrics on the given address. The caller owns its lifecycle.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
