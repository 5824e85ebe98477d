// Package metrics exposes request, token and tool counters in Prometheus
// format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qwenlink/internal/chat"
)

// Recorder counts service activity. It implements chat.UsageRecorder.
type Recorder struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	tokens   *prometheus.CounterVec
	tools    *prometheus.CounterVec
}

var _ chat.UsageRecorder = (*Recorder)(nil)

// New creates a Recorder with its own registry, including the Go and
// process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qwenlink_requests_total",
			Help: "Total number of completion requests sent to DashScope",
		}, []string{"model", "mode"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qwenlink_tokens_total",
			Help: "Total number of tokens reported by DashScope",
		}, []string{"model", "kind"}), // kind: "input" or "output"
		tools: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qwenlink_tool_invocations_total",
			Help: "Total number of automatic function invocations",
		}, []string{"function", "outcome"}),
	}
}

// RecordRequest counts one provider call.
func (r *Recorder) RecordRequest(model, mode string) {
	r.requests.WithLabelValues(model, mode).Inc()
}

// RecordUsage adds reported token counts.
func (r *Recorder) RecordUsage(model string, usage *chat.Usage) {
	if usage == nil {
		return
	}
	r.tokens.WithLabelValues(model, "input").Add(float64(usage.InputTokens))
	r.tokens.WithLabelValues(model, "output").Add(float64(usage.OutputTokens))
}

// RecordToolInvocation counts one function invocation.
func (r *Recorder) RecordToolInvocation(function string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.tools.WithLabelValues(function, outcome).Inc()
}

// Registry returns the registry the counters live in.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
