package agent

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Agent Loop's Prometheus instrumentation, grounded on
// internal/canvas/metrics.go's singleton-via-sync.Once pattern
// (promauto registers against the default registry exactly once per
// process regardless of how many Loop values are constructed).
type Metrics struct {
	IterationsTotal   prometheus.Counter
	ToolCallsTotal    *prometheus.CounterVec
	ReflectionsTotal  *prometheus.CounterVec
	CompletionsTotal  *prometheus.CounterVec
	TrialsTotal       prometheus.Counter
	LLMCallDuration   prometheus.Histogram
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// NewMetrics returns the process-wide Loop metrics, constructing and
// registering them on first call.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			IterationsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "reflexagent_loop_iterations_total",
				Help: "Total number of agent loop iterations executed",
			}),
			ToolCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "reflexagent_loop_tool_calls_total",
				Help: "Total number of tool calls dispatched, by tool name and outcome",
			}, []string{"tool", "outcome"}),
			ReflectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "reflexagent_loop_reflections_total",
				Help: "Total number of reflections triggered, by trigger name",
			}, []string{"trigger"}),
			CompletionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "reflexagent_loop_completions_total",
				Help: "Total number of task completions, by final status",
			}, []string{"status"}),
			TrialsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "reflexagent_loop_trials_total",
				Help: "Total number of trials started across all tasks",
			}),
			LLMCallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "reflexagent_loop_llm_call_duration_seconds",
				Help:    "Duration of provider Complete() calls issued by the agent loop",
				Buckets: prometheus.DefBuckets,
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) recordIteration() {
	if m == nil || m.IterationsTotal == nil {
		return
	}
	m.IterationsTotal.Inc()
}

func (m *Metrics) recordToolCall(tool string, isError bool) {
	if m == nil || m.ToolCallsTotal == nil {
		return
	}
	outcome := "success"
	if isError {
		outcome = "error"
	}
	m.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) recordReflection(trigger string) {
	if m == nil || m.ReflectionsTotal == nil {
		return
	}
	m.ReflectionsTotal.WithLabelValues(trigger).Inc()
}

func (m *Metrics) recordCompletion(status Status) {
	if m == nil || m.CompletionsTotal == nil {
		return
	}
	m.CompletionsTotal.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) recordTrial() {
	if m == nil || m.TrialsTotal == nil {
		return
	}
	m.TrialsTotal.Inc()
}

func (m *Metrics) observeLLMCall(seconds float64) {
	if m == nil || m.LLMCallDuration == nil {
		return
	}
	m.LLMCallDuration.Observe(seconds)
}
