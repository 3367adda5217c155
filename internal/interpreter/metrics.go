package interpreter

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the interpreter.
type Metrics struct {
	DispatchedTotal      *prometheus.CounterVec // Commands dispatched, by command
	RejectedTotal        *prometheus.CounterVec // Lines not dispatched, by reason
	QueueDepth           prometheus.Gauge       // Entries waiting in the dispatch queue
	SessionsActive       prometheus.Gauge       // 1 while a command session is active
	SessionsAbortedTotal prometheus.Counter     // Sessions that ended by abort
	CompletionsTotal     *prometheus.CounterVec // Completion requests, by outcome
	RepliesDroppedTotal  prometheus.Counter     // Replies that arrived after their session ended
}

// NewMetrics creates the interpreter metrics and registers them with
// reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DispatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gameterm_commands_dispatched_total",
			Help: "Total number of commands dispatched",
		}, []string{"command"}),
		RejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gameterm_commands_rejected_total",
			Help: "Total number of input lines that were not dispatched",
		}, []string{"reason"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gameterm_dispatch_queue_depth",
			Help: "Current number of commands waiting to be dispatched",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gameterm_sessions_active",
			Help: "Whether a multi-step command session is active",
		}),
		SessionsAbortedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gameterm_sessions_aborted_total",
			Help: "Total number of command sessions that were aborted",
		}),
		CompletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gameterm_completions_total",
			Help: "Total number of completion requests",
		}, []string{"outcome"}),
		RepliesDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gameterm_replies_dropped_total",
			Help: "Total number of remote replies dropped because their session ended",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.DispatchedTotal,
			m.RejectedTotal,
			m.QueueDepth,
			m.SessionsActive,
			m.SessionsAbortedTotal,
			m.CompletionsTotal,
			m.RepliesDroppedTotal,
		)
	}
	return m
}
