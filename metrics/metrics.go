package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "humanflow"

type Metrics struct {
	commands   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	queueDepth *prometheus.GaugeVec
	pointers   *prometheus.CounterVec
}

// New registers the engine collectors on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Processed commands by type and outcome.",
			},
			[]string{"command", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Time spent processing one command.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Pending commands per partition.",
			},
			[]string{"partition"},
		),
		pointers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pointers_total",
				Help:      "Pointer transitions by node type and status.",
			},
			[]string{"node_type", "status"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.commands, m.duration, m.queueDepth, m.pointers)
	}
	return m
}

func (m *Metrics) ObserveCommand(command string, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
	m.duration.WithLabelValues(command).Observe(elapsed.Seconds())
}

func (m *Metrics) SetQueueDepth(partition string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(partition).Set(float64(depth))
}

func (m *Metrics) PointerTransition(nodeType string, status string) {
	if m == nil {
		return
	}
	m.pointers.WithLabelValues(nodeType, status).Inc()
}
