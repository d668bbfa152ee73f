package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the orchestrator.
type Metrics struct {
	// Commands handled by command name and response status
	Commands *prometheus.CounterVec

	// Operation outcomes and durations by class
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Confirmation prompts by terminal state
	Confirmations *prometheus.CounterVec

	// Heartbeat ticks by result
	Heartbeats *prometheus.CounterVec

	// Unix time of the last written heartbeat
	LastHeartbeat prometheus.Gauge
}

// New registers every metric on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qbot_commands_total",
			Help: "Total commands handled by command and response status",
		}, []string{"command", "status"}),

		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qbot_operations_total",
			Help: "Total long-running operations by class and outcome",
		}, []string{"class", "outcome"}),

		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qbot_operation_poll_seconds",
			Help:    "Time spent polling an operation before it finished",
			Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 240},
		}, []string{"class"}),

		Confirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qbot_confirmations_total",
			Help: "Total confirmation prompts by terminal state",
		}, []string{"state"}),

		Heartbeats: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qbot_heartbeat_ticks_total",
			Help: "Heartbeat ticks by result (written, skipped, failed)",
		}, []string{"result"}),

		LastHeartbeat: factory.NewGauge(prometheus.GaugeOpts{
			Name: "qbot_heartbeat_last_written_timestamp_seconds",
			Help: "Unix time of the last successful heartbeat write",
		}),
	}
}

// IncrementCommand records a handled command.
func (m *Metrics) IncrementCommand(command, status string) {
	if m != nil {
		m.Commands.WithLabelValues(command, status).Inc()
	}
}

// ObserveOperation records a finished operation.
func (m *Metrics) ObserveOperation(class string, outcome string, elapsed time.Duration) {
	if m != nil {
		m.Operations.WithLabelValues(class, outcome).Inc()
		m.OperationDuration.WithLabelValues(class).Observe(elapsed.Seconds())
	}
}

// IncrementConfirmation records a resolved prompt.
func (m *Metrics) IncrementConfirmation(state string) {
	if m != nil {
		m.Confirmations.WithLabelValues(state).Inc()
	}
}

// ObserveHeartbeat records a heartbeat tick.
func (m *Metrics) ObserveHeartbeat(result string) {
	if m != nil {
		m.Heartbeats.WithLabelValues(result).Inc()
		if result == "written" {
			m.LastHeartbeat.SetToCurrentTime()
		}
	}
}
