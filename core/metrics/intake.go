package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		intakeSessionsStarted,
		intakeSessionsFinished,
		intakeInputRejected,
		intakeSessionsActive,
	)
}

var (
	intakeSessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_sessions_started_total",
			Help: "Product intake conversations started.",
		},
	)

	intakeSessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_sessions_finished_total",
			Help: "Product intake conversations that reached a terminal state, by outcome.",
		},
		[]string{"outcome"},
	)

	intakeInputRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_input_rejected_total",
			Help: "User inputs rejected by validation or sent in the wrong step, by state.",
		},
		[]string{"state"},
	)

	intakeSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_sessions_active",
			Help: "Conversations currently held in memory.",
		},
	)
)

func IncSessionStarted() {
	intakeSessionsStarted.Inc()
}

// IncSessionFinished counts a terminal transition; outcome is "complete", "cancelled" or "failed".
func IncSessionFinished(outcome string) {
	intakeSessionsFinished.WithLabelValues(norm(outcome)).Inc()
}

func IncInputRejected(state string) {
	intakeInputRejected.WithLabelValues(norm(state)).Inc()
}

func SetSessionsActive(n int) {
	intakeSessionsActive.Set(float64(n))
}
