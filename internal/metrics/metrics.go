package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check-in outcome label values.
const (
	OutcomeRecorded  = "recorded"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

var (
	CheckinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendmate_checkins_total",
		Help: "Check-in attempts by outcome.",
	}, []string{"outcome"})

	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendmate_sessions_started_total",
		Help: "Sessions transitioned to active.",
	})

	SessionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendmate_sessions_closed_total",
		Help: "Sessions closed, by reason.",
	}, []string{"reason"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attendmate_active_sessions",
		Help: "Sessions currently collecting attendance.",
	})
)

// Close reasons.
const (
	CloseReasonManual  = "manual"
	CloseReasonTimeout = "timeout"
)
