package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syndicate_sessions_active",
			Help: "Number of open player sessions",
		},
	)

	contractsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syndicate_contracts_accepted_total",
			Help: "Contracts accepted by difficulty and forced flag",
		},
		[]string{"difficulty", "forced"},
	)

	contractsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syndicate_contracts_completed_total",
			Help: "Contracts completed by difficulty",
		},
		[]string{"difficulty"},
	)

	contractDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "syndicate_contract_duration_seconds",
			Help:    "Wall time from acceptance to completion",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	currencyAwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syndicate_currency_awarded_total",
			Help: "Currency paid out by kind",
		},
		[]string{"currency"},
	)

	levelUps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syndicate_level_ups_total",
			Help: "Levels gained across all players",
		},
	)

	refreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syndicate_contract_refreshes_total",
			Help: "Contract pool rotations by kind",
		},
		[]string{"kind"},
	)

	writeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syndicate_write_failures_total",
			Help: "Persistence writes that failed",
		},
		[]string{"kind"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "syndicate_circuit_breaker_state",
			Help: "0 closed, 1 half-open, 2 open",
		},
		[]string{"name"},
	)

	chatMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syndicate_chat_messages_total",
			Help: "Chat messages inserted by type",
		},
		[]string{"type"},
	)
)

func SetActiveSessions(count int) {
	sessionsActive.Set(float64(count))
}

func RecordContractAccepted(difficulty string, forced bool) {
	f := "false"
	if forced {
		f = "true"
	}
	contractsAccepted.WithLabelValues(difficulty, f).Inc()
}

func RecordContractCompleted(difficulty string, took time.Duration) {
	contractsCompleted.WithLabelValues(difficulty).Inc()
	contractDuration.Observe(took.Seconds())
}

func RecordCurrency(currency string, amount int) {
	if amount <= 0 {
		return
	}
	currencyAwarded.WithLabelValues(currency).Add(float64(amount))
}

func RecordLevelUps(levels int) {
	levelUps.Add(float64(levels))
}

func RecordRefresh(kind string) {
	refreshes.WithLabelValues(kind).Inc()
}

func RecordWriteFailure(kind string) {
	writeFailures.WithLabelValues(kind).Inc()
}

func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}

func RecordChatMessage(kind string) {
	chatMessages.WithLabelValues(kind).Inc()
}
