package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(chatTurnsTotal, memoryCompactionsTotal, activeSessions)
}

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Conversation turns by result.",
		},
		[]string{"result"}, // ok | invalid | auth | unavailable | timeout | summarization | error
	)

	memoryCompactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_compactions_total",
			Help: "Summarizing memory compactions by result.",
		},
		[]string{"result"}, // ok | failed
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_active_sessions",
			Help: "Sessions currently held by the session store.",
		},
	)
)

func IncTurn(result string) {
	chatTurnsTotal.WithLabelValues(norm(result)).Inc()
}

func IncCompaction(result string) {
	memoryCompactionsTotal.WithLabelValues(norm(result)).Inc()
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}
