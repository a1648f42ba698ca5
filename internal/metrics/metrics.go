package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	slotRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "slot_requests_total",
			Help:      "Count of slot availability requests.",
		},
	)

	commits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "booking_commits_total",
			Help:      "Count of booking commit attempts by result.",
		},
		[]string{"result"},
	)

	cancellations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "booking_cancellations_total",
			Help:      "Count of booking cancellations.",
		},
	)

	writebacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "writeback_total",
			Help:      "Count of calendar write-back attempts by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(slotRequests, commits, cancellations, writebacks, httpRequests)
	})
}

func IncSlotRequests() {
	slotRequests.Inc()
}

func IncCommit(result string) {
	commits.WithLabelValues(result).Inc()
}

func IncCancellation() {
	cancellations.Inc()
}

func IncWriteback(result string) {
	writebacks.WithLabelValues(result).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
