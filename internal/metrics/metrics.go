package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	remindersScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hydromate",
			Name:      "reminders_scheduled_total",
			Help:      "Count of reminders scheduled.",
		},
	)

	remindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hydromate",
			Name:      "reminders_sent_total",
			Help:      "Count of reminder delivery outcomes by status.",
		},
		[]string{"status"},
	)

	reminderResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hydromate",
			Name:      "reminder_responses_total",
			Help:      "Count of user responses by action.",
		},
		[]string{"action"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hydromate",
			Name:      "http_requests_total",
			Help:      "Count of API requests by handler.",
		},
		[]string{"handler"},
	)

	dispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hydromate",
			Name:      "dispatch_cycle_duration_seconds",
			Help:      "Time to process one dispatch cycle.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5},
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(remindersScheduled, remindersSent, reminderResponses,
			httpRequests, dispatchDuration)
	})
}

func IncScheduled() {
	remindersScheduled.Inc()
}

func IncSent(status string) {
	remindersSent.WithLabelValues(status).Inc()
}

func IncResponse(action string) {
	reminderResponses.WithLabelValues(action).Inc()
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}

func ObserveDispatchCycle(seconds float64) {
	dispatchDuration.Observe(seconds)
}
