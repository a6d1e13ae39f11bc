package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

type Metrics struct {
	dispatched *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	recorded   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		dispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reelthread",
			Subsystem: "push",
			Name:      "notifications_total",
			Help:      "Push notifications handed to the provider, by outcome.",
		}, []string{"provider", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reelthread",
			Subsystem: "push",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent sending a push notification.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		recorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reelthread",
			Subsystem: "inbox",
			Name:      "notifications_total",
			Help:      "Notifications written to user inboxes, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observeDispatch(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.dispatched.WithLabelValues(provider, outcome).Inc()

	if outcome != OutcomeSkipped {
		m.duration.WithLabelValues(provider).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) observeRecord(outcome string) {
	if m == nil {
		return
	}

	m.recorded.WithLabelValues(outcome).Inc()
}
