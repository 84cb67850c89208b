package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the coordinator's Prometheus collectors.
type Metrics struct {
	ExternalErrors *prometheus.CounterVec
	Rollbacks      prometheus.Counter
}

// newMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func newMetrics(reg prometheus.Registerer, unread func() float64) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		ExternalErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taskhub_notification_external_errors_total",
			Help: "Failed calls to the notification API by operation",
		}, []string{"op"}),

		Rollbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "taskhub_notification_rollbacks_total",
			Help: "Optimistic read-state changes reverted after a failed API call",
		}),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "taskhub_notifications_unread",
		Help: "Notifications currently unread",
	}, unread)

	return m
}
