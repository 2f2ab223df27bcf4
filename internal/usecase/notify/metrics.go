package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for notification system monitoring
var (
	// notificationDispatchedTotal tracks total notifications dispatched per channel
	notificationDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatched_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"channel"},
	)

	// notificationSentTotal tracks notification send results per channel
	notificationSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_sent_total",
			Help: "Total number of notifications sent",
		},
		[]string{"channel", "status"}, // status: success|failure
	)

	// notificationDuration tracks notification send duration
	notificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_duration_seconds",
			Help:    "Notification send duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30}, // 100ms to 30s
		},
		[]string{"channel"},
	)

	// circuitBreakerOpenTotal tracks circuit breaker open events
	circuitBreakerOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_circuit_breaker_open_total",
			Help: "Total number of circuit breaker open events",
		},
		[]string{"channel"},
	)

	// notificationDroppedTotal tracks deliveries rejected before reaching the channel
	notificationDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dropped_total",
			Help: "Total number of dropped notifications",
		},
		[]string{"channel", "reason"}, // reason: circuit_open
	)

	// activeDeliveries tracks channel deliveries currently in flight
	activeDeliveries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_active_deliveries",
			Help: "Number of channel deliveries in flight",
		},
	)

	// channelsEnabled tracks number of enabled channels
	channelsEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_channels_enabled",
			Help: "Number of enabled notification channels",
		},
	)
)

// RecordDispatch records a digest delivery attempt.
//
// This should be called when a digest is about to be sent to a channel.
//
// Parameters:
//   - channel: The name of the notification channel (e.g., "email", "slack")
func RecordDispatch(channel string) {
	notificationDispatchedTotal.WithLabelValues(channel).Inc()
}

// RecordSuccess records a successful notification send.
//
// This increments the success counter and records the send duration.
//
// Parameters:
//   - channel: The name of the notification channel
//   - duration: The time it took to send the notification
func RecordSuccess(channel string, duration time.Duration) {
	notificationSentTotal.WithLabelValues(channel, "success").Inc()
	notificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordFailure records a failed notification send.
//
// This increments the failure counter and records the send duration.
//
// Parameters:
//   - channel: The name of the notification channel
//   - duration: The time it took before the notification failed
func RecordFailure(channel string, duration time.Duration) {
	notificationSentTotal.WithLabelValues(channel, "failure").Inc()
	notificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordDropped records a dropped notification.
//
// This is called when a delivery is rejected before reaching the channel,
// currently only because its circuit breaker is open.
//
// Parameters:
//   - channel: The name of the notification channel
//   - reason: The reason for dropping (circuit_open)
func RecordDropped(channel string, reason string) {
	notificationDroppedTotal.WithLabelValues(channel, reason).Inc()
}

// RecordCircuitBreakerOpen records a circuit breaker open event.
//
// This is called when a circuit breaker opens due to consecutive failures.
//
// Parameters:
//   - channel: The name of the notification channel
func RecordCircuitBreakerOpen(channel string) {
	circuitBreakerOpenTotal.WithLabelValues(channel).Inc()
}

// IncrementActiveDeliveries increments the in-flight deliveries gauge by 1.
func IncrementActiveDeliveries() {
	activeDeliveries.Inc()
}

// DecrementActiveDeliveries decrements the in-flight deliveries gauge by 1.
func DecrementActiveDeliveries() {
	activeDeliveries.Dec()
}

// SetChannelsEnabled sets the number of enabled notification channels.
//
// This should be called when the notification service is initialized or
// when channel configuration changes.
//
// Parameters:
//   - count: The number of enabled channels
func SetChannelsEnabled(count float64) {
	channelsEnabled.Set(count)
}
