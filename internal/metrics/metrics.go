// Package metrics exposes Prometheus instruments for ticks and deliveries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicksTotal counts ticks per target and outcome
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_ticks_total",
			Help: "Total number of target ticks by outcome",
		},
		[]string{"target", "outcome"},
	)

	// TickDuration tracks tick latency in seconds, probe included
	TickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beacon_tick_duration_seconds",
			Help:    "Duration of target ticks in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 4, 8},
		},
		[]string{"target"},
	)

	// TargetUp is 1 while a target is considered up
	TargetUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beacon_target_up",
			Help: "Whether the target is currently considered up",
		},
		[]string{"target"},
	)

	// TargetPopulation is the last reported population of a target
	TargetPopulation = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beacon_target_population",
			Help: "Last reported population of the target",
		},
		[]string{"target"},
	)

	// RosterTransitionsTotal counts member joins and leaves
	RosterTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_roster_transitions_total",
			Help: "Total number of roster joins and leaves",
		},
		[]string{"target", "direction"},
	)

	// DeliveriesTotal counts delivery attempts by kind and status
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_deliveries_total",
			Help: "Total number of delivery attempts",
		},
		[]string{"kind", "status"},
	)

	// RecipientsRetiredTotal counts recipients removed after a permanent delivery failure
	RecipientsRetiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_recipients_retired_total",
			Help: "Total number of recipients removed after a permanent delivery failure",
		},
	)

	// InboundMessagesTotal counts inbound chat messages by resulting action
	InboundMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_inbound_messages_total",
			Help: "Total number of inbound chat messages by action",
		},
		[]string{"action"},
	)
)

// Delivery statuses.
const (
	StatusSent      = "sent"
	StatusTransient = "transient"
	StatusPermanent = "permanent"
)

// RecordTick records a finished tick.
func RecordTick(target, outcome string, durationSeconds float64) {
	TicksTotal.WithLabelValues(target, outcome).Inc()
	TickDuration.WithLabelValues(target).Observe(durationSeconds)
}

// SetTargetState publishes the up flag and population of a target.
func SetTargetState(target string, up bool, population int) {
	v := 0.0
	if up {
		v = 1
	}
	TargetUp.WithLabelValues(target).Set(v)
	TargetPopulation.WithLabelValues(target).Set(float64(population))
}

// RecordRosterTransitions records joins and leaves for a target.
func RecordRosterTransitions(target string, joined, left int) {
	if joined > 0 {
		RosterTransitionsTotal.WithLabelValues(target, "join").Add(float64(joined))
	}
	if left > 0 {
		RosterTransitionsTotal.WithLabelValues(target, "leave").Add(float64(left))
	}
}

// RecordDelivery records one delivery attempt.
func RecordDelivery(kind, status string) {
	DeliveriesTotal.WithLabelValues(kind, status).Inc()
}

// RecordRecipientRetired records a recipient removed after a permanent failure.
func RecordRecipientRetired() {
	RecipientsRetiredTotal.Inc()
}

// RecordInboundMessage records a handled chat message.
func RecordInboundMessage(action string) {
	InboundMessagesTotal.WithLabelValues(action).Inc()
}
