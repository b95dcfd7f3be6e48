package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "peer"

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Drop reasons for inbound signaling messages.
const (
	DropDecode       = "decode_error"
	DropUnknownType  = "unknown_type"
	DropRateLimited  = "rate_limited"
	DropMisaddressed = "misaddressed"
)

var (
	promSessionsCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "current",
		Help:      "Sessions currently registered.",
	})
	promSignalMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signal",
		Name:      "messages_total",
		Help:      "Signaling messages by direction and type.",
	}, []string{"direction", "type"})
	promSignalDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signal",
		Name:      "dropped_total",
		Help:      "Inbound signaling messages dropped before dispatch.",
	}, []string{"reason"})
	promSendFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signal",
		Name:      "send_failures_total",
		Help:      "Outbound signaling messages that could not be handed to the transport.",
	}, []string{"type"})
	promNegotiations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "negotiation",
		Name:      "total",
		Help:      "Negotiation attempts by role and result.",
	}, []string{"role", "result"})
	promStaleEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "negotiation",
		Name:      "stale_events_total",
		Help:      "Events addressed to a participant without a registered session.",
	}, []string{"type"})
)

// Register adds every collector to reg. Counters work without registration.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		promSessionsCurrent,
		promSignalMessages,
		promSignalDropped,
		promSendFailures,
		promNegotiations,
		promStaleEvents,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func SetSessions(n int) {
	promSessionsCurrent.Set(float64(n))
}

func IncMessage(direction, kind string) {
	promSignalMessages.WithLabelValues(direction, kind).Inc()
}

func IncDropped(reason string) {
	promSignalDropped.WithLabelValues(reason).Inc()
}

func IncSendFailure(kind string) {
	promSendFailures.WithLabelValues(kind).Inc()
}

func IncNegotiation(role, result string) {
	promNegotiations.WithLabelValues(role, result).Inc()
}

func IncStale(kind string) {
	promStaleEvents.WithLabelValues(kind).Inc()
}
