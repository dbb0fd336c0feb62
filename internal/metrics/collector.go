package tacmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "tacgo"
	subsystem = "tacacs"
)

// Label names for TACACS+ metrics.
const (
	labelPacketType = "packet_type"
	labelOutcome    = "outcome"
)

// -------------------------------------------------------------------------
// Collector — Prometheus TACACS+ Metrics
// -------------------------------------------------------------------------

// Collector holds all TACACS+ Prometheus metrics.
//
// Metrics are designed for AAA production monitoring:
//   - Sessions gauge tracks currently open authentication/authorization/
//     accounting sessions.
//   - Packet counters track frames sent/received/dropped by packet type.
//   - Outcome counters record terminal authentication and authorization
//     statuses for alerting; accounting replies are not counted.
//   - ObfuscationErrors and SequenceViolations flag protocol-level problems
//     that a working deployment should never see in steady state.
type Collector struct {
	// Sessions tracks the number of currently open Sessions, labeled by
	// packet type (authentication/authorization/accounting).
	Sessions *prometheus.GaugeVec

	// PacketsSent counts frames transmitted, labeled by packet type.
	PacketsSent *prometheus.CounterVec

	// PacketsReceived counts frames received, labeled by packet type.
	PacketsReceived *prometheus.CounterVec

	// PacketsDropped counts frames discarded by the connection multiplexer
	// (unroutable session_id, full session slot).
	PacketsDropped *prometheus.CounterVec

	// AuthenOutcomes counts terminal authentication outcomes, labeled by
	// status (Pass/Fail/Error/Restart/Follow).
	AuthenOutcomes *prometheus.CounterVec

	// AuthorOutcomes counts authorization outcomes, labeled by status
	// (PassAdd/PassRepl/Fail/Error).
	AuthorOutcomes *prometheus.CounterVec

	// ObfuscationErrors counts body deobfuscation/clear-text policy
	// violations (RFC 8907 Section 4.5).
	ObfuscationErrors prometheus.Counter

	// SequenceViolations counts reply frames carrying an unexpected
	// sequence number. A working deployment should see this stay at zero.
	SequenceViolations prometheus.Counter
}

// NewCollector creates a Collector with all TACACS+ metrics registered
// against the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
//
// All metrics are created with the "tacgo_tacacs_" prefix
// (namespace_subsystem) to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Sessions,
		c.PacketsSent,
		c.PacketsReceived,
		c.PacketsDropped,
		c.AuthenOutcomes,
		c.AuthorOutcomes,
		c.ObfuscationErrors,
		c.SequenceViolations,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	packetTypeLabels := []string{labelPacketType}
	outcomeLabels := []string{labelOutcome}

	return &Collector{
		Sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Number of currently open TACACS+ sessions.",
		}, packetTypeLabels),

		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_sent_total",
			Help:      "Total TACACS+ frames transmitted.",
		}, packetTypeLabels),

		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_received_total",
			Help:      "Total TACACS+ frames received.",
		}, packetTypeLabels),

		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_dropped_total",
			Help:      "Total TACACS+ frames dropped by the connection multiplexer.",
		}, packetTypeLabels),

		AuthenOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "authentication_outcomes_total",
			Help:      "Total terminal authentication outcomes by status.",
		}, outcomeLabels),

		AuthorOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "authorization_outcomes_total",
			Help:      "Total authorization outcomes by status.",
		}, outcomeLabels),

		ObfuscationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "obfuscation_errors_total",
			Help:      "Total body deobfuscation or clear-text policy violations (RFC 8907 Section 4.5).",
		}),

		SequenceViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sequence_violations_total",
			Help:      "Total reply frames carrying an unexpected sequence number.",
		}),
	}
}

// -------------------------------------------------------------------------
// Session Lifecycle
// -------------------------------------------------------------------------

// RegisterSession increments the open sessions gauge for the given packet
// type. Called when Connection.OpenSession creates a new Session.
func (c *Collector) RegisterSession(packetType string) {
	c.Sessions.WithLabelValues(packetType).Inc()
}

// UnregisterSession decrements the open sessions gauge for the given packet
// type. Called when a Session reaches its terminal state.
func (c *Collector) UnregisterSession(packetType string) {
	c.Sessions.WithLabelValues(packetType).Dec()
}

// -------------------------------------------------------------------------
// Packet Counters
// -------------------------------------------------------------------------

// IncPacketsSent increments the transmitted frames counter for packetType.
func (c *Collector) IncPacketsSent(packetType string) {
	c.PacketsSent.WithLabelValues(packetType).Inc()
}

// IncPacketsReceived increments the received frames counter for packetType.
func (c *Collector) IncPacketsReceived(packetType string) {
	c.PacketsReceived.WithLabelValues(packetType).Inc()
}

// IncPacketsDropped increments the dropped frames counter for packetType.
// Called when the reader loop cannot route a frame to any open Session.
func (c *Collector) IncPacketsDropped(packetType string) {
	c.PacketsDropped.WithLabelValues(packetType).Inc()
}

// -------------------------------------------------------------------------
// Outcomes
// -------------------------------------------------------------------------

// RecordAuthenOutcome increments the authentication outcome counter for the
// given terminal status string (e.g. "Pass", "Fail", "Restart", "Follow").
func (c *Collector) RecordAuthenOutcome(status string) {
	c.AuthenOutcomes.WithLabelValues(status).Inc()
}

// RecordAuthorOutcome increments the authorization outcome counter for the
// given status string (e.g. "PassAdd", "PassRepl", "Fail", "Error").
func (c *Collector) RecordAuthorOutcome(status string) {
	c.AuthorOutcomes.WithLabelValues(status).Inc()
}

// -------------------------------------------------------------------------
// Protocol Errors
// -------------------------------------------------------------------------

// IncObfuscationErrors increments the obfuscation/clear-text policy
// violation counter.
func (c *Collector) IncObfuscationErrors() {
	c.ObfuscationErrors.Inc()
}

// IncSequenceViolations increments the sequence violation counter.
func (c *Collector) IncSequenceViolations() {
	c.SequenceViolations.Inc()
}
