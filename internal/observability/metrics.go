package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's prometheus collectors. A nil *Metrics is
// valid and counts nothing, so components can run unmetered in tests.
type Metrics struct {
	messagesReceived *prometheus.CounterVec
	messagesSent     *prometheus.CounterVec
	ordersAccepted   prometheus.Counter
	fills            prometheus.Counter
	cancels          prometheus.Counter
	cancelRejects    prometheus.Counter
	activeSessions   prometheus.Gauge
}

// NewMetrics registers the engine collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fix_messages_received_total",
			Help: "FIX messages received, by message type",
		}, []string{"msg_type"}),
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fix_messages_sent_total",
			Help: "FIX messages sent, by message type",
		}, []string{"msg_type"}),
		ordersAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "fix_orders_accepted_total",
			Help: "New orders acknowledged",
		}),
		fills: factory.NewCounter(prometheus.CounterOpts{
			Name: "fix_fills_total",
			Help: "Execution reports carrying a fill",
		}),
		cancels: factory.NewCounter(prometheus.CounterOpts{
			Name: "fix_cancels_total",
			Help: "Orders canceled",
		}),
		cancelRejects: factory.NewCounter(prometheus.CounterOpts{
			Name: "fix_cancel_rejects_total",
			Help: "Cancel and replace requests rejected",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fix_active_sessions",
			Help: "Currently connected FIX sessions",
		}),
	}
}

// MsgReceived counts one inbound message
func (m *Metrics) MsgReceived(msgType string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(msgType).Inc()
}

// MsgSent counts one outbound message
func (m *Metrics) MsgSent(msgType string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(msgType).Inc()
}

// OrderAccepted counts one acknowledged order
func (m *Metrics) OrderAccepted() {
	if m == nil {
		return
	}
	m.ordersAccepted.Inc()
}

// Fill counts one partial or full fill
func (m *Metrics) Fill() {
	if m == nil {
		return
	}
	m.fills.Inc()
}

// Cancel counts one canceled order
func (m *Metrics) Cancel() {
	if m == nil {
		return
	}
	m.cancels.Inc()
}

// CancelReject counts one rejected cancel/replace request
func (m *Metrics) CancelReject() {
	if m == nil {
		return
	}
	m.cancelRejects.Inc()
}

// SessionOpened bumps the active session gauge
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionClosed drops the active session gauge
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
