// Package metrics exposes Prometheus instrumentation for the chat server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the server's Prometheus collectors. A nil *Metrics is valid
// and turns every method into a no-op, which keeps tests free of registry
// bookkeeping.
type Metrics struct {
	ConnectedUsers   prometheus.Gauge
	MessagesTotal    *prometheus.CounterVec
	CommandsTotal    *prometheus.CounterVec
	CoinsTransferred prometheus.Counter
	PollsConcluded   prometheus.Counter
	ClaimsWon        prometheus.Counter
	EvictionsTotal   *prometheus.CounterVec
}

// New registers and returns the server metrics under the given namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		ConnectedUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_users",
			Help:      "Number of live realtime connections",
		}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages processed by type",
		}, []string{"type"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Slash commands dispatched by name",
		}, []string{"command"}),
		CoinsTransferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coins_transferred_total",
			Help:      "Total coins moved between users",
		}),
		PollsConcluded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_concluded_total",
			Help:      "Polls concluded by the background sweep",
		}),
		ClaimsWon: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_won_total",
			Help:      "Claim events successfully claimed",
		}),
		EvictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Connections evicted by reason",
		}, []string{"reason"}),
	}

	prometheus.MustRegister(
		m.ConnectedUsers,
		m.MessagesTotal,
		m.CommandsTotal,
		m.CoinsTransferred,
		m.PollsConcluded,
		m.ClaimsWon,
		m.EvictionsTotal,
	)

	return m
}

func (m *Metrics) UserConnected() {
	if m == nil {
		return
	}
	m.ConnectedUsers.Inc()
}

func (m *Metrics) UserDisconnected() {
	if m == nil {
		return
	}
	m.ConnectedUsers.Dec()
}

func (m *Metrics) MessageProcessed(msgType string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(msgType).Inc()
}

func (m *Metrics) CommandDispatched(name string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(name).Inc()
}

func (m *Metrics) CoinsMoved(amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.CoinsTransferred.Add(float64(amount))
}

func (m *Metrics) PollConcluded() {
	if m == nil {
		return
	}
	m.PollsConcluded.Inc()
}

func (m *Metrics) ClaimWon() {
	if m == nil {
		return
	}
	m.ClaimsWon.Inc()
}

func (m *Metrics) Evicted(reason string) {
	if m == nil {
		return
	}
	m.EvictionsTotal.WithLabelValues(reason).Inc()
}
