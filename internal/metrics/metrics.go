// Package metrics exposes Prometheus collectors for the editor link.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally and callers that do not care about metrics pass nil.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Message processing outcomes used as the "status" label.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusUnknown = "unknown"
)

// Traffic directions used as the "direction" label.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Namespace prefixes every collector name.
const Namespace = "aselink"

// Metrics holds the collectors for one process.
type Metrics struct {
	messagesTotal   *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec
	bytesTotal      *prometheus.CounterVec
	sessionsTotal   prometheus.Counter
	connected       prometheus.Gauge
	atlasesPacked   prometheus.Counter
	rejectedPeers   prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg creates
// unregistered collectors, which is what tests that only count calls want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_total",
			Help:      "Total number of protocol messages processed, by tag and outcome",
		}, []string{"tag", "status"}),

		messageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "message_duration_seconds",
			Help:      "Time spent parsing and executing one protocol message",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tag"}),

		bytesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bytes_total",
			Help:      "Websocket payload bytes, by direction",
		}, []string{"direction"}),

		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_total",
			Help:      "Total number of editor sessions accepted",
		}),

		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "editor_connected",
			Help:      "1 while an editor is connected",
		}),

		atlasesPacked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "atlases_packed_total",
			Help:      "Total number of spritesheet atlases assembled",
		}),

		rejectedPeers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rejected_peers_total",
			Help:      "Connections refused because an editor was already connected",
		}),
	}
}

// ObserveMessage records one processed message.
func (m *Metrics) ObserveMessage(tag, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(tag, status).Inc()
	m.messageDuration.WithLabelValues(tag).Observe(d.Seconds())
}

// AddBytes records websocket payload traffic.
func (m *Metrics) AddBytes(direction string, n int) {
	if m == nil {
		return
	}
	m.bytesTotal.WithLabelValues(direction).Add(float64(n))
}

// SessionOpened marks an editor as connected.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsTotal.Inc()
	m.connected.Set(1)
}

// SessionClosed marks the editor as gone.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.connected.Set(0)
}

// AtlasPacked counts one assembled spritesheet.
func (m *Metrics) AtlasPacked() {
	if m == nil {
		return
	}
	m.atlasesPacked.Inc()
}

// PeerRejected counts one refused second connection.
func (m *Metrics) PeerRejected() {
	if m == nil {
		return
	}
	m.rejectedPeers.Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
