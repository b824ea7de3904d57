// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the echo server and the echo client.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tcpecho"

// ServerMetrics counts the echo server's connection and data activity.
type ServerMetrics struct {
	Accepted     prometheus.Counter
	Disconnects  *prometheus.CounterVec // reason: peer_closed, hangup, error
	Active       prometheus.Gauge
	BytesRead    prometheus.Counter
	BytesWritten prometheus.Counter
	ShortWrites  prometheus.Counter
}

// NewServerMetrics creates the server collectors and registers them on reg.
// A nil reg leaves them unregistered, which is what tests usually want.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "server",
			Name: "accepted_total",
			Help: "Connections accepted by the echo server.",
		}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "server",
			Name: "disconnects_total",
			Help: "Connections removed from the registered set, by reason.",
		}, []string{"reason"}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "server",
			Name: "active_connections",
			Help: "Connections currently in the registered set.",
		}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "server",
			Name: "read_bytes_total",
			Help: "Bytes read from clients.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "server",
			Name: "written_bytes_total",
			Help: "Bytes echoed back to clients.",
		}),
		ShortWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "server",
			Name: "short_writes_total",
			Help: "Echo writes that accepted fewer bytes than were read. The remainder is dropped.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Accepted, m.Disconnects, m.Active, m.BytesRead, m.BytesWritten, m.ShortWrites)
	}
	return m
}

// ClientMetrics records the echo driver's outcomes and latencies.
type ClientMetrics struct {
	Runs    *prometheus.CounterVec   // result: ok or an api.ErrorCode label
	Packets *prometheus.CounterVec   // result: ok or an api.ErrorCode label
	RTT     prometheus.Histogram     // seconds, per successful packet
	Phase   *prometheus.HistogramVec // phase: resolv, connect
}

// NewClientMetrics creates the client collectors and registers them on reg
// when reg is not nil.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "client",
			Name: "runs_total",
			Help: "Completed test runs, by result.",
		}, []string{"result"}),
		Packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "client",
			Name: "packets_total",
			Help: "Echo packets attempted, by result.",
		}, []string{"result"}),
		RTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "client",
			Name:    "rtt_seconds",
			Help:    "Round-trip time from write start to read completion.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		Phase: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "client",
			Name:    "phase_seconds",
			Help:    "Elapsed time of the resolution and connect phases.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, []string{"phase"}),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.Packets, m.RTT, m.Phase)
	}
	return m
}
