// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime observability for the echo client and server:
//   - Prometheus counters and histograms for connections, bytes and RTT
//   - Named debug probes dumped as JSON
//   - An admin HTTP handler serving /metrics, /live, /ready and /debug/state
package control
