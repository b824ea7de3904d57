// control/admin.go
// Author: momentics <momentics@gmail.com>
//
// Admin HTTP surface: Prometheus exposition, liveness/readiness and debug state.

package control

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Admin serves /metrics, /live, /ready and /debug/state.
type Admin struct {
	health healthcheck.Handler
	probes *DebugProbes
	mux    *http.ServeMux
}

// NewAdmin builds the handler. gatherer backs /metrics; probes backs
// /debug/state and may be nil.
func NewAdmin(gatherer prometheus.Gatherer, probes *DebugProbes) *Admin {
	if probes == nil {
		probes = NewDebugProbes()
	}
	a := &Admin{
		health: healthcheck.NewHandler(),
		probes: probes,
		mux:    http.NewServeMux(),
	}
	a.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	a.mux.HandleFunc("/live", a.health.LiveEndpoint)
	a.mux.HandleFunc("/ready", a.health.ReadyEndpoint)
	a.mux.Handle("/debug/state", probes)
	return a
}

// AddLivenessCheck registers a check that fails /live when it returns an error.
func (a *Admin) AddLivenessCheck(name string, check func() error) {
	a.health.AddLivenessCheck(name, check)
}

// AddReadinessCheck registers a check that fails /ready when it returns an error.
func (a *Admin) AddReadinessCheck(name string, check func() error) {
	a.health.AddReadinessCheck(name, check)
}

// Probes returns the debug probe registry.
func (a *Admin) Probes() *DebugProbes {
	return a.probes
}

// ServeHTTP implements http.Handler.
func (a *Admin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// ListenAndServe serves the admin endpoints on addr until ctx is done.
func (a *Admin) ListenAndServe(ctx context.Context, addr string, log *logrus.Entry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "admin listen %s", addr)
	}
	srv := &http.Server{Handler: a, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if log != nil {
		log.WithField("addr", ln.Addr().String()).Info("admin endpoint listening")
	}
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "admin serve")
	}
	return nil
}
