/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/hyperledger/fabric-lib-go/healthz"
	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// System is the operations endpoint serving /metrics and /healthz. It is an
// ifrit.Runner so it can run beside the load harness workers.
type System struct {
	listenAddress string
	router        *mux.Router
	health        *healthz.HealthHandler
	addr          net.Addr
	started       chan struct{}
}

// NewSystem creates the operations endpoint. gatherer may be nil when metrics are disabled.
func NewSystem(listenAddress string, gatherer prom.Gatherer) *System {
	s := &System{
		listenAddress: listenAddress,
		router:        mux.NewRouter(),
		health:        healthz.NewHealthHandler(),
		started:       make(chan struct{}),
	}
	s.router.Handle("/healthz", s.health).Methods(http.MethodGet)
	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	} else {
		logger.Info("metrics disabled, /metrics not served")
	}
	return s
}

// RegisterChecker adds a component to /healthz
func (s *System) RegisterChecker(component string, checker healthz.HealthChecker) error {
	return s.health.RegisterChecker(component, checker)
}

// Handler returns the router, mainly for tests
func (s *System) Handler() http.Handler {
	return s.router
}

// Addr is the bound address, valid once the runner signalled ready
func (s *System) Addr() net.Addr {
	<-s.started
	return s.addr
}

// Run serves until a signal arrives
func (s *System) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	listener, err := net.Listen("tcp", s.listenAddress)
	if err != nil {
		return errors.Wrapf(err, "listen on %s failed", s.listenAddress)
	}
	s.addr = listener.Addr()
	close(s.started)

	server := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(listener) }()

	logger.Infof("operations endpoint listening on %s", s.addr)
	close(ready)

	select {
	case err := <-serveErr:
		return errors.Wrap(err, "operations endpoint failed")
	case sig := <-signals:
		logger.Debugf("operations endpoint stopping on %s", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(ctx)
	}
}

// CheckerFunc adapts a function to healthz.HealthChecker
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f
func (f CheckerFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}
