// Package prometheus wires the dhcpsprout metrics registry to an HTTP
// /metrics endpoint.
package prometheus

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/AdguardTeam/golibs/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls whether and where the metrics endpoint is served.
type Config struct {
	Enabled  bool   `yaml:"enabled"`
	BindHost string `yaml:"bind_host"`
	BindPort int    `yaml:"bind_port"`
}

// Server serves the /metrics endpoint for a registry. A disabled Server's
// methods are no-ops, so callers can always construct and use one.
type Server struct {
	conf Config
	mux  *http.ServeMux
	srv  *http.Server
	addr string
}

// Create builds a Server bound to registry. If config.Enabled is false, the
// returned Server's Start and Shutdown are no-ops.
func Create(config Config, registry *prometheus.Registry) *Server {
	s := &Server{conf: config}
	if !s.conf.Enabled {
		return s
	}

	s.mux = http.NewServeMux()
	s.mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	s.addr = net.JoinHostPort(s.conf.BindHost, strconv.Itoa(s.conf.BindPort))
	s.srv = &http.Server{Addr: s.addr, Handler: s.mux}

	return s
}

// Start begins serving /metrics in the background. Errors other than a
// clean shutdown are logged, not returned: the metrics endpoint is not
// load-bearing for the DHCP service itself.
func (s *Server) Start() {
	if !s.conf.Enabled {
		return
	}

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("prometheus: serving %s: %s", s.addr, err)
		}
	}()
}

// Shutdown gracefully stops the metrics server, if enabled.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.conf.Enabled {
		return nil
	}

	return s.srv.Shutdown(ctx)
}
