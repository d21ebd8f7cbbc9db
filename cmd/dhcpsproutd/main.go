// Command dhcpsproutd runs the relay-driven DHCPv4 server described by
// spec.md: it loads configuration, opens the control store, performs the
// initial synchronous load, binds listeners, and serves until a shutdown
// signal arrives.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dhcpsprout/dhcpsprout/internal/config"
	"github.com/dhcpsprout/dhcpsprout/internal/dhcpsvc"
	"github.com/dhcpsprout/dhcpsprout/internal/metrics"
	promsrv "github.com/dhcpsprout/dhcpsprout/internal/prometheus"
	"github.com/dhcpsprout/dhcpsprout/internal/store/postgres"
)

// shutdownGrace bounds how long Stop waits for in-flight work to drain
// before forcing goroutine contexts closed, per spec.md §5's "bounded
// grace period".
const shutdownGrace = 5 * time.Second

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 on clean shutdown, non-zero on any
// unrecoverable initialization error, per spec.md §6.
func run() int {
	configPath := flag.String("config", "dhcpsprout.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("dhcpsproutd: %s", err)

		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := postgres.Open(ctx, cfg.Database.DSN())
	if err != nil {
		log.Error("dhcpsproutd: opening store: %s", err)

		return 1
	}
	defer st.Close()

	defaultAddr, err := cfg.DHCP.Addr()
	if err != nil {
		log.Error("dhcpsproutd: dhcp.default_server_addr: %s", err)

		return 1
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	metricsSrv := promsrv.Create(cfg.Prometheus, registry)
	metricsSrv.Start()
	defer func() { _ = metricsSrv.Shutdown(context.Background()) }()

	server := dhcpsvc.NewServer(dhcpsvc.ServerConfig{
		Store:             st,
		Binds:             cfg.DHCP.BindList(),
		DefaultServerAddr: defaultAddr,
		Channel:           cfg.Database.Channel,
	})

	if err = server.Start(ctx); err != nil {
		log.Error("dhcpsproutd: starting: %s", err)

		return 1
	}

	log.Info("dhcpsproutd: serving %s", strings.Join(cfg.DHCP.BindList(), ", "))

	<-ctx.Done()
	log.Info("dhcpsproutd: shutting down")
	server.Stop(shutdownGrace)

	if err = server.Wait(); err != nil {
		log.Error("dhcpsproutd: %s", err)

		return 1
	}

	return 0
}
