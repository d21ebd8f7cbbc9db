// Package dhcpsvc implements the request classification state machine, the
// in-memory (MAC → profile/assignment) index, the reconciler task loop,
// the notification subscriber, and the listener set of spec.md §§4.2-4.6.
package dhcpsvc

import (
	"context"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"golang.org/x/sync/errgroup"

	"github.com/dhcpsprout/dhcpsprout/internal/dhcp4"
	"github.com/dhcpsprout/dhcpsprout/internal/store"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Store is the control store backing the reconciler and subscriber.
	Store store.Store

	// Binds is the set of host[:port] UDP binds to listen on, per
	// spec.md §6.
	Binds []string

	// DefaultServerAddr is used as the Server Identifier when a listener
	// is bound to the unspecified address.
	DefaultServerAddr netip.Addr

	// Channel is the store's pub/sub channel name; defaults to
	// "dhcp_control" (spec.md §6) when empty.
	Channel string
}

// Server wires together the index, reconciler, subscriber, and listener
// set described by spec.md §§4.2-4.6.
type Server struct {
	store       store.Store
	index       *index
	listeners   []*listener
	tasks       chan task
	binds       []string
	defaultAddr netip.Addr
	channel     string
	stopping    atomic.Bool
	cancel      context.CancelFunc
	group       *errgroup.Group
	now         func() time.Time
}

// NewServer builds a Server from cfg but does not bind listeners or start
// any goroutines; call Start for that.
func NewServer(cfg ServerConfig) *Server {
	channel := cfg.Channel
	if channel == "" {
		channel = defaultChannel
	}

	return &Server{
		store:       cfg.Store,
		index:       newIndex(),
		tasks:       make(chan task, taskQueueCapacity),
		binds:       cfg.Binds,
		defaultAddr: cfg.DefaultServerAddr,
		channel:     channel,
		now:         time.Now,
	}
}

// Start performs the initial LOAD_OWNERS synchronously (spec.md §5: "no
// client traffic is processed until the initial snapshot is in memory"),
// then starts the reconciler, subscriber, and every configured listener.
// It returns once listeners are bound and ready; Wait blocks until the
// server stops or one of its goroutines fails fatally.
func (s *Server) Start(ctx context.Context) error {
	if err := s.handleLoadOwners(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	notifications, err := s.store.Listen(runCtx, s.channel)
	if err != nil {
		cancel()

		return err
	}

	for _, bindAddr := range s.binds {
		l, bindErr := bindListener(bindAddr)
		if bindErr != nil {
			cancel()

			return bindErr
		}

		s.listeners = append(s.listeners, l)
	}

	group, gctx := errgroup.WithContext(runCtx)
	s.group = group

	group.Go(func() error { return s.runReconciler(gctx) })
	group.Go(func() error { return s.runSubscriber(gctx, notifications) })

	for _, l := range s.listeners {
		l := l
		group.Go(func() error {
			l.readLoop(gctx, s.handleDatagram)

			return nil
		})
		group.Go(func() error {
			l.writeLoop(gctx)

			return nil
		})
	}

	log.Info("dhcpsvc: listening on %d bind(s)", len(s.listeners))

	return nil
}

// Wait blocks until every supervised goroutine has exited, returning the
// first error any of them reported.
func (s *Server) Wait() error {
	if s.group == nil {
		return nil
	}

	return s.group.Wait()
}

// Stop sets the stopping flag (so the decision engine short-circuits to
// drop, per spec.md §5), enqueues SHUTDOWN, and cancels every supervised
// goroutine's context once the grace period elapses or they exit early.
func (s *Server) Stop(grace time.Duration) {
	s.stopping.Store(true)
	s.enqueue(shutdownTask{})

	if s.cancel == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		_ = s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
	}

	s.cancel()

	for _, l := range s.listeners {
		_ = l.close()
	}
}

// handleDatagram is the per-packet entry point from a listener's read
// loop: parse, classify, enqueue any resulting task, and queue a reply if
// one was synthesized.
func (s *Server) handleDatagram(ctx context.Context, l *listener, peer netip.AddrPort, data []byte) {
	p, err := dhcp4.Parse(data)
	if err != nil {
		log.Debug("dhcpsvc: %s", err)

		return
	}

	v := s.decide(request{
		packet:      p,
		peer:        peer,
		serverAddr:  l.serverAddr,
		defaultAddr: s.defaultAddr,
	})

	if v.task != nil {
		s.enqueue(v.task)
	}

	if v.reply != nil {
		l.enqueueSend(ctx, peer, v.reply.Encode())
	}
}
