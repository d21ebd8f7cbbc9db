package dhcpsvc

import (
	"context"
	"net"
	"net/netip"

	"github.com/AdguardTeam/golibs/log"
)

// recvBufSize is the size of each read buffer, matching spec.md §4.2's
// "recvfrom(bufsize=4096)".
const recvBufSize = 4096

// sendQueueCapacity is the default bound on a listener's outgoing queue,
// per spec.md §4.2/§9.
const sendQueueCapacity = 10

// limitedBroadcast is the address spec.md §4.2 requires outgoing sends to
// the unspecified host be rewritten to.
var limitedBroadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// outgoing is one reply queued for transmission by a listener.
type outgoing struct {
	to   netip.AddrPort
	data []byte
}

// listener owns one UDP socket, its own send queue, and the server_addr it
// advertises as Server Identifier when it is bound to a concrete address.
type listener struct {
	conn       *net.UDPConn
	send       chan outgoing
	serverAddr netip.Addr // invalid if bound to the unspecified address
}

// bindListener opens a non-blocking UDP socket at bindAddr (host[:port],
// default port 67), setting SO_REUSEADDR and SO_BROADCAST.
func bindListener(bindAddr string) (*listener, error) {
	host, port, err := splitHostPort(bindAddr)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{Control: controlSetReuseBroadcast}
	pc, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort(host, port))
	if err != nil {
		return nil, err
	}

	l := &listener{conn: pc.(*net.UDPConn), send: make(chan outgoing, sendQueueCapacity)}

	if addr, parseErr := netip.ParseAddr(host); parseErr == nil && !addr.IsUnspecified() && host != "" {
		l.serverAddr = addr
	}

	return l, nil
}

// splitHostPort parses a spec.md §6 dhcp.binds entry ("host[:port]"),
// defaulting to port 67.
func splitHostPort(bindAddr string) (host, port string, err error) {
	host, port, err = net.SplitHostPort(bindAddr)
	if err != nil {
		return bindAddr, "67", nil
	}

	return host, port, nil
}

// readLoop performs one recvfrom per iteration and dispatches each datagram
// to handle as an independent goroutine, so the read path never blocks on
// downstream processing (spec.md §4.2).
func (l *listener) readLoop(ctx context.Context, handle func(context.Context, *listener, netip.AddrPort, []byte)) {
	for {
		buf := make([]byte, recvBufSize)
		n, addr, err := l.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			log.Debug("dhcpsvc: listener %s: read: %s", l.conn.LocalAddr(), err)

			continue
		}

		go handle(ctx, l, addr, buf[:n])
	}
}

// writeLoop drains l.send in order and writes each datagram to the socket,
// substituting the limited broadcast address for an unspecified host.
func (l *listener) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-l.send:
			to := out.to
			if !to.Addr().IsValid() || to.Addr().IsUnspecified() {
				to = netip.AddrPortFrom(limitedBroadcast, to.Port())
			}

			if _, err := l.conn.WriteToUDPAddrPort(out.data, to); err != nil {
				log.Debug("dhcpsvc: listener %s: write to %s: %s", l.conn.LocalAddr(), to, err)
			}
		}
	}
}

// enqueueSend blocks until there is room in the send queue or ctx is
// canceled, matching spec.md §7's SendBackpressure ("producers wait, no
// drop").
func (l *listener) enqueueSend(ctx context.Context, to netip.AddrPort, data []byte) {
	select {
	case l.send <- outgoing{to: to, data: data}:
	case <-ctx.Done():
	}
}

func (l *listener) close() error {
	return l.conn.Close()
}
