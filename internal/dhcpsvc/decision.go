package dhcpsvc

import (
	"net/netip"

	"github.com/AdguardTeam/golibs/log"

	"github.com/dhcpsprout/dhcpsprout/internal/dhcp4"
	"github.com/dhcpsprout/dhcpsprout/internal/metrics"
)

// verdict is the outcome of classifying one request, spec.md §4.3's
// {drop, add-to-staging, reply-with-lease}.
type verdict struct {
	reply *dhcp4.Packet
	task  task
}

// request is one parsed packet together with the listener metadata the
// decision engine and reply synthesis need.
type request struct {
	packet      *dhcp4.Packet
	peer        netip.AddrPort
	serverAddr  netip.Addr // the listener's own bind address, if concrete
	defaultAddr netip.Addr // the server-wide fallback Server Identifier
}

// decide classifies req against idx and returns what to do with it,
// implementing the policy of spec.md §4.3 steps 1-7. It never blocks and
// never touches the store directly; ADD_STAGING/UPDATE_LEASE tasks are
// returned for the caller to enqueue.
func (s *Server) decide(req request) verdict {
	p := req.packet

	if s.stopping.Load() {
		metrics.DecisionDrops.WithLabelValues(metrics.DropStopping).Inc()

		return verdict{}
	}

	if p.Op != dhcp4.OpRequest {
		metrics.DecisionDrops.WithLabelValues(metrics.DropWrongOp).Inc()

		return verdict{}
	}

	if p.MessageType != dhcp4.MessageTypeDiscover && p.MessageType != dhcp4.MessageTypeRequest {
		metrics.DecisionDrops.WithLabelValues(metrics.DropWrongMessage).Inc()

		return verdict{}
	}

	if p.Hops == 0 {
		metrics.DecisionDrops.WithLabelValues(metrics.DropNotRelayed).Inc()

		return verdict{}
	}

	relayIP := p.GIAddr
	if !relayIP.IsValid() || relayIP.IsUnspecified() {
		relayIP = req.peer.Addr()
	}

	mac := p.MAC()

	if entry, ok := s.index.lookupActive(mac); ok {
		if entry.RelayIP == relayIP {
			return s.replyVerdict(req, entry)
		}

		return s.stageVerdict(mac, relayIP)
	}

	return s.stageVerdict(mac, relayIP)
}

// stageVerdict atomically checks-and-marks mac staged on relayIP and
// returns the ADD_STAGING task for the caller to enqueue, per spec.md §9's
// "optimistic staging mark". If mac was already staged, it drops instead
// (resolution in flight, spec.md §4.3 step 7).
func (s *Server) stageVerdict(mac string, relayIP netip.Addr) verdict {
	if alreadyStaged := s.index.checkAndMarkStaging(mac, relayIP); alreadyStaged {
		metrics.DecisionDrops.WithLabelValues(metrics.DropStaging).Inc()

		return verdict{}
	}

	return verdict{task: addStagingTask{mac: mac, relayIP: relayIP, at: s.now()}}
}

// replyVerdict synthesizes the OFFER/ACK reply for an active hit, per
// spec.md §4.3's reply synthesis rules.
func (s *Server) replyVerdict(req request, entry ActiveEntry) verdict {
	p := req.packet

	siaddr := req.serverAddr
	if !siaddr.IsValid() {
		siaddr = req.defaultAddr
	}

	reply, err := p.Reply(siaddr, entry.IPAddr)
	if err != nil {
		log.Error("dhcpsvc: building reply: %s", err)

		return verdict{}
	}

	if entry.Netmask.IsValid() {
		reply.Options = append(reply.Options, dhcp4.IPOption(dhcp4.OptionSubnetMask, entry.Netmask))
	}
	if entry.RouterIP.IsValid() {
		reply.Options = append(reply.Options, dhcp4.IPOption(dhcp4.OptionRouter, entry.RouterIP))
	}
	if len(entry.DNSIPs) > 0 {
		reply.Options = append(reply.Options, dhcp4.IPListOption(dhcp4.OptionDomainNameServers, entry.DNSIPs))
	}
	if len(entry.NTPIPs) > 0 {
		reply.Options = append(reply.Options, dhcp4.IPListOption(dhcp4.OptionNTPServer, entry.NTPIPs))
	}
	reply.Options = append(reply.Options, dhcp4.Uint32Option(dhcp4.OptionIPAddressLeaseTime, uint32(entry.LeaseTime.Seconds())))
	if siaddr.IsValid() {
		reply.Options = append(reply.Options, dhcp4.IPOption(dhcp4.OptionServerIdentifier, siaddr))
	}

	metrics.DecisionReplies.WithLabelValues(reply.MessageType.String()).Inc()

	v := verdict{reply: reply}
	if reply.MessageType == dhcp4.MessageTypeAck {
		v.task = updateLeaseTask{mac: p.MAC(), at: s.now()}
	}

	return v
}
