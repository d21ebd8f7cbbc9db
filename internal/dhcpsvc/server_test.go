package dhcpsvc

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcpsprout/dhcpsprout/internal/dhcp4"
	"github.com/dhcpsprout/dhcpsprout/internal/store"
	"github.com/dhcpsprout/dhcpsprout/internal/store/storetest"
)

// scenarioServer drives the decide → handleTask pipeline directly, the way
// a listener's read loop and the reconciler goroutine would in production,
// without binding real sockets — this is the "end-to-end against a fake
// store" harness named in SPEC_FULL.md §8.
type scenarioServer struct {
	*Server
	fake *storetest.Fake
	ctx  context.Context
}

func newScenario(t *testing.T) *scenarioServer {
	t.Helper()

	fake := storetest.NewFake()
	s := NewServer(ServerConfig{Store: fake, DefaultServerAddr: netip.MustParseAddr("192.168.1.1")})
	ctx := context.Background()
	require.NoError(t, s.handleLoadOwners(ctx))

	return &scenarioServer{Server: s, fake: fake, ctx: ctx}
}

// send runs one packet through decide and, if a task was produced,
// immediately applies it via the reconciler's task handler — simulating a
// quiesced reconciler.
func (sc *scenarioServer) send(t *testing.T, p *dhcp4.Packet, peer netip.AddrPort) *dhcp4.Packet {
	t.Helper()

	v := sc.decide(request{packet: p, peer: peer, defaultAddr: sc.defaultAddr})
	if v.task != nil {
		sc.handleTask(sc.ctx, v.task)
	}

	return v.reply
}

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	require.NoError(t, err)

	return mac
}

// TestScenario1_FreshDiscoverFromUnknownMAC covers end-to-end scenario 1.
func TestScenario1_FreshDiscoverFromUnknownMAC(t *testing.T) {
	sc := newScenario(t)
	profile := sc.fake.AddProfile(store.Profile{
		RelayIP:     netip.MustParseAddr("10.0.0.1"),
		NetworkAddr: netip.MustParsePrefix("192.168.7.0/24"),
		LeaseTime:   time.Hour,
	})

	p := &dhcp4.Packet{
		Op: dhcp4.OpRequest, HType: dhcp4.HTypeEthernet, HLen: dhcp4.HLenEthernet,
		Hops: 1, ChAddr: mustMAC(t, "de:12:44:4c:bb:48"),
		GIAddr: netip.MustParseAddr("10.0.0.1"), MessageType: dhcp4.MessageTypeDiscover,
	}

	reply := sc.send(t, p, netip.MustParseAddrPort("10.0.0.1:67"))
	assert.Nil(t, reply)

	items, err := sc.fake.LoadOwners(sc.ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "de:12:44:4c:bb:48", items[0].Owner.MACAddr)
	assert.Equal(t, profile.ID, items[0].Owner.ProfileID)
	assert.False(t, items[0].Owner.IPAddr.IsValid())

	relay, staged := sc.index.lookupStaging("de:12:44:4c:bb:48")
	assert.True(t, staged)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), relay)
}

// TestScenario2_OperatorAssignsThenRequest covers end-to-end scenario 2.
func TestScenario2_OperatorAssignsThenRequest(t *testing.T) {
	sc := newScenario(t)
	profile := sc.fake.AddProfile(store.Profile{
		RelayIP:     netip.MustParseAddr("10.0.0.1"),
		NetworkAddr: netip.MustParsePrefix("192.168.7.0/24"),
		LeaseTime:   time.Hour,
	})
	owner := sc.fake.AddOwner(store.Owner{ProfileID: profile.ID, MACAddr: "de:12:44:4c:bb:48"})

	sc.fake.AssignIP(owner.ID, netip.MustParseAddr("192.168.7.2"))
	sc.handleTask(sc.ctx, reloadItemTask{ownerID: owner.ID})

	req := &dhcp4.Packet{
		Op: dhcp4.OpRequest, HType: dhcp4.HTypeEthernet, HLen: dhcp4.HLenEthernet,
		Hops: 1, ChAddr: mustMAC(t, "de:12:44:4c:bb:48"),
		GIAddr: netip.MustParseAddr("10.0.0.1"), MessageType: dhcp4.MessageTypeRequest,
		Xid: 0xCAFEBABE,
	}

	reply := sc.send(t, req, netip.MustParseAddrPort("10.0.0.1:67"))
	require.NotNil(t, reply)

	assert.Equal(t, dhcp4.OpReply, reply.Op)
	assert.Equal(t, dhcp4.MessageTypeAck, reply.MessageType)
	assert.Equal(t, uint32(0xCAFEBABE), reply.Xid)
	assert.Equal(t, netip.MustParseAddr("192.168.7.2"), reply.YIAddr)

	mask, ok := reply.Options.Get(dhcp4.OptionSubnetMask)
	require.True(t, ok)
	maskIP, err := mask.IPValue()
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("255.255.255.0"), maskIP)

	lease, ok := reply.Options.Get(dhcp4.OptionIPAddressLeaseTime)
	require.True(t, ok)
	leaseSeconds, err := lease.Uint32Value()
	require.NoError(t, err)
	assert.Equal(t, uint32(3600), leaseSeconds)

	sid, ok := reply.Options.Get(dhcp4.OptionServerIdentifier)
	require.True(t, ok)
	sidIP, err := sid.IPValue()
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.1.1"), sidIP)
}

// TestScenario3_RelayChangeRestages covers end-to-end scenario 3.
func TestScenario3_RelayChangeRestages(t *testing.T) {
	sc := newScenario(t)
	profile1 := sc.fake.AddProfile(store.Profile{
		RelayIP:     netip.MustParseAddr("10.0.0.1"),
		NetworkAddr: netip.MustParsePrefix("192.168.7.0/24"),
		LeaseTime:   time.Hour,
	})
	sc.fake.AddProfile(store.Profile{
		RelayIP:     netip.MustParseAddr("10.0.1.1"),
		NetworkAddr: netip.MustParsePrefix("192.168.8.0/24"),
		LeaseTime:   time.Hour,
	})

	mac := "de:12:44:4c:bb:48"
	owner := sc.fake.AddOwner(store.Owner{ProfileID: profile1.ID, MACAddr: mac})
	sc.fake.AssignIP(owner.ID, netip.MustParseAddr("192.168.7.2"))
	sc.handleTask(sc.ctx, reloadItemTask{ownerID: owner.ID})

	p := &dhcp4.Packet{
		Op: dhcp4.OpRequest, HType: dhcp4.HTypeEthernet, HLen: dhcp4.HLenEthernet,
		Hops: 1, ChAddr: mustMAC(t, mac),
		GIAddr: netip.MustParseAddr("10.0.1.1"), MessageType: dhcp4.MessageTypeDiscover,
	}

	reply := sc.send(t, p, netip.MustParseAddrPort("10.0.1.1:67"))
	assert.Nil(t, reply)

	items, err := sc.fake.LoadOwners(sc.ctx)
	require.NoError(t, err)

	found := false
	for _, it := range items {
		if it.Owner.MACAddr == mac && it.Owner.ID != owner.ID {
			found = true
		}
	}
	assert.True(t, found, "a new staged owner row should exist under the second profile")
}

// TestScenario4_ProfileReloadCascades covers end-to-end scenario 4.
func TestScenario4_ProfileReloadCascades(t *testing.T) {
	sc := newScenario(t)
	profile := sc.fake.AddProfile(store.Profile{
		RelayIP:     netip.MustParseAddr("10.0.0.1"),
		NetworkAddr: netip.MustParsePrefix("192.168.7.0/24"),
		LeaseTime:   time.Hour,
	})
	owner := sc.fake.AddOwner(store.Owner{ProfileID: profile.ID, MACAddr: "de:12:44:4c:bb:48"})
	sc.fake.AssignIP(owner.ID, netip.MustParseAddr("192.168.7.2"))
	sc.handleTask(sc.ctx, reloadItemTask{ownerID: owner.ID})

	sc.fake.SetLeaseTime(profile.ID, 2*time.Hour)
	sc.handleTask(sc.ctx, reloadProfileTask{profileID: profile.ID})

	req := &dhcp4.Packet{
		Op: dhcp4.OpRequest, HType: dhcp4.HTypeEthernet, HLen: dhcp4.HLenEthernet,
		Hops: 1, ChAddr: mustMAC(t, "de:12:44:4c:bb:48"),
		GIAddr: netip.MustParseAddr("10.0.0.1"), MessageType: dhcp4.MessageTypeRequest,
	}

	reply := sc.send(t, req, netip.MustParseAddrPort("10.0.0.1:67"))
	require.NotNil(t, reply)

	lease, ok := reply.Options.Get(dhcp4.OptionIPAddressLeaseTime)
	require.True(t, ok)
	leaseSeconds, err := lease.Uint32Value()
	require.NoError(t, err)
	assert.Equal(t, uint32(7200), leaseSeconds)
}

// TestScenario5_RemoveActiveDisablesService covers end-to-end scenario 5.
func TestScenario5_RemoveActiveDisablesService(t *testing.T) {
	sc := newScenario(t)
	profile := sc.fake.AddProfile(store.Profile{
		RelayIP:     netip.MustParseAddr("10.0.0.1"),
		NetworkAddr: netip.MustParsePrefix("192.168.7.0/24"),
		LeaseTime:   time.Hour,
	})
	mac := "de:12:44:4c:bb:48"
	owner := sc.fake.AddOwner(store.Owner{ProfileID: profile.ID, MACAddr: mac})
	sc.fake.AssignIP(owner.ID, netip.MustParseAddr("192.168.7.2"))
	sc.handleTask(sc.ctx, reloadItemTask{ownerID: owner.ID})

	sc.handleTask(sc.ctx, removeActiveTask{mac: mac})

	req := &dhcp4.Packet{
		Op: dhcp4.OpRequest, HType: dhcp4.HTypeEthernet, HLen: dhcp4.HLenEthernet,
		Hops: 1, ChAddr: mustMAC(t, mac),
		GIAddr: netip.MustParseAddr("10.0.0.1"), MessageType: dhcp4.MessageTypeRequest,
	}

	reply := sc.send(t, req, netip.MustParseAddrPort("10.0.0.1:67"))
	assert.Nil(t, reply)

	_, staged := sc.index.lookupStaging(mac)
	assert.True(t, staged, "the MAC should be re-staged after REMOVE_ACTIVE")
}

// TestScenario6_NonRelayedRequest covers end-to-end scenario 6.
func TestScenario6_NonRelayedRequest(t *testing.T) {
	sc := newScenario(t)

	p := &dhcp4.Packet{
		Op: dhcp4.OpRequest, HType: dhcp4.HTypeEthernet, HLen: dhcp4.HLenEthernet,
		Hops: 0, ChAddr: mustMAC(t, "de:12:44:4c:bb:48"),
		GIAddr: netip.IPv4Unspecified(), MessageType: dhcp4.MessageTypeDiscover,
	}

	reply := sc.send(t, p, netip.MustParseAddrPort("10.0.0.1:67"))
	assert.Nil(t, reply)

	items, err := sc.fake.LoadOwners(sc.ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}
