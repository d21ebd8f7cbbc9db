package dhcpsvc

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcpsprout/dhcpsprout/internal/dhcp4"
	"github.com/dhcpsprout/dhcpsprout/internal/store"
	"github.com/dhcpsprout/dhcpsprout/internal/store/storetest"
)

// TestReconciler_AddStaging_RaceSuppression covers P7: given an empty
// index and N concurrent requests from the same unknown MAC, the
// reconciler performs at most one successful owner-insert for that MAC.
func TestReconciler_AddStaging_RaceSuppression(t *testing.T) {
	fake := storetest.NewFake()
	relay := netip.MustParseAddr("10.0.0.1")
	fake.AddProfile(store.Profile{
		RelayIP:     relay,
		NetworkAddr: netip.MustParsePrefix("192.168.7.0/24"),
		LeaseTime:   time.Hour,
	})

	s := NewServer(ServerConfig{Store: fake})

	mac, err := net.ParseMAC("de:12:44:4c:bb:48")
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	var stagedCount int

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := request{
				packet: &dhcp4.Packet{
					Op:          dhcp4.OpRequest,
					HType:       dhcp4.HTypeEthernet,
					HLen:        dhcp4.HLenEthernet,
					Hops:        1,
					ChAddr:      mac,
					GIAddr:      relay,
					MessageType: dhcp4.MessageTypeDiscover,
				},
				peer: netip.MustParseAddrPort("10.0.0.1:67"),
			}

			v := s.decide(req)
			if v.task != nil {
				mu.Lock()
				stagedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	ctx := context.Background()
	for i := 0; i < stagedCount; i++ {
		s.handleTask(ctx, addStagingTask{mac: "de:12:44:4c:bb:48", relayIP: relay, at: time.Now()})
	}

	items, err := fake.LoadOwners(ctx)
	require.NoError(t, err)

	count := 0
	for _, it := range items {
		if it.Owner.MACAddr == "de:12:44:4c:bb:48" {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one owner row should exist for the raced MAC")
}

func TestHandleAddStaging_NoProfile_RemovesOptimisticMark(t *testing.T) {
	fake := storetest.NewFake() // no profiles registered
	s := NewServer(ServerConfig{Store: fake})

	mac := "aa:bb:cc:dd:ee:ff"
	relay := netip.MustParseAddr("10.0.0.1")
	s.index.markStaging(mac, relay)

	err := s.handleAddStaging(context.Background(), addStagingTask{mac: mac, relayIP: relay})
	require.NoError(t, err)

	_, staged := s.index.lookupStaging(mac)
	assert.False(t, staged, "the optimistic mark should be removed when no profile matches")
}

func TestHandleReloadItem_Idempotent(t *testing.T) {
	fake := storetest.NewFake()
	p := fake.AddProfile(store.Profile{
		RelayIP:     netip.MustParseAddr("10.0.0.1"),
		NetworkAddr: netip.MustParsePrefix("192.168.7.0/24"),
		LeaseTime:   time.Hour,
	})
	o := fake.AddOwner(store.Owner{ProfileID: p.ID, MACAddr: "de:12:44:4c:bb:48"})
	fake.AssignIP(o.ID, netip.MustParseAddr("192.168.7.2"))

	s := NewServer(ServerConfig{Store: fake})
	ctx := context.Background()

	require.NoError(t, s.handleReloadItem(ctx, reloadItemTask{ownerID: o.ID}))
	first, ok := s.index.lookupActive("de:12:44:4c:bb:48")
	require.True(t, ok)

	require.NoError(t, s.handleReloadItem(ctx, reloadItemTask{ownerID: o.ID}))
	second, ok := s.index.lookupActive("de:12:44:4c:bb:48")
	require.True(t, ok)

	assert.Equal(t, first, second)
}
