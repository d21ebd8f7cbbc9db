package dhcpsvc

import (
	"net/netip"
	"sync"
	"time"

	"github.com/dhcpsprout/dhcpsprout/internal/store"
)

// ActiveEntry is the projection of an Item that the decision engine needs
// to synthesize a reply: the resolved profile fields plus the assigned
// address and owner id. Netmask is precomputed at load time so the hot
// path never reparses a CIDR (spec.md §9, "netmask computation").
type ActiveEntry struct {
	RelayIP   netip.Addr
	IPAddr    netip.Addr
	RouterIP  netip.Addr
	Netmask   netip.Addr
	DNSIPs    []netip.Addr
	NTPIPs    []netip.Addr
	LeaseTime time.Duration
	OwnerID   int64
	ProfileID int64
}

// index holds the two maps of spec.md §4.4. The reconciler writes both
// maps; the only other writer is the decision engine's optimistic staging
// mark (checkAndMarkStaging). Reads (from the decision engine's hot path)
// and all writes are serialized by mu, matching the
// teacher-grounded "RWLock with the reconciler as the sole writer" option
// named in spec.md §9 — simpler and cheaper than a channel-confined index
// given reload is rare and reads are the hot path.
type index struct {
	mu      sync.RWMutex
	active  map[string]ActiveEntry
	staging map[string]netip.Addr
}

func newIndex() *index {
	return &index{
		active:  make(map[string]ActiveEntry),
		staging: make(map[string]netip.Addr),
	}
}

// lookupActive returns the active entry for mac, if any.
func (idx *index) lookupActive(mac string) (entry ActiveEntry, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entry, ok = idx.active[mac]

	return entry, ok
}

// lookupStaging reports whether mac is currently staged.
func (idx *index) lookupStaging(mac string) (relayIP netip.Addr, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	relayIP, ok = idx.staging[mac]

	return relayIP, ok
}

// markStaging optimistically records mac as staged on relayIP, ahead of
// reconciler confirmation (spec.md §9, "optimistic staging mark").
func (idx *index) markStaging(mac string, relayIP netip.Addr) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.staging[mac] = relayIP
}

// checkAndMarkStaging atomically checks whether mac is already staged and,
// if not, marks it staged on relayIP in the same critical section. This
// closes the check-then-act race a separate lookupStaging+markStaging pair
// would have under concurrent decide calls for the same MAC (spec.md §8,
// P7: at most one successful insert per MAC).
func (idx *index) checkAndMarkStaging(mac string, relayIP netip.Addr) (alreadyStaged bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.staging[mac]; ok {
		return true
	}

	idx.staging[mac] = relayIP

	return false
}

// removeStaging deletes mac from staging, if present.
func (idx *index) removeStaging(mac string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.staging, mac)
}

// removeActive deletes mac from active, if present.
func (idx *index) removeActive(mac string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.active, mac)
}

// updateItem applies the `_update_item` semantics of spec.md §4.4: a row
// with a non-null ip_addr becomes (or replaces) an active entry and clears
// any staging entry for the same MAC; a row with a null ip_addr becomes (or
// replaces) a staging entry, leaving active untouched. The active path
// always clears staging, but the staging path does not clear active: a
// null-ip row for a MAC that is already active leaves it in both maps.
func (idx *index) updateItem(it store.Item) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	mac := it.Owner.MACAddr

	if it.Owner.IPAddr.IsValid() {
		delete(idx.staging, mac)
		idx.active[mac] = ActiveEntry{
			RelayIP:   it.Profile.RelayIP,
			IPAddr:    it.Owner.IPAddr,
			RouterIP:  it.Profile.RouterIP,
			Netmask:   prefixNetmask(it.Profile.NetworkAddr),
			DNSIPs:    it.Profile.DNSIPs,
			NTPIPs:    it.Profile.NTPIPs,
			LeaseTime: it.Profile.LeaseTime,
			OwnerID:   it.Owner.ID,
			ProfileID: it.Profile.ID,
		}

		return
	}

	idx.staging[mac] = it.Profile.RelayIP
}

// sizes returns the current entry counts, for the IndexSize metric.
func (idx *index) sizes() (activeN, stagingN int) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.active), len(idx.staging)
}

// prefixNetmask renders prefix's netmask as a dotted-decimal address, the
// way Reply's SubnetMask option needs it.
func prefixNetmask(prefix netip.Prefix) netip.Addr {
	if !prefix.IsValid() {
		return netip.Addr{}
	}

	ones := prefix.Bits()
	var b [4]byte
	for i := 0; i < ones; i++ {
		b[i/8] |= 1 << (7 - uint(i%8))
	}

	return netip.AddrFrom4(b)
}
