// Package storetest provides an in-memory store.Store implementation for
// tests that exercise the reconciler and decision engine without a live
// database. It plays the same role the teacher's dhcpsvc.Empty plays for
// callers of the DHCP service interface that don't need the real thing.
package storetest

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"github.com/dhcpsprout/dhcpsprout/internal/store"
)

// Fake is a table-driven, mutex-protected in-memory store.Store.
type Fake struct {
	mu       sync.Mutex
	profiles map[int64]store.Profile
	owners   map[int64]store.Owner
	notify   chan store.Notification
	nextID   int64
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{
		profiles: make(map[int64]store.Profile),
		owners:   make(map[int64]store.Owner),
		notify:   make(chan store.Notification, 16),
	}
}

// AddProfile registers a profile and returns it with its assigned ID.
func (f *Fake) AddProfile(p store.Profile) store.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	p.ID = f.nextID
	f.profiles[p.ID] = p

	return p
}

// AddOwner registers an owner row and returns it with its assigned ID.
func (f *Fake) AddOwner(o store.Owner) store.Owner {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	o.ID = f.nextID
	if o.CreateDate.IsZero() {
		o.CreateDate = time.Now()
	}
	o.ModifyDate = o.CreateDate
	f.owners[o.ID] = o

	return o
}

// Notify pushes a notification as if received from the store's pub/sub
// channel; it is delivered to the channel returned by Listen.
func (f *Fake) Notify(n store.Notification) {
	f.notify <- n
}

func (f *Fake) itemLocked(o store.Owner) store.Item {
	return store.Item{Owner: o, Profile: f.profiles[o.ProfileID]}
}

// LoadOwners implements store.Store.
func (f *Fake) LoadOwners(_ context.Context) ([]store.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := make([]store.Item, 0, len(f.owners))
	for _, o := range orderedByModifyDate(f.owners) {
		items = append(items, f.itemLocked(o))
	}

	return items, nil
}

// ReloadItem implements store.Store.
func (f *Fake) ReloadItem(_ context.Context, ownerID int64) (store.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.owners[ownerID]
	if !ok {
		return store.Item{}, store.ErrNotFound
	}

	return f.itemLocked(o), nil
}

// ReloadProfile implements store.Store.
func (f *Fake) ReloadProfile(_ context.Context, profileID int64) ([]store.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var owned []store.Owner
	for _, o := range orderedByModifyDate(f.owners) {
		if o.ProfileID == profileID {
			owned = append(owned, o)
		}
	}

	items := make([]store.Item, 0, len(owned))
	for _, o := range owned {
		items = append(items, f.itemLocked(o))
	}

	return items, nil
}

// InsertStagingOwner implements store.Store.
func (f *Fake) InsertStagingOwner(
	_ context.Context,
	mac string,
	relayIP netip.Addr,
) (ownerID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var profileID int64
	found := false
	for _, p := range f.profiles {
		if p.RelayIP == relayIP {
			profileID, found = p.ID, true

			break
		}
	}
	if !found {
		return 0, store.ErrNoProfile
	}

	for _, o := range f.owners {
		if o.ProfileID == profileID && o.MACAddr == mac {
			return 0, store.ErrDuplicateOwner
		}
	}

	f.nextID++
	now := time.Now()
	o := store.Owner{ID: f.nextID, ProfileID: profileID, MACAddr: mac, CreateDate: now, ModifyDate: now}
	f.owners[o.ID] = o

	return o.ID, nil
}

// UpdateLease implements store.Store.
func (f *Fake) UpdateLease(_ context.Context, ownerID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.owners[ownerID]
	if !ok {
		return store.ErrNotFound
	}

	o.LeaseDate = at
	o.ModifyDate = at
	f.owners[ownerID] = o

	return nil
}

// Listen implements store.Store. Fake delivers every notification pushed
// via Notify until ctx is canceled.
func (f *Fake) Listen(ctx context.Context, _ string) (<-chan store.Notification, error) {
	out := make(chan store.Notification)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-f.notify:
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close implements store.Store.
func (f *Fake) Close() {}

// AssignIP sets an owner's ip_addr directly, simulating an operator's
// administrative assignment, and bumps modify_date.
func (f *Fake) AssignIP(ownerID int64, ip netip.Addr) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o := f.owners[ownerID]
	o.IPAddr = ip
	o.ModifyDate = time.Now()
	f.owners[ownerID] = o
}

// SetLeaseTime updates a profile's lease_time, simulating an operator edit,
// for scenario tests that publish RELOAD_PROFILE afterward.
func (f *Fake) SetLeaseTime(profileID int64, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.profiles[profileID]
	p.LeaseTime = d
	f.profiles[profileID] = p
}

func orderedByModifyDate(owners map[int64]store.Owner) []store.Owner {
	out := make([]store.Owner, 0, len(owners))
	for _, o := range owners {
		out = append(out, o)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ModifyDate.Before(out[j-1].ModifyDate); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}

	return out
}
