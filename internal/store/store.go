// Package store defines the control store's query surface: the small set
// of reads, writes, and the pub/sub channel the reconciler and subscriber
// need. The concrete PostgreSQL-backed implementation lives in
// internal/store/postgres; internal/store/storetest provides an in-memory
// fake for tests that don't need a live database.
package store

import (
	"context"
	"net/netip"
	"time"
)

// Profile is a per-relay configuration bundle: the subnet served, lease
// time, and optional router/DNS/NTP settings. It mirrors the `profile`
// table of spec.md §3.
type Profile struct {
	Name        string
	Description string
	NetworkAddr netip.Prefix
	RouterIP    netip.Addr
	DNSIPs      []netip.Addr
	NTPIPs      []netip.Addr
	LeaseTime   time.Duration
	ID          int64
	RelayIP     netip.Addr
}

// Owner is a MAC-address assignment, either staged (IPAddr invalid) or
// active (IPAddr valid). It mirrors the `owner` table of spec.md §3.
type Owner struct {
	LeaseDate  time.Time
	CreateDate time.Time
	ModifyDate time.Time
	MACAddr    string
	ID         int64
	ProfileID  int64
	IPAddr     netip.Addr
}

// Item is the join of an Owner with its Profile, the unit the reconciler's
// `_update_item` operates on (spec.md §4.4).
type Item struct {
	Owner   Owner
	Profile Profile
}

// Notification is a single raw payload line from the store's pub/sub
// channel, in the grammar of spec.md §6 ("<ACTION> <ARG>"). Parsing that
// grammar into a reconciler task is dhcpsvc's job, not the store's.
type Notification struct {
	Payload string
}

// Store is the control store's query surface. The reconciler is the only
// component that calls the mutating methods; the subscriber only calls
// Listen.
type Store interface {
	// LoadOwners returns every owner row joined with its profile, ordered
	// by modify_date ascending, for the initial full load.
	LoadOwners(ctx context.Context) ([]Item, error)

	// ReloadItem re-selects the single owner row identified by ownerID,
	// joined with its profile.
	ReloadItem(ctx context.Context, ownerID int64) (Item, error)

	// ReloadProfile re-selects every owner row for profileID, ordered by
	// modify_date ascending.
	ReloadProfile(ctx context.Context, profileID int64) ([]Item, error)

	// InsertStagingOwner inserts a new owner row for mac under the profile
	// whose relay_ip is relayIP, returning its id. ErrNoProfile is returned
	// if no profile matches relayIP. ErrDuplicateOwner is returned if the
	// (profile_id, mac_addr) uniqueness constraint rejects the insert — the
	// caller is expected to swallow this (spec.md §4.5: "another request
	// won the race").
	InsertStagingOwner(ctx context.Context, mac string, relayIP netip.Addr) (ownerID int64, err error)

	// UpdateLease sets lease_date = at for the owner row identified by
	// ownerID.
	UpdateLease(ctx context.Context, ownerID int64, at time.Time) error

	// Listen opens a dedicated connection and issues LISTEN <channel>,
	// returning a channel of raw notification payloads that is closed when
	// ctx is canceled or the connection fails.
	Listen(ctx context.Context, channel string) (<-chan Notification, error)

	// Close releases any connections the Store holds.
	Close()
}
