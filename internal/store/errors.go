package store

import "github.com/AdguardTeam/golibs/errors"

// Sentinel errors a Store implementation returns so callers can classify
// failures with errors.Is, matching spec.md §7's error-kind taxonomy.
const (
	// ErrNoProfile is returned by InsertStagingOwner when no profile's
	// relay_ip matches the requested relay IP.
	ErrNoProfile errors.Error = "no profile for relay ip"

	// ErrDuplicateOwner is returned by InsertStagingOwner on a
	// (profile_id, mac_addr) uniqueness violation — the
	// StoreIntegrityViolation of spec.md §7, swallowed by design.
	ErrDuplicateOwner errors.Error = "owner already exists for mac"

	// ErrNotFound is returned by ReloadItem when ownerID no longer exists.
	ErrNotFound errors.Error = "owner not found"
)
