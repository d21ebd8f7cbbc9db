package dhcpsvc

import (
	"net/netip"
	"time"
)

// task is the closed set of reconciler task kinds from spec.md §4.5,
// encoded as a tagged variant (an interface with a private marker method)
// rather than a pair of (tag, opaque tuple), per the design note in
// spec.md §9.
type task interface {
	isTask()
}

// shutdownTask breaks the reconciler loop; queued tasks are discarded.
type shutdownTask struct{}

// loadOwnersTask triggers the full owner ⋈ profile scan applied at
// startup.
type loadOwnersTask struct{}

// addStagingTask inserts a new staged owner row for mac under the profile
// whose relay_ip is relayIP.
type addStagingTask struct {
	at      time.Time
	mac     string
	relayIP netip.Addr
}

// updateLeaseTask stamps lease_date for an active owner after an ACK. It
// carries mac, not an owner id, matching spec.md §4.5's `UPDATE_LEASE
// (time, mac, _)`: the reconciler resolves the owner id from the current
// active map at processing time, not at enqueue time.
type updateLeaseTask struct {
	at  time.Time
	mac string
}

// reloadItemTask re-selects a single owner row and applies updateItem.
type reloadItemTask struct {
	ownerID int64
}

// reloadProfileTask re-selects every owner row for a profile and applies
// updateItem to each.
type reloadProfileTask struct {
	profileID int64
}

// removeStagingTask deletes a staging entry.
type removeStagingTask struct {
	mac string
}

// removeActiveTask deletes an active entry.
type removeActiveTask struct {
	mac string
}

func (shutdownTask) isTask()      {}
func (loadOwnersTask) isTask()    {}
func (addStagingTask) isTask()    {}
func (updateLeaseTask) isTask()   {}
func (reloadItemTask) isTask()    {}
func (reloadProfileTask) isTask() {}
func (removeStagingTask) isTask() {}
func (removeActiveTask) isTask()  {}
