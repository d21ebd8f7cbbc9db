package dhcpsvc

import (
	"context"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/log"

	"github.com/dhcpsprout/dhcpsprout/internal/metrics"
	"github.com/dhcpsprout/dhcpsprout/internal/store"
)

// taskQueueCapacity is the default bound on the reconciler's task queue,
// matching spec.md §4.5.
const taskQueueCapacity = 1000

// enqueue offers t to the reconciler's task channel without blocking. If
// the channel is full, the task is dropped and a warning logged, per
// spec.md §4.5's "Enqueue must never block the data path".
func (s *Server) enqueue(t task) {
	select {
	case s.tasks <- t:
	default:
		log.Warning("dhcpsvc: reconciler task queue full, dropping %T", t)
		metrics.TaskQueueDrops.WithLabelValues(taskName(t)).Inc()
	}
}

func taskName(t task) string {
	switch t.(type) {
	case shutdownTask:
		return "SHUTDOWN"
	case loadOwnersTask:
		return "LOAD_OWNERS"
	case addStagingTask:
		return "ADD_STAGING"
	case updateLeaseTask:
		return "UPDATE_LEASE"
	case reloadItemTask:
		return "RELOAD_ITEM"
	case reloadProfileTask:
		return "RELOAD_PROFILE"
	case removeStagingTask:
		return "REMOVE_STAGING"
	case removeActiveTask:
		return "REMOVE_ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// runReconciler is the single long-running consumer of spec.md §4.5: it
// drains s.tasks in FIFO order until a shutdownTask arrives or ctx is
// canceled. It is the only caller of the store's mutating methods and the
// only writer to s.index apart from the decision engine's optimistic
// staging mark.
func (s *Server) runReconciler(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-s.tasks:
			if _, ok := t.(shutdownTask); ok {
				return nil
			}

			s.handleTask(ctx, t)
		}
	}
}

// handleTask applies a single task, logging and continuing past store
// errors other than a duplicate-owner race, per spec.md §7's
// StoreTransientError / StoreIntegrityViolation split.
func (s *Server) handleTask(ctx context.Context, t task) {
	var err error
	switch tt := t.(type) {
	case loadOwnersTask:
		err = s.handleLoadOwners(ctx)
	case addStagingTask:
		err = s.handleAddStaging(ctx, tt)
	case updateLeaseTask:
		err = s.handleUpdateLease(ctx, tt)
	case reloadItemTask:
		err = s.handleReloadItem(ctx, tt)
	case reloadProfileTask:
		err = s.handleReloadProfile(ctx, tt)
	case removeStagingTask:
		s.index.removeStaging(tt.mac)
	case removeActiveTask:
		s.index.removeActive(tt.mac)
	}

	if err != nil {
		log.Warning("dhcpsvc: reconciler: task %s: %s", taskName(t), err)
		metrics.StoreErrors.WithLabelValues(taskName(t)).Inc()
	}

	s.reportIndexSize()
}

func (s *Server) handleLoadOwners(ctx context.Context) error {
	items, err := s.store.LoadOwners(ctx)
	if err != nil {
		return errors.Annotate(err, "load owners: %w")
	}

	for _, it := range items {
		s.index.updateItem(it)
	}

	return nil
}

// handleAddStaging implements spec.md §4.5's ADD_STAGING: insert a staged
// owner row; on no matching profile, undo the optimistic staging mark; on
// a uniqueness violation, swallow silently (another request won the race,
// spec.md §7/P7).
func (s *Server) handleAddStaging(ctx context.Context, t addStagingTask) error {
	_, err := s.store.InsertStagingOwner(ctx, t.mac, t.relayIP)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNoProfile):
		s.index.removeStaging(t.mac)
		metrics.DecisionDrops.WithLabelValues(metrics.DropNoProfile).Inc()

		return nil
	case errors.Is(err, store.ErrDuplicateOwner):
		return nil
	default:
		return errors.Annotate(err, "add staging: %w")
	}
}

func (s *Server) handleUpdateLease(ctx context.Context, t updateLeaseTask) error {
	entry, ok := s.index.lookupActive(t.mac)
	if !ok {
		return nil
	}

	if err := s.store.UpdateLease(ctx, entry.OwnerID, t.at); err != nil {
		return errors.Annotate(err, "update lease: %w")
	}

	return nil
}

func (s *Server) handleReloadItem(ctx context.Context, t reloadItemTask) error {
	it, err := s.store.ReloadItem(ctx, t.ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	} else if err != nil {
		return errors.Annotate(err, "reload item: %w")
	}

	s.index.updateItem(it)

	return nil
}

func (s *Server) handleReloadProfile(ctx context.Context, t reloadProfileTask) error {
	items, err := s.store.ReloadProfile(ctx, t.profileID)
	if err != nil {
		return errors.Annotate(err, "reload profile: %w")
	}

	for _, it := range items {
		s.index.updateItem(it)
	}

	return nil
}

func (s *Server) reportIndexSize() {
	activeN, stagingN := s.index.sizes()
	metrics.IndexSize.WithLabelValues("active").Set(float64(activeN))
	metrics.IndexSize.WithLabelValues("staging").Set(float64(stagingN))
}
