package changeset

import (
	"context"
	"errors"
	"sync"
)

// ErrUnitOfWorkDone is returned by Save on a unit of work that already saved.
var ErrUnitOfWorkDone = errors.New("changeset: unit of work already saved")

// Store applies changes atomically.
type Store interface {
	// Apply writes changes in one transaction. beforeCommit runs inside the
	// transaction after the writes; an error from it rolls everything back.
	Apply(ctx context.Context, changes []Change, beforeCommit func(ctx context.Context) error) (SaveResult, error)
}

// UnitOfWork collects entity changes of one logical operation and saves
// them in one transaction, notifying its interceptors around the commit.
// It is single-use and not safe for concurrent use.
type UnitOfWork struct {
	store        Store
	tracker      *Tracker
	interceptors []Interceptor

	mu   sync.Mutex
	done bool
}

// NewUnitOfWork creates a unit of work.
func NewUnitOfWork(store Store, interceptors ...Interceptor) *UnitOfWork {
	return &UnitOfWork{
		store:        store,
		tracker:      NewTracker(),
		interceptors: interceptors,
	}
}

// Track attaches an entity loaded from the store.
func (u *UnitOfWork) Track(e Entity) { u.tracker.Track(e) }

// Add registers an entity to insert.
func (u *UnitOfWork) Add(e Entity) { u.tracker.Add(e) }

// Remove registers an entity to delete.
func (u *UnitOfWork) Remove(e Entity) { u.tracker.Remove(e) }

// Save detects changes, writes them and commits. Interceptors see the
// changes right before commit and the outcome right after it.
func (u *UnitOfWork) Save(ctx context.Context) (SaveResult, error) {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return SaveResult{}, ErrUnitOfWorkDone
	}
	u.done = true
	u.mu.Unlock()

	changes := u.tracker.DetectChanges()

	result, err := u.store.Apply(ctx, changes, func(ctx context.Context) error {
		for _, ic := range u.interceptors {
			if err := ic.SavingChanges(ctx, changes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, ic := range u.interceptors {
			ic.SaveFailed(ctx, err)
		}
		return SaveResult{}, err
	}

	u.tracker.AcceptChanges()
	for _, ic := range u.interceptors {
		ic.SavedChanges(ctx, result)
	}
	return result, nil
}

// UnitOfWorkFactory creates units of work on one store. Interceptor
// constructors run once per unit of work, so no interceptor state is
// shared between saves.
type UnitOfWorkFactory struct {
	store        Store
	interceptors []func() Interceptor
}

// NewUnitOfWorkFactory creates a factory.
func NewUnitOfWorkFactory(store Store, interceptors ...func() Interceptor) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{store: store, interceptors: interceptors}
}

// Begin returns a new unit of work with fresh interceptors.
func (f *UnitOfWorkFactory) Begin() *UnitOfWork {
	ics := make([]Interceptor, 0, len(f.interceptors))
	for _, newIC := range f.interceptors {
		ics = append(ics, newIC())
	}
	return NewUnitOfWork(f.store, ics...)
}
