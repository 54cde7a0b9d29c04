// Package changeset describes the tracked state of entities taking part in
// one save cycle and the hook invoked around the commit of that cycle.
package changeset

import (
	"context"
	"sort"
)

// EntityState is the persistence state of a tracked entity.
type EntityState int

const (
	// Unchanged entities were loaded and not modified.
	Unchanged EntityState = iota
	// Added entities will be inserted.
	Added
	// Modified entities have at least one changed column.
	Modified
	// Deleted entities will be removed.
	Deleted
)

// String returns the state name.
func (s EntityState) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Column is one persisted column of an entity.
type Column struct {
	Name  string
	Value any
}

// Entity is anything the unit of work can persist.
type Entity interface {
	// TableName returns the table the entity maps to.
	TableName() string
	// Key returns the primary key value.
	Key() string
	// Columns returns the persisted columns, excluding the primary key.
	Columns() []Column
}

// Change is one entity participating in a save with its state and,
// for Modified entities, the set of changed columns.
type Change struct {
	Entity  Entity
	State   EntityState
	Changed map[string]bool
}

// IsModified reports whether column changed in this save.
func (c Change) IsModified(column string) bool {
	return c.Changed[column]
}

// ChangedColumns returns the changed column names in sorted order.
func (c Change) ChangedColumns() []string {
	cols := make([]string, 0, len(c.Changed))
	for name := range c.Changed {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}

// SaveResult describes a committed save.
type SaveResult struct {
	Inserted int
	Updated  int
	Deleted  int
}

// Affected returns the total number of rows written.
func (r SaveResult) Affected() int {
	return r.Inserted + r.Updated + r.Deleted
}

// Interceptor observes one save cycle. SavingChanges runs inside the
// transaction right before commit; exactly one of SavedChanges or
// SaveFailed runs afterwards.
type Interceptor interface {
	SavingChanges(ctx context.Context, changes []Change) error
	SavedChanges(ctx context.Context, result SaveResult)
	SaveFailed(ctx context.Context, err error)
}
