package changeset

// Tracker records the entities of one unit of work and computes their
// changes against the snapshots taken when they were attached.
type Tracker struct {
	entries []*trackedEntry
	index   map[string]*trackedEntry
}

type trackedEntry struct {
	entity Entity
	state  EntityState
	snap   Snapshot
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{index: make(map[string]*trackedEntry)}
}

func identity(e Entity) string {
	return e.TableName() + "/" + e.Key()
}

// Track attaches an entity loaded from the store. Tracking the same
// row twice keeps the first snapshot.
func (t *Tracker) Track(e Entity) {
	if _, ok := t.index[identity(e)]; ok {
		return
	}
	t.attach(e, Unchanged)
}

// Add attaches a new entity to be inserted.
func (t *Tracker) Add(e Entity) {
	if entry, ok := t.index[identity(e)]; ok {
		if entry.state == Deleted {
			entry.state = Unchanged
		}
		return
	}
	t.attach(e, Added)
}

// Remove marks an entity for deletion. Removing an entity that was only
// added forgets it.
func (t *Tracker) Remove(e Entity) {
	id := identity(e)
	entry, ok := t.index[id]
	if !ok {
		t.attach(e, Deleted)
		return
	}
	if entry.state == Added {
		t.forget(id)
		return
	}
	entry.state = Deleted
}

// Len returns the number of tracked entities.
func (t *Tracker) Len() int {
	return len(t.entries)
}

// DetectChanges returns every tracked entity in attach order. Unchanged
// entries whose columns differ from their snapshot are reported as
// Modified with the differing columns.
func (t *Tracker) DetectChanges() []Change {
	changes := make([]Change, 0, len(t.entries))
	for _, entry := range t.entries {
		c := Change{Entity: entry.entity, State: entry.state}
		if entry.state == Unchanged {
			if diff := entry.snap.Diff(entry.entity); len(diff) > 0 {
				c.State = Modified
				c.Changed = diff
			}
		}
		changes = append(changes, c)
	}
	return changes
}

// AcceptChanges makes the current values the new baseline. Deleted
// entities are dropped.
func (t *Tracker) AcceptChanges() {
	kept := t.entries[:0]
	for _, entry := range t.entries {
		if entry.state == Deleted {
			delete(t.index, identity(entry.entity))
			continue
		}
		entry.state = Unchanged
		entry.snap = Take(entry.entity)
		kept = append(kept, entry)
	}
	t.entries = kept
}

func (t *Tracker) attach(e Entity, state EntityState) {
	entry := &trackedEntry{entity: e, state: state, snap: Take(e)}
	t.entries = append(t.entries, entry)
	t.index[identity(e)] = entry
}

func (t *Tracker) forget(id string) {
	entry := t.index[id]
	delete(t.index, id)
	for i, e := range t.entries {
		if e == entry {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}
