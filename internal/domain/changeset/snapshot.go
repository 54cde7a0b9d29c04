package changeset

import (
	"reflect"
	"time"
)

// Snapshot is a detached copy of an entity's column values.
type Snapshot map[string]any

// Take copies the current column values of e. Pointer values are
// dereferenced so later in-place mutation of the entity is still detected.
func Take(e Entity) Snapshot {
	cols := e.Columns()
	s := make(Snapshot, len(cols))
	for _, c := range cols {
		s[c.Name] = normalize(c.Value)
	}
	return s
}

// Diff returns the columns of e whose values differ from the snapshot.
func (s Snapshot) Diff(e Entity) map[string]bool {
	changed := make(map[string]bool)
	for _, c := range e.Columns() {
		before, ok := s[c.Name]
		if !ok || !valuesEqual(before, normalize(c.Value)) {
			changed[c.Name] = true
		}
	}
	return changed
}

func normalize(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return v
}

func valuesEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}
