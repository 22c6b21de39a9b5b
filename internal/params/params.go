// Package params holds the ordered parameter store that backs a calculation.
//
// The store is the single source of truth for the low level settings handed
// to the simulation engine. Insertion order is preserved so that serialized
// input files come out byte-identical run after run.
package params

import (
	"reflect"
	"sort"
)

// Assignment is a pending change to one parameter: either a new value or an
// explicit removal. Modeling removal as its own variant keeps "unset this
// key" distinct from "set this key to the engine's null".
type Assignment struct {
	value  any
	remove bool
}

// Set returns an assignment that writes v.
func Set(v any) Assignment { return Assignment{value: v} }

// Remove is the assignment that deletes a key from the store.
var Remove = Assignment{remove: true}

// IsRemove reports whether the assignment deletes its key.
func (a Assignment) IsRemove() bool { return a.remove }

// Value returns the value carried by a Set assignment. It is nil for Remove.
func (a Assignment) Value() any { return a.value }

// Updates is the kwargs form accepted by the reconciler: parameter name to
// pending assignment.
type Updates map[string]Assignment

// Store is an insertion-ordered mapping from parameter name to value. Keys
// are case-sensitive here; serializers upper-case them on the way out.
type Store struct {
	order  []string
	values map[string]any
}

// New returns an empty store.
func New() *Store {
	return &Store{values: make(map[string]any)}
}

// Len returns the number of parameters currently set.
func (s *Store) Len() int { return len(s.order) }

// Has reports whether name is set.
func (s *Store) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Lookup returns the value for name and whether it was present.
func (s *Store) Lookup(name string) (any, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Get returns the value for name, or nil when absent.
func (s *Store) Get(name string) any { return s.values[name] }

// Put sets name to v, creating the key at the end of the order when new.
func (s *Store) Put(name string, v any) {
	if _, ok := s.values[name]; !ok {
		s.order = append(s.order, name)
	}
	s.values[name] = v
}

// Delete removes name from the store. Deleting an absent key is a no-op.
func (s *Store) Delete(name string) {
	if _, ok := s.values[name]; !ok {
		return
	}
	delete(s.values, name)
	for i, k := range s.order {
		if k == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Keys returns the parameter names in insertion order.
func (s *Store) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Snapshot returns a shallow copy of the current name to value mapping.
func (s *Store) Snapshot() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Apply folds a set of assignments into the store and returns the names whose
// effective value changed: additions, removals and real value changes, but
// not keys re-set to the value they already held. Assignments are applied in
// sorted key order so the result never depends on map iteration order.
func (s *Store) Apply(updates Updates) []string {
	names := make([]string, 0, len(updates))
	for name := range updates {
		names = append(names, name)
	}
	sort.Strings(names)

	var changed []string
	for _, name := range names {
		a := updates[name]
		old, had := s.values[name]
		if a.IsRemove() {
			if had {
				s.Delete(name)
				changed = append(changed, name)
			}
			continue
		}
		if !had || !Equal(old, a.Value()) {
			s.Put(name, a.Value())
			changed = append(changed, name)
		}
	}
	return changed
}

// Equal reports whether two parameter values are the same. Values may be
// slices or per-species tables, so plain == is not enough.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
