package bridge

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// HandleInfo describes one stored handle for listing surfaces.
type HandleInfo struct {
	HandleID  string `json:"handle_id"`
	ClassName string `json:"class_name"`
	Summary   string `json:"summary"`
}

// DropResult reports the outcome of a handle drop. Dropped is always true:
// the desired post-state ("handle absent") is reached whether or not the
// identifier was present.
type DropResult struct {
	HandleID         string `json:"handle_id"`
	Dropped          bool   `json:"dropped"`
	Existed          bool   `json:"existed"`
	RemainingHandles int    `json:"remaining_handles"`
}

type handleEntry struct {
	object    any
	className string
	summary   string
}

// Store maps short string identifiers to in-process objects that cannot
// cross the JSON boundary directly. The store holds the only strong
// reference to a stored object; dropping the handle makes the object
// eligible for collection. All operations are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	counter uint64
	entries map[string]handleEntry
	order   []string
}

// NewStore returns an empty handle store.
func NewStore() *Store {
	return &Store{entries: make(map[string]handleEntry)}
}

// Put registers obj and returns its identifier. Identifiers are assigned
// from a monotonically increasing counter and never reused, so a stale
// identifier held by a caller fails deterministically instead of resolving
// to an unrelated object. The class name and summary are rendered once
// here; mutating obj later does not refresh them.
func (s *Store) Put(obj any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	id := fmt.Sprintf("h%d", s.counter)
	s.entries[id] = handleEntry{object: obj, className: typeLabel(obj), summary: summarize(obj)}
	s.order = append(s.order, id)
	return id
}

// Get returns the object stored under id.
func (s *Store) Get(id string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, Errorf(KindNotFound, "Unknown handle_id %q.", id)
	}
	return entry.object, nil
}

// Drop removes id and reports whether it was present. Dropping an absent
// identifier is not an error.
func (s *Store) Drop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List enumerates stored handles in insertion order.
func (s *Store) List() []HandleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HandleInfo, 0, len(s.order))
	for _, id := range s.order {
		entry := s.entries[id]
		out = append(out, HandleInfo{HandleID: id, ClassName: entry.className, Summary: entry.summary})
	}
	return out
}

// Count returns the number of stored handles.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// DropHandle validates id, removes it, and reports idempotent-delete
// semantics: Dropped is always true, Existed tells whether the identifier
// was present before the call.
func (s *Store) DropHandle(id string) (DropResult, error) {
	normalized := strings.TrimSpace(id)
	if normalized == "" {
		return DropResult{}, Errorf(KindValidation, "handle_id cannot be empty.")
	}
	existed := s.Drop(normalized)
	return DropResult{
		HandleID:         normalized,
		Dropped:          true,
		Existed:          existed,
		RemainingHandles: s.Count(),
	}, nil
}

// TypeLabel renders the concrete type name of v the way it appears in
// handle listings and invocation target labels.
func TypeLabel(v any) string {
	return typeLabel(v)
}

// typeLabel renders the concrete type of v the way callers see it in
// handle listings and invocation results: named types without their
// package qualifier, pointers dereferenced.
func typeLabel(v any) string {
	if v == nil {
		return "nil"
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}

// summarize renders a textual description of v for handle listings and
// degraded encodings. Stringer implementations win; everything else gets
// a field dump.
func summarize(v any) string {
	return fmt.Sprintf("%+v", v)
}
