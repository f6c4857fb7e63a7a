// Package namespace holds the display namespaces that modules publish
// device listings into.
package namespace

import (
	"slices"
	"sort"
	"sync"
)

// Entry is one line of a device listing.
type Entry struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

// Update is delivered to listeners whenever a namespace is replaced.
type Update struct {
	Name    string  `json:"name"`
	Entries []Entry `json:"entries"`
}

// Store keeps the latest listing of each namespace.
// All methods are safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string][]Entry

	listenersMu sync.RWMutex
	listeners   []func(Update)
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{namespaces: make(map[string][]Entry)}
}

// SetNamespace replaces the listing of name. The slice is copied.
func (s *Store) SetNamespace(name string, entries []Entry) {
	cp := append([]Entry(nil), entries...)

	s.mu.Lock()
	s.namespaces[name] = cp
	s.mu.Unlock()

	s.listenersMu.RLock()
	listeners := slices.Clone(s.listeners)
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(Update{Name: name, Entries: append([]Entry(nil), cp...)})
	}
}

// Get returns a copy of the listing of name.
func (s *Store) Get(name string) ([]Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, ok := s.namespaces[name]
	if !ok {
		return nil, false
	}
	return append([]Entry(nil), entries...), true
}

// Names returns every namespace name, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// OnUpdate registers fn for every SetNamespace call. fn must not block.
func (s *Store) OnUpdate(fn func(Update)) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}
