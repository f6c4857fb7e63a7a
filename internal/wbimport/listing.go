package wbimport

import (
	"sort"
	"strings"

	"github.com/nerrad567/wbmqtt-import/internal/namespace"
)

// NamespaceSink receives the device listing.
type NamespaceSink interface {
	SetNamespace(name string, entries []namespace.Entry)
}

// listing is the ordered, deduplicated device listing of one module.
type listing struct {
	name    string
	sink    NamespaceSink
	entries []namespace.Entry
	index   map[string]int
}

func newListing(name string, sink NamespaceSink) *listing {
	return &listing{name: name, sink: sink, index: make(map[string]int)}
}

// Add inserts or renames an entry and reports whether the listing changed.
func (l *listing) Add(id, name string) bool {
	if i, ok := l.index[id]; ok {
		if l.entries[i].DeviceName == name {
			return false
		}
		l.entries[i].DeviceName = name
		return true
	}
	l.entries = append(l.entries, namespace.Entry{DeviceID: id, DeviceName: name})
	l.sort()
	return true
}

// Remove drops an entry and reports whether it was present.
func (l *listing) Remove(id string) bool {
	i, ok := l.index[id]
	if !ok {
		return false
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	l.reindex()
	return true
}

// Reset replaces every entry.
func (l *listing) Reset(entries []namespace.Entry) {
	l.entries = l.entries[:0]
	l.index = make(map[string]int, len(entries))
	for _, e := range entries {
		if _, dup := l.index[e.DeviceID]; dup {
			continue
		}
		l.index[e.DeviceID] = len(l.entries)
		l.entries = append(l.entries, e)
	}
	l.sort()
}

// Publish pushes the whole listing to the sink.
func (l *listing) Publish() {
	if l.sink == nil {
		return
	}
	l.sink.SetNamespace(l.name, append([]namespace.Entry(nil), l.entries...))
}

func (l *listing) sort() {
	sort.SliceStable(l.entries, func(i, j int) bool {
		return strings.ToLower(l.entries[i].DeviceID) < strings.ToLower(l.entries[j].DeviceID)
	})
	l.reindex()
}

func (l *listing) reindex() {
	for i, e := range l.entries {
		l.index[e.DeviceID] = i
	}
	for id, i := range l.index {
		if i >= len(l.entries) || l.entries[i].DeviceID != id {
			delete(l.index, id)
		}
	}
}
