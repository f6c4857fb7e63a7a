package wbimport

import (
	"testing"

	"github.com/nerrad567/wbmqtt-import/internal/namespace"
)

func entryIDs(entries []namespace.Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.DeviceID
	}
	return ids
}

func TestListing_SortedAndDeduplicated(t *testing.T) {
	store := namespace.NewStore()
	l := newListing("wbmqtt_import_1", store)

	for _, id := range []string{"WB_1_b", "wb_1_a", "WB_1_C", "WB_1_b"} {
		l.Add(id, id)
	}
	l.Publish()

	entries, ok := store.Get("wbmqtt_import_1")
	if !ok {
		t.Fatal("namespace not published")
	}
	got := entryIDs(entries)
	want := []string{"wb_1_a", "WB_1_b", "WB_1_C"}
	if len(got) != len(want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entries[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestListing_AddReportsChange(t *testing.T) {
	l := newListing("ns", nil)
	if !l.Add("a", "dev/a") {
		t.Error("first Add() = false")
	}
	if l.Add("a", "dev/a") {
		t.Error("repeated Add() = true")
	}
	if !l.Add("a", "dev/renamed") {
		t.Error("rename Add() = false")
	}
	l.Publish() // nil sink is allowed
}

func TestListing_RemoveAndReset(t *testing.T) {
	l := newListing("ns", nil)
	l.Add("c", "c")
	l.Add("a", "a")
	l.Add("b", "b")

	if !l.Remove("a") || l.Remove("a") {
		t.Fatal("Remove() did not report presence correctly")
	}
	if got := entryIDs(l.entries); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("entries = %v, want [b c]", got)
	}
	if l.Add("c", "c") {
		t.Error("index lost after Remove")
	}

	l.Reset([]namespace.Entry{{DeviceID: "z"}, {DeviceID: "y"}, {DeviceID: "z"}})
	if got := entryIDs(l.entries); len(got) != 2 || got[0] != "y" {
		t.Errorf("entries after Reset = %v, want [y z]", got)
	}
	if l.Remove("b") {
		t.Error("Reset kept an old entry")
	}
}
