package marks

import (
	"errors"
	"testing"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

func TestTable_AddDefaultsToIgnore(t *testing.T) {
	tbl := NewTable()
	if !tbl.Add("/a", false) {
		t.Fatal("Add(/a) = false on first add")
	}
	if tbl.Add("/a", true) {
		t.Error("Add(/a) = true on second add")
	}

	rec, ok := tbl.Record("/a")
	if !ok {
		t.Fatal("Record(/a) not found")
	}
	if rec.Mark != types.MarkIgnore {
		t.Errorf("Mark = %v, want ignore", rec.Mark)
	}
	if rec.IsLink {
		t.Error("IsLink changed by second Add")
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}
}

func TestTable_SetTransitionsFreely(t *testing.T) {
	tbl := NewTable()
	tbl.Add("/a", false)

	for _, m := range []types.Mark{types.MarkMaster, types.MarkDelete, types.MarkLink, types.MarkIgnore, types.MarkMaster} {
		if err := tbl.Set("/a", m); err != nil {
			t.Fatalf("Set(/a, %v) error = %v", m, err)
		}
		if got := tbl.Get("/a"); got != m {
			t.Errorf("Get(/a) = %v, want %v", got, m)
		}
	}
}

func TestTable_SetErrors(t *testing.T) {
	tbl := NewTable()
	tbl.Add("/a", false)

	if err := tbl.Set("/missing", types.MarkMaster); !errors.Is(err, ErrUnknownFile) {
		t.Errorf("Set(/missing) error = %v, want ErrUnknownFile", err)
	}
	if err := tbl.Set("/a", types.Mark(9)); !errors.Is(err, ErrInvalidMark) {
		t.Errorf("Set(/a, 9) error = %v, want ErrInvalidMark", err)
	}
	if got := tbl.Get("/a"); got != types.MarkIgnore {
		t.Errorf("Get(/a) = %v after failed Set, want ignore", got)
	}
	if got := tbl.Get("/missing"); got != types.MarkIgnore {
		t.Errorf("Get(/missing) = %v, want ignore", got)
	}
}

func TestTable_Partition(t *testing.T) {
	tbl := NewTable()
	for _, p := range []string{"/m", "/l", "/d", "/i"} {
		tbl.Add(p, false)
	}
	mustSet(t, tbl, "/m", types.MarkMaster)
	mustSet(t, tbl, "/l", types.MarkLink)
	mustSet(t, tbl, "/d", types.MarkDelete)

	p := tbl.Partition(types.Group{"/m", "/l", "/d", "/i", "/unknown"})

	if !p.HasMaster || p.Master != "/m" {
		t.Errorf("Master = %q (has %v), want /m", p.Master, p.HasMaster)
	}
	assertPaths(t, "Link", p.Link, "/l")
	assertPaths(t, "Delete", p.Delete, "/d")
	assertPaths(t, "Ignore", p.Ignore, "/i", "/unknown")
	assertPaths(t, "Masters", p.Masters)
}

func TestTable_PartitionNoMaster(t *testing.T) {
	tbl := NewTable()
	tbl.Add("/a", false)
	tbl.Add("/b", false)
	mustSet(t, tbl, "/b", types.MarkDelete)

	p := tbl.Partition(types.Group{"/a", "/b"})
	if p.HasMaster {
		t.Errorf("HasMaster = true, Master = %q", p.Master)
	}
	assertPaths(t, "Delete", p.Delete, "/b")
}

func TestTable_PartitionLatestMasterWins(t *testing.T) {
	tbl := NewTable()
	tbl.Add("/a", false)
	tbl.Add("/b", false)
	tbl.Add("/c", false)

	mustSet(t, tbl, "/b", types.MarkMaster)
	mustSet(t, tbl, "/a", types.MarkMaster)

	p := tbl.Partition(types.Group{"/a", "/b", "/c"})
	if p.Master != "/a" {
		t.Errorf("Master = %q, want /a (assigned last)", p.Master)
	}
	assertPaths(t, "Masters", p.Masters, "/b")

	// Re-marking /b makes it the most recent.
	mustSet(t, tbl, "/b", types.MarkMaster)
	p = tbl.Partition(types.Group{"/a", "/b", "/c"})
	if p.Master != "/b" {
		t.Errorf("Master = %q, want /b after re-marking", p.Master)
	}
}

func TestTable_Reset(t *testing.T) {
	tbl := NewTable()
	tbl.Add("/a", false)
	mustSet(t, tbl, "/a", types.MarkMaster)
	tbl.Reset()

	if tbl.Len() != 0 {
		t.Errorf("Len() = %d after Reset", tbl.Len())
	}
	if _, ok := tbl.Record("/a"); ok {
		t.Error("Record(/a) found after Reset")
	}
}

func mustSet(t *testing.T, tbl *Table, path string, m types.Mark) {
	t.Helper()
	if err := tbl.Set(path, m); err != nil {
		t.Fatalf("Set(%s, %v) error = %v", path, m, err)
	}
}

func assertPaths(t *testing.T, name string, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s = %v, want %v", name, got, want)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s = %v, want %v", name, got, want)
			return
		}
	}
}
