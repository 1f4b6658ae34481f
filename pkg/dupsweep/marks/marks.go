// Package marks holds the per-file disposition table. Every discovered file
// has a record whose mark starts as IGNORE and changes only through Set.
package marks

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

var (
	// ErrUnknownFile is returned when a mark is set on a path the table
	// has never seen.
	ErrUnknownFile = errors.New("unknown file")

	// ErrInvalidMark is returned when a mark outside the four defined
	// values is set.
	ErrInvalidMark = errors.New("invalid mark")
)

type entry struct {
	record types.FileRecord
	seq    uint64
}

// Table maps paths to their file records. It is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*entry
	seq     uint64
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Add records a discovered file with the IGNORE mark. Adding a path that is
// already present keeps its existing record and reports false.
func (t *Table) Add(path string, isLink bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[path]; ok {
		return false
	}
	t.entries[path] = &entry{record: types.FileRecord{Path: path, IsLink: isLink}}
	return true
}

// Set changes the mark of a known path. Any mark may replace any other.
func (t *Table) Set(path string, mark types.Mark) error {
	if !mark.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMark, mark)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFile, path)
	}
	t.seq++
	e.record.Mark = mark
	e.seq = t.seq
	return nil
}

// Get returns the mark of path. Unknown paths report IGNORE.
func (t *Table) Get(path string) types.Mark {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if e, ok := t.entries[path]; ok {
		return e.record.Mark
	}
	return types.MarkIgnore
}

// Record returns a copy of the record for path.
func (t *Table) Record(path string) (types.FileRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[path]
	if !ok {
		return types.FileRecord{}, false
	}
	return e.record, true
}

// Len returns the number of records.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Reset removes every record.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*entry)
	t.seq = 0
}

// Partition is a group split by mark.
type Partition struct {
	// Master is the member the group resolves to, valid when HasMaster.
	Master    string
	HasMaster bool

	// Masters holds MASTER-marked members that lost to Master. Apply
	// leaves them alone.
	Masters []string

	Link   []string
	Delete []string
	Ignore []string
}

// Partition splits group by the current marks. When several members are
// marked MASTER, the one marked most recently wins.
func (t *Table) Partition(group types.Group) Partition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var (
		p         Partition
		masterSeq uint64
		masters   []string
	)
	for _, path := range group {
		var (
			mark types.Mark
			seq  uint64
		)
		if e, ok := t.entries[path]; ok {
			mark, seq = e.record.Mark, e.seq
		}

		switch mark {
		case types.MarkMaster:
			masters = append(masters, path)
			if !p.HasMaster || seq > masterSeq {
				p.Master, p.HasMaster, masterSeq = path, true, seq
			}
		case types.MarkLink:
			p.Link = append(p.Link, path)
		case types.MarkDelete:
			p.Delete = append(p.Delete, path)
		default:
			p.Ignore = append(p.Ignore, path)
		}
	}

	for _, m := range masters {
		if m != p.Master {
			p.Masters = append(p.Masters, m)
		}
	}
	return p
}
