// Package output provides formatters for displaying duplicate scan results
// in various output formats (pretty, plain, json, yaml).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/apply"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// FileInfo describes one member of a duplicate group.
type FileInfo struct {
	// Path is the absolute path to the file.
	Path string `json:"path" yaml:"path"`

	// Name is the base name of the file.
	Name string `json:"name" yaml:"name"`

	// Size is the file size in bytes.
	Size int64 `json:"size" yaml:"size"`

	// SizeHuman is the human-readable file size (e.g., "1.5 GiB").
	SizeHuman string `json:"size_human" yaml:"size_human"`

	// Mark is the disposition of the file (master, link, delete, ignore).
	Mark string `json:"mark" yaml:"mark"`

	// IsLink reports whether the file is a symbolic link.
	IsLink bool `json:"is_link,omitempty" yaml:"is_link,omitempty"`
}

// NewFileInfo fills in the derived fields of a FileInfo.
func NewFileInfo(path string, size int64, mark types.Mark, isLink bool) FileInfo {
	return FileInfo{
		Path:      path,
		Name:      filepath.Base(path),
		Size:      size,
		SizeHuman: humanize.IBytes(uint64(size)),
		Mark:      mark.String(),
		IsLink:    isLink,
	}
}

// GroupInfo is one duplicate group.
type GroupInfo struct {
	// ID is the 1-based position of the group in discovery order.
	ID int `json:"id" yaml:"id"`

	// Size is the size of a single copy.
	Size int64 `json:"size" yaml:"size"`

	// SizeHuman is the human-readable size of a single copy.
	SizeHuman string `json:"size_human" yaml:"size_human"`

	// Members lists the group's files in discovery order.
	Members []FileInfo `json:"members" yaml:"members"`
}

// NewGroupInfo builds a GroupInfo from its members. Size is taken from the
// first member.
func NewGroupInfo(id int, members []FileInfo) GroupInfo {
	g := GroupInfo{ID: id, Members: members}
	if len(members) > 0 {
		g.Size = members[0].Size
		g.SizeHuman = members[0].SizeHuman
	}
	return g
}

// Summary holds the duplicate totals of a scan.
type Summary struct {
	Groups     int    `json:"groups" yaml:"groups"`
	Duplicates int    `json:"duplicates" yaml:"duplicates"`
	Total      int64  `json:"total" yaml:"total"`
	New        int64  `json:"new" yaml:"new"`
	Saved      int64  `json:"saved" yaml:"saved"`
	TotalHuman string `json:"total_human" yaml:"total_human"`
	NewHuman   string `json:"new_human" yaml:"new_human"`
	SavedHuman string `json:"saved_human" yaml:"saved_human"`
}

// NewSummary converts engine totals into a Summary.
func NewSummary(t types.Totals) Summary {
	return Summary{
		Groups:     t.Groups,
		Duplicates: t.Duplicates,
		Total:      t.Total,
		New:        t.New,
		Saved:      t.Saved,
		TotalHuman: humanize.IBytes(uint64(t.Total)),
		NewHuman:   humanize.IBytes(uint64(t.New)),
		SavedHuman: humanize.IBytes(uint64(t.Saved)),
	}
}

// ScanStats contains statistics about a scan operation.
type ScanStats struct {
	// TotalFiles is the pre-scan file count, zero when no count was taken.
	TotalFiles int64 `json:"total_files" yaml:"total_files"`

	// FilesScanned is the number of files registered.
	FilesScanned int64 `json:"files_scanned" yaml:"files_scanned"`

	// HashComputations is the number of files whose content was hashed.
	HashComputations int64 `json:"hash_computations" yaml:"hash_computations"`

	// Errors is the number of paths that could not be read.
	Errors int `json:"errors" yaml:"errors"`

	// Duration is the total time taken to complete the scan.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// ApplyInfo summarizes the mutations of an apply run.
type ApplyInfo struct {
	DryRun         bool     `json:"dry_run" yaml:"dry_run"`
	Groups         int      `json:"groups" yaml:"groups"`
	Linked         []string `json:"linked,omitempty" yaml:"linked,omitempty"`
	Deleted        []string `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	Retimed        []string `json:"retimed,omitempty" yaml:"retimed,omitempty"`
	Reclaimed      int64    `json:"reclaimed" yaml:"reclaimed"`
	ReclaimedHuman string   `json:"reclaimed_human" yaml:"reclaimed_human"`
	Failures       []string `json:"failures,omitempty" yaml:"failures,omitempty"`
	ManifestID     string   `json:"manifest_id,omitempty" yaml:"manifest_id,omitempty"`
}

// NewApplyInfo converts an apply report into an ApplyInfo.
func NewApplyInfo(rep *apply.Report) *ApplyInfo {
	if rep == nil {
		return nil
	}
	info := &ApplyInfo{
		DryRun:         rep.DryRun,
		Groups:         rep.Groups,
		Linked:         rep.Paths(apply.ActionLink),
		Deleted:        rep.Paths(apply.ActionDelete),
		Retimed:        rep.Paths(apply.ActionRetime),
		Reclaimed:      rep.Reclaimed(),
		ReclaimedHuman: humanize.IBytes(uint64(rep.Reclaimed())),
	}
	for _, f := range rep.Failures {
		info.Failures = append(info.Failures, fmt.Sprintf("%s %s: %v", f.Action, f.Path, f.Err))
	}
	return info
}

// Result contains the complete output data for formatting.
type Result struct {
	// Roots are the directories that were searched.
	Roots []string `json:"roots" yaml:"roots"`

	// Groups contains the duplicate groups in discovery order.
	Groups []GroupInfo `json:"groups" yaml:"groups"`

	// Summary contains the duplicate totals.
	Summary Summary `json:"summary" yaml:"summary"`

	// Stats contains scan statistics.
	Stats ScanStats `json:"stats" yaml:"stats"`

	// Apply is set when marks were applied or previewed.
	Apply *ApplyInfo `json:"apply,omitempty" yaml:"apply,omitempty"`

	// Warnings contains any warning messages generated during the scan.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Interrupted indicates if the scan was stopped before it finished.
	Interrupted bool `json:"interrupted" yaml:"interrupted"`
}

// MemberCount returns the number of files across all groups.
func (r *Result) MemberCount() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Members)
	}
	return n
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	// It returns an error if formatting fails.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
// It returns an error if the formatter is not found.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
