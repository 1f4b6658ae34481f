// Package registry groups discovered files into sets of content-equal
// duplicates as they arrive.
//
// Each new path is compared against the paths registered before it, in
// discovery order, and joins the group of the first one it matches. Paths
// are bucketed by size so that only candidates of equal length are
// compared; empty files are never candidates.
package registry

import (
	"context"
	"sync"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/logging"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// Comparer answers size and content-equality questions about paths.
// *index.Index satisfies it.
type Comparer interface {
	SizeOf(path string) int64
	SameContent(a, b string) bool
}

// Registry holds the registered paths and the duplicate groups among them.
// It is safe for concurrent use. Comparisons run outside the lock.
type Registry struct {
	cmp    Comparer
	logger *logging.Logger

	mu      sync.RWMutex
	order   []string
	buckets map[int64][]string
	groups  []types.Group
	groupOf map[string]int
	seen    map[string]struct{}
}

// New creates an empty Registry that uses cmp for comparisons.
func New(cmp Comparer) *Registry {
	return &Registry{
		cmp:     cmp,
		logger:  logging.Get("registry"),
		buckets: make(map[int64][]string),
		groupOf: make(map[string]int),
		seen:    make(map[string]struct{}),
	}
}

// Register records newPath and compares it with every earlier path of the
// same size until one matches. On a match newPath joins the matched path's
// group, or the two form a new group. Registering a path twice is a no-op.
//
// When a group was created or grew, Register returns a copy of it and
// changed is true. It returns ctx.Err() if the context is cancelled between
// comparisons; newPath stays registered in that case.
func (r *Registry) Register(ctx context.Context, newPath string) (types.Group, bool, error) {
	size := r.cmp.SizeOf(newPath)

	r.mu.Lock()
	if _, dup := r.seen[newPath]; dup {
		r.mu.Unlock()
		return nil, false, nil
	}
	r.seen[newPath] = struct{}{}
	r.order = append(r.order, newPath)

	var candidates []string
	if size > 0 {
		bucket := r.buckets[size]
		candidates = make([]string, len(bucket))
		copy(candidates, bucket)
		r.buckets[size] = append(bucket, newPath)
	}
	r.mu.Unlock()

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if !r.cmp.SameContent(candidate, newPath) {
			continue
		}
		group, changed := r.join(candidate, newPath)
		return group, changed, nil
	}

	return nil, false, nil
}

// join places newPath in match's group, creating the group if needed.
func (r *Registry) join(match, newPath string) (types.Group, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, grouped := r.groupOf[newPath]; grouped {
		return nil, false
	}

	if gi, ok := r.groupOf[match]; ok {
		r.groups[gi] = append(r.groups[gi], newPath)
		r.groupOf[newPath] = gi
		r.logger.Debug("duplicate joined group", "path", newPath, "group", gi, "members", len(r.groups[gi]))
		return r.groups[gi].Clone(), true
	}

	gi := len(r.groups)
	r.groups = append(r.groups, types.Group{match, newPath})
	r.groupOf[match] = gi
	r.groupOf[newPath] = gi
	r.logger.Debug("duplicate group created", "path", newPath, "match", match, "group", gi)
	return r.groups[gi].Clone(), true
}

// Groups returns a deep copy of every group in creation order.
func (r *Registry) Groups() []types.Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Group, len(r.groups))
	for i, g := range r.groups {
		out[i] = g.Clone()
	}
	return out
}

// GroupOf returns a copy of the group containing path, or nil.
func (r *Registry) GroupOf(path string) types.Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	gi, ok := r.groupOf[path]
	if !ok {
		return nil
	}
	return r.groups[gi].Clone()
}

// Len returns the number of groups.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups)
}

// DuplicateCount returns the number of paths across all groups.
func (r *Registry) DuplicateCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groupOf)
}

// Paths returns every registered path in registration order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Totals derives the byte totals from the groups. Total is the size of every
// member, New keeps only the first member of each group.
func (r *Registry) Totals() types.Totals {
	groups := r.Groups()

	t := types.Totals{Groups: len(groups)}
	for _, g := range groups {
		t.Duplicates += len(g)
		for i, p := range g {
			size := r.cmp.SizeOf(p)
			t.Total += size
			if i == 0 {
				t.New += size
			}
		}
	}
	t.Saved = t.Total - t.New
	return t
}

// Reset forgets every path and group.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = nil
	r.buckets = make(map[int64][]string)
	r.groups = nil
	r.groupOf = make(map[string]int)
	r.seen = make(map[string]struct{})
}
