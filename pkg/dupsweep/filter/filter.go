// Package filter decides which files and directories take part in a
// duplicate scan. File eligibility is decided by extension: an empty include
// set admits every extension, and an excluded extension always loses.
// Directories are excluded by exact path or by glob pattern.
package filter

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// globMeta lists the characters that turn an excluded directory entry into
// a glob pattern.
const globMeta = "*?[{"

// Filter holds the extension and directory exclusion rules of a scan.
// It is safe for concurrent use; mutation is expected between scans.
type Filter struct {
	mu sync.RWMutex

	include map[string]struct{}
	exclude map[string]struct{}

	excludeDirs     map[string]struct{}
	excludePatterns []dirPattern
}

type dirPattern struct {
	raw string
	g   glob.Glob
}

// Option is a functional option for configuring a Filter.
type Option func(*Filter)

// New creates a new Filter with the given options.
// With no options every file is eligible and no directory is excluded.
func New(opts ...Option) *Filter {
	f := &Filter{
		include:     make(map[string]struct{}),
		exclude:     make(map[string]struct{}),
		excludeDirs: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// WithExtensions adds extensions to the include set.
func WithExtensions(extensions ...string) Option {
	return func(f *Filter) {
		for _, ext := range extensions {
			f.addExt(f.include, ext)
		}
	}
}

// WithExcludeExtensions adds extensions to the exclude set.
func WithExcludeExtensions(extensions ...string) Option {
	return func(f *Filter) {
		for _, ext := range extensions {
			f.addExt(f.exclude, ext)
		}
	}
}

// WithTypeGroups expands type group names into the include set.
// Unknown group names are silently ignored.
func WithTypeGroups(groups ...string) Option {
	return func(f *Filter) {
		for _, group := range groups {
			for _, ext := range TypeGroups[group] {
				f.addExt(f.include, ext)
			}
		}
	}
}

// WithExcludeDirs adds directories to the exclusion set. Invalid glob
// patterns are dropped; use AddExcludeDir to see the error.
func WithExcludeDirs(dirs ...string) Option {
	return func(f *Filter) {
		for _, dir := range dirs {
			_ = f.addExcludeDir(dir)
		}
	}
}

// NormalizeExt lowercases ext and gives it a leading dot.
// The empty string stays empty.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Ext returns the normalized extension of path. A leading dot in the base
// name does not start an extension, so ".bashrc" has none.
func Ext(path string) string {
	base := filepath.Base(path)
	trimmed := strings.TrimLeft(base, ".")
	idx := strings.LastIndexByte(trimmed, '.')
	if idx < 0 {
		return ""
	}
	return strings.ToLower(trimmed[idx:])
}

// IsPattern reports whether an excluded directory entry is a glob pattern
// rather than a plain path.
func IsPattern(dir string) bool {
	return strings.ContainsAny(dir, globMeta)
}

// AddExtension adds ext to the include set.
func (f *Filter) AddExtension(ext string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addExt(f.include, ext)
}

// AddExcludeExtension adds ext to the exclude set.
func (f *Filter) AddExcludeExtension(ext string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addExt(f.exclude, ext)
}

// AddExcludeDir adds a directory path or glob pattern to the exclusion set.
// Plain paths are cleaned and made absolute; patterns are compiled with the
// path separator as the segment delimiter.
func (f *Filter) AddExcludeDir(dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addExcludeDir(dir)
}

func (f *Filter) addExt(set map[string]struct{}, ext string) {
	if ext = NormalizeExt(ext); ext != "" {
		set[ext] = struct{}{}
	}
}

func (f *Filter) addExcludeDir(dir string) error {
	if dir == "" {
		return nil
	}
	if IsPattern(dir) {
		g, err := glob.Compile(filepath.ToSlash(dir), '/')
		if err != nil {
			return fmt.Errorf("compiling exclude pattern %q: %w", dir, err)
		}
		f.excludePatterns = append(f.excludePatterns, dirPattern{raw: dir, g: g})
		return nil
	}
	f.excludeDirs[cleanAbs(dir)] = struct{}{}
	return nil
}

// IsEligible reports whether a file takes part in the scan based on its
// extension. Extensions match case-insensitively, so "JPG" and ".jpg" name
// the same rule and photo.JPG matches either. Exclusion wins over inclusion.
func (f *Filter) IsEligible(path string) bool {
	ext := Ext(path)

	f.mu.RLock()
	defer f.mu.RUnlock()

	if _, excluded := f.exclude[ext]; excluded {
		return false
	}
	if len(f.include) == 0 {
		return true
	}
	_, ok := f.include[ext]
	return ok
}

// IsExcludedDir reports whether dir is in the exclusion set, either exactly
// or through a glob pattern.
func (f *Filter) IsExcludedDir(dir string) bool {
	clean := cleanAbs(dir)

	f.mu.RLock()
	defer f.mu.RUnlock()

	if _, ok := f.excludeDirs[clean]; ok {
		return true
	}
	if len(f.excludePatterns) == 0 {
		return false
	}
	slashed := filepath.ToSlash(clean)
	for _, p := range f.excludePatterns {
		if p.g.Match(slashed) {
			return true
		}
	}
	return false
}

// Extensions returns the include set in no particular order.
func (f *Filter) Extensions() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return keys(f.include)
}

// ExcludedExtensions returns the exclude set in no particular order.
func (f *Filter) ExcludedExtensions() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return keys(f.exclude)
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func cleanAbs(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
