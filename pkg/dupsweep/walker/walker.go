// Package walker traverses directory trees for the duplicate scan. It
// provides the real walk, which visits eligible files one at a time in
// directory-listing order, and a count-only walk that estimates how many
// files the real walk will visit.
package walker

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/filter"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/logging"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// FileFunc is called for every eligible file. isLink reports whether the
// path is a symbolic link. A non-nil error stops the walk and is returned
// from Walk.
type FileFunc func(path string, isLink bool) error

// Options configures the walker.
type Options struct {
	// IgnoreLinks skips file symlinks. Directory symlinks and junctions are
	// never followed regardless of this setting.
	IgnoreLinks bool
}

// Walker visits the files below a set of roots. It is safe for concurrent
// use; the engine runs one Walk per search root.
type Walker struct {
	filter      *filter.Filter
	ignoreLinks atomic.Bool
	logger      *logging.Logger

	errorsMu sync.Mutex
	errors   []types.ScanError
}

// New creates a Walker that consults f for file eligibility and directory
// exclusion. A nil filter admits everything.
func New(f *filter.Filter, opts Options) *Walker {
	if f == nil {
		f = filter.New()
	}
	w := &Walker{
		filter: f,
		logger: logging.Get("walker"),
	}
	w.ignoreLinks.Store(opts.IgnoreLinks)
	return w
}

// SetIgnoreLinks changes whether file symlinks are skipped.
func (w *Walker) SetIgnoreLinks(ignore bool) {
	w.ignoreLinks.Store(ignore)
}

// IgnoreLinks reports whether file symlinks are skipped.
func (w *Walker) IgnoreLinks() bool {
	return w.ignoreLinks.Load()
}

// Walk descends root recursively and synchronously, calling onFile for each
// eligible file. Entries are visited in the order the directory listing
// returns them. Junctions and excluded directories are skipped. A directory
// that cannot be listed is logged, recorded in Errors and treated as empty.
//
// Walk returns ctx.Err() when the context is cancelled, or the first error
// returned by onFile.
func (w *Walker) Walk(ctx context.Context, root string, onFile FileFunc) error {
	return w.walkDir(ctx, root, onFile)
}

func (w *Walker) walkDir(ctx context.Context, dir string, onFile FileFunc) error {
	entries, err := readDir(dir)
	if err != nil {
		w.addError(dir, err)
		w.logger.Warn("listing failed", "dir", dir, "err", err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			// Vanished between listing and stat.
			w.logger.Debug("entry vanished", "path", path, "err", err)
			continue
		}

		switch classify(path, info) {
		case kindJunction:
			w.logger.Debug("skipping junction", "path", path)
		case kindDir:
			if w.filter.IsExcludedDir(path) {
				w.logger.Debug("skipping excluded directory", "path", path)
				continue
			}
			if err := w.walkDir(ctx, path, onFile); err != nil {
				return err
			}
		case kindLink:
			if w.ignoreLinks.Load() || !w.filter.IsEligible(path) {
				continue
			}
			if err := onFile(path, true); err != nil {
				return err
			}
		case kindFile:
			if !w.filter.IsEligible(path) {
				continue
			}
			if err := onFile(path, false); err != nil {
				return err
			}
		case kindOther:
			w.logger.Debug("skipping irregular file", "path", path, "mode", info.Mode().String())
		}
	}

	return nil
}

// readDir lists dir without sorting, so entries come back in the order the
// filesystem returns them. Entries read before an error are still returned.
func readDir(dir string) ([]fs.DirEntry, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.ReadDir(-1)
}

// Errors returns the soft errors recorded since the last ResetErrors.
func (w *Walker) Errors() []types.ScanError {
	w.errorsMu.Lock()
	defer w.errorsMu.Unlock()

	out := make([]types.ScanError, len(w.errors))
	copy(out, w.errors)
	return out
}

// ResetErrors discards the recorded soft errors.
func (w *Walker) ResetErrors() {
	w.errorsMu.Lock()
	w.errors = nil
	w.errorsMu.Unlock()
}

func (w *Walker) addError(path string, err error) {
	w.errorsMu.Lock()
	w.errors = append(w.errors, types.ScanError{
		Path:  path,
		Error: err.Error(),
	})
	w.errorsMu.Unlock()
}

type entryKind int

const (
	kindOther entryKind = iota
	kindFile
	kindLink
	kindDir
	kindJunction
)

// classify sorts a directory entry by its Lstat info. A symlink that
// resolves to a directory is a junction; a dangling symlink is a link.
func classify(path string, info fs.FileInfo) entryKind {
	if isReparseDir(info) {
		return kindJunction
	}

	mode := info.Mode()
	switch {
	case mode&fs.ModeSymlink != 0:
		target, err := os.Stat(path)
		if err == nil && target.IsDir() {
			return kindJunction
		}
		return kindLink
	case mode.IsDir():
		return kindDir
	case mode.IsRegular():
		return kindFile
	default:
		return kindOther
	}
}

// isCancel reports whether err comes from a cancelled or expired context.
func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
