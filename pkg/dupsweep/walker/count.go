package walker

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
)

// Count estimates how many files Walk would visit below root, applying the
// same junction, exclusion, link and eligibility rules. It walks in
// parallel with fastwalk, so it sees no particular order. Unreadable
// directories count as empty.
func (w *Walker) Count(ctx context.Context, root string) (int64, error) {
	conf := fastwalk.Config{
		Follow: false,
	}

	root = filepath.Clean(root)
	ignoreLinks := w.ignoreLinks.Load()

	var count atomic.Int64
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			if d != nil && d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		typ := d.Type()
		if typ.IsRegular() {
			if w.filter.IsEligible(path) {
				count.Add(1)
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		switch classify(path, info) {
		case kindJunction:
			if d.IsDir() {
				return fastwalk.SkipDir
			}
		case kindDir:
			if w.filter.IsExcludedDir(path) {
				return fastwalk.SkipDir
			}
		case kindLink:
			if !ignoreLinks && w.filter.IsEligible(path) {
				count.Add(1)
			}
		case kindFile:
			if w.filter.IsEligible(path) {
				count.Add(1)
			}
		case kindOther:
		}
		return nil
	})

	if err != nil {
		if !isCancel(err) {
			w.logger.Warn("count walk failed", "root", root, "err", err)
		}
		return count.Load(), err
	}

	w.logger.Debug("count finished", "root", root, "files", count.Load())
	return count.Load(), nil
}
