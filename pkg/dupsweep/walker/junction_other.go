//go:build !windows

package walker

import "io/fs"

// isReparseDir is always false outside Windows; directory symlinks are
// caught by classify.
func isReparseDir(fs.FileInfo) bool {
	return false
}
