//go:build windows

package apply

import (
	"os"
	"time"
)

// modTime only trusts regular files on Windows; links and reparse points
// are left out of the oldest-time calculation.
func modTime(path string) (time.Time, bool) {
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
