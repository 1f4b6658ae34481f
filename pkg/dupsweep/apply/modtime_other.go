//go:build !windows

package apply

import (
	"os"
	"time"
)

// modTime follows symlinks, so a link reports its target's time.
func modTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
