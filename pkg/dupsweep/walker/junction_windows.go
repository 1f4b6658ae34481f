//go:build windows

package walker

import (
	"io/fs"
	"syscall"

	"golang.org/x/sys/windows"
)

// isReparseDir reports whether info describes a directory reparse point,
// which covers NTFS junctions and mount points as well as directory
// symlinks.
func isReparseDir(info fs.FileInfo) bool {
	data, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return false
	}
	attrs := data.FileAttributes
	return attrs&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0 &&
		attrs&windows.FILE_ATTRIBUTE_DIRECTORY != 0
}
