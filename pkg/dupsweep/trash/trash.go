// Package trash moves duplicate files to the system trash. It uses Finder on
// macOS and gio or trash-cli on Linux, and removes the file permanently when
// no trash is available or when permanent deletion is requested.
package trash

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/logging"
)

// commandTimeout is the maximum time to wait for a trash command.
const commandTimeout = 30 * time.Second

// Bin disposes of files. The zero value uses the system trash.
type Bin struct {
	// Permanent skips the system trash and removes files directly.
	Permanent bool
}

// MoveToTrash disposes of path. A symbolic link is trashed itself, never
// its target. A missing path yields an error wrapping fs.ErrNotExist.
func (b Bin) MoveToTrash(path string) error {
	if _, err := os.Lstat(path); err != nil {
		return fmt.Errorf("cannot trash %q: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot resolve absolute path for %q: %w", path, err)
	}

	if b.Permanent {
		return remove(absPath)
	}

	switch runtime.GOOS {
	case "darwin":
		return trashMacOS(absPath)
	case "linux":
		return trashLinux(absPath)
	default:
		return fallback(absPath, "no system trash on "+runtime.GOOS)
	}
}

// trashMacOS asks Finder to delete the file so that "Put Back" works.
func trashMacOS(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	script := fmt.Sprintf(`tell application "Finder" to delete POSIX file %q`, path)
	if err := exec.CommandContext(ctx, "osascript", "-e", script).Run(); err != nil {
		return fallback(path, "osascript: "+err.Error())
	}
	return nil
}

// trashLinux tries gio (GNOME/GTK) and then trash-cli.
func trashLinux(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if gio, err := exec.LookPath("gio"); err == nil {
		if err := exec.CommandContext(ctx, gio, "trash", path).Run(); err == nil {
			return nil
		}
	}

	if trashPut, err := exec.LookPath("trash-put"); err == nil {
		if err := exec.CommandContext(ctx, trashPut, path).Run(); err == nil {
			return nil
		}
	}

	return fallback(path, "no trash tool succeeded")
}

func fallback(path, reason string) error {
	logging.Get("trash").Debug("removing permanently", "path", path, "reason", reason)
	return remove(path)
}

// remove deletes a file, a symlink or a directory tree.
func remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete %q: %w", path, err)
	}
	return nil
}
