package walker_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"testing"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/filter"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/walker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTree creates:
//
//	root/a.txt
//	root/b.log
//	root/sub/c.txt
//	root/sub/deep/d.txt
//	root/skip/e.txt
func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"a.txt":          "a",
		"b.log":          "b",
		"sub/c.txt":      "c",
		"sub/deep/d.txt": "d",
		"skip/e.txt":     "e",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

type collector struct {
	mu    sync.Mutex
	files map[string]bool
}

func newCollector() *collector {
	return &collector{files: make(map[string]bool)}
}

func (c *collector) onFile(path string, isLink bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[path] = isLink
	return nil
}

func (c *collector) rel(t *testing.T, root string) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.files))
	for p := range c.files {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(r))
	}
	sort.Strings(out)
	return out
}

func TestWalk_VisitsAllEligibleFiles(t *testing.T) {
	root := buildTree(t)
	w := walker.New(nil, walker.Options{IgnoreLinks: true})

	c := newCollector()
	require.NoError(t, w.Walk(context.Background(), root, c.onFile))

	assert.Equal(t, []string{"a.txt", "b.log", "skip/e.txt", "sub/c.txt", "sub/deep/d.txt"}, c.rel(t, root))
	assert.Empty(t, w.Errors())
}

func TestWalk_AppliesFilter(t *testing.T) {
	root := buildTree(t)
	f := filter.New(
		filter.WithExtensions("txt"),
		filter.WithExcludeDirs(filepath.Join(root, "skip")),
	)
	w := walker.New(f, walker.Options{IgnoreLinks: true})

	c := newCollector()
	require.NoError(t, w.Walk(context.Background(), root, c.onFile))

	assert.Equal(t, []string{"a.txt", "sub/c.txt", "sub/deep/d.txt"}, c.rel(t, root))
}

func TestWalk_GlobExcludedDir(t *testing.T) {
	root := buildTree(t)
	w := walker.New(filter.New(filter.WithExcludeDirs("**/deep")), walker.Options{})

	c := newCollector()
	require.NoError(t, w.Walk(context.Background(), root, c.onFile))

	assert.NotContains(t, c.rel(t, root), "sub/deep/d.txt")
	assert.Contains(t, c.rel(t, root), "sub/c.txt")
}

func TestWalk_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on Windows")
	}

	root := buildTree(t)
	require.NoError(t, os.Symlink(filepath.Join(root, "a.txt"), filepath.Join(root, "link.txt")))
	require.NoError(t, os.Symlink(filepath.Join(root, "sub"), filepath.Join(root, "subjunction")))

	t.Run("links ignored", func(t *testing.T) {
		w := walker.New(nil, walker.Options{IgnoreLinks: true})
		c := newCollector()
		require.NoError(t, w.Walk(context.Background(), root, c.onFile))

		files := c.rel(t, root)
		assert.NotContains(t, files, "link.txt")
		assert.NotContains(t, files, "subjunction/c.txt")
	})

	t.Run("links followed", func(t *testing.T) {
		w := walker.New(nil, walker.Options{})
		c := newCollector()
		require.NoError(t, w.Walk(context.Background(), root, c.onFile))

		files := c.rel(t, root)
		assert.Contains(t, files, "link.txt")
		assert.True(t, c.files[filepath.Join(root, "link.txt")], "link.txt should be reported as a link")
		assert.False(t, c.files[filepath.Join(root, "a.txt")])
		assert.NotContains(t, files, "subjunction/c.txt", "directory symlinks are never descended")
	})
}

func TestWalk_UnreadableDirectoryIsSoft(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}

	root := buildTree(t)
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Mkdir(locked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(locked, "x.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	w := walker.New(nil, walker.Options{})
	c := newCollector()
	require.NoError(t, w.Walk(context.Background(), root, c.onFile))

	assert.Len(t, c.rel(t, root), 5)
	require.Len(t, w.Errors(), 1)
	assert.Equal(t, locked, w.Errors()[0].Path)

	w.ResetErrors()
	assert.Empty(t, w.Errors())
}

func TestWalk_MissingRootIsSoft(t *testing.T) {
	w := walker.New(nil, walker.Options{})
	missing := filepath.Join(t.TempDir(), "gone")

	c := newCollector()
	require.NoError(t, w.Walk(context.Background(), missing, c.onFile))
	assert.Empty(t, c.files)
	assert.Len(t, w.Errors(), 1)
}

func TestWalk_Cancelled(t *testing.T) {
	root := buildTree(t)
	w := walker.New(nil, walker.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newCollector()
	err := w.Walk(ctx, root, c.onFile)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.files)
}

func TestWalk_CallbackErrorStops(t *testing.T) {
	root := buildTree(t)
	w := walker.New(nil, walker.Options{})

	errStop := errors.New("stop")
	calls := 0
	err := w.Walk(context.Background(), root, func(string, bool) error {
		calls++
		return errStop
	})

	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, 1, calls)
}

func TestCount_MatchesWalk(t *testing.T) {
	root := buildTree(t)
	f := filter.New(
		filter.WithExcludeExtensions("log"),
		filter.WithExcludeDirs(filepath.Join(root, "skip")),
	)
	w := walker.New(f, walker.Options{IgnoreLinks: true})

	n, err := w.Count(context.Background(), root)
	require.NoError(t, err)

	c := newCollector()
	require.NoError(t, w.Walk(context.Background(), root, c.onFile))

	assert.Equal(t, int64(len(c.files)), n)
	assert.Equal(t, int64(3), n)
}

func TestCount_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on Windows")
	}

	root := buildTree(t)
	require.NoError(t, os.Symlink(filepath.Join(root, "a.txt"), filepath.Join(root, "link.txt")))
	require.NoError(t, os.Symlink(filepath.Join(root, "sub"), filepath.Join(root, "subjunction")))

	w := walker.New(nil, walker.Options{IgnoreLinks: true})
	n, err := w.Count(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	w.SetIgnoreLinks(false)
	assert.False(t, w.IgnoreLinks())
	n, err = w.Count(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestCount_Cancelled(t *testing.T) {
	root := buildTree(t)
	w := walker.New(nil, walker.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Count(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
