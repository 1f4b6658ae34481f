package index

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSizeOf(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "hello")
	idx := New(Options{})

	assert.Equal(t, int64(5), idx.SizeOf(path))

	// Cached: the on-disk change is not observed.
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))
	assert.Equal(t, int64(5), idx.SizeOf(path))

	sizes, _ := idx.Len()
	assert.Equal(t, 1, sizes)
}

func TestSizeOf_MissingFileNotCached(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "later.txt")
	idx := New(Options{})

	assert.Equal(t, int64(0), idx.SizeOf(path))

	writeFile(t, dir, "later.txt", "abc")
	assert.Equal(t, int64(3), idx.SizeOf(path))
}

func TestSizeOf_Symlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on Windows")
	}

	dir := t.TempDir()
	target := writeFile(t, dir, "target.txt", "payload")
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink(target, link))

	ignoring := New(Options{IgnoreLinks: true})
	assert.Equal(t, int64(0), ignoring.SizeOf(link))
	sizes, _ := ignoring.Len()
	assert.Equal(t, 0, sizes, "ignored link size must not be cached")

	ignoring.SetIgnoreLinks(false)
	assert.Equal(t, int64(7), ignoring.SizeOf(link))
}

func TestHashOf(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "content")
	idx := New(Options{})

	sum := sha256.Sum256([]byte("content"))
	want := hex.EncodeToString(sum[:])

	assert.Equal(t, want, idx.HashOf(path))
	assert.Equal(t, want, idx.HashOf(path))
	assert.Equal(t, int64(1), idx.HashComputations())
}

func TestHashOf_LargeFileSpansBlocks(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("0123456789abcdef", BlockSize/16*3+7)
	path := writeFile(t, dir, "big.bin", content)

	sum := sha256.Sum256([]byte(content))
	assert.Equal(t, hex.EncodeToString(sum[:]), New(Options{}).HashOf(path))
}

func TestHashOf_MissingFile(t *testing.T) {
	idx := New(Options{})
	path := filepath.Join(t.TempDir(), "gone.txt")

	assert.Equal(t, "", idx.HashOf(path))
	_, hashes := idx.Len()
	assert.Equal(t, 0, hashes, "failed digest must not be cached")
}

func TestHashOf_ConcurrentCallersComputeOnce(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "shared.bin", strings.Repeat("x", 4*BlockSize))
	idx := New(Options{})

	var wg sync.WaitGroup
	results := make([]string, 16)
	for n := range results {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n] = idx.HashOf(path)
		}(n)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	assert.NotEmpty(t, results[0])
	assert.Equal(t, int64(1), idx.HashComputations())
}

func TestSameContent(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "same bytes")
	b := writeFile(t, dir, "b.txt", "same bytes")
	c := writeFile(t, dir, "c.txt", "diff bytes")
	d := writeFile(t, dir, "d.txt", "longer content here")
	empty1 := writeFile(t, dir, "empty1", "")
	empty2 := writeFile(t, dir, "empty2", "")
	missing := filepath.Join(dir, "missing.txt")

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "equal content", a: a, b: b, want: true},
		{name: "symmetric", a: b, b: a, want: true},
		{name: "same size different bytes", a: a, b: c, want: false},
		{name: "different size", a: a, b: d, want: false},
		{name: "empty files never match", a: empty1, b: empty2, want: false},
		{name: "missing never matches", a: a, b: missing, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := New(Options{})
			assert.Equal(t, tt.want, idx.SameContent(tt.a, tt.b))
		})
	}
}

func TestSameContent_DifferentSizeSkipsHashing(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "short")
	b := writeFile(t, dir, "b.txt", "much longer")
	idx := New(Options{})

	assert.False(t, idx.SameContent(a, b))
	assert.Equal(t, int64(0), idx.HashComputations())
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "same")
	b := writeFile(t, dir, "b.txt", "same")
	idx := New(Options{})

	require.True(t, idx.SameContent(a, b))
	require.Equal(t, int64(2), idx.HashComputations())

	idx.Reset()
	sizes, hashes := idx.Len()
	assert.Zero(t, sizes)
	assert.Zero(t, hashes)
	assert.Zero(t, idx.HashComputations())

	assert.True(t, idx.SameContent(a, b))
	assert.Equal(t, int64(2), idx.HashComputations())
}
