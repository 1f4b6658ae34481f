// Package index memoizes file sizes and content digests and answers the
// question "do these two files hold the same bytes?".
//
// Sizes are compared first so that files of different length are never
// hashed. Digests are SHA-256 over the whole file, computed at most once per
// path per session even when several goroutines ask for the same path at
// the same time.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/logging"
)

// BlockSize is the read buffer size used while hashing.
const BlockSize = 64 * 1024

// Options configures the index.
type Options struct {
	// IgnoreLinks makes SizeOf report 0 for symbolic links, which keeps
	// them out of every duplicate group.
	IgnoreLinks bool
}

// Index holds the size and digest caches. It is safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	sizes  map[string]int64
	hashes map[string]string

	group       singleflight.Group
	ignoreLinks atomic.Bool
	hashCount   atomic.Int64

	logger *logging.Logger
}

// New creates an empty Index.
func New(opts Options) *Index {
	idx := &Index{
		sizes:  make(map[string]int64),
		hashes: make(map[string]string),
		logger: logging.Get("index"),
	}
	idx.ignoreLinks.Store(opts.IgnoreLinks)
	return idx
}

// SetIgnoreLinks changes how SizeOf treats symbolic links. Sizes already
// cached are kept.
func (i *Index) SetIgnoreLinks(ignore bool) {
	i.ignoreLinks.Store(ignore)
}

// SizeOf returns the size of path in bytes. A symlink reports 0 while links
// are ignored. A file that cannot be stat'ed reports 0; neither case is
// cached.
func (i *Index) SizeOf(path string) int64 {
	i.mu.RLock()
	size, ok := i.sizes[path]
	i.mu.RUnlock()
	if ok {
		return size
	}

	if i.ignoreLinks.Load() {
		if info, err := os.Lstat(path); err == nil && info.Mode()&fs.ModeSymlink != 0 {
			return 0
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		i.logger.Debug("stat failed", "path", path, "err", err)
		return 0
	}
	size = info.Size()

	i.mu.Lock()
	i.sizes[path] = size
	i.mu.Unlock()

	return size
}

// HashOf returns the hex SHA-256 digest of path's content. A file that
// vanished or cannot be read yields "" and is not cached.
func (i *Index) HashOf(path string) string {
	if h, ok := i.cachedHash(path); ok {
		return h
	}

	v, _, _ := i.group.Do(path, func() (interface{}, error) {
		// Another caller may have finished between the cache miss and Do.
		if h, ok := i.cachedHash(path); ok {
			return h, nil
		}

		h, err := hashFile(path)
		i.hashCount.Add(1)
		if err != nil {
			i.logger.Debug("hash failed", "path", path, "err", err)
			return "", nil
		}

		i.mu.Lock()
		i.hashes[path] = h
		i.mu.Unlock()
		return h, nil
	})

	return v.(string)
}

func (i *Index) cachedHash(path string) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	h, ok := i.hashes[path]
	return h, ok
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, BlockSize)
	for {
		n, err := f.Read(buf)
		h.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SameContent reports whether a and b hold identical bytes. Empty files never
// match anything, files of different size are never hashed, and a file whose
// digest cannot be computed never matches.
func (i *Index) SameContent(a, b string) bool {
	sizeA := i.SizeOf(a)
	if sizeA == 0 {
		return false
	}
	sizeB := i.SizeOf(b)
	if sizeB == 0 || sizeA != sizeB {
		return false
	}

	hashA := i.HashOf(a)
	if hashA == "" {
		return false
	}
	return hashA == i.HashOf(b)
}

// HashComputations returns how many digests were computed from disk since
// the last Reset, including failed attempts.
func (i *Index) HashComputations() int64 {
	return i.hashCount.Load()
}

// Len returns the number of cached sizes and digests.
func (i *Index) Len() (sizes, hashes int) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.sizes), len(i.hashes)
}

// Reset drops both caches and the computation counter.
func (i *Index) Reset() {
	i.mu.Lock()
	i.sizes = make(map[string]int64)
	i.hashes = make(map[string]string)
	i.mu.Unlock()
	i.hashCount.Store(0)
}
