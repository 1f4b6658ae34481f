// Package engine drives a duplicate scan: it owns the configuration, runs
// one walker per search root, feeds discovered files through the index and
// the registry, keeps the disposition table, and applies the marks.
//
// Basic usage:
//
//	eng, err := engine.New(engine.Options{Roots: []string{dir}, IgnoreLinks: true})
//	if err != nil {
//	    return err
//	}
//	if err := eng.StartSearch(ctx, false); err != nil {
//	    return err
//	}
//	for _, group := range eng.Groups() {
//	    ...
//	}
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/apply"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/events"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/filter"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/index"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/logging"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/marks"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/registry"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/trash"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/walker"
)

var (
	// ErrScanInProgress is returned when an operation needs the engine to
	// be idle.
	ErrScanInProgress = errors.New("scan in progress")

	// ErrNotDirectory is returned when a search root or excluded directory
	// is not an existing directory.
	ErrNotDirectory = errors.New("not a directory")
)

// State is the scan lifecycle state.
type State int32

const (
	// StateIdle means no scan is running.
	StateIdle State = iota
	// StateScanning means workers are walking the roots.
	StateScanning
	// StateStopping means Stop was called and workers are winding down.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Options configures a new Engine.
type Options struct {
	// Roots are the directories to search. Each must exist.
	Roots []string

	// ExcludeDirs are directories to skip. Entries containing glob
	// metacharacters are patterns; other entries that do not name an
	// existing directory are ignored.
	ExcludeDirs []string

	// Extensions restricts the scan to these extensions. Empty means all.
	Extensions []string

	// ExcludeExtensions are never scanned, even when listed in Extensions.
	ExcludeExtensions []string

	// IgnoreLinks skips file symlinks during the scan.
	IgnoreLinks bool

	// UseOldestModTime makes Apply give the master and the ignored members
	// of each group the oldest modification time in the group.
	UseOldestModTime bool

	// Trasher disposes of DELETE members. Nil uses the system trash.
	Trasher apply.Trasher
}

// DefaultOptions returns the defaults: links ignored, oldest modification
// time kept, system trash.
func DefaultOptions() Options {
	return Options{
		IgnoreLinks:      true,
		UseOldestModTime: true,
		Trasher:          trash.Bin{},
	}
}

// Engine is the scan controller. All methods are safe for concurrent use.
type Engine struct {
	filter   *filter.Filter
	walker   *walker.Walker
	index    *index.Index
	registry *registry.Registry
	table    *marks.Table

	mu          sync.Mutex
	roots       []string
	excludeDirs []string
	ignoreLinks bool
	useOldest   bool
	trasher     apply.Trasher
	state       State
	stopped     bool
	cancel      context.CancelFunc
	done        chan struct{}
	session     string

	listenersMu sync.RWMutex
	listeners   []events.Listener

	totalFiles atomic.Int64
	scanned    atomic.Int64

	logger *logging.Logger
}

// New creates an Engine from opts. It fails when a root is not an existing
// directory or an exclusion pattern does not compile.
func New(opts Options) (*Engine, error) {
	f := filter.New(
		filter.WithExtensions(opts.Extensions...),
		filter.WithExcludeExtensions(opts.ExcludeExtensions...),
	)
	idx := index.New(index.Options{IgnoreLinks: opts.IgnoreLinks})

	trasher := opts.Trasher
	if trasher == nil {
		trasher = trash.Bin{}
	}

	e := &Engine{
		filter:      f,
		walker:      walker.New(f, walker.Options{IgnoreLinks: opts.IgnoreLinks}),
		index:       idx,
		registry:    registry.New(idx),
		table:       marks.NewTable(),
		ignoreLinks: opts.IgnoreLinks,
		useOldest:   opts.UseOldestModTime,
		trasher:     trasher,
		logger:      logging.Get("engine"),
	}

	for _, root := range opts.Roots {
		if err := e.AddSearchRoot(root); err != nil {
			return nil, err
		}
	}
	for _, dir := range opts.ExcludeDirs {
		if err := e.AddExcludeDir(dir); err != nil {
			if errors.Is(err, ErrNotDirectory) {
				e.logger.Debug("ignoring exclude dir", "dir", dir, "err", err)
				continue
			}
			return nil, err
		}
	}

	return e, nil
}

// AddSearchRoot adds dir to the search roots. dir must be an existing
// directory; it is stored as an absolute path and added at most once.
func (e *Engine) AddSearchRoot(dir string) error {
	abs, err := existingDir(dir)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if contains(e.roots, abs) {
		return nil
	}
	e.roots = append(e.roots, abs)
	return nil
}

// AddExcludeDir excludes dir from the search. A plain path must be an
// existing directory and is added at most once; a glob pattern such as
// "**/node_modules" is added as is.
func (e *Engine) AddExcludeDir(dir string) error {
	target := dir
	if !filter.IsPattern(dir) {
		abs, err := existingDir(dir)
		if err != nil {
			return err
		}
		target = abs
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if contains(e.excludeDirs, target) {
		return nil
	}
	if err := e.filter.AddExcludeDir(target); err != nil {
		return err
	}
	e.excludeDirs = append(e.excludeDirs, target)
	return nil
}

// AddExcludeExt excludes files with extension ext. A leading dot is added
// when missing.
func (e *Engine) AddExcludeExt(ext string) {
	e.filter.AddExcludeExtension(ext)
}

// AddExt restricts the search to files with extension ext, in addition to
// any extensions already added.
func (e *Engine) AddExt(ext string) {
	e.filter.AddExtension(ext)
}

// SetIgnoreLinks changes whether file symlinks are skipped.
func (e *Engine) SetIgnoreLinks(ignore bool) {
	e.mu.Lock()
	e.ignoreLinks = ignore
	e.mu.Unlock()

	e.walker.SetIgnoreLinks(ignore)
	e.index.SetIgnoreLinks(ignore)
}

// SetUseOldestModTime changes whether Apply normalizes modification times.
func (e *Engine) SetUseOldestModTime(use bool) {
	e.mu.Lock()
	e.useOldest = use
	e.mu.Unlock()
}

// SetTrasher replaces the trasher used by Apply.
func (e *Engine) SetTrasher(t apply.Trasher) {
	e.mu.Lock()
	e.trasher = t
	e.mu.Unlock()
}

// SearchRoots returns the search roots in the order they were added.
func (e *Engine) SearchRoots() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.roots...)
}

// ExcludeDirs returns the excluded directories and patterns.
func (e *Engine) ExcludeDirs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.excludeDirs...)
}

// Extensions returns the included extensions, sorted. Empty means every
// extension is included.
func (e *Engine) Extensions() []string {
	exts := e.filter.Extensions()
	sort.Strings(exts)
	return exts
}

// ExcludeExts returns the excluded extensions, sorted.
func (e *Engine) ExcludeExts() []string {
	exts := e.filter.ExcludedExtensions()
	sort.Strings(exts)
	return exts
}

// AddListener registers l for every notification.
func (e *Engine) AddListener(l events.Listener) {
	if l == nil {
		return
	}
	e.listenersMu.Lock()
	e.listeners = append(e.listeners, l)
	e.listenersMu.Unlock()
}

// CountFiles walks every root with the count-only walker and stores the
// total as the progress estimate.
func (e *Engine) CountFiles(ctx context.Context) (int64, error) {
	total, err := e.countFiles(ctx, e.SearchRoots())
	e.totalFiles.Store(total)
	return total, err
}

func (e *Engine) countFiles(ctx context.Context, roots []string) (int64, error) {
	var total int64
	for _, root := range roots {
		n, err := e.walker.Count(ctx, root)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// StartSearch scans every root and blocks until all workers finish. The
// file estimate is recomputed when recount is set or no estimate exists.
// Scan-finished is emitted on return, including after Stop.
//
// After Stop, StartSearch returns immediately without discovering anything
// until Reset is called. It returns ErrScanInProgress when a scan is
// already running, and ctx.Err() when ctx is cancelled.
func (e *Engine) StartSearch(ctx context.Context, recount bool) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return ErrScanInProgress
	}
	if e.stopped {
		e.mu.Unlock()
		e.logger.Info("scan skipped, engine is stopped")
		e.emitScanFinished()
		return nil
	}

	scanCtx, cancel := context.WithCancel(ctx)
	roots := append([]string(nil), e.roots...)
	e.state = StateScanning
	e.cancel = cancel
	e.done = make(chan struct{})
	e.session = uuid.New().String()
	logger := e.logger.With("session", e.session)
	e.mu.Unlock()

	start := time.Now()
	defer func() {
		cancel()
		e.mu.Lock()
		e.state = StateIdle
		e.cancel = nil
		close(e.done)
		e.mu.Unlock()
		e.emitScanFinished()
	}()

	if recount || e.totalFiles.Load() == 0 {
		total, err := e.countFiles(scanCtx, roots)
		e.totalFiles.Store(total)
		if err != nil && !isCancel(err) {
			logger.Warn("file count failed", "err", err)
		}
	}
	e.scanned.Store(0)

	logger.Info("scan started", "roots", len(roots), "estimate", e.totalFiles.Load())

	g, gctx := errgroup.WithContext(scanCtx)
	for _, root := range roots {
		g.Go(func() error {
			return e.walker.Walk(gctx, root, func(path string, isLink bool) error {
				return e.handleFile(gctx, path, isLink)
			})
		})
	}
	err := g.Wait()

	totals := e.registry.Totals()
	logger.Info("scan finished",
		"files", e.scanned.Load(),
		"groups", totals.Groups,
		"duplicates", totals.Duplicates,
		"saved", types.FormatSize(totals.Saved),
		"hashes", e.index.HashComputations(),
		"duration", time.Since(start).Round(time.Millisecond),
		"stopped", e.Stopped(),
	)

	if err == nil || e.Stopped() {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if isCancel(err) {
		return nil
	}
	return fmt.Errorf("scanning: %w", err)
}

func (e *Engine) handleFile(ctx context.Context, path string, isLink bool) error {
	e.table.Add(path, isLink)
	e.emitFileScanned(e.scanned.Add(1))

	group, changed, err := e.registry.Register(ctx, path)
	if err != nil {
		return err
	}
	if changed {
		e.emitDuplicateFound(group)
	}
	return nil
}

// Stop asks a running scan to wind down and keeps later scans from
// starting until Reset. In-flight hashing finishes first.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopped = true
	if e.state == StateScanning {
		e.state = StateStopping
		e.cancel()
		e.logger.Info("scan stopping", "session", e.session)
	}
}

// Stopped reports whether Stop was called since the last Reset.
func (e *Engine) Stopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// Reset stops a running scan, waits for it, and clears every discovered
// file, group, cached size and digest, the estimates and the stop flag.
// The configuration is kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	done := e.done
	if e.state == StateScanning {
		e.state = StateStopping
		e.cancel()
	}
	busy := e.state != StateIdle
	e.mu.Unlock()

	if busy && done != nil {
		<-done
	}

	e.index.Reset()
	e.registry.Reset()
	e.table.Reset()
	e.walker.ResetErrors()
	e.totalFiles.Store(0)
	e.scanned.Store(0)

	e.mu.Lock()
	e.stopped = false
	e.mu.Unlock()

	e.logger.Debug("engine reset")
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetMark changes the mark of a discovered file.
func (e *Engine) SetMark(path string, mark types.Mark) error {
	return e.table.Set(path, mark)
}

// Mark returns the mark of path, IGNORE when unknown.
func (e *Engine) Mark(path string) types.Mark {
	return e.table.Get(path)
}

// Record returns the file record of a discovered path.
func (e *Engine) Record(path string) (types.FileRecord, bool) {
	return e.table.Record(path)
}

// DefaultMarks marks every group the way a fresh listing does. The first
// member that is not a symlink gets master, the other regular members get
// dup, and symlinks are always ignored. A group made only of symlinks is
// left ignored, so dup is never applied to a group without a master.
func (e *Engine) DefaultMarks(master, dup types.Mark) error {
	for _, group := range e.registry.Groups() {
		hasMaster := false
		for _, path := range group {
			mark := types.MarkIgnore
			rec, ok := e.table.Record(path)
			switch {
			case ok && rec.IsLink:
			case !hasMaster:
				mark = master
				hasMaster = true
			default:
				mark = dup
			}
			if err := e.table.Set(path, mark); err != nil {
				return err
			}
		}
	}
	return nil
}

// Apply performs the marks of every group. It refuses to run during a scan.
func (e *Engine) Apply(ctx context.Context) (*apply.Report, error) {
	return e.runApply(ctx, false)
}

// Preview reports what Apply would do without touching the filesystem.
func (e *Engine) Preview(ctx context.Context) (*apply.Report, error) {
	return e.runApply(ctx, true)
}

func (e *Engine) runApply(ctx context.Context, dryRun bool) (*apply.Report, error) {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return nil, ErrScanInProgress
	}
	opts := apply.Options{
		UseOldestModTime: e.useOldest,
		Trasher:          e.trasher,
		DryRun:           dryRun,
	}
	e.mu.Unlock()

	return apply.New(opts).Run(ctx, e.registry.Groups(), e.table, e.emitMarkApplied)
}

// Groups returns a copy of the duplicate groups in creation order.
func (e *Engine) Groups() []types.Group {
	return e.registry.Groups()
}

// GroupOf returns the group containing path, or nil.
func (e *Engine) GroupOf(path string) types.Group {
	return e.registry.GroupOf(path)
}

// DuplicateCount returns the number of files across all groups.
func (e *Engine) DuplicateCount() int {
	return e.registry.DuplicateCount()
}

// Totals returns the byte totals of the groups.
func (e *Engine) Totals() types.Totals {
	return e.registry.Totals()
}

// SizeOf returns the cached size of path.
func (e *Engine) SizeOf(path string) int64 {
	return e.index.SizeOf(path)
}

// Progress returns the current scan progress.
func (e *Engine) Progress() types.ScanProgress {
	return types.ScanProgress{
		TotalFiles:   e.totalFiles.Load(),
		FilesScanned: e.scanned.Load(),
		Groups:       e.registry.Len(),
	}
}

// Errors returns the soft errors of the scans since the last Reset.
func (e *Engine) Errors() []types.ScanError {
	return e.walker.Errors()
}

// HashComputations returns how many digests were read from disk since the
// last Reset.
func (e *Engine) HashComputations() int64 {
	return e.index.HashComputations()
}

func (e *Engine) snapshotListeners() []events.Listener {
	e.listenersMu.RLock()
	defer e.listenersMu.RUnlock()
	return append([]events.Listener(nil), e.listeners...)
}

func (e *Engine) emitFileScanned(n int64) {
	for _, l := range e.snapshotListeners() {
		l.OnFileScanned(n)
	}
}

func (e *Engine) emitDuplicateFound(group types.Group) {
	for _, l := range e.snapshotListeners() {
		l.OnDuplicateFound(group.Clone())
	}
}

func (e *Engine) emitScanFinished() {
	for _, l := range e.snapshotListeners() {
		l.OnScanFinished()
	}
}

func (e *Engine) emitMarkApplied(file string, members []string) {
	for _, l := range e.snapshotListeners() {
		l.OnMarkApplied(file, append([]string(nil), members...))
	}
}

func existingDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNotDirectory, dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	return abs, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
