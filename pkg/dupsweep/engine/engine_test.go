package engine_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/engine"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/events"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/trash"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newEngine(t *testing.T, roots ...string) *engine.Engine {
	t.Helper()
	opts := engine.DefaultOptions()
	opts.Roots = roots
	opts.Trasher = trash.Bin{Permanent: true}
	eng, err := engine.New(opts)
	require.NoError(t, err)
	return eng
}

func sortedGroups(groups []types.Group) [][]string {
	out := make([][]string, len(groups))
	for i, g := range groups {
		members := append([]string(nil), g...)
		sort.Strings(members)
		out[i] = members
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// recorder collects every notification.
type recorder struct {
	mu       sync.Mutex
	scanned  []int64
	dups     [][]string
	finished int
	applied  []string
}

func (r *recorder) OnFileScanned(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanned = append(r.scanned, n)
}

func (r *recorder) OnDuplicateFound(members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dups = append(r.dups, members)
}

func (r *recorder) OnScanFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
}

func (r *recorder) OnMarkApplied(file string, _ []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, file)
}

func TestScan_GroupsDuplicates(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a":      "hello",
		"b":      "hello",
		"c":      "world",
		"empty1": "",
		"empty2": "",
	})

	eng := newEngine(t, root)
	rec := &recorder{}
	eng.AddListener(rec)

	require.NoError(t, eng.StartSearch(context.Background(), false))

	a, b := filepath.Join(root, "a"), filepath.Join(root, "b")
	require.Len(t, eng.Groups(), 1)
	assert.ElementsMatch(t, []string{a, b}, eng.Groups()[0])
	assert.ElementsMatch(t, []string{a, b}, eng.GroupOf(a))
	assert.Nil(t, eng.GroupOf(filepath.Join(root, "c")))
	assert.Nil(t, eng.GroupOf(filepath.Join(root, "empty1")))

	assert.Equal(t, types.Totals{Groups: 1, Duplicates: 2, Total: 10, New: 5, Saved: 5}, eng.Totals())
	assert.Equal(t, 2, eng.DuplicateCount())

	assert.Len(t, rec.scanned, 5)
	assert.Equal(t, int64(5), rec.scanned[len(rec.scanned)-1])
	require.Len(t, rec.dups, 1)
	assert.ElementsMatch(t, []string{a, b}, rec.dups[0])
	assert.Equal(t, 1, rec.finished)

	progress := eng.Progress()
	assert.Equal(t, int64(5), progress.TotalFiles)
	assert.Equal(t, int64(5), progress.FilesScanned)
	assert.Equal(t, float64(100), progress.Percent())
	assert.Equal(t, engine.StateIdle, eng.State())

	for _, p := range []string{a, b, filepath.Join(root, "c")} {
		assert.Equal(t, types.MarkIgnore, eng.Mark(p), "new files start ignored")
	}
}

func TestScan_MultipleRoots(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	writeFiles(t, left, map[string]string{"x/one.txt": "same", "x/two.txt": "other"})
	writeFiles(t, right, map[string]string{"y/one.txt": "same", "y/three.txt": "other"})

	eng := newEngine(t, left, right)
	require.NoError(t, eng.StartSearch(context.Background(), true))

	assert.Equal(t, [][]string{
		{filepath.Join(left, "x", "one.txt"), filepath.Join(right, "y", "one.txt")},
		{filepath.Join(left, "x", "two.txt"), filepath.Join(right, "y", "three.txt")},
	}, sortedGroups(eng.Groups()))
}

func TestScan_HashesEachFileAtMostOnce(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"1": "dup", "2": "dup", "3": "dup", "4": "dup", "5": "xyz",
	})

	eng := newEngine(t, root)
	require.NoError(t, eng.StartSearch(context.Background(), false))

	assert.LessOrEqual(t, eng.HashComputations(), int64(5))
	require.Len(t, eng.Groups(), 1)
	assert.Len(t, eng.Groups()[0], 4)
}

func TestScan_Filters(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.txt":      "same",
		"b.txt":      "same",
		"c.log":      "same",
		"skip/d.txt": "same",
	})

	opts := engine.DefaultOptions()
	opts.Roots = []string{root}
	opts.Extensions = []string{"txt", "log"}
	opts.ExcludeExtensions = []string{".log"}
	opts.ExcludeDirs = []string{filepath.Join(root, "skip"), filepath.Join(root, "does-not-exist")}
	eng, err := engine.New(opts)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "skip")}, eng.ExcludeDirs())
	require.NoError(t, eng.StartSearch(context.Background(), false))

	require.Len(t, eng.Groups(), 1)
	assert.ElementsMatch(t, []string{filepath.Join(root, "a.txt"), filepath.Join(root, "b.txt")}, eng.Groups()[0])
}

func TestScan_IgnoreLinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on Windows")
	}

	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a": "payload"})
	require.NoError(t, os.Symlink(filepath.Join(root, "a"), filepath.Join(root, "link")))

	eng := newEngine(t, root)
	require.NoError(t, eng.StartSearch(context.Background(), false))
	assert.Empty(t, eng.Groups())

	eng.Reset()
	eng.SetIgnoreLinks(false)
	require.NoError(t, eng.StartSearch(context.Background(), true))
	require.Len(t, eng.Groups(), 1)

	rec, ok := eng.Record(filepath.Join(root, "link"))
	require.True(t, ok)
	assert.True(t, rec.IsLink)

	require.NoError(t, eng.DefaultMarks(types.MarkMaster, types.MarkDelete))
	assert.Equal(t, types.MarkIgnore, eng.Mark(filepath.Join(root, "link")), "symlinks default to ignore")
}

func TestConfiguration(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	writeFiles(t, root, map[string]string{"file.txt": "x"})

	eng := newEngine(t)
	require.NoError(t, eng.AddSearchRoot(root))
	require.NoError(t, eng.AddSearchRoot(root+string(filepath.Separator)))
	assert.Equal(t, []string{root}, eng.SearchRoots())

	assert.ErrorIs(t, eng.AddSearchRoot(file), engine.ErrNotDirectory)
	assert.ErrorIs(t, eng.AddSearchRoot(filepath.Join(root, "missing")), engine.ErrNotDirectory)
	assert.ErrorIs(t, eng.AddExcludeDir(file), engine.ErrNotDirectory)
	require.NoError(t, eng.AddExcludeDir("**/cache"))
	require.NoError(t, eng.AddExcludeDir("**/cache"))
	assert.Equal(t, []string{"**/cache"}, eng.ExcludeDirs())

	_, err := engine.New(engine.Options{Roots: []string{file}})
	assert.ErrorIs(t, err, engine.ErrNotDirectory)
}

func TestExtensionAccessors(t *testing.T) {
	eng, err := engine.New(engine.Options{
		Extensions:        []string{"png", ".JPG"},
		ExcludeExtensions: []string{"tmp"},
	})
	require.NoError(t, err)
	eng.AddExt("gif")
	eng.AddExcludeExt(".bak")

	assert.Equal(t, []string{".gif", ".jpg", ".png"}, eng.Extensions())
	assert.Equal(t, []string{".bak", ".tmp"}, eng.ExcludeExts())
}

func TestScenario_MasterAndLink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on Windows")
	}

	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a": "hello", "b": "hello"})
	a, b := filepath.Join(root, "a"), filepath.Join(root, "b")

	eng := newEngine(t, root)
	rec := &recorder{}
	eng.AddListener(rec)
	require.NoError(t, eng.StartSearch(context.Background(), false))

	require.NoError(t, eng.SetMark(a, types.MarkMaster))
	require.NoError(t, eng.SetMark(b, types.MarkLink))

	report, err := eng.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{b}, report.Paths("link"))

	target, err := os.Readlink(b)
	require.NoError(t, err)
	assert.Equal(t, a, target)
	assert.Equal(t, []string{a}, rec.applied)
}

func TestScenario_MasterAndDeleteKeepsOldestTime(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a": "hello", "b": "hello"})
	a, b := filepath.Join(root, "a"), filepath.Join(root, "b")

	old := time.Date(2015, 5, 5, 5, 5, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(b, old, old))

	eng := newEngine(t, root)
	require.NoError(t, eng.StartSearch(context.Background(), false))

	require.NoError(t, eng.SetMark(a, types.MarkMaster))
	require.NoError(t, eng.SetMark(b, types.MarkDelete))

	_, err := eng.Apply(context.Background())
	require.NoError(t, err)

	_, err = os.Lstat(b)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	info, err := os.Stat(a)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old))

	// Applying again changes nothing.
	report, err := eng.Apply(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Paths("delete"))
	assert.Empty(t, report.Failures)
}

func TestPreview(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a": "hello", "b": "hello"})

	eng := newEngine(t, root)
	require.NoError(t, eng.StartSearch(context.Background(), false))
	require.NoError(t, eng.DefaultMarks(types.MarkMaster, types.MarkDelete))

	report, err := eng.Preview(context.Background())
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Len(t, report.Paths("delete"), 1)

	for _, name := range []string{"a", "b"} {
		_, err := os.Stat(filepath.Join(root, name))
		assert.NoError(t, err)
	}
}

func TestDefaultMarks(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a": "hello", "b": "hello", "c": "hello"})

	eng := newEngine(t, root)
	require.NoError(t, eng.StartSearch(context.Background(), false))
	require.NoError(t, eng.DefaultMarks(types.MarkMaster, types.MarkLink))

	group := eng.Groups()[0]
	require.Len(t, group, 3)
	assert.Equal(t, types.MarkMaster, eng.Mark(group[0]))
	assert.Equal(t, types.MarkLink, eng.Mark(group[1]))
	assert.Equal(t, types.MarkLink, eng.Mark(group[2]))
}

func TestDefaultMarks_FollowedLinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on Windows")
	}

	root := t.TempDir()
	writeFiles(t, root, map[string]string{"real1.txt": "shared", "real2.txt": "shared"})
	real1, real2 := filepath.Join(root, "real1.txt"), filepath.Join(root, "real2.txt")
	link := filepath.Join(root, "a_link.txt")
	require.NoError(t, os.Symlink(real1, link))

	eng := newEngine(t, root)
	eng.SetIgnoreLinks(false)
	require.NoError(t, eng.StartSearch(context.Background(), false))
	require.Len(t, eng.Groups(), 1)
	require.Len(t, eng.Groups()[0], 3)

	require.NoError(t, eng.DefaultMarks(types.MarkMaster, types.MarkDelete))

	// Whatever the listing order, the link is ignored and one real copy is master.
	assert.Equal(t, types.MarkIgnore, eng.Mark(link))
	assert.ElementsMatch(t,
		[]types.Mark{types.MarkMaster, types.MarkDelete},
		[]types.Mark{eng.Mark(real1), eng.Mark(real2)})

	rep, err := eng.Apply(context.Background())
	require.NoError(t, err)
	assert.Len(t, rep.Paths("delete"), 1)

	_, err1 := os.Stat(real1)
	_, err2 := os.Stat(real2)
	assert.True(t, err1 == nil || err2 == nil, "a real copy must survive")
}

func TestDefaultMarks_OnlyLinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on Windows")
	}

	outside := t.TempDir()
	writeFiles(t, outside, map[string]string{"target.txt": "shared"})
	root := t.TempDir()
	for _, name := range []string{"l1", "l2"} {
		require.NoError(t, os.Symlink(filepath.Join(outside, "target.txt"), filepath.Join(root, name)))
	}

	eng := newEngine(t, root)
	eng.SetIgnoreLinks(false)
	require.NoError(t, eng.StartSearch(context.Background(), false))
	require.Len(t, eng.Groups(), 1)

	require.NoError(t, eng.DefaultMarks(types.MarkMaster, types.MarkDelete))
	for _, path := range eng.Groups()[0] {
		assert.Equal(t, types.MarkIgnore, eng.Mark(path), path)
	}
}

func TestSetMark_UnknownFile(t *testing.T) {
	eng := newEngine(t, t.TempDir())
	assert.Error(t, eng.SetMark("/not/scanned", types.MarkMaster))
}

func TestReset_RescanReproducesGroups(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a": "one", "b": "one", "c": "two", "d": "two"})

	eng := newEngine(t, root)
	require.NoError(t, eng.StartSearch(context.Background(), false))
	first := sortedGroups(eng.Groups())
	require.Len(t, first, 2)

	require.NoError(t, eng.SetMark(filepath.Join(root, "a"), types.MarkMaster))
	eng.Reset()

	assert.Empty(t, eng.Groups())
	assert.Zero(t, eng.HashComputations())
	assert.Equal(t, types.ScanProgress{}, eng.Progress())
	assert.Equal(t, types.MarkIgnore, eng.Mark(filepath.Join(root, "a")))
	assert.Equal(t, []string{root}, eng.SearchRoots(), "configuration survives reset")

	require.NoError(t, eng.StartSearch(context.Background(), false))
	assert.Equal(t, first, sortedGroups(eng.Groups()))
}

func TestStop_PersistsUntilReset(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a": "one", "b": "one"})

	eng := newEngine(t, root)
	rec := &recorder{}
	eng.AddListener(rec)

	eng.Stop()
	assert.True(t, eng.Stopped())

	require.NoError(t, eng.StartSearch(context.Background(), false))
	assert.Empty(t, eng.Groups())
	assert.Empty(t, rec.scanned)
	assert.Equal(t, 1, rec.finished, "scan-finished fires even when stopped")

	eng.Reset()
	assert.False(t, eng.Stopped())
	require.NoError(t, eng.StartSearch(context.Background(), false))
	assert.Len(t, eng.Groups(), 1)
}

func TestStop_DuringScan(t *testing.T) {
	root := t.TempDir()
	files := make(map[string]string)
	for i := 0; i < 200; i++ {
		files[filepath.Join("d", string(rune('a'+i%26)), time.Duration(i).String())] = "x"
	}
	writeFiles(t, root, files)

	eng := newEngine(t, root)
	var once sync.Once
	eng.AddListener(events.Funcs{
		FileScanned: func(int64) { once.Do(eng.Stop) },
	})

	require.NoError(t, eng.StartSearch(context.Background(), false))

	assert.Equal(t, engine.StateIdle, eng.State())
	assert.True(t, eng.Stopped())
	assert.Less(t, eng.Progress().FilesScanned, int64(200))
}

func TestStartSearch_InProgress(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a": "x"})

	eng := newEngine(t, root)
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	eng.AddListener(events.Funcs{
		FileScanned: func(int64) {
			once.Do(func() { close(entered) })
			<-release
		},
	})

	done := make(chan error, 1)
	go func() { done <- eng.StartSearch(context.Background(), false) }()

	<-entered
	assert.Equal(t, engine.StateScanning, eng.State())
	assert.ErrorIs(t, eng.StartSearch(context.Background(), false), engine.ErrScanInProgress)
	_, err := eng.Apply(context.Background())
	assert.ErrorIs(t, err, engine.ErrScanInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestStartSearch_ContextCancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a": "x", "b": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := newEngine(t, root)
	err := eng.StartSearch(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, eng.Stopped())
}

func TestBroadcasterListener(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a": "same", "b": "same"})

	b := events.NewBroadcaster()
	defer b.Close()
	sub := b.Subscribe(100, events.KindDuplicateFound, events.KindScanFinished)

	eng := newEngine(t, root)
	eng.AddListener(b)
	require.NoError(t, eng.StartSearch(context.Background(), false))

	first := <-sub.Events
	assert.Equal(t, events.KindDuplicateFound, first.Kind)
	assert.Len(t, first.Members, 2)

	second := <-sub.Events
	assert.Equal(t, events.KindScanFinished, second.Kind)
}

func TestErrors_CollectedAndReset(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}

	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Mkdir(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	eng := newEngine(t, root)
	require.NoError(t, eng.StartSearch(context.Background(), false))
	require.Len(t, eng.Errors(), 1)
	assert.Equal(t, locked, eng.Errors()[0].Path)

	eng.Reset()
	assert.Empty(t, eng.Errors())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", engine.StateIdle.String())
	assert.Equal(t, "scanning", engine.StateScanning.String())
	assert.Equal(t, "stopping", engine.StateStopping.String())
	assert.Equal(t, "unknown", engine.State(9).String())
}
