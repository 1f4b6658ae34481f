package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/apply"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/logging"
)

// ErrNotFound is returned by Get when no entry has the requested ID.
var ErrNotFound = errors.New("entry not found")

// Manifest manages apply history on the filesystem.
type Manifest struct {
	dir    string
	mu     sync.Mutex
	logger *logging.Logger
}

// New creates a new Manifest with the given directory.
// The directory is not created until EnsureDir is called.
func New(dir string) (*Manifest, error) {
	if dir == "" {
		return nil, errors.New("manifest directory cannot be empty")
	}
	return &Manifest{dir: dir, logger: logging.Get("manifest")}, nil
}

// Dir returns the manifest directory.
func (m *Manifest) Dir() string {
	return m.dir
}

// EnsureDir creates the manifest directory if it does not exist.
func (m *Manifest) EnsureDir() error {
	return os.MkdirAll(m.dir, 0o755)
}

// LogApply records a completed apply run. Dry runs are rejected since they
// mutate nothing.
func (m *Manifest) LogApply(roots []string, rep *apply.Report) (*Entry, error) {
	if rep == nil {
		return nil, errors.New("report cannot be nil")
	}
	if rep.DryRun {
		return nil, errors.New("dry run reports are not recorded")
	}

	files := make([]FileRecord, 0, len(rep.Results))
	for _, r := range rep.Results {
		files = append(files, FileRecord{
			Path:   r.Path,
			Action: string(r.Action),
			Target: r.Target,
			Size:   r.Size,
		})
	}

	var failures []FailureRecord
	for _, f := range rep.Failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		failures = append(failures, FailureRecord{Path: f.Path, Action: string(f.Action), Error: msg})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &Entry{
		ID:        generateID(OpApply),
		Timestamp: time.Now().UTC(),
		Operation: OpApply,
		Roots:     append([]string(nil), roots...),
		Files:     files,
		Failures:  failures,
		Summary: Summary{
			Groups:     rep.Groups,
			TotalFiles: int64(len(files)),
			TotalBytes: rep.Reclaimed(),
			Failed:     len(failures),
		},
	}

	if err := m.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to write manifest entry: %w", err)
	}

	m.logger.Debug("recorded apply", "id", entry.ID, "files", len(files), "failed", len(failures))
	return entry, nil
}

// writeEntry writes an entry to a JSON file in the manifest directory.
func (m *Manifest) writeEntry(entry *Entry) error {
	filePath := filepath.Join(m.dir, entry.ID+".json")

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// List returns all entries, newest first. A limit of 0 or less returns
// everything.
func (m *Manifest) List(limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names, err := m.entryFiles()
	if err != nil {
		return nil, err
	}

	entries := []Entry{}
	for _, name := range names {
		entry, err := m.readEntryFile(name)
		if err != nil {
			m.logger.Debug("skipping unreadable entry", "file", name, "error", err)
			continue
		}
		entries = append(entries, *entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

// Get retrieves a specific entry by ID.
func (m *Manifest) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.readEntryFile(id + ".json")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	if entry.ID != id {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return entry, nil
}

// Cleanup removes entries older than retentionDays and returns how many
// were removed.
func (m *Manifest) Cleanup(retentionDays int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	names, err := m.entryFiles()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range names {
		filePath := filepath.Join(m.dir, name)

		info, err := os.Stat(filePath)
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filePath); err != nil {
				m.logger.Warn("failed to remove entry", "file", name, "error", err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("cleaned apply history", "removed", removed, "retention_days", retentionDays)
	}
	return removed, nil
}

// entryFiles lists the JSON files in the manifest directory. A missing
// directory has no entries.
func (m *Manifest) entryFiles() ([]string, error) {
	files, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest directory: %w", err)
	}

	var names []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		names = append(names, f.Name())
	}
	return names, nil
}

// readEntryFile reads and parses a manifest entry from a JSON file.
func (m *Manifest) readEntryFile(filename string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}

	return &entry, nil
}

// generateID creates a unique ID like "apply-2024-06-15T10-30-00-<uuid>".
func generateID(op OperationType) string {
	ts := time.Now().UTC().Format("2006-01-02T15-04-05")
	return fmt.Sprintf("%s-%s-%s", op, ts, uuid.NewString())
}
