// Package types provides core data types for the dupsweep duplicate finder.
// It includes the per-file disposition mark, file records, scan progress and
// aggregate size totals, along with utility functions for parsing and
// formatting file sizes.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// Mark is the operator's intent for a file inside a duplicate group.
// The zero value is MarkIgnore, so every newly discovered file starts ignored.
type Mark uint8

const (
	// MarkIgnore leaves the file alone.
	MarkIgnore Mark = iota
	// MarkMaster designates the canonical copy of a group.
	MarkMaster
	// MarkLink replaces the file with a symbolic link to the master.
	MarkLink
	// MarkDelete moves the file to the trash.
	MarkDelete
)

// Mark string constants.
const (
	markIgnore = "ignore"
	markMaster = "master"
	markLink   = "link"
	markDelete = "delete"
)

// ErrInvalidMark indicates that a mark string could not be parsed.
var ErrInvalidMark = errors.New("invalid mark")

// String returns the string representation of the mark.
func (m Mark) String() string {
	switch m {
	case MarkIgnore:
		return markIgnore
	case MarkMaster:
		return markMaster
	case MarkLink:
		return markLink
	case MarkDelete:
		return markDelete
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the four defined marks.
func (m Mark) Valid() bool {
	return m <= MarkDelete
}

// ParseMark parses a string into a Mark.
// Valid values are "master", "link", "delete" (or "del") and "ignore",
// case-insensitive.
func ParseMark(s string) (Mark, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case markIgnore:
		return MarkIgnore, nil
	case markMaster:
		return MarkMaster, nil
	case markLink:
		return MarkLink, nil
	case markDelete, "del":
		return MarkDelete, nil
	default:
		return MarkIgnore, fmt.Errorf("%w: %q", ErrInvalidMark, s)
	}
}

// FileRecord is the engine's entry for a discovered file.
type FileRecord struct {
	// Path is the absolute path to the file. It is the record's unique key.
	Path string `json:"path"`

	// IsLink reports whether the path was a symbolic link when discovered.
	IsLink bool `json:"is_link"`

	// Mark is the current disposition.
	Mark Mark `json:"mark"`
}

// Group is an ordered list of content-equal paths, in discovery order.
type Group []string

// Contains reports whether path is a member of the group.
func (g Group) Contains(path string) bool {
	for _, p := range g {
		if p == path {
			return true
		}
	}
	return false
}

// Clone returns a copy of the group that is safe to hand to callers.
func (g Group) Clone() Group {
	out := make(Group, len(g))
	copy(out, g)
	return out
}

// Totals holds byte totals derived from the duplicate groups.
type Totals struct {
	// Groups is the number of duplicate groups.
	Groups int `json:"groups"`

	// Duplicates is the number of files across all groups.
	Duplicates int `json:"duplicates"`

	// Total is the sum of the sizes of every group member.
	Total int64 `json:"total"`

	// New is the size left after keeping one copy per group.
	New int64 `json:"new"`

	// Saved is the number of bytes reclaimable (Total - New).
	Saved int64 `json:"saved"`
}

// ScanProgress reports real-time scan progress.
type ScanProgress struct {
	// TotalFiles is the pre-computed estimate of eligible files.
	TotalFiles int64 `json:"total_files"`

	// FilesScanned is the number of eligible files discovered so far.
	FilesScanned int64 `json:"files_scanned"`

	// Groups is the number of duplicate groups found so far.
	Groups int `json:"groups"`
}

// Percent returns the scan completion as a value between 0 and 100.
// The estimate can drift when the tree changes between count and scan,
// so the result is clamped.
func (p ScanProgress) Percent() float64 {
	if p.TotalFiles <= 0 {
		return 0
	}
	pct := float64(p.FilesScanned) / float64(p.TotalFiles) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// ScanError represents a soft error encountered during scanning.
type ScanError struct {
	// Path is the file or directory path where the error occurred.
	Path string `json:"path"`

	// Error is the error message describing what went wrong.
	Error string `json:"error"`
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// It accepts plain bytes ("1024") and K, M, G, T suffixes with optional
// "B" or "iB" ("100K", "50MB", "2GiB"). Units are binary.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units, e.g. FormatSize(1536*1024) returns "1.5 MiB".
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}
