// Package manifest records apply runs as JSON history entries.
package manifest

import "time"

// OperationType represents the type of operation.
type OperationType string

const (
	// OpApply represents a run that linked, deleted or retimed files.
	OpApply OperationType = "apply"
)

// Entry represents a single manifest entry.
type Entry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Operation OperationType   `json:"operation"`
	Roots     []string        `json:"roots,omitempty"`
	Files     []FileRecord    `json:"files"`
	Failures  []FailureRecord `json:"failures,omitempty"`
	Summary   Summary         `json:"summary"`
}

// FileRecord is one mutated file.
type FileRecord struct {
	Path   string `json:"path"`
	Action string `json:"action"`
	Target string `json:"target,omitempty"` // Set for links
	Size   int64  `json:"size,omitempty"`
}

// FailureRecord is one mutation that failed.
type FailureRecord struct {
	Path   string `json:"path"`
	Action string `json:"action"`
	Error  string `json:"error"`
}

// Summary contains operation summary.
type Summary struct {
	Groups     int   `json:"groups"`
	TotalFiles int64 `json:"total_files"`
	TotalBytes int64 `json:"total_bytes"`
	Failed     int   `json:"failed"`
}
