package output

// document is the structure shared by the json and yaml formatters. It
// mirrors Result with durations rendered as strings.
type document struct {
	Roots       []string    `json:"roots" yaml:"roots"`
	Groups      []GroupInfo `json:"groups" yaml:"groups"`
	Summary     Summary     `json:"summary" yaml:"summary"`
	Stats       docStats    `json:"stats" yaml:"stats"`
	Apply       *ApplyInfo  `json:"apply,omitempty" yaml:"apply,omitempty"`
	Warnings    []string    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Interrupted bool        `json:"interrupted" yaml:"interrupted"`
}

type docStats struct {
	TotalFiles       int64  `json:"total_files" yaml:"total_files"`
	FilesScanned     int64  `json:"files_scanned" yaml:"files_scanned"`
	HashComputations int64  `json:"hash_computations" yaml:"hash_computations"`
	Errors           int    `json:"errors" yaml:"errors"`
	Duration         string `json:"duration" yaml:"duration"`
}

func buildDocument(r *Result) document {
	groups := r.Groups
	if groups == nil {
		groups = []GroupInfo{}
	}
	roots := r.Roots
	if roots == nil {
		roots = []string{}
	}

	duration := ""
	if r.Stats.Duration > 0 {
		duration = r.Stats.Duration.String()
	}

	return document{
		Roots:   roots,
		Groups:  groups,
		Summary: r.Summary,
		Stats: docStats{
			TotalFiles:       r.Stats.TotalFiles,
			FilesScanned:     r.Stats.FilesScanned,
			HashComputations: r.Stats.HashComputations,
			Errors:           r.Stats.Errors,
			Duration:         duration,
		},
		Apply:       r.Apply,
		Warnings:    r.Warnings,
		Interrupted: r.Interrupted,
	}
}
