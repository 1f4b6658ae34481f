package apply

// Action names a filesystem mutation.
type Action string

// Actions performed by Run.
const (
	ActionLink   Action = "link"
	ActionDelete Action = "delete"
	ActionRetime Action = "retime"
)

// Result is one mutation that succeeded, or would have in a dry run.
type Result struct {
	Action Action `json:"action"`
	Path   string `json:"path"`

	// Target is the master a LINK member now points to.
	Target string `json:"target,omitempty"`

	// Size is the file size before the mutation, zero for retimes.
	Size int64 `json:"size,omitempty"`
}

// Failure is one mutation that failed.
type Failure struct {
	Action Action `json:"action"`
	Path   string `json:"path"`
	Err    error  `json:"-"`
}

// Report summarizes a Run.
type Report struct {
	Groups   int       `json:"groups"`
	Results  []Result  `json:"results"`
	Failures []Failure `json:"failures,omitempty"`
	DryRun   bool      `json:"dry_run"`
}

func (r *Report) add(action Action, path, target string, size int64) {
	r.Results = append(r.Results, Result{Action: action, Path: path, Target: target, Size: size})
}

// Paths returns the paths of the results with the given action.
func (r *Report) Paths(action Action) []string {
	var out []string
	for _, res := range r.Results {
		if res.Action == action {
			out = append(out, res.Path)
		}
	}
	return out
}

// Reclaimed returns the bytes freed by links and deletions.
func (r *Report) Reclaimed() int64 {
	var total int64
	for _, res := range r.Results {
		if res.Action == ActionLink || res.Action == ActionDelete {
			total += res.Size
		}
	}
	return total
}
