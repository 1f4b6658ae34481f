// Package apply carries out the marks of each duplicate group: it replaces
// LINK members with symbolic links to the master, sends DELETE members to
// the trash and, optionally, gives the master and the ignored members the
// oldest modification time found in the group.
//
// Failures on single files are recorded and logged; processing continues
// with the next file. Nothing is rolled back.
package apply

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/logging"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/marks"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// Trasher disposes of a file. trash.Bin satisfies it.
type Trasher interface {
	MoveToTrash(path string) error
}

// AppliedFunc is called once per group after its mutations, with the
// group's master (or its first member when there is none) and the members.
type AppliedFunc func(file string, members []string)

// Options configures an Applier.
type Options struct {
	// UseOldestModTime sets the modification time of the master and every
	// ignored member to the oldest one in the group.
	UseOldestModTime bool

	// Trasher disposes of DELETE members. It is required unless DryRun.
	Trasher Trasher

	// DryRun computes the report without touching the filesystem and
	// without calling the AppliedFunc.
	DryRun bool
}

// Applier performs the mutations implied by the marks.
type Applier struct {
	opts   Options
	logger *logging.Logger
}

// New creates an Applier.
func New(opts Options) *Applier {
	return &Applier{
		opts:   opts,
		logger: logging.Get("apply"),
	}
}

// Run applies the marks of every group in order. It stops between groups
// when ctx is cancelled and returns the report so far with ctx.Err().
func (a *Applier) Run(ctx context.Context, groups []types.Group, table *marks.Table, onApplied AppliedFunc) (*Report, error) {
	report := &Report{DryRun: a.opts.DryRun}

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if len(group) == 0 {
			continue
		}

		part := table.Partition(group)
		a.applyGroup(group, part, report)
		report.Groups++

		if onApplied != nil && !a.opts.DryRun {
			rep := group[0]
			if part.HasMaster {
				rep = part.Master
			}
			onApplied(rep, group.Clone())
		}
	}

	a.logger.Info("apply finished",
		"groups", report.Groups,
		"linked", len(report.Paths(ActionLink)),
		"deleted", len(report.Paths(ActionDelete)),
		"failed", len(report.Failures),
		"dry_run", a.opts.DryRun,
	)
	return report, nil
}

func (a *Applier) applyGroup(group types.Group, part marks.Partition, report *Report) {
	if !part.HasMaster {
		a.logger.Warn("group has no master, link step skipped", "first", group[0], "members", len(group))
	}

	if a.opts.UseOldestModTime {
		a.retime(group, part, report)
	}

	if part.HasMaster {
		a.link(part, report)
	}

	for _, path := range part.Delete {
		a.remove(path, report)
	}
}

// retime gives the master and the ignored members the oldest modification
// time in the group.
func (a *Applier) retime(group types.Group, part marks.Partition, report *Report) {
	oldest, ok := OldestModTime(group)
	if !ok {
		a.logger.Debug("no modification time available", "first", group[0])
		return
	}

	targets := make([]string, 0, len(part.Ignore)+1)
	if part.HasMaster {
		targets = append(targets, part.Master)
	}
	targets = append(targets, part.Ignore...)

	for _, path := range targets {
		if a.opts.DryRun {
			report.add(ActionRetime, path, "", 0)
			continue
		}
		if err := os.Chtimes(path, oldest, oldest); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			a.fail(report, ActionRetime, path, err)
			continue
		}
		report.add(ActionRetime, path, "", 0)
	}
}

// link replaces every LINK member with a symbolic link to the master.
func (a *Applier) link(part marks.Partition, report *Report) {
	if _, err := os.Stat(part.Master); err != nil {
		a.logger.Debug("master missing, link step skipped", "master", part.Master, "err", err)
		return
	}

	for _, path := range part.Link {
		if path == part.Master {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if target, err := os.Readlink(path); err == nil && target == part.Master {
			continue
		}

		if a.opts.DryRun {
			report.add(ActionLink, path, part.Master, info.Size())
			continue
		}
		if err := os.Remove(path); err != nil {
			a.fail(report, ActionLink, path, err)
			continue
		}
		if err := os.Symlink(part.Master, path); err != nil {
			a.fail(report, ActionLink, path, err)
			continue
		}
		a.logger.Debug("linked", "path", path, "master", part.Master)
		report.add(ActionLink, path, part.Master, info.Size())
	}
}

// remove sends a DELETE member to the trash.
func (a *Applier) remove(path string, report *Report) {
	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	size := info.Size()

	if a.opts.DryRun {
		report.add(ActionDelete, path, "", size)
		return
	}
	if a.opts.Trasher == nil {
		a.fail(report, ActionDelete, path, errors.New("no trasher configured"))
		return
	}
	if err := a.opts.Trasher.MoveToTrash(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		a.fail(report, ActionDelete, path, err)
		return
	}
	a.logger.Debug("deleted", "path", path)
	report.add(ActionDelete, path, "", size)
}

func (a *Applier) fail(report *Report, action Action, path string, err error) {
	if errors.Is(err, fs.ErrPermission) {
		a.logger.Warn("permission denied", "action", action, "path", path, "err", err)
	} else {
		a.logger.Error("apply failed", "action", action, "path", path, "err", err)
	}
	report.Failures = append(report.Failures, Failure{Action: action, Path: path, Err: err})
}

// OldestModTime returns the earliest modification time among paths whose
// time can be determined. It reports false when none can.
func OldestModTime(paths []string) (time.Time, bool) {
	var (
		oldest time.Time
		found  bool
	)
	for _, p := range paths {
		t, ok := modTime(p)
		if !ok {
			continue
		}
		if !found || t.Before(oldest) {
			oldest, found = t, true
		}
	}
	return oldest, found
}
