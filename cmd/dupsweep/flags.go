package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/config"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/engine"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/filter"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/trash"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// registerScanFlags adds the scan flags to fs. Flags that mirror a config
// key only take effect when set explicitly; see applyFlagOverrides.
func registerScanFlags(fs *pflag.FlagSet) {
	// Filter flags
	fs.StringSliceP("exclude-dir", "x", nil, "directory or glob pattern to skip (repeatable)")
	fs.StringSliceP("ext", "e", nil, "only scan these extensions, e.g. jpg,png")
	fs.StringSliceP("ignore-ext", "i", nil, "never scan these extensions")
	fs.StringSliceP("type", "t", nil, "only scan a type group: "+strings.Join(filter.TypeGroupNames(), ", "))
	fs.Bool("follow-links", false, "include file symlinks in the scan")

	// Mark flags
	fs.String("master-mark", config.DefaultMasterMark, "mark for the first file of each group")
	fs.String("dup-mark", config.DefaultDuplicateMark, "mark for the other files: link, delete or ignore")
	fs.Bool("keep-mod-time", true, "give kept copies the oldest modification time in their group")
	fs.Bool("permanent", false, "remove files permanently instead of using the trash")

	// Action and output flags
	fs.Bool("apply", false, "apply the marks: link and delete files")
	fs.BoolP("dry-run", "d", false, "show what --apply would do without changing anything")
	fs.StringP("output", "o", "pretty", "output format: pretty, plain, json, yaml")
}

// applyFlagOverrides merges explicitly set scan flags into cfg. List flags
// extend the configured lists; scalar flags replace the configured value.
// Flags missing from fs are skipped, so subcommands can share the hook.
func applyFlagOverrides(fs *pflag.FlagSet, cfg *config.Config) error {
	lists := []struct {
		flag   string
		target *[]string
	}{
		{"exclude-dir", &cfg.ExcludeDirs},
		{"ext", &cfg.Extensions},
		{"ignore-ext", &cfg.ExcludeExtensions},
		{"type", &cfg.Types},
	}
	for _, l := range lists {
		if !fs.Changed(l.flag) {
			continue
		}
		values, err := fs.GetStringSlice(l.flag)
		if err != nil {
			return fmt.Errorf("invalid --%s: %w", l.flag, err)
		}
		*l.target = append(*l.target, values...)
	}

	if fs.Changed("follow-links") {
		follow, err := fs.GetBool("follow-links")
		if err != nil {
			return fmt.Errorf("invalid --follow-links: %w", err)
		}
		cfg.IgnoreLinks = !follow
	}
	if fs.Changed("keep-mod-time") {
		keep, err := fs.GetBool("keep-mod-time")
		if err != nil {
			return fmt.Errorf("invalid --keep-mod-time: %w", err)
		}
		cfg.UseOldestModTime = keep
	}
	if fs.Changed("permanent") {
		permanent, err := fs.GetBool("permanent")
		if err != nil {
			return fmt.Errorf("invalid --permanent: %w", err)
		}
		cfg.Trash.Permanent = permanent
	}
	if fs.Changed("master-mark") {
		mark, err := fs.GetString("master-mark")
		if err != nil {
			return fmt.Errorf("invalid --master-mark: %w", err)
		}
		cfg.Marks.Master = mark
	}
	if fs.Changed("dup-mark") {
		mark, err := fs.GetString("dup-mark")
		if err != nil {
			return fmt.Errorf("invalid --dup-mark: %w", err)
		}
		cfg.Marks.Duplicate = mark
	}

	return nil
}

// resolveRoots returns the absolute search roots: the arguments, else the
// configured roots, else the current directory.
func resolveRoots(args []string, cfg *config.Config) ([]string, error) {
	roots := args
	if len(roots) == 0 {
		roots = cfg.Roots
	}
	if len(roots) == 0 {
		roots = []string{"."}
	}

	resolved := make([]string, 0, len(roots))
	for _, root := range roots {
		expanded, err := config.ExpandPath(root)
		if err != nil {
			return nil, fmt.Errorf("failed to expand path: %w", err)
		}
		abs, err := filepath.Abs(expanded)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path: %w", err)
		}

		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("path does not exist: %s", abs)
			}
			return nil, fmt.Errorf("cannot access path: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("path is not a directory: %s", abs)
		}
		resolved = append(resolved, abs)
	}
	return resolved, nil
}

// engineOptions builds the engine configuration from cfg.
func engineOptions(cfg *config.Config, roots []string) (engine.Options, error) {
	exts := append([]string(nil), cfg.Extensions...)
	if len(cfg.Types) > 0 {
		groupExts, err := filter.ExpandTypeGroups(cfg.Types...)
		if err != nil {
			return engine.Options{}, fmt.Errorf("invalid type: %w", err)
		}
		exts = append(exts, groupExts...)
	}

	return engine.Options{
		Roots:             roots,
		ExcludeDirs:       cfg.ExcludeDirs,
		Extensions:        exts,
		ExcludeExtensions: cfg.ExcludeExtensions,
		IgnoreLinks:       cfg.IgnoreLinks,
		UseOldestModTime:  cfg.UseOldestModTime,
		Trasher:           trash.Bin{Permanent: cfg.Trash.Permanent},
	}, nil
}

// defaultMarks parses the configured master and duplicate marks.
func defaultMarks(cfg *config.Config) (types.Mark, types.Mark, error) {
	master, err := cfg.MasterMark()
	if err != nil {
		return types.MarkIgnore, types.MarkIgnore, err
	}
	dup, err := cfg.DuplicateMark()
	if err != nil {
		return types.MarkIgnore, types.MarkIgnore, err
	}
	return master, dup, nil
}
