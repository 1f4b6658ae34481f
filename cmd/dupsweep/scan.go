package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/apply"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/config"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/engine"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/events"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/manifest"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/output"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// progressInterval is how many scanned files pass between verbose
// progress lines.
const progressInterval = 1000

// runScan is the main scan command handler.
func runScan(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	outFormat := viper.GetString("output")
	formatter, err := output.Get(outFormat)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", outFormat, output.Available())
	}

	master, dup, err := defaultMarks(cfg)
	if err != nil {
		return err
	}

	roots, err := resolveRoots(args, cfg)
	if err != nil {
		return err
	}

	opts, err := engineOptions(cfg, roots)
	if err != nil {
		return err
	}

	eng, err := engine.New(opts)
	if err != nil {
		return fmt.Errorf("failed to configure scan: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Stop the engine on interrupt; the partial result is still reported.
	var interrupted atomic.Bool
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			printInfo("\nInterrupted, stopping scan...")
			interrupted.Store(true)
			eng.Stop()
		case <-ctx.Done():
		}
	}()

	if exts := eng.Extensions(); len(exts) > 0 {
		printVerbose("Only extensions: %s", strings.Join(exts, " "))
	}
	if exts := eng.ExcludeExts(); len(exts) > 0 {
		printVerbose("Skipping extensions: %s", strings.Join(exts, " "))
	}
	if dirs := eng.ExcludeDirs(); len(dirs) > 0 {
		printVerbose("Skipping directories: %s", strings.Join(dirs, " "))
	}

	stopProgress := watchProgress(eng)

	printInfo("Searching %d director%s for duplicates...", len(roots), plural(len(roots), "y", "ies"))
	startTime := time.Now()

	err = eng.StartSearch(ctx, false)
	stopProgress()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	elapsed := time.Since(startTime)

	if err := eng.DefaultMarks(master, dup); err != nil {
		return fmt.Errorf("failed to mark duplicates: %w", err)
	}

	result := buildResult(eng, roots, elapsed, interrupted.Load())

	var rep *apply.Report
	doApply := viper.GetBool("apply")
	dryRun := viper.GetBool("dry_run")
	switch {
	case (doApply || dryRun) && interrupted.Load():
		result.Warnings = append(result.Warnings, "scan was interrupted; marks were not applied")
	case dryRun:
		rep, err = eng.Preview(ctx)
		if err != nil {
			return fmt.Errorf("preview failed: %w", err)
		}
		result.Apply = output.NewApplyInfo(rep)
	case doApply:
		rep, err = eng.Apply(ctx)
		if err != nil {
			return fmt.Errorf("apply failed: %w", err)
		}
		result.Apply = output.NewApplyInfo(rep)
		if id, err := recordApply(cfg, roots, rep); err != nil {
			printError("Failed to record apply history: %v", err)
		} else {
			result.Apply.ManifestID = id
		}
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), buf.String())

	if rep != nil && len(rep.Failures) > 0 {
		return fmt.Errorf("%d operations failed", len(rep.Failures))
	}
	return nil
}

// watchProgress subscribes to engine events and reports progress in verbose
// mode. The returned function unsubscribes and waits for the reporter.
func watchProgress(eng *engine.Engine) func() {
	if !getVerbose() || getQuiet() {
		return func() {}
	}

	bc := events.NewBroadcaster()
	eng.AddListener(bc)
	sub := bc.Subscribe(events.DefaultBuffer, events.KindFileScanned, events.KindDuplicateFound)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range sub.Events {
			switch ev.Kind {
			case events.KindFileScanned:
				if ev.Scanned%progressInterval == 0 {
					p := eng.Progress()
					printVerbose("scanned %d files (%.0f%%), %d groups", p.FilesScanned, p.Percent(), p.Groups)
				}
			case events.KindDuplicateFound:
				printVerbose("duplicate group of %d: %s", len(ev.Members), ev.Members[0])
			}
		}
	}()

	return func() {
		bc.Close()
		wg.Wait()
	}
}

// recordApply writes the apply run to the history manifest when enabled.
func recordApply(cfg *config.Config, roots []string, rep *apply.Report) (string, error) {
	if !cfg.Manifest.Enabled || rep.DryRun {
		return "", nil
	}

	m, err := manifest.New(cfg.Manifest.Path)
	if err != nil {
		return "", err
	}
	if err := m.EnsureDir(); err != nil {
		return "", fmt.Errorf("failed to create manifest directory: %w", err)
	}

	entry, err := m.LogApply(roots, rep)
	if err != nil {
		return "", err
	}
	printVerbose("Recorded apply as %s", entry.ID)
	return entry.ID, nil
}

// buildResult converts the engine state into an output.Result.
func buildResult(eng *engine.Engine, roots []string, elapsed time.Duration, interrupted bool) *output.Result {
	groups := eng.Groups()
	infos := make([]output.GroupInfo, 0, len(groups))
	for i, g := range groups {
		members := make([]output.FileInfo, 0, len(g))
		for _, path := range g {
			rec, ok := eng.Record(path)
			if !ok {
				rec = types.FileRecord{Path: path}
			}
			members = append(members, output.NewFileInfo(path, eng.SizeOf(path), rec.Mark, rec.IsLink))
		}
		infos = append(infos, output.NewGroupInfo(i+1, members))
	}

	scanErrors := eng.Errors()
	var warnings []string
	for _, e := range scanErrors {
		warnings = append(warnings, fmt.Sprintf("%s: %s", e.Path, e.Error))
	}

	progress := eng.Progress()
	return &output.Result{
		Roots:   roots,
		Groups:  infos,
		Summary: output.NewSummary(eng.Totals()),
		Stats: output.ScanStats{
			TotalFiles:       progress.TotalFiles,
			FilesScanned:     progress.FilesScanned,
			HashComputations: eng.HashComputations(),
			Errors:           len(scanErrors),
			Duration:         elapsed,
		},
		Warnings:    warnings,
		Interrupted: interrupted || eng.Stopped(),
	}
}

// plural picks the singular or plural suffix for n.
func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
