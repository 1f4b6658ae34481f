package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/config"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/manifest"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View applied changes",
	Long: `View the history of apply runs.

Every dupsweep --apply run records which files were linked, deleted or
retimed, so the changes can be reviewed later.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific apply run",
	Long:  `Display detailed information about a specific apply run by its ID.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getManifest returns a manifest instance with the configured directory.
func getManifest() (*manifest.Manifest, error) {
	if appConfig != nil && appConfig.Manifest.Path != "" {
		return manifest.New(appConfig.Manifest.Path)
	}

	manifestDir, err := config.ManifestDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest directory: %w", err)
	}
	return manifest.New(manifestDir)
}

// runHistory lists recent apply runs.
func runHistory(cmd *cobra.Command, _ []string) error {
	m, err := getManifest()
	if err != nil {
		return fmt.Errorf("failed to initialize manifest: %w", err)
	}

	entries, err := m.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'dupsweep --apply [dir...]' to link or delete duplicates.")
		return nil
	}

	writeHistory(cmd.OutOrStdout(), entries)
	printInfo("\nUse 'dupsweep history show <id>' for details on a specific entry.")
	return nil
}

// writeHistory prints one row per entry.
func writeHistory(out io.Writer, entries []manifest.Entry) {
	fmt.Fprintf(out, "\n%-70s  %-20s  %-6s  %-6s  %-10s\n", "ID", "TIME", "FILES", "FAILED", "RECLAIMED")
	fmt.Fprintln(out, strings.Repeat("-", 120))

	for _, entry := range entries {
		fmt.Fprintf(out, "%-70s  %-20s  %-6d  %-6d  %-10s\n",
			truncateString(entry.ID, 70),
			entry.Timestamp.Local().Format("2006-01-02 15:04:05"),
			entry.Summary.TotalFiles,
			entry.Summary.Failed,
			types.FormatSize(entry.Summary.TotalBytes),
		)
	}

	fmt.Fprintln(out, strings.Repeat("-", 120))
}

// runHistoryShow displays details of a specific apply run.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	m, err := getManifest()
	if err != nil {
		return fmt.Errorf("failed to initialize manifest: %w", err)
	}

	entry, err := m.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	writeEntry(cmd.OutOrStdout(), entry)
	return nil
}

// writeEntry prints the details of one entry. At most 50 files are listed.
func writeEntry(out io.Writer, entry *manifest.Entry) {
	fmt.Fprintln(out, "\nApply Details")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "ID:         %s\n", entry.ID)
	fmt.Fprintf(out, "Timestamp:  %s\n", entry.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Roots:      %s\n", strings.Join(entry.Roots, ", "))
	fmt.Fprintf(out, "Groups:     %d\n", entry.Summary.Groups)
	fmt.Fprintf(out, "Files:      %d\n", entry.Summary.TotalFiles)
	fmt.Fprintf(out, "Reclaimed:  %s\n", types.FormatSize(entry.Summary.TotalBytes))

	if len(entry.Files) > 0 {
		fmt.Fprintln(out, "\nFiles:")
		fmt.Fprintln(out, strings.Repeat("-", 60))
		fmt.Fprintf(out, "%-7s  %-12s  %s\n", "ACTION", "SIZE", "PATH")
		fmt.Fprintln(out, strings.Repeat("-", 60))

		limit := 50
		if len(entry.Files) < limit {
			limit = len(entry.Files)
		}

		for _, file := range entry.Files[:limit] {
			path := file.Path
			if file.Target != "" {
				path += " -> " + file.Target
			}
			fmt.Fprintf(out, "%-7s  %-12s  %s\n", file.Action, types.FormatSize(file.Size), path)
		}

		if len(entry.Files) > limit {
			fmt.Fprintf(out, "\n... and %d more files\n", len(entry.Files)-limit)
		}
	}

	if len(entry.Failures) > 0 {
		fmt.Fprintln(out, "\nFailures:")
		for _, f := range entry.Failures {
			fmt.Fprintf(out, "  %s %s: %s\n", f.Action, f.Path, f.Error)
		}
	}
}

// runHistoryClean removes old history entries.
func runHistoryClean(_ *cobra.Command, _ []string) error {
	m, err := getManifest()
	if err != nil {
		return fmt.Errorf("failed to initialize manifest: %w", err)
	}

	retentionDays := config.DefaultRetentionDays
	if appConfig != nil && appConfig.Manifest.RetentionDays > 0 {
		retentionDays = appConfig.Manifest.RetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := m.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
