package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
// It produces a visually appealing output suitable for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	w.WriteString(f.formatGroups(r))
	w.WriteString(f.formatFooter(r))

	if r.Apply != nil {
		w.WriteString("\n")
		w.WriteString(f.formatApply(r.Apply))
	}

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}

	return nil
}

// formatHeader builds the header box with scan metadata.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	var lines []string

	rootsLabel := LabelStyle.Render("Roots:")
	rootsValue := ValueStyle.Render(strings.Join(r.Roots, ", "))
	lines = append(lines, fmt.Sprintf("%s %s", rootsLabel, rootsValue))

	scanned := fmt.Sprintf("%d files in %s", r.Stats.FilesScanned, formatDuration(r.Stats.Duration))
	if r.Stats.TotalFiles > 0 {
		scanned = fmt.Sprintf("%d/%d files in %s", r.Stats.FilesScanned, r.Stats.TotalFiles, formatDuration(r.Stats.Duration))
	}
	infoParts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Scanned:"), ValueStyle.Render(scanned)),
		fmt.Sprintf("%s %s", LabelStyle.Render("Hashed:"), ValueStyle.Render(fmt.Sprintf("%d", r.Stats.HashComputations))),
	}
	if r.Stats.Errors > 0 {
		infoParts = append(infoParts, WarningStyle.Render(fmt.Sprintf("%d unreadable", r.Stats.Errors)))
	}
	lines = append(lines, strings.Join(infoParts, "  "))

	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Scan stopped before completion"))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatGroups renders each group as a title line followed by its members.
func (f *PrettyFormatter) formatGroups(r *Result) string {
	if len(r.Groups) == 0 {
		return MutedStyle.Render("  No duplicate files found\n")
	}

	var sb strings.Builder
	for i, g := range r.Groups {
		if i > 0 {
			sb.WriteString("\n")
		}
		title := TitleStyle.Render(fmt.Sprintf("Group %d", g.ID))
		detail := MutedStyle.Render(fmt.Sprintf("%d copies of", len(g.Members)))
		sb.WriteString(fmt.Sprintf("%s  %s %s\n", title, detail, SizeStyle.Render(g.SizeHuman)))

		for _, m := range g.Members {
			mark := MarkStyle(m.Mark).Render(padRight(m.Mark, 6))
			path := PathStyle.Render(m.Path)
			if m.IsLink {
				path += MutedStyle.Render(" (symlink)")
			}
			sb.WriteString(fmt.Sprintf("  %s  %s\n", mark, path))
		}
	}
	return sb.String()
}

// formatFooter builds the footer box with the duplicate totals.
func (f *PrettyFormatter) formatFooter(r *Result) string {
	parts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Groups:"), ValueStyle.Render(fmt.Sprintf("%d", r.Summary.Groups))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Files:"), ValueStyle.Render(fmt.Sprintf("%d", r.Summary.Duplicates))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Total:"), SizeStyle.Render(r.Summary.TotalHuman)),
		fmt.Sprintf("%s %s", LabelStyle.Render("Reclaimable:"), SizeStyle.Render(r.Summary.SavedHuman)),
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

// formatApply lists what an apply run changed.
func (f *PrettyFormatter) formatApply(a *ApplyInfo) string {
	var sb strings.Builder

	title := "Applied"
	if a.DryRun {
		title = "Dry run"
	}
	sb.WriteString(TitleStyle.Render(title))
	sb.WriteString(MutedStyle.Render(fmt.Sprintf("  %d groups, %s reclaimed", a.Groups, a.ReclaimedHuman)))
	sb.WriteString("\n")

	for _, p := range a.Linked {
		sb.WriteString(fmt.Sprintf("  %s  %s\n", MarkStyle("link").Render(padRight("link", 6)), p))
	}
	for _, p := range a.Deleted {
		sb.WriteString(fmt.Sprintf("  %s  %s\n", MarkStyle("delete").Render(padRight("delete", 6)), p))
	}
	if len(a.Retimed) > 0 {
		sb.WriteString(MutedStyle.Render(fmt.Sprintf("  %d files retimed\n", len(a.Retimed))))
	}
	for _, fail := range a.Failures {
		sb.WriteString(ErrorStyle.Render("  failed: " + fail))
		sb.WriteString("\n")
	}
	if a.ManifestID != "" {
		sb.WriteString(MutedStyle.Render("  recorded as " + a.ManifestID))
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatWarnings builds a warning block.
func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder

	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")

	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}

	return sb.String()
}

// padRight pads a string with spaces on the right to achieve the desired width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
