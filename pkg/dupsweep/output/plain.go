package output

import (
	"bytes"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// PlainFormatter formats output as a borderless table with one row per
// group member. No colors or styling are applied, so the output is suitable
// for scripting and piping.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Group", "Mark", "Size", "Path"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	for _, g := range r.Groups {
		id := strconv.Itoa(g.ID)
		for _, m := range g.Members {
			table.Append([]string{id, m.Mark, m.SizeHuman, m.Path})
		}
	}

	table.Render()
	return nil
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
