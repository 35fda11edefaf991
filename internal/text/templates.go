// Package text formats the help and report output of the harness CLI.
package text

import (
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Indentation is the standard indentation for CLI help text.
const Indentation = `  `

// columnPadding separates the columns written by Table.
const columnPadding = "  "

// LongDesc trims a command's long description.
func LongDesc(s string) string {
	if len(s) == 0 {
		return s
	}

	return normalizer{s}.trim().string
}

// Examples trims a command's examples and indents every line.
func Examples(s string) string {
	if len(s) == 0 {
		return s
	}

	return normalizer{s}.trim().indent().string
}

// Table writes rows under header as borderless, left aligned columns.
func Table(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding(columnPadding)
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}

type normalizer struct {
	string
}

func (s normalizer) trim() normalizer {
	s.string = strings.TrimSpace(s.string)

	return s
}

func (s normalizer) indent() normalizer {
	indentedLines := make([]string, 0, strings.Count(s.string, "\n")+1)
	for line := range strings.SplitSeq(s.string, "\n") {
		indentedLines = append(indentedLines, Indentation+strings.TrimSpace(line))
	}
	s.string = strings.Join(indentedLines, "\n")

	return s
}
