package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/go-wordwrap"

	"github.com/joescharf/qam/internal/output"
)

const (
	wrapWidth = 80
	separator = "-----------------------"
)

// RenderVerbose writes one "key: value" block per report.
func RenderVerbose(w io.Writer, reports []*Report, fields []Field) error {
	for i, r := range reports {
		if i > 0 {
			if _, err := fmt.Fprintln(w, separator); err != nil {
				return err
			}
		}
		for _, f := range fields {
			value := r.Value(f)
			if f == FieldRating {
				value = output.RatingColor(value)
			}
			if _, err := fmt.Fprintf(w, "%s: %s\n", f, indent(wordwrap.WrapString(value, wrapWidth))); err != nil {
				return err
			}
		}
	}
	return nil
}

func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n    ")
}

// RenderTable writes the reports as a table with one column per field.
func RenderTable(ui *output.UI, reports []*Report, fields []Field) error {
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = string(f)
	}
	table := ui.Table(headers)
	for _, r := range reports {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = r.Value(f)
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
