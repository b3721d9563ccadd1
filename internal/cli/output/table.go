// Package output provides output formatting for tabmesh-cli.
package output

import (
	"io"
	"text/tabwriter"
)

// Table holds tabular output.
type Table struct {
	Headers []string
	Rows    [][]string
}

// AddRow appends one row of cells.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// SetHeaders sets the table headers.
func (t *Table) SetHeaders(headers ...string) {
	t.Headers = headers
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	if len(t.Headers) > 0 {
		for i, h := range t.Headers {
			if i > 0 {
				if _, err := tw.Write([]byte("\t")); err != nil {
					return err
				}
			}
			if _, err := tw.Write([]byte(h)); err != nil {
				return err
			}
		}
		if _, err := tw.Write([]byte("\n")); err != nil {
			return err
		}
	}

	for _, row := range t.Rows {
		for i, cell := range row {
			if i > 0 {
				if _, err := tw.Write([]byte("\t")); err != nil {
					return err
				}
			}
			if _, err := tw.Write([]byte(cell)); err != nil {
				return err
			}
		}
		if _, err := tw.Write([]byte("\n")); err != nil {
			return err
		}
	}

	return nil
}
