package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ErrNoColumns is returned when a table has nothing to render.
var ErrNoColumns = errors.New("table requires at least one column")

// Column describes one exported column. Width is a relative weight used by
// the PDF layout; zero means 1.
type Column struct {
	Label string
	Width float64
}

// Table is a titled grid of already formatted cells.
type Table struct {
	Title   string
	Columns []Column
	Rows    [][]string
}

// Labels returns the column headers.
func (t Table) Labels() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Label
	}
	return out
}

// cell returns row[i] or an empty string for short rows.
func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// CSVExporter writes tables as RFC 4180 CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ContentType is the MIME type of the rendered output.
func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

// Extension is the file extension of the rendered output.
func (e *CSVExporter) Extension() string { return "csv" }

// Write streams the table to w.
func (e *CSVExporter) Write(w io.Writer, t Table) error {
	if len(t.Columns) == 0 {
		return ErrNoColumns
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Labels()); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range t.Columns {
			record[i] = cell(row, i)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
