package render

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVFormatter formats a report table as CSV with raw key values.
type CSVFormatter struct{}

// NewCSV creates a CSV formatter.
func NewCSV() *CSVFormatter {
	return &CSVFormatter{}
}

// Format writes a header row and one record per table row. An empty table
// yields the header only.
func (f *CSVFormatter) Format(w io.Writer, in Input) error {
	header, rows := cells(in.Result.Table, in.Precision, false)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}
