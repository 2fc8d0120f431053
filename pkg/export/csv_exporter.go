package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

const utf8BOM = "\ufeff"

// CSVExporter writes a Dataset as delimited text. Comma defaults to ','.
type CSVExporter struct {
	Comma rune
}

// NewCSVExporter builds a comma separated exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{Comma: ','}
}

// Render returns the encoded dataset prefixed with a UTF-8 BOM.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := e.WriteTo(buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo streams the dataset to w. Missing cells are written empty.
func (e *CSVExporter) WriteTo(w io.Writer, data Dataset) error {
	if len(data.Headers) == 0 {
		return fmt.Errorf("csv requires at least one header")
	}
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write csv bom: %w", err)
	}

	cw := csv.NewWriter(w)
	if e.Comma != 0 {
		cw.Comma = e.Comma
	}
	if err := cw.Write(data.Headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	for i, row := range data.Rows {
		if err := cw.Write(data.record(row)); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
