package export

import "fmt"

// Format identifies an export encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts "csv" or "pdf".
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatCSV, FormatPDF:
		return Format(raw), nil
	case "":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported export format %q", raw)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Render encodes data in the requested format.
func Render(format Format, data Dataset) ([]byte, error) {
	switch format {
	case FormatPDF:
		return NewPDFExporter().Render(data)
	case FormatCSV:
		return NewCSVExporter().Render(data)
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

// record flattens row into header order.
func (d Dataset) record(row map[string]string) []string {
	out := make([]string, len(d.Headers))
	for i, h := range d.Headers {
		out[i] = row[h]
	}
	return out
}
