package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Dataset {
	return Dataset{
		Title:   "Schedule",
		Headers: []string{"date", "time", "student"},
		Rows: []map[string]string{
			{"date": "2026-10-20", "time": "09:00", "student": "Anna, K."},
			{"date": "2026-10-20", "time": "10:30"},
		},
	}
}

func TestCSVRender(t *testing.T) {
	out, err := Render(FormatCSV, sample())
	require.NoError(t, err)
	body := strings.TrimPrefix(string(out), "\ufeff")
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,time,student", lines[0])
	assert.Equal(t, `2026-10-20,09:00,"Anna, K."`, lines[1])
	assert.Equal(t, "2026-10-20,10:30,", lines[2])
}

func TestPDFRender(t *testing.T) {
	out, err := Render(FormatPDF, sample())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := Render(FormatCSV, Dataset{})
	assert.Error(t, err)
	_, err = Render(FormatPDF, Dataset{})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	f, err = ParseFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType())
	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestCSVWriteToCustomComma(t *testing.T) {
	var buf bytes.Buffer
	e := &CSVExporter{Comma: ';'}
	require.NoError(t, e.WriteTo(&buf, sample()))
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(buf.String(), utf8BOM)), "\n")
	assert.Equal(t, "date;time;student", lines[0])
	assert.Equal(t, "2026-10-20;09:00;Anna, K.", lines[1])
}
