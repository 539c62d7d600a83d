package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wolverine5550/clausecheck/internal/domain/entities"
)

func sampleContract() (entities.Contract, []entities.Clause) {
	text := "1. Term.\n2. Payment due in 30 days."
	c := entities.Contract{
		ID:          "c-1",
		FileName:    "msa.pdf",
		MIMEType:    "application/pdf",
		SizeBytes:   2048,
		ContentHash: "abc123",
		RawText:     &text,
		Tier:        "numbered",
		ClauseCount: 2,
		UploadedAt:  time.Date(2024, 5, 2, 14, 0, 0, 0, time.UTC),
	}
	clauses := []entities.Clause{
		{Index: 0, Text: "1. Term."},
		{Index: 1, Text: "2. Payment due in 30 days."},
	}
	return c, clauses
}

func TestXLSXExporter_Export(t *testing.T) {
	c, clauses := sampleContract()

	var buf bytes.Buffer
	require.NoError(t, NewXLSXExporter().Export(&buf, c, clauses))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ClausesSheet, ContractSheet}, f.GetSheetList())

	rows, err := f.GetRows(ClausesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Index", "Clause", "Characters"}, rows[0])
	assert.Equal(t, []string{"0", "1. Term.", "8"}, rows[1])
	assert.Equal(t, "2. Payment due in 30 days.", rows[2][1])

	meta, err := f.GetRows(ContractSheet)
	require.NoError(t, err)
	values := map[string]string{}
	for _, r := range meta {
		if len(r) == 2 {
			values[r[0]] = r[1]
		}
	}
	assert.Equal(t, "c-1", values["Contract ID"])
	assert.Equal(t, "msa.pdf", values["File name"])
	assert.Equal(t, "numbered", values["Tier"])
	assert.Equal(t, "2024-05-02 14:00:00", values["Uploaded at"])
	assert.Equal(t, "TRUE", values["Text extracted"])
}

func TestXLSXExporter_NoClauses(t *testing.T) {
	c, _ := sampleContract()
	c.RawText = nil
	c.ClauseCount = 0
	c.Warning = "Text extraction failed. File uploaded, but no text was extracted."

	var buf bytes.Buffer
	require.NoError(t, NewXLSXExporter().Export(&buf, c, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ClausesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	warning, err := f.GetCellValue(ContractSheet, "B10")
	require.NoError(t, err)
	assert.Equal(t, c.Warning, warning)
}

func TestXLSXExporter_Metadata(t *testing.T) {
	e := NewXLSXExporter()
	assert.Equal(t, ".xlsx", e.FileExtension())
	assert.True(t, strings.HasPrefix(e.ContentType(), "application/vnd.openxmlformats"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "äöü…", truncate("äöüßxyz", 4))
}
