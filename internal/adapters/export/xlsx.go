// Package export writes contracts and their clauses to spreadsheet files.
package export

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/wolverine5550/clausecheck/internal/domain/entities"
)

// Sheet names of an exported workbook. ClausesSheet lists one clause per
// row; ContractSheet holds the contract metadata.
const (
	ClausesSheet  = "Clauses"
	ContractSheet = "Contract"

	// maxCellChars is the Excel limit for the text of a single cell.
	maxCellChars = 32767
)

// XLSXExporter implements ports.ClauseExporter with an Excel workbook.
type XLSXExporter struct{}

// NewXLSXExporter creates an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ContentType returns the workbook MIME type.
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileExtension returns ".xlsx".
func (e *XLSXExporter) FileExtension() string {
	return ".xlsx"
}

// Export writes a workbook with one row per clause on the Clauses sheet and
// the contract metadata on the Contract sheet.
func (e *XLSXExporter) Export(w io.Writer, contract entities.Contract, clauses []entities.Clause) error {
	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with Sheet1; rename it so the clauses come first.
	if err := f.SetSheetName("Sheet1", ClausesSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	if _, err := f.NewSheet(ContractSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	if err := writeRow(f, ClausesSheet, 1, "Index", "Clause", "Characters"); err != nil {
		return err
	}
	for i, cl := range clauses {
		if err := writeRow(f, ClausesSheet, i+2, cl.Index, truncate(cl.Text, maxCellChars), utf8.RuneCountInString(cl.Text)); err != nil {
			return err
		}
	}

	meta := [][2]any{
		{"Contract ID", contract.ID},
		{"File name", contract.FileName},
		{"MIME type", contract.MIMEType},
		{"Size (bytes)", contract.SizeBytes},
		{"SHA-256", contract.ContentHash},
		{"Uploaded at", contract.UploadedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Tier", contract.Tier},
		{"Clauses", contract.ClauseCount},
		{"Text extracted", contract.HasText()},
		{"Warning", contract.Warning},
	}
	for i, kv := range meta {
		if err := writeRow(f, ContractSheet, i+1, kv[0], kv[1]); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(ClausesSheet, "A", "A", 8)
	_ = f.SetColWidth(ClausesSheet, "B", "B", 100)
	_ = f.SetColWidth(ClausesSheet, "C", "C", 12)
	_ = f.SetColWidth(ContractSheet, "A", "A", 16)
	_ = f.SetColWidth(ContractSheet, "B", "B", 70)

	if err := f.SetPanes(ClausesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("xlsx panes: %w", err)
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("xlsx cell %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
