// Package export writes download history as an XLSX workbook.
package export

import (
	"time"

	"github.com/xuri/excelize/v2"

	"catalog/internal/models"
	"catalog/internal/pkg/errors"
)

const historySheet = "Histórico"

var historyHeaders = []string{
	"Data",
	"Nome",
	"Email",
	"Empresa",
	"Telefone",
	"Produto",
	"ID do Produto",
	"Status",
	"Job",
}

// HistoryXLSX returns recs as workbook bytes, one row per record in the
// given order. Times are printed in loc.
func HistoryXLSX(recs []models.DownloadHistoryRecord, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return nil, errors.Wrap(err, "export.HistoryXLSX", "name sheet")
	}

	for i, h := range historyHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(historySheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(historySheet, 1, 1, style)
	}

	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(historySheet, cell, v)
		}
		write(1, r.CreatedAt.In(loc).Format("02/01/2006 15:04:05"))
		write(2, r.Name)
		write(3, r.Email)
		write(4, r.Company)
		write(5, r.PhoneNumber)
		write(6, r.ProductName)
		write(7, r.ProductID)
		write(8, r.Status)
		write(9, r.JobID)
	}

	_ = f.SetColWidth(historySheet, "A", "A", 20)
	_ = f.SetColWidth(historySheet, "B", "D", 28)
	_ = f.SetColWidth(historySheet, "E", "E", 16)
	_ = f.SetColWidth(historySheet, "F", "F", 30)
	_ = f.SetColWidth(historySheet, "G", "H", 14)
	_ = f.SetColWidth(historySheet, "I", "I", 38)
	_ = f.AutoFilter(historySheet, "A1:I1", nil)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "export.HistoryXLSX", "write workbook")
	}
	return buf.Bytes(), nil
}
