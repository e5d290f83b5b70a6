// Package report exports the defect list as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/sitebatch/maintenance/internal/client/defects"
	"github.com/sitebatch/maintenance/internal/models"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the defects.
const SheetName = "Defects"

// Header is the first row of the sheet.
var Header = []string{
	"Asset", "Title", "Category", "Priority", "Status", "Locked", "Submitted By", "Created",
}

const statusColumn = 5

// Workbook builds a workbook with one row per defect, in the given order.
// The status cell is filled with the status badge colour.
func Workbook(items []models.Defect) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9D9D9"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	statusStyles := map[string]int{}
	for i, d := range items {
		row := defects.Present(d)
		locked := "No"
		if d.Locked {
			locked = "Yes"
		}
		values := []any{
			row.Asset, row.Title, row.Category, d.Priority, row.Status, locked, d.SubmittedBy, row.Created,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		style, ok := statusStyles[row.Color]
		if !ok {
			style, err = f.NewStyle(&excelize.Style{
				Fill: excelize.Fill{Type: "pattern", Color: []string{strings.ToUpper(row.Color)}, Pattern: 1},
			})
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("status style: %w", err)
			}
			statusStyles[row.Color] = style
		}
		cell, _ = excelize.CoordinatesToCellName(statusColumn, i+2)
		if err := f.SetCellStyle(SheetName, cell, cell, style); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := f.SetColWidth(SheetName, "A", "H", 20); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write encodes the workbook of items to w.
func Write(w io.Writer, items []models.Defect) error {
	f, err := Workbook(items)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Save writes the workbook of items to path.
func Save(path string, items []models.Defect) error {
	f, err := Workbook(items)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}
