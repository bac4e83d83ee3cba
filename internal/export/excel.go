// Package export renders bookings and orders as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// Writer builds a workbook sheet by sheet.
type Writer struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
	widths       map[int]int
}

func NewWriter() *Writer {
	return &Writer{file: excelize.NewFile()}
}

// AddSheet adds a new sheet with the given name.
func (w *Writer) AddSheet(name string) error {
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	w.widths = make(map[int]int)
	return nil
}

// WriteHeader writes bold column headers to the current sheet.
func (w *Writer) WriteHeader(columns []string) error {
	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	headerRow := w.currentRow
	if err := w.WriteRow(row); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	start, _ := excelize.CoordinatesToCellName(1, headerRow)
	end, _ := excelize.CoordinatesToCellName(len(columns), headerRow)
	return w.file.SetCellStyle(w.currentSheet, start, end, style)
}

// WriteRow writes a data row to the current sheet.
func (w *Writer) WriteRow(row []any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, val); err != nil {
			return err
		}
		if n := len([]rune(fmt.Sprint(val))); n > w.widths[i] {
			w.widths[i] = n
		}
	}

	w.currentRow++
	return nil
}

// FitColumns sizes the current sheet's columns to their content.
func (w *Writer) FitColumns() error {
	for i, n := range w.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := float64(n) + 2
		if width > 60 {
			width = 60
		}
		if err := w.file.SetColWidth(w.currentSheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the workbook to wr.
func (w *Writer) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

// Close releases resources.
func (w *Writer) Close() error {
	return w.file.Close()
}
