// Package office implements the spreadsheet automation layer on top of
// excelize. It is the only package that touches workbook files directly.
package office

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gridvault/internal/core"
)

// ExcelizeOffice reads and writes xlsx workbooks via excelize.
// Instances are stateless; every call opens the file fresh so external
// changes between calls are always observed.
type ExcelizeOffice struct{}

func NewExcelizeOffice() *ExcelizeOffice { return &ExcelizeOffice{} }

var _ core.Office = (*ExcelizeOffice)(nil)

// Exists reports whether the workbook file exists.
func (o *ExcelizeOffice) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SheetNames returns the workbook's sheet names in workbook order.
func (o *ExcelizeOffice) SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// ReadSheet returns one RowData per row from row 1 through the last used
// row. Blank rows appear with an empty Cells slice so downstream chunk row
// numbering stays contiguous.
func (o *ExcelizeOffice) ReadSheet(path, sheetName string) ([]core.RowData, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	grid, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheetName, err)
	}

	// Styles repeat heavily across a sheet; resolve each style ID once.
	styleCache := make(map[int]*core.CellFormat)

	rows := make([]core.RowData, len(grid))
	for rowIdx, gridRow := range grid {
		rowNum := rowIdx + 1
		var cells []core.CellRecord
		for colIdx, value := range gridRow {
			colNum := colIdx + 1
			address, err := excelize.CoordinatesToCellName(colNum, rowNum)
			if err != nil {
				return nil, fmt.Errorf("cell coordinates (%d,%d): %w", colNum, rowNum, err)
			}

			formula, _ := f.GetCellFormula(sheetName, address)
			if value == "" && formula == "" {
				continue
			}

			record := core.CellRecord{
				Address: address,
				Row:     rowNum,
				Column:  colNum,
				Value:   value,
				Formula: formula,
			}
			if format := o.cellFormat(f, sheetName, address, styleCache); !format.IsZero() {
				record.Format = format
			}
			cells = append(cells, record)
		}
		rows[rowIdx] = core.RowData{Row: rowNum, Cells: cells}
	}
	return rows, nil
}

// cellFormat resolves a cell's style into the tracked format fields.
// Unresolvable styles degrade to no formatting rather than failing the read.
func (o *ExcelizeOffice) cellFormat(f *excelize.File, sheetName, address string, cache map[int]*core.CellFormat) *core.CellFormat {
	styleID, err := f.GetCellStyle(sheetName, address)
	if err != nil || styleID == 0 {
		return nil
	}
	if format, ok := cache[styleID]; ok {
		return format
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		cache[styleID] = nil
		return nil
	}

	format := &core.CellFormat{}
	if style.Font != nil {
		format.Font = style.Font.Family
		format.FontSize = style.Font.Size
		format.Bold = style.Font.Bold
		format.Italic = style.Font.Italic
	}
	if len(style.Fill.Color) > 0 && style.Fill.Type == "pattern" {
		format.FillColor = normalizeColor(style.Fill.Color[0])
	}
	if style.Alignment != nil {
		format.Alignment = style.Alignment.Horizontal
	}
	if style.CustomNumFmt != nil {
		format.NumberFormat = *style.CustomNumFmt
	} else if style.NumFmt != 0 {
		format.NumberFormat = strconv.Itoa(style.NumFmt)
	}
	if len(style.Border) > 0 {
		var sides []string
		for _, b := range style.Border {
			if b.Style != 0 {
				sides = append(sides, b.Type)
			}
		}
		format.Border = strings.Join(sides, ",")
	}

	if format.IsZero() {
		format = nil
	}
	cache[styleID] = format
	return format
}

// ReadCell returns the current state of a single cell.
func (o *ExcelizeOffice) ReadCell(path, sheetName, cellAddress string) (core.CellState, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return core.CellState{}, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	value, err := f.GetCellValue(sheetName, cellAddress)
	if err != nil {
		return core.CellState{}, fmt.Errorf("reading cell %s!%s: %w", sheetName, cellAddress, err)
	}
	formula, _ := f.GetCellFormula(sheetName, cellAddress)

	state := core.CellState{Value: value, Formula: formula}
	cache := make(map[int]*core.CellFormat)
	if format := o.cellFormat(f, sheetName, cellAddress, cache); format != nil {
		state.FillColor = format.FillColor
	}
	return state, nil
}

// WriteCell applies a state to a cell: formula if set, value otherwise, and
// the fill color. An empty fill clears any existing fill while keeping the
// rest of the cell's style.
func (o *ExcelizeOffice) WriteCell(path, sheetName, cellAddress string, state core.CellState) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	if state.Formula != "" {
		if err := f.SetCellFormula(sheetName, cellAddress, state.Formula); err != nil {
			return fmt.Errorf("setting formula on %s!%s: %w", sheetName, cellAddress, err)
		}
	} else {
		// Remove any leftover formula before writing a plain value.
		if formula, _ := f.GetCellFormula(sheetName, cellAddress); formula != "" {
			if err := f.SetCellFormula(sheetName, cellAddress, ""); err != nil {
				return fmt.Errorf("clearing formula on %s!%s: %w", sheetName, cellAddress, err)
			}
		}
		if err := f.SetCellValue(sheetName, cellAddress, state.Value); err != nil {
			return fmt.Errorf("setting value on %s!%s: %w", sheetName, cellAddress, err)
		}
	}

	if err := o.applyFill(f, sheetName, cellAddress, state.FillColor); err != nil {
		return err
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

// RevertCell restores a cell to a previously captured state. An all-empty
// original clears the cell entirely.
func (o *ExcelizeOffice) RevertCell(path, sheetName, cellAddress string, original core.CellState) error {
	if original.Value == "" && original.Formula == "" {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return fmt.Errorf("opening workbook: %w", err)
		}
		defer f.Close()
		if err := f.SetCellValue(sheetName, cellAddress, nil); err != nil {
			return fmt.Errorf("clearing cell %s!%s: %w", sheetName, cellAddress, err)
		}
		if err := o.applyFill(f, sheetName, cellAddress, original.FillColor); err != nil {
			return err
		}
		if err := f.Save(); err != nil {
			return fmt.Errorf("saving workbook: %w", err)
		}
		return nil
	}
	return o.WriteCell(path, sheetName, cellAddress, original)
}

// applyFill replaces the cell's fill while preserving the rest of its style.
func (o *ExcelizeOffice) applyFill(f *excelize.File, sheetName, cellAddress, color string) error {
	styleID, err := f.GetCellStyle(sheetName, cellAddress)
	if err != nil {
		return fmt.Errorf("reading style of %s!%s: %w", sheetName, cellAddress, err)
	}
	style := &excelize.Style{}
	if styleID != 0 {
		if existing, err := f.GetStyle(styleID); err == nil && existing != nil {
			style = existing
		}
	}
	if color == "" {
		style.Fill = excelize.Fill{}
	} else {
		style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
	}
	newID, err := f.NewStyle(style)
	if err != nil {
		return fmt.Errorf("building style for %s!%s: %w", sheetName, cellAddress, err)
	}
	if err := f.SetCellStyle(sheetName, cellAddress, cellAddress, newID); err != nil {
		return fmt.Errorf("applying style to %s!%s: %w", sheetName, cellAddress, err)
	}
	return nil
}

// FileBytes returns the raw file bytes for blob capture.
func (o *ExcelizeOffice) FileBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workbook file: %w", err)
	}
	return data, nil
}

// normalizeColor strips the alpha prefix excelize reports on ARGB colors so
// stored fills compare equal to the RGB values callers pass in.
func normalizeColor(c string) string {
	c = strings.TrimPrefix(c, "#")
	if len(c) == 8 {
		return strings.ToUpper(c[2:])
	}
	return strings.ToUpper(c)
}
