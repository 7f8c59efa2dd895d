package testutil

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"gridvault/internal/core"
)

// MockOffice is an in-memory spreadsheet layer for testing. Tests seed
// workbooks with AddSheet and inspect cells after edit operations with
// Cell. Safe for concurrent use.
type MockOffice struct {
	mu        sync.Mutex
	workbooks map[string]*mockWorkbook

	// WriteErr, when set, is returned by every WriteCell call.
	WriteErr error
	// RevertErr, when set, is returned by every RevertCell call.
	RevertErr error
}

type mockWorkbook struct {
	sheetOrder []string
	sheets     map[string][]core.RowData
}

// NewMockOffice creates an empty mock office layer.
func NewMockOffice() *MockOffice {
	return &MockOffice{workbooks: make(map[string]*mockWorkbook)}
}

// AddWorkbook registers an empty workbook at path.
func (m *MockOffice) AddWorkbook(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureWorkbook(path)
}

// AddSheet sets a sheet's rows, registering the workbook if needed.
func (m *MockOffice) AddSheet(path, sheetName string, rows []core.RowData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wb := m.ensureWorkbook(path)
	if _, ok := wb.sheets[sheetName]; !ok {
		wb.sheetOrder = append(wb.sheetOrder, sheetName)
	}
	wb.sheets[sheetName] = rows
}

// Cell returns the current state of a cell for assertions.
func (m *MockOffice) Cell(path, sheetName, cellAddress string) core.CellState {
	state, _ := m.ReadCell(path, sheetName, cellAddress)
	return state
}

func (m *MockOffice) ensureWorkbook(path string) *mockWorkbook {
	wb, ok := m.workbooks[path]
	if !ok {
		wb = &mockWorkbook{sheets: make(map[string][]core.RowData)}
		m.workbooks[path] = wb
	}
	return wb
}

func (m *MockOffice) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.workbooks[path]
	return ok
}

func (m *MockOffice) SheetNames(path string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wb, ok := m.workbooks[path]
	if !ok {
		return nil, fmt.Errorf("workbook not found: %s", path)
	}
	return append([]string{}, wb.sheetOrder...), nil
}

func (m *MockOffice) ReadSheet(path, sheetName string) ([]core.RowData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wb, ok := m.workbooks[path]
	if !ok {
		return nil, fmt.Errorf("workbook not found: %s", path)
	}
	rows, ok := wb.sheets[sheetName]
	if !ok {
		return nil, fmt.Errorf("sheet not found: %s", sheetName)
	}
	out := make([]core.RowData, len(rows))
	for i, row := range rows {
		out[i] = core.RowData{Row: row.Row, Cells: append([]core.CellRecord{}, row.Cells...)}
	}
	return out, nil
}

func (m *MockOffice) ReadCell(path, sheetName, cellAddress string) (core.CellState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wb, ok := m.workbooks[path]
	if !ok {
		return core.CellState{}, fmt.Errorf("workbook not found: %s", path)
	}
	rows, ok := wb.sheets[sheetName]
	if !ok {
		return core.CellState{}, fmt.Errorf("sheet not found: %s", sheetName)
	}
	for _, row := range rows {
		for _, cell := range row.Cells {
			if cell.Address == cellAddress {
				state := core.CellState{Value: cell.Value, Formula: cell.Formula}
				if cell.Format != nil {
					state.FillColor = cell.Format.FillColor
				}
				return state, nil
			}
		}
	}
	// An unset cell reads as empty, matching a real workbook.
	return core.CellState{}, nil
}

func (m *MockOffice) WriteCell(path, sheetName, cellAddress string, state core.CellState) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	return m.setCell(path, sheetName, cellAddress, state)
}

func (m *MockOffice) RevertCell(path, sheetName, cellAddress string, original core.CellState) error {
	if m.RevertErr != nil {
		return m.RevertErr
	}
	return m.setCell(path, sheetName, cellAddress, original)
}

func (m *MockOffice) setCell(path, sheetName, cellAddress string, state core.CellState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wb, ok := m.workbooks[path]
	if !ok {
		return fmt.Errorf("workbook not found: %s", path)
	}
	rows, ok := wb.sheets[sheetName]
	if !ok {
		return fmt.Errorf("sheet not found: %s", sheetName)
	}

	rowNum, colNum, err := parseAddress(cellAddress)
	if err != nil {
		return err
	}

	record := core.CellRecord{
		Address: cellAddress,
		Row:     rowNum,
		Column:  colNum,
		Value:   state.Value,
		Formula: state.Formula,
	}
	if state.FillColor != "" {
		record.Format = &core.CellFormat{FillColor: state.FillColor}
	}

	// Extend the sheet with blank rows if the target row is past the end.
	for len(rows) < rowNum {
		rows = append(rows, core.RowData{Row: len(rows) + 1})
	}

	row := &rows[rowNum-1]
	replaced := false
	for i, cell := range row.Cells {
		if cell.Address == cellAddress {
			if record.IsEmpty() {
				row.Cells = append(row.Cells[:i], row.Cells[i+1:]...)
			} else {
				row.Cells[i] = record
			}
			replaced = true
			break
		}
	}
	if !replaced && !record.IsEmpty() {
		row.Cells = append(row.Cells, record)
		sort.Slice(row.Cells, func(i, j int) bool { return row.Cells[i].Column < row.Cells[j].Column })
	}

	wb.sheets[sheetName] = rows
	return nil
}

// FileBytes serializes the workbook's current cell content, so checksums
// change when cells do.
func (m *MockOffice) FileBytes(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wb, ok := m.workbooks[path]
	if !ok {
		return nil, fmt.Errorf("workbook not found: %s", path)
	}
	var b strings.Builder
	for _, sheet := range wb.sheetOrder {
		fmt.Fprintf(&b, "[%s]\n", sheet)
		for _, row := range wb.sheets[sheet] {
			for _, cell := range row.Cells {
				fmt.Fprintf(&b, "%s=%s|%s\n", cell.Address, cell.Value, cell.Formula)
			}
		}
	}
	return []byte(b.String()), nil
}

// parseAddress converts an A1-style reference to 1-based row and column.
func parseAddress(address string) (row, col int, err error) {
	i := 0
	for i < len(address) && address[i] >= 'A' && address[i] <= 'Z' {
		col = col*26 + int(address[i]-'A') + 1
		i++
	}
	if col == 0 || i == len(address) {
		return 0, 0, fmt.Errorf("invalid cell address: %s", address)
	}
	for ; i < len(address); i++ {
		if address[i] < '0' || address[i] > '9' {
			return 0, 0, fmt.Errorf("invalid cell address: %s", address)
		}
		row = row*10 + int(address[i]-'0')
	}
	if row == 0 {
		return 0, 0, fmt.Errorf("invalid cell address: %s", address)
	}
	return row, col, nil
}

// Compile-time check
var _ core.Office = (*MockOffice)(nil)
