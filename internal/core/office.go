package core

// Office is the spreadsheet automation layer: it reads and writes cells in
// the live workbook file. The core is the sole writer during the
// propose/accept/reject cycle; implementations do not need to lock.
type Office interface {
	// Exists reports whether the workbook file exists on disk.
	Exists(path string) bool

	// SheetNames returns the workbook's sheet names in workbook order.
	SheetNames(path string) ([]string, error)

	// ReadSheet returns one RowData per row from row 1 through the sheet's
	// last used row, in order. Blank rows appear with an empty Cells slice
	// so chunk row numbering stays contiguous.
	ReadSheet(path, sheetName string) ([]RowData, error)

	// ReadCell returns the current state of a single cell.
	ReadCell(path, sheetName, cellAddress string) (CellState, error)

	// WriteCell applies the given state to a cell: formula if set, value
	// otherwise, and the fill color (empty clears any fill).
	WriteCell(path, sheetName, cellAddress string, state CellState) error

	// RevertCell restores a cell to a previously captured state.
	RevertCell(path, sheetName, cellAddress string, original CellState) error

	// FileBytes returns the raw file bytes, for blob capture at snapshot time.
	FileBytes(path string) ([]byte, error)
}
