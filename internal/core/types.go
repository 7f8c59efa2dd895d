package core

import "time"

// CellFormat holds the closed set of formatting fields we track for a cell,
// plus an open extension map for properties we store but do not interpret.
type CellFormat struct {
	Font         string            `json:"font,omitempty"`
	FontSize     float64           `json:"fontSize,omitempty"`
	Bold         bool              `json:"bold,omitempty"`
	Italic       bool              `json:"italic,omitempty"`
	FillColor    string            `json:"fillColor,omitempty"`
	Alignment    string            `json:"alignment,omitempty"`
	NumberFormat string            `json:"numberFormat,omitempty"`
	Border       string            `json:"border,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// IsZero reports whether no formatting is set.
func (f *CellFormat) IsZero() bool {
	if f == nil {
		return true
	}
	return f.Font == "" && f.FontSize == 0 && !f.Bold && !f.Italic &&
		f.FillColor == "" && f.Alignment == "" && f.NumberFormat == "" &&
		f.Border == "" && len(f.Extra) == 0
}

// CellRecord is one cell's extracted metadata.
// Address is the A1-style reference; Row and Column are 1-based.
type CellRecord struct {
	Address string      `json:"address"`
	Row     int         `json:"row"`
	Column  int         `json:"column"`
	Value   string      `json:"value,omitempty"`
	Formula string      `json:"formula,omitempty"`
	Format  *CellFormat `json:"format,omitempty"`
}

// IsEmpty reports whether the cell carries no value, formula, or formatting.
func (c CellRecord) IsEmpty() bool {
	return c.Value == "" && c.Formula == "" && c.Format.IsZero()
}

// RowData is one row-group of a chunk: the row number plus its cells in
// column order. A blank row has an empty Cells slice.
type RowData struct {
	Row   int          `json:"row"`
	Cells []CellRecord `json:"cells"`
}

// Chunk is a row-bounded partition of one sheet's cell data.
//
// Invariants: a chunk never spans two sheets; RowCount == EndRow-StartRow+1
// and equals len(Rows); boundaries are deterministic for identical input and
// partitioning parameters, so ContentHash is stable across re-extractions.
type Chunk struct {
	ID          string    `json:"chunkId"`
	SheetName   string    `json:"sheetName"`
	StartRow    int       `json:"startRow"`
	EndRow      int       `json:"endRow"`
	RowCount    int       `json:"rowCount"`
	Rows        []RowData `json:"cellData"`
	ContentHash string    `json:"contentHash,omitempty"`
}

// IsEmpty reports whether every cell in the chunk is empty.
func (c Chunk) IsEmpty() bool {
	for _, row := range c.Rows {
		for _, cell := range row.Cells {
			if !cell.IsEmpty() {
				return false
			}
		}
	}
	return true
}

// Workbook is the logical identity of a spreadsheet document, keyed by its
// normalized absolute file path. Created on first successful extraction.
type Workbook struct {
	ID            string
	CanonicalPath string
	CreatedAt     time.Time
}

// Version is an immutable snapshot of a workbook's extracted chunk set.
// Versions form an append-only sequence per workbook; VersionNumber is
// assigned monotonically by the store so "latest" is unambiguous even under
// concurrent writers.
type Version struct {
	ID                string
	WorkbookID        string
	VersionNumber     int64
	ChangeDescription string
	// FileChecksum is the SHA-256 of the raw file bytes captured in the
	// vault at snapshot time; empty when no blob was stored.
	FileChecksum string
	CreatedAt    time.Time
}

// ChunkRendering is the compressed text/markdown persisted for one chunk of a
// version, keyed by the chunk's content hash.
type ChunkRendering struct {
	ChunkID     string
	ContentHash string
	Text        string
	Markdown    string
}

// EditStatus is the lifecycle state of a pending edit.
// The only legal transition is StatusPending -> {StatusAccepted|StatusRejected}.
type EditStatus string

const (
	StatusPending  EditStatus = "pending"
	StatusAccepted EditStatus = "accepted"
	StatusRejected EditStatus = "rejected"
)

// CellState is a point-in-time snapshot of a single cell: the value or
// formula it holds and the fill color applied to it. Used both as the
// payload of a proposed edit and as the rollback state captured before it.
type CellState struct {
	Value     string `json:"value,omitempty"`
	Formula   string `json:"formula,omitempty"`
	FillColor string `json:"fillColor,omitempty"`
}

// PendingEdit is a proposed, not-yet-confirmed mutation to a single cell.
// Immutable after creation except for Status, which transitions exactly once.
type PendingEdit struct {
	ID                string
	VersionID         string
	WorkbookID        string
	SheetName         string
	CellAddress       string
	CellData          CellState
	OriginalState     CellState
	IntendedFillColor string
	Status            EditStatus
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}

// Operation is an audit record of a CLI operation that may mutate the store.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// EmbeddingRecord is the hand-off unit for the vector-store collaborator:
// one record per chunk per version, carrying the text and markdown the
// embedding should be computed from.
type EmbeddingRecord struct {
	WorkbookID  string
	VersionID   string
	ChunkID     string
	ContentHash string
	Text        string
	Markdown    string
}
