// Package partition splits per-sheet cell metadata into row-bounded,
// size-bounded chunks. Boundaries are deterministic for identical input and
// parameters, so re-extracting unchanged content yields byte-identical
// chunks and stable content hashes.
package partition

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"gridvault/internal/core"
)

// Params controls how a sheet is partitioned.
type Params struct {
	// RowsPerChunk is the maximum number of consecutive rows per chunk.
	// Must be positive.
	RowsPerChunk int
	// MaxColsPerSheet drops cells beyond this column from the chunk data.
	// Column truncation never affects row boundaries.
	MaxColsPerSheet int
	// IncludeEmptyChunks keeps chunks whose every cell is empty. When false
	// such chunks are dropped from the output; row numbering of kept chunks
	// is unchanged, so consumers must index by chunk ID, not position.
	IncludeEmptyChunks bool
}

// DefaultParams returns the standard partitioning parameters.
func DefaultParams() Params {
	return Params{RowsPerChunk: 10, MaxColsPerSheet: 50}
}

// Iterator walks a sheet's rows producing chunks lazily. Re-creating an
// iterator with identical inputs reproduces identical output.
type Iterator struct {
	sheetName string
	rows      []core.RowData
	params    Params
	pos       int
}

// NewIterator creates an iterator over one sheet's row-major cell data.
// rows must be ordered with one entry per row from row 1 through the last
// used row (blank rows included with empty Cells).
// Returns ErrInvalidDimension if RowsPerChunk is not positive.
func NewIterator(sheetName string, rows []core.RowData, params Params) (*Iterator, error) {
	if params.RowsPerChunk <= 0 {
		return nil, fmt.Errorf("%w: rows_per_chunk must be positive, got %d", core.ErrInvalidDimension, params.RowsPerChunk)
	}
	return &Iterator{sheetName: sheetName, rows: rows, params: params}, nil
}

// Next returns the next chunk. The second return is false when the sheet is
// exhausted. A sheet with zero rows produces zero chunks regardless of
// IncludeEmptyChunks.
func (it *Iterator) Next() (core.Chunk, bool) {
	for it.pos < len(it.rows) {
		end := it.pos + it.params.RowsPerChunk
		if end > len(it.rows) {
			end = len(it.rows)
		}
		chunk := it.buildChunk(it.rows[it.pos:end])
		it.pos = end

		if !it.params.IncludeEmptyChunks && chunk.IsEmpty() {
			continue
		}
		return chunk, true
	}
	return core.Chunk{}, false
}

func (it *Iterator) buildChunk(rows []core.RowData) core.Chunk {
	startRow := rows[0].Row
	endRow := rows[len(rows)-1].Row

	groups := make([]core.RowData, len(rows))
	for i, row := range rows {
		cells := make([]core.CellRecord, 0, len(row.Cells))
		for _, cell := range row.Cells {
			if it.params.MaxColsPerSheet > 0 && cell.Column > it.params.MaxColsPerSheet {
				continue
			}
			cells = append(cells, cell)
		}
		groups[i] = core.RowData{Row: row.Row, Cells: cells}
	}

	chunk := core.Chunk{
		ID:        fmt.Sprintf("%s:%d-%d", it.sheetName, startRow, endRow),
		SheetName: it.sheetName,
		StartRow:  startRow,
		EndRow:    endRow,
		RowCount:  endRow - startRow + 1,
		Rows:      groups,
	}
	chunk.ContentHash = ContentHash(chunk)
	return chunk
}

// PartitionSheet partitions one sheet eagerly.
func PartitionSheet(sheetName string, rows []core.RowData, params Params) ([]core.Chunk, error) {
	it, err := NewIterator(sheetName, rows, params)
	if err != nil {
		return nil, err
	}
	var chunks []core.Chunk
	for {
		chunk, ok := it.Next()
		if !ok {
			return chunks, nil
		}
		chunks = append(chunks, chunk)
	}
}

// ContentHash returns the SHA-256 of a canonical encoding of the chunk's
// identity and cell data. Equal hashes mean the chunk's content is unchanged
// and its embedding can be reused.
func ContentHash(c core.Chunk) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00", c.SheetName, c.StartRow, c.EndRow)
	for _, row := range c.Rows {
		fmt.Fprintf(h, "r%d\x00", row.Row)
		for _, cell := range row.Cells {
			fmt.Fprintf(h, "%s\x1f%s\x1f%s\x1f", cell.Address, cell.Value, cell.Formula)
			if !cell.Format.IsZero() {
				f := cell.Format
				fmt.Fprintf(h, "%s\x1f%g\x1f%t\x1f%t\x1f%s\x1f%s\x1f%s\x1f%s\x1f",
					f.Font, f.FontSize, f.Bold, f.Italic, f.FillColor, f.Alignment, f.NumberFormat, f.Border)
				for _, k := range sortedKeys(f.Extra) {
					fmt.Fprintf(h, "%s=%s\x1f", k, f.Extra[k])
				}
			}
			h.Write([]byte{0x1e})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
