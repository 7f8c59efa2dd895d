package partition

import "gridvault/internal/core"

// SheetPartitioner adapts this package to core.Partitioner.
type SheetPartitioner struct{}

func NewSheetPartitioner() SheetPartitioner { return SheetPartitioner{} }

// Partition implements core.Partitioner. Zero-valued options fall back to
// DefaultParams.
func (SheetPartitioner) Partition(sheetName string, rows []core.RowData, opts core.PartitionOptions) ([]core.Chunk, error) {
	params := DefaultParams()
	if opts.RowsPerChunk != 0 {
		params.RowsPerChunk = opts.RowsPerChunk
	}
	if opts.MaxColsPerSheet != 0 {
		params.MaxColsPerSheet = opts.MaxColsPerSheet
	}
	params.IncludeEmptyChunks = opts.IncludeEmptyChunks
	return PartitionSheet(sheetName, rows, params)
}

var _ core.Partitioner = SheetPartitioner{}
