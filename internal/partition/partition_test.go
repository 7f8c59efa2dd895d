package partition

import (
	"testing"

	"gridvault/internal/core"
)

// makeRows builds rows 1..n where each row has a single cell in column A
// with the given value, or no cells when the value for that row is "".
func makeRows(values []string) []core.RowData {
	rows := make([]core.RowData, len(values))
	for i, v := range values {
		row := core.RowData{Row: i + 1}
		if v != "" {
			row.Cells = []core.CellRecord{{
				Address: cellAddr(i + 1),
				Row:     i + 1,
				Column:  1,
				Value:   v,
			}}
		}
		rows[i] = row
	}
	return rows
}

func cellAddr(row int) string {
	return "A" + itoa(row)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func TestPartitionSheet(t *testing.T) {
	t.Run("splits rows into fixed-size chunks", func(t *testing.T) {
		values := make([]string, 25)
		for i := range values {
			values[i] = "v"
		}
		chunks, err := PartitionSheet("Sheet1", makeRows(values), Params{RowsPerChunk: 10})
		if err != nil {
			t.Fatalf("PartitionSheet() error = %v", err)
		}

		if len(chunks) != 3 {
			t.Fatalf("got %d chunks, want 3", len(chunks))
		}
		wantBounds := [][2]int{{1, 10}, {11, 20}, {21, 25}}
		for i, chunk := range chunks {
			if chunk.StartRow != wantBounds[i][0] || chunk.EndRow != wantBounds[i][1] {
				t.Errorf("chunk %d bounds = %d-%d, want %d-%d",
					i, chunk.StartRow, chunk.EndRow, wantBounds[i][0], wantBounds[i][1])
			}
			if chunk.RowCount != chunk.EndRow-chunk.StartRow+1 {
				t.Errorf("chunk %d RowCount = %d, want %d", i, chunk.RowCount, chunk.EndRow-chunk.StartRow+1)
			}
			if len(chunk.Rows) != chunk.RowCount {
				t.Errorf("chunk %d has %d row groups, want %d", i, len(chunk.Rows), chunk.RowCount)
			}
			if chunk.SheetName != "Sheet1" {
				t.Errorf("chunk %d SheetName = %q", i, chunk.SheetName)
			}
		}
		if chunks[0].ID != "Sheet1:1-10" {
			t.Errorf("chunk ID = %q, want Sheet1:1-10", chunks[0].ID)
		}
	})

	t.Run("skips empty chunks by default", func(t *testing.T) {
		// Rows 11-20 are blank, the rest carry data.
		values := make([]string, 25)
		for i := range values {
			if i >= 10 && i < 20 {
				continue
			}
			values[i] = "v"
		}
		chunks, err := PartitionSheet("Sheet1", makeRows(values), Params{RowsPerChunk: 10})
		if err != nil {
			t.Fatalf("PartitionSheet() error = %v", err)
		}

		if len(chunks) != 2 {
			t.Fatalf("got %d chunks, want 2", len(chunks))
		}
		if chunks[0].ID != "Sheet1:1-10" || chunks[1].ID != "Sheet1:21-25" {
			t.Errorf("chunk IDs = %q, %q", chunks[0].ID, chunks[1].ID)
		}
	})

	t.Run("keeps empty chunks when requested", func(t *testing.T) {
		values := make([]string, 20)
		values[0] = "v"
		chunks, err := PartitionSheet("Sheet1", makeRows(values),
			Params{RowsPerChunk: 10, IncludeEmptyChunks: true})
		if err != nil {
			t.Fatalf("PartitionSheet() error = %v", err)
		}
		if len(chunks) != 2 {
			t.Fatalf("got %d chunks, want 2", len(chunks))
		}
		if !chunks[1].IsEmpty() {
			t.Error("second chunk should be empty")
		}
	})

	t.Run("zero rows produce zero chunks", func(t *testing.T) {
		chunks, err := PartitionSheet("Sheet1", nil, Params{RowsPerChunk: 10, IncludeEmptyChunks: true})
		if err != nil {
			t.Fatalf("PartitionSheet() error = %v", err)
		}
		if len(chunks) != 0 {
			t.Errorf("got %d chunks, want 0", len(chunks))
		}
	})

	t.Run("rejects non-positive rows per chunk", func(t *testing.T) {
		for _, n := range []int{0, -1} {
			_, err := PartitionSheet("Sheet1", makeRows([]string{"v"}), Params{RowsPerChunk: n})
			if err == nil {
				t.Errorf("PartitionSheet(RowsPerChunk=%d) expected error", n)
			}
		}
	})

	t.Run("truncates columns past the limit", func(t *testing.T) {
		rows := []core.RowData{{
			Row: 1,
			Cells: []core.CellRecord{
				{Address: "A1", Row: 1, Column: 1, Value: "keep"},
				{Address: "B1", Row: 1, Column: 2, Value: "keep"},
				{Address: "C1", Row: 1, Column: 3, Value: "drop"},
			},
		}}
		chunks, err := PartitionSheet("Sheet1", rows, Params{RowsPerChunk: 10, MaxColsPerSheet: 2})
		if err != nil {
			t.Fatalf("PartitionSheet() error = %v", err)
		}
		if len(chunks) != 1 {
			t.Fatalf("got %d chunks, want 1", len(chunks))
		}
		if got := len(chunks[0].Rows[0].Cells); got != 2 {
			t.Errorf("got %d cells, want 2", got)
		}
	})
}

func TestPartitionDeterminism(t *testing.T) {
	rows := []core.RowData{
		{Row: 1, Cells: []core.CellRecord{{
			Address: "A1", Row: 1, Column: 1, Value: "total", Formula: "=SUM(B1:B9)",
			Format: &core.CellFormat{Bold: true, FillColor: "FFFF00", Extra: map[string]string{"wrap": "true", "indent": "2"}},
		}}},
		{Row: 2, Cells: []core.CellRecord{{Address: "A2", Row: 2, Column: 1, Value: "x"}}},
	}

	first, err := PartitionSheet("Data", rows, DefaultParams())
	if err != nil {
		t.Fatalf("PartitionSheet() error = %v", err)
	}
	second, err := PartitionSheet("Data", rows, DefaultParams())
	if err != nil {
		t.Fatalf("PartitionSheet() error = %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("got %d and %d chunks, want 1 and 1", len(first), len(second))
	}
	if first[0].ContentHash == "" {
		t.Fatal("ContentHash is empty")
	}
	if first[0].ContentHash != second[0].ContentHash {
		t.Errorf("hashes differ across identical runs: %s vs %s", first[0].ContentHash, second[0].ContentHash)
	}

	// Changing a cell value must change the hash.
	rows[1].Cells[0].Value = "y"
	third, err := PartitionSheet("Data", rows, DefaultParams())
	if err != nil {
		t.Fatalf("PartitionSheet() error = %v", err)
	}
	if third[0].ContentHash == first[0].ContentHash {
		t.Error("hash unchanged after cell edit")
	}
}

func TestIterator_Restartable(t *testing.T) {
	values := make([]string, 15)
	for i := range values {
		values[i] = "v"
	}
	rows := makeRows(values)

	// Walk the first iterator partially, then verify a fresh iterator
	// reproduces the full sequence from the start.
	it1, err := NewIterator("Sheet1", rows, Params{RowsPerChunk: 5})
	if err != nil {
		t.Fatalf("NewIterator() error = %v", err)
	}
	first, ok := it1.Next()
	if !ok {
		t.Fatal("Next() returned no chunk")
	}

	it2, err := NewIterator("Sheet1", rows, Params{RowsPerChunk: 5})
	if err != nil {
		t.Fatalf("NewIterator() error = %v", err)
	}
	var all []core.Chunk
	for {
		chunk, ok := it2.Next()
		if !ok {
			break
		}
		all = append(all, chunk)
	}

	if len(all) != 3 {
		t.Fatalf("got %d chunks, want 3", len(all))
	}
	if all[0].ContentHash != first.ContentHash {
		t.Error("restarted iterator produced a different first chunk")
	}
}
