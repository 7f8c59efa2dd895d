package compress

import (
	"strings"
	"testing"

	"gridvault/internal/core"
)

func chunkWith(cells ...core.CellRecord) core.Chunk {
	return core.Chunk{
		ID:        "Sheet1:1-10",
		SheetName: "Sheet1",
		StartRow:  1,
		EndRow:    10,
		RowCount:  10,
		Rows:      []core.RowData{{Row: 1, Cells: cells}},
	}
}

func TestCompress(t *testing.T) {
	t.Run("output is parallel to input", func(t *testing.T) {
		chunks := []core.Chunk{
			chunkWith(core.CellRecord{Address: "A1", Row: 1, Column: 1, Value: "hello"}),
			chunkWith(), // no significant cells
			chunkWith(core.CellRecord{Address: "B1", Row: 1, Column: 2, Value: "world"}),
		}

		res := Compress(chunks, Limits{})
		if len(res.Texts) != 3 || len(res.Markdown) != 3 {
			t.Fatalf("got %d texts, %d markdown, want 3 each", len(res.Texts), len(res.Markdown))
		}
		if res.Texts[1] != "" || res.Markdown[1] != "" {
			t.Errorf("empty chunk rendered as %q / %q, want empty strings", res.Texts[1], res.Markdown[1])
		}
		if !strings.Contains(res.Texts[0], "A1=hello") {
			t.Errorf("text = %q, want it to contain A1=hello", res.Texts[0])
		}
		if !strings.Contains(res.Markdown[2], "| B1 | world |") {
			t.Errorf("markdown = %q, want a B1 table row", res.Markdown[2])
		}
	})

	t.Run("renders formulas with computed values", func(t *testing.T) {
		res := Compress([]core.Chunk{chunkWith(core.CellRecord{
			Address: "C1", Row: 1, Column: 3, Value: "42", Formula: "=SUM(A1:B1)",
		})}, Limits{})

		if !strings.Contains(res.Texts[0], "C1==SUM(A1:B1) = 42") {
			t.Errorf("text = %q, want formula with value", res.Texts[0])
		}
	})

	t.Run("renders format marks", func(t *testing.T) {
		res := Compress([]core.Chunk{chunkWith(core.CellRecord{
			Address: "A1", Row: 1, Column: 1, Value: "total",
			Format: &core.CellFormat{Bold: true, FillColor: "FFF2CC", NumberFormat: "0.00"},
		})}, Limits{})

		if !strings.Contains(res.Texts[0], "[fill:FFF2CC,bold,fmt:0.00]") {
			t.Errorf("text = %q, want format marks", res.Texts[0])
		}
	})

	t.Run("truncates long cell values with marker", func(t *testing.T) {
		long := strings.Repeat("x", 500)
		res := Compress([]core.Chunk{chunkWith(core.CellRecord{
			Address: "A1", Row: 1, Column: 1, Value: long,
		})}, Limits{MaxCellLength: 200})

		text := res.Texts[0]
		if !strings.Contains(text, TruncationMarker) {
			t.Errorf("text missing truncation marker: %q", text)
		}
		if strings.Contains(text, long) {
			t.Error("text contains the full untruncated value")
		}
		// 200 bytes of value plus the marker, address prefix, and framing.
		if len(text) > 250 {
			t.Errorf("text length = %d, want at most 250", len(text))
		}
	})

	t.Run("truncation respects rune boundaries", func(t *testing.T) {
		// Each rune is 3 bytes; a 10-byte cut would split one.
		value := strings.Repeat("あ", 10)
		res := Compress([]core.Chunk{chunkWith(core.CellRecord{
			Address: "A1", Row: 1, Column: 1, Value: value,
		})}, Limits{MaxCellLength: 10})

		if !strings.Contains(res.Texts[0], strings.Repeat("あ", 3)+TruncationMarker) {
			t.Errorf("text = %q, want clean 3-rune cut", res.Texts[0])
		}
	})

	t.Run("caps cells per chunk", func(t *testing.T) {
		var cells []core.CellRecord
		for i := 0; i < 10; i++ {
			cells = append(cells, core.CellRecord{
				Address: "A1", Row: 1, Column: i + 1, Value: "v",
			})
		}
		res := Compress([]core.Chunk{chunkWith(cells...)}, Limits{MaxCellsPerChunk: 3})

		if got := strings.Count(res.Texts[0], "=v"); got != 3 {
			t.Errorf("rendered %d cells, want 3", got)
		}
	})

	t.Run("malformed cell becomes placeholder", func(t *testing.T) {
		res := Compress([]core.Chunk{chunkWith(
			core.CellRecord{Row: 1, Column: 1, Value: "no address"},
			core.CellRecord{Address: "B1", Row: 1, Column: 2, Value: "fine"},
		)}, Limits{})

		if !strings.Contains(res.Texts[0], "[unreadable cell]") {
			t.Errorf("text = %q, want placeholder", res.Texts[0])
		}
		if !strings.Contains(res.Texts[0], "B1=fine") {
			t.Errorf("text = %q, good cell should survive", res.Texts[0])
		}
	})

	t.Run("escapes pipes in markdown", func(t *testing.T) {
		res := Compress([]core.Chunk{chunkWith(core.CellRecord{
			Address: "A1", Row: 1, Column: 1, Value: "a|b",
		})}, Limits{})

		if !strings.Contains(res.Markdown[0], `a\|b`) {
			t.Errorf("markdown = %q, want escaped pipe", res.Markdown[0])
		}
	})

	t.Run("computes statistics", func(t *testing.T) {
		chunks := []core.Chunk{
			chunkWith(core.CellRecord{Address: "A1", Row: 1, Column: 1, Value: "hello"}),
			chunkWith(core.CellRecord{Address: "A1", Row: 1, Column: 1, Value: "world"}),
		}
		res := Compress(chunks, Limits{})

		want := len(res.Texts[0]) + len(res.Markdown[0]) + len(res.Texts[1]) + len(res.Markdown[1])
		if res.Stats.TotalCharacters != want {
			t.Errorf("TotalCharacters = %d, want %d", res.Stats.TotalCharacters, want)
		}
		if res.Stats.AverageCharactersPerChunk != float64(want)/2 {
			t.Errorf("AverageCharactersPerChunk = %f, want %f",
				res.Stats.AverageCharactersPerChunk, float64(want)/2)
		}
	})

	t.Run("deterministic output", func(t *testing.T) {
		chunk := chunkWith(
			core.CellRecord{Address: "A1", Row: 1, Column: 1, Value: "x"},
			core.CellRecord{Address: "B1", Row: 1, Column: 2, Formula: "=A1*2", Value: "2"},
		)
		first := Compress([]core.Chunk{chunk}, Limits{})
		second := Compress([]core.Chunk{chunk}, Limits{})
		if first.Texts[0] != second.Texts[0] || first.Markdown[0] != second.Markdown[0] {
			t.Error("renderings differ across identical runs")
		}
	})
}
