// Package compress renders chunks into compact text and markdown for LLM
// consumption. Output is byte-deterministic for identical chunk content and
// limits, which is what makes cache-hit comparison against stored renderings
// possible.
package compress

import (
	"fmt"
	"strings"

	"gridvault/internal/core"
)

// TruncationMarker is appended to any cell value cut off by MaxCellLength.
const TruncationMarker = "…"

// cellPlaceholder stands in for a malformed cell record (missing address or
// row) so one bad cell never loses an entire chunk.
const cellPlaceholder = "[unreadable cell]"

// Limits bounds the rendered output per chunk.
type Limits struct {
	// MaxCellsPerChunk truncates the number of cells rendered per chunk.
	// Zero means no limit.
	MaxCellsPerChunk int
	// MaxCellLength truncates any single cell's rendered value, appending
	// TruncationMarker. Zero means no limit.
	MaxCellLength int
}

// Statistics is an observability side-channel over one compression batch.
// Derived, not authoritative.
type Statistics struct {
	TotalCharacters           int
	AverageCharactersPerChunk float64
}

// Result holds parallel renderings: one Texts entry and one Markdown entry
// per input chunk, in input order. A chunk with zero significant cells
// renders as an empty string in both, never as an absent entry, so callers
// can zip chunks with outputs index-for-index.
type Result struct {
	Texts    []string
	Markdown []string
	Stats    Statistics
}

// Compress renders a batch of chunks.
func Compress(chunks []core.Chunk, limits Limits) Result {
	res := Result{
		Texts:    make([]string, len(chunks)),
		Markdown: make([]string, len(chunks)),
	}

	for i, chunk := range chunks {
		res.Texts[i] = renderText(chunk, limits)
		res.Markdown[i] = renderMarkdown(chunk, limits)
		res.Stats.TotalCharacters += len(res.Texts[i]) + len(res.Markdown[i])
	}

	if len(chunks) > 0 {
		res.Stats.AverageCharactersPerChunk = float64(res.Stats.TotalCharacters) / float64(len(chunks))
	}
	return res
}

// significantCells returns the chunk's non-empty cells in row-major order,
// capped at limits.MaxCellsPerChunk.
func significantCells(chunk core.Chunk, limits Limits) []core.CellRecord {
	var cells []core.CellRecord
	for _, row := range chunk.Rows {
		for _, cell := range row.Cells {
			if cell.IsEmpty() {
				continue
			}
			cells = append(cells, cell)
			if limits.MaxCellsPerChunk > 0 && len(cells) >= limits.MaxCellsPerChunk {
				return cells
			}
		}
	}
	return cells
}

func renderText(chunk core.Chunk, limits Limits) string {
	cells := significantCells(chunk, limits)
	if len(cells) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sheet %s rows %d-%d:", chunk.SheetName, chunk.StartRow, chunk.EndRow)
	for _, cell := range cells {
		b.WriteString(" ")
		b.WriteString(renderCell(cell, limits, false))
		b.WriteString(";")
	}
	return b.String()
}

func renderMarkdown(chunk core.Chunk, limits Limits) string {
	cells := significantCells(chunk, limits)
	if len(cells) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### %s (rows %d-%d)\n\n", chunk.SheetName, chunk.StartRow, chunk.EndRow)
	b.WriteString("| Cell | Content |\n|---|---|\n")
	for _, cell := range cells {
		b.WriteString(renderCell(cell, limits, true))
		b.WriteString("\n")
	}
	return b.String()
}

// renderCell renders one cell; malformed records (no address or row) become
// a placeholder instead of aborting the chunk.
func renderCell(cell core.CellRecord, limits Limits, markdown bool) string {
	if cell.Address == "" || cell.Row <= 0 {
		if markdown {
			return "| ? | " + cellPlaceholder + " |"
		}
		return cellPlaceholder
	}

	content := cell.Value
	if cell.Formula != "" {
		content = cell.Formula
		if cell.Value != "" {
			content = cell.Formula + " = " + cell.Value
		}
	}
	content = truncate(content, limits.MaxCellLength)

	var marks []string
	if f := cell.Format; !f.IsZero() {
		if f.FillColor != "" {
			marks = append(marks, "fill:"+f.FillColor)
		}
		if f.Bold {
			marks = append(marks, "bold")
		}
		if f.NumberFormat != "" {
			marks = append(marks, "fmt:"+f.NumberFormat)
		}
	}
	if len(marks) > 0 {
		content += " [" + strings.Join(marks, ",") + "]"
	}

	if markdown {
		return fmt.Sprintf("| %s | %s |", cell.Address, escapePipes(content))
	}
	return cell.Address + "=" + content
}

// truncate cuts s to max bytes on a rune boundary and appends the marker.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + TruncationMarker
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
