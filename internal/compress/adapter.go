package compress

import "gridvault/internal/core"

// ChunkCompressor adapts this package to core.Compressor.
type ChunkCompressor struct{}

func NewChunkCompressor() ChunkCompressor { return ChunkCompressor{} }

// Compress implements core.Compressor.
func (ChunkCompressor) Compress(chunks []core.Chunk, limits core.CompressionLimits) ([]string, []string, core.CompressionStats, error) {
	res := Compress(chunks, Limits{
		MaxCellsPerChunk: limits.MaxCellsPerChunk,
		MaxCellLength:    limits.MaxCellLength,
	})
	stats := core.CompressionStats{
		TotalCharacters:           res.Stats.TotalCharacters,
		AverageCharactersPerChunk: res.Stats.AverageCharactersPerChunk,
	}
	return res.Texts, res.Markdown, stats, nil
}

var _ core.Compressor = ChunkCompressor{}
