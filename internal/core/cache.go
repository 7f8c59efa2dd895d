package core

import (
	"context"
	"errors"
	"fmt"
)

// CacheResult is the outcome of a cache check. On a hit, Chunks holds the
// latest version's stored chunk set and Version identifies it.
type CacheResult struct {
	Hit     bool
	Version *Version
	Chunks  []Chunk
}

// MetadataCache decides whether previously stored chunks can be reused
// instead of performing a fresh extraction. The cache is version-pinned, not
// mtime-based: an external edit to the file is only picked up when the
// caller forces a refresh.
type MetadataCache struct {
	store  Store
	office Office
	logger Logger
}

// NewMetadataCache creates a cache over the given store and office layer.
func NewMetadataCache(store Store, office Office, logger Logger) *MetadataCache {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &MetadataCache{store: store, office: office, logger: logger}
}

// Check reports whether canonicalPath can be served from the latest stored
// version. livePath is where the file currently lives (the session path when
// an editing session is active). A missing file fails with ErrFileNotFound
// before any cache lookup; a corrupt stored chunk set is absorbed and
// reported as a miss so fresh extraction can repair it.
func (c *MetadataCache) Check(ctx context.Context, canonicalPath, livePath string, forceRefresh bool) (*CacheResult, error) {
	if !c.office.Exists(livePath) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, livePath)
	}

	if forceRefresh {
		return &CacheResult{}, nil
	}

	wb, err := c.store.FindWorkbookByPath(ctx, canonicalPath)
	if err != nil {
		return nil, fmt.Errorf("looking up workbook: %w", err)
	}
	if wb == nil {
		return &CacheResult{}, nil
	}

	latest, err := c.store.LatestVersion(ctx, wb.ID)
	if err != nil {
		return nil, fmt.Errorf("looking up latest version: %w", err)
	}
	if latest == nil {
		return &CacheResult{}, nil
	}

	chunks, err := c.store.GetAllChunks(ctx, latest.ID)
	if err != nil {
		if errors.Is(err, ErrVersionNotFound) {
			return &CacheResult{}, nil
		}
		return nil, fmt.Errorf("loading cached chunks: %w", err)
	}

	if err := validateChunkSet(chunks); err != nil {
		c.logger.Warn("cached chunk set invalid, forcing fresh extraction",
			"path", canonicalPath, "version", latest.ID, "reason", err)
		return &CacheResult{}, nil
	}

	return &CacheResult{Hit: true, Version: latest, Chunks: chunks}, nil
}

// validateChunkSet checks the stored chunks are structurally well-formed.
// Violations wrap ErrCorruptCache; callers treat them as a miss, never as a
// user-visible failure.
func validateChunkSet(chunks []Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("%w: empty chunk set", ErrCorruptCache)
	}
	for _, chunk := range chunks {
		if chunk.SheetName == "" {
			return fmt.Errorf("%w: chunk %q has no sheet name", ErrCorruptCache, chunk.ID)
		}
		if chunk.StartRow < 1 || chunk.EndRow < chunk.StartRow {
			return fmt.Errorf("%w: chunk %q has invalid row bounds %d-%d", ErrCorruptCache, chunk.ID, chunk.StartRow, chunk.EndRow)
		}
		if chunk.RowCount != chunk.EndRow-chunk.StartRow+1 {
			return fmt.Errorf("%w: chunk %q row count %d does not match bounds %d-%d", ErrCorruptCache, chunk.ID, chunk.RowCount, chunk.StartRow, chunk.EndRow)
		}
		if len(chunk.Rows) != chunk.RowCount {
			return fmt.Errorf("%w: chunk %q has %d row groups, expected %d", ErrCorruptCache, chunk.ID, len(chunk.Rows), chunk.RowCount)
		}
	}
	return nil
}
