package core

import (
	"context"
	"time"
)

// Store provides durable, append-only storage of workbooks, versions, chunks,
// pending edits, path aliases, and operation records. Implementations must
// persist a version's full chunk set atomically: readers never observe a
// version with a partial chunk set.
type Store interface {
	// Workbook operations

	// CreateOrUpdateWorkbook returns the workbook for canonicalPath, creating
	// it if needed. Idempotent: never creates duplicates for the same path.
	CreateOrUpdateWorkbook(ctx context.Context, canonicalPath string) (*Workbook, error)

	// FindWorkbookByPath returns the workbook with an exact path match,
	// or nil if none exists.
	FindWorkbookByPath(ctx context.Context, canonicalPath string) (*Workbook, error)

	// GetWorkbook returns a workbook by ID, or nil if unknown.
	GetWorkbook(ctx context.Context, workbookID string) (*Workbook, error)

	// Version operations

	// CreateVersion appends a new version with the given chunk set and its
	// compressed renderings (parallel to chunks). The whole write is atomic.
	// fileChecksum is empty when no file blob was captured.
	// Returns ErrConcurrentWrite if another writer claimed the next version
	// number first.
	CreateVersion(ctx context.Context, workbookID, changeDescription string, chunks []Chunk, texts, markdown []string, fileChecksum string) (*Version, error)

	// LatestVersion returns the most recently created version for a workbook,
	// or nil if the workbook has never been extracted.
	LatestVersion(ctx context.Context, workbookID string) (*Version, error)

	// GetVersion returns a version by ID, or nil if unknown.
	GetVersion(ctx context.Context, versionID string) (*Version, error)

	// ListVersions returns all versions for a workbook ordered by creation,
	// oldest first.
	ListVersions(ctx context.Context, workbookID string) ([]*Version, error)

	// GetAllChunks returns a version's chunks in stored order.
	// Returns ErrVersionNotFound if the ID is unknown.
	GetAllChunks(ctx context.Context, versionID string) ([]Chunk, error)

	// GetChunkRenderings returns the compressed text/markdown for a version's
	// chunks in stored order. Returns ErrVersionNotFound if the ID is unknown.
	GetChunkRenderings(ctx context.Context, versionID string) ([]ChunkRendering, error)

	// Pending edit operations

	// CreatePendingEdit persists a new pending edit record.
	CreatePendingEdit(ctx context.Context, edit *PendingEdit) error

	// GetPendingEdit returns an edit by ID, or nil if unknown.
	GetPendingEdit(ctx context.Context, editID string) (*PendingEdit, error)

	// PendingEditsForVersion returns edits proposed against a version,
	// optionally filtered by sheet name (empty means all sheets) and status
	// (empty means all statuses). Ordered by creation, oldest first.
	PendingEditsForVersion(ctx context.Context, versionID, sheetName string, status EditStatus) ([]*PendingEdit, error)

	// EarliestPendingEditForCell returns the oldest still-pending edit for a
	// cell, or nil if the cell has no pending edit. Used to preserve the true
	// pre-edit state across chained proposals.
	EarliestPendingEditForCell(ctx context.Context, workbookID, sheetName, cellAddress string) (*PendingEdit, error)

	// ResolvePendingEdit transitions an edit from pending to the given
	// terminal status. Returns false if the edit was not in pending state
	// (already resolved or unknown), so batch callers can report it as failed
	// without double-committing.
	ResolvePendingEdit(ctx context.Context, editID string, status EditStatus, resolvedAt time.Time) (bool, error)

	// Path alias operations
	//
	// Aliases track temp-file shadow paths used during active editing
	// sessions. Resolution order is: normalize the raw path, then map
	// session path -> canonical path, else the path is its own canonical.

	// AddPathAlias maps a session path to a canonical path, replacing any
	// existing mapping for the session path.
	AddPathAlias(ctx context.Context, sessionPath, canonicalPath string) error

	// ResolveAlias returns the canonical path for the given path, or the
	// path itself when no alias exists.
	ResolveAlias(ctx context.Context, path string) (string, error)

	// SessionPathFor returns the live session path currently shadowing a
	// canonical path, or the canonical path itself when none does.
	SessionPathFor(ctx context.Context, canonicalPath string) (string, error)

	// RemovePathAlias removes a session path mapping. Removing a mapping
	// that does not exist is a no-op.
	RemovePathAlias(ctx context.Context, sessionPath string) error

	// Operation tracking

	// CreateOperation records the start of a store-mutating operation.
	CreateOperation(ctx context.Context, operation, parameters string) (*Operation, error)

	// FinishOperation records an operation's completion status.
	FinishOperation(ctx context.Context, id int64, status string) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(ctx context.Context, limit int) ([]*Operation, error)

	// Close closes the store.
	Close() error
}
