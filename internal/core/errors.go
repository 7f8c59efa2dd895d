package core

import "errors"

// Sentinel errors for the failure modes callers are expected to distinguish.
// Wrap them with fmt.Errorf("...: %w", err) to add context (file path, IDs)
// and test with errors.Is.
var (
	// ErrFileNotFound means the requested file does not exist on disk.
	// Fails fast before any cache or extraction work; never retried.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidDimension means malformed partitioning parameters, e.g. a
	// non-positive rows-per-chunk. Rejected at the boundary.
	ErrInvalidDimension = errors.New("invalid chunk dimensions")

	// ErrVersionNotFound means a referenced version ID is unknown to the store.
	ErrVersionNotFound = errors.New("version not found")

	// ErrNoVersion means the workbook has never been extracted, so there is
	// no version to propose edits against.
	ErrNoVersion = errors.New("workbook has no extracted version")

	// ErrCorruptCache means a cached chunk set failed structural validation.
	// Internal only: the cache absorbs it and reports a miss instead.
	ErrCorruptCache = errors.New("corrupt cached chunk set")

	// ErrStorageWrite means version persistence failed mid-write. No partial
	// version is ever visible to readers; the operation is retryable.
	ErrStorageWrite = errors.New("storage write failed")

	// ErrConcurrentWrite means two writers raced on version creation for the
	// same workbook. The later writer is rejected and must retry.
	ErrConcurrentWrite = errors.New("concurrent write conflict")
)
