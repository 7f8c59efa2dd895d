package core

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// PartitionOptions controls how sheet rows are split into chunks.
// Zero values select the partitioner's defaults.
type PartitionOptions struct {
	RowsPerChunk       int
	MaxColsPerSheet    int
	IncludeEmptyChunks bool
}

// Partitioner splits one sheet's rows into row-bounded chunks.
type Partitioner interface {
	Partition(sheetName string, rows []RowData, opts PartitionOptions) ([]Chunk, error)
}

// CompressionLimits bounds the size of compressed renderings.
// Zero values select the compressor's defaults.
type CompressionLimits struct {
	MaxCellsPerChunk int
	MaxCellLength    int
}

// CompressionStats summarizes a compression pass over a chunk set.
type CompressionStats struct {
	TotalCharacters           int
	AverageCharactersPerChunk float64
}

// Compressor renders chunks into compact text and markdown, one entry per
// chunk, parallel to the input.
type Compressor interface {
	Compress(chunks []Chunk, limits CompressionLimits) (texts, markdown []string, stats CompressionStats, err error)
}

// ChangeDescriber produces a human-readable summary of the difference
// between two rendered versions of a workbook.
type ChangeDescriber interface {
	Describe(before, after string) string
}

// ProgressFunc receives coarse progress updates during extraction.
type ProgressFunc func(stage, message string, percent int)

// Deps bundles the collaborators a Service needs. Encryptor and Embeddings
// are optional; the rest are required.
type Deps struct {
	Store       Store
	Office      Office
	Vault       Vault
	Encryptor   Encryptor
	Embeddings  EmbeddingSink
	Partitioner Partitioner
	Compressor  Compressor
	Describer   ChangeDescriber
	Locks       *PathLocks
	Logger      Logger
	Clock       Clock
	IDGen       IDGenerator
}

// Service orchestrates the extraction pipeline and version lifecycle:
// cache check, sheet reading, partitioning, compression, persistence, blob
// capture, and embedding hand-off. Edit operations are delegated to the
// owned PendingEditManager.
type Service struct {
	deps  Deps
	cache *MetadataCache
	edits *PendingEditManager
}

// NewService wires a Service and its edit manager from the given deps.
func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = NewNopLogger()
	}
	if deps.Locks == nil {
		deps.Locks = NewPathLocks()
	}
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	if deps.IDGen == nil {
		deps.IDGen = UUIDGenerator{}
	}
	s := &Service{
		deps:  deps,
		cache: NewMetadataCache(deps.Store, deps.Office, deps.Logger),
	}
	s.edits = NewPendingEditManager(deps.Store, deps.Office, deps.Locks, s, deps.Logger, deps.Clock, deps.IDGen)
	return s
}

// Edits returns the pending edit manager for this service.
func (s *Service) Edits() *PendingEditManager { return s.edits }

// ExtractRequest is the input to Extract. Zero-valued tuning fields select
// the partitioner's and compressor's defaults.
type ExtractRequest struct {
	Path               string
	RowsPerChunk       int
	MaxColsPerSheet    int
	IncludeEmptyChunks bool
	MaxCellsPerChunk   int
	MaxCellLength      int

	// ForceRefresh bypasses the cache and always re-extracts.
	ForceRefresh bool
	// StoreFileBlob captures the raw file in the vault alongside the version.
	StoreFileBlob bool
	// ReplaceExisting tells the embedding sink to replace all records for
	// the workbook rather than accumulate; it also disables the
	// changed-chunks-only filter.
	ReplaceExisting bool

	Progress ProgressFunc
}

// ExtractResult is the outcome of an extraction: the chunk set and its
// renderings, and whether they were served from cache.
type ExtractResult struct {
	Chunks    []Chunk
	Texts     []string
	Markdown  []string
	Stats     CompressionStats
	FromCache bool
	Version   *Version
}

// Extract runs the full pipeline for a workbook file. On a cache hit the
// stored chunk set and renderings are returned without touching the file
// beyond an existence check; otherwise a new version is created.
func (s *Service) Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	canonical, live, err := s.resolvePaths(ctx, req.Path)
	if err != nil {
		return nil, err
	}

	s.deps.Locks.RLock(canonical)
	defer s.deps.Locks.RUnlock(canonical)

	return s.extractLocked(ctx, canonical, live, req, "")
}

// Snapshot creates a new version capturing the file's current state with an
// explicit change description. Used after accepting edits. Always bypasses
// the cache.
func (s *Service) Snapshot(ctx context.Context, canonicalPath, changeDescription string) (*Version, error) {
	live, err := s.deps.Store.SessionPathFor(ctx, canonicalPath)
	if err != nil {
		return nil, fmt.Errorf("resolving session path: %w", err)
	}

	s.deps.Locks.RLock(canonicalPath)
	defer s.deps.Locks.RUnlock(canonicalPath)

	res, err := s.extractLocked(ctx, canonicalPath, live, ExtractRequest{ForceRefresh: true}, changeDescription)
	if err != nil {
		return nil, err
	}
	return res.Version, nil
}

// extractLocked is the pipeline body. The caller holds the shared path scope
// for canonical. descriptionOverride, when non-empty, replaces the diff-based
// change description.
func (s *Service) extractLocked(ctx context.Context, canonical, live string, req ExtractRequest, descriptionOverride string) (*ExtractResult, error) {
	progress := req.Progress
	if progress == nil {
		progress = func(string, string, int) {}
	}

	progress("cache", "checking cached metadata", 5)
	cached, err := s.cache.Check(ctx, canonical, live, req.ForceRefresh)
	if err != nil {
		return nil, err
	}
	if cached.Hit {
		renderings, err := s.deps.Store.GetChunkRenderings(ctx, cached.Version.ID)
		if err != nil {
			return nil, fmt.Errorf("loading cached renderings: %w", err)
		}
		texts := make([]string, len(renderings))
		markdown := make([]string, len(renderings))
		for i, r := range renderings {
			texts[i] = r.Text
			markdown[i] = r.Markdown
		}
		s.deps.Logger.Info("extraction served from cache", "path", canonical, "version", cached.Version.VersionNumber)
		progress("done", "served from cache", 100)
		return &ExtractResult{
			Chunks:    cached.Chunks,
			Texts:     texts,
			Markdown:  markdown,
			Stats:     statsFor(texts, markdown),
			FromCache: true,
			Version:   cached.Version,
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress("read", "reading sheets", 15)
	sheets, err := s.deps.Office.SheetNames(live)
	if err != nil {
		return nil, fmt.Errorf("listing sheets: %w", err)
	}

	opts := PartitionOptions{
		RowsPerChunk:       req.RowsPerChunk,
		MaxColsPerSheet:    req.MaxColsPerSheet,
		IncludeEmptyChunks: req.IncludeEmptyChunks,
	}
	var chunks []Chunk
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := s.deps.Office.ReadSheet(live, sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
		}
		sheetChunks, err := s.deps.Partitioner.Partition(sheet, rows, opts)
		if err != nil {
			return nil, fmt.Errorf("partitioning sheet %q: %w", sheet, err)
		}
		chunks = append(chunks, sheetChunks...)
	}

	progress("compress", fmt.Sprintf("compressing %d chunks", len(chunks)), 45)
	texts, markdown, stats, err := s.deps.Compressor.Compress(chunks, CompressionLimits{
		MaxCellsPerChunk: req.MaxCellsPerChunk,
		MaxCellLength:    req.MaxCellLength,
	})
	if err != nil {
		return nil, fmt.Errorf("compressing chunks: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress("persist", "persisting version", 65)
	wb, err := s.deps.Store.CreateOrUpdateWorkbook(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("creating workbook record: %w", err)
	}

	prev, err := s.deps.Store.LatestVersion(ctx, wb.ID)
	if err != nil {
		return nil, fmt.Errorf("looking up previous version: %w", err)
	}

	description := descriptionOverride
	var prevHashes map[string]bool
	if prev != nil {
		prevRenderings, err := s.deps.Store.GetChunkRenderings(ctx, prev.ID)
		if err != nil {
			return nil, fmt.Errorf("loading previous renderings: %w", err)
		}
		prevHashes = make(map[string]bool, len(prevRenderings))
		var prevTexts []string
		for _, r := range prevRenderings {
			prevHashes[r.ContentHash] = true
			prevTexts = append(prevTexts, r.Text)
		}
		if description == "" {
			description = s.deps.Describer.Describe(strings.Join(prevTexts, "\n"), strings.Join(texts, "\n"))
		}
	} else if description == "" {
		description = s.deps.Describer.Describe("", strings.Join(texts, "\n"))
	}

	var checksum string
	if req.StoreFileBlob || descriptionOverride != "" {
		checksum, err = s.captureBlob(live)
		if err != nil {
			return nil, err
		}
	}

	version, err := s.deps.Store.CreateVersion(ctx, wb.ID, description, chunks, texts, markdown, checksum)
	if err != nil {
		return nil, fmt.Errorf("creating version: %w", err)
	}
	s.deps.Logger.Info("version created",
		"path", canonical, "version", version.VersionNumber, "chunks", len(chunks))

	progress("embed", "handing off embeddings", 85)
	s.handOffEmbeddings(ctx, wb.ID, version.ID, chunks, texts, markdown, prevHashes, req.ReplaceExisting)

	progress("done", "extraction complete", 100)
	return &ExtractResult{
		Chunks:   chunks,
		Texts:    texts,
		Markdown: markdown,
		Stats:    stats,
		Version:  version,
	}, nil
}

// captureBlob reads the file, checksums the plaintext, encrypts when an
// encryptor is configured, and stores the result in the vault. The checksum
// always identifies the plaintext so dedup works across key rotations.
func (s *Service) captureBlob(live string) (string, error) {
	data, err := s.deps.Office.FileBytes(live)
	if err != nil {
		return "", fmt.Errorf("reading file for blob capture: %w", err)
	}
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	payload := data
	if s.deps.Encryptor != nil && s.deps.Encryptor.IsConfigured() {
		var buf bytes.Buffer
		if err := s.deps.Encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return "", fmt.Errorf("encrypting file blob: %w", err)
		}
		payload = buf.Bytes()
	}
	if err := s.deps.Vault.PutContent(checksum, bytes.NewReader(payload), int64(len(payload))); err != nil {
		return "", fmt.Errorf("%w: storing file blob: %v", ErrStorageWrite, err)
	}
	return checksum, nil
}

// handOffEmbeddings sends chunk renderings to the embedding sink. Unless the
// caller asked for a full replace, only chunks whose content hash changed
// since the previous version are sent. Sink failures are logged, not fatal:
// the version is already committed and embeddings can be rebuilt.
func (s *Service) handOffEmbeddings(ctx context.Context, workbookID, versionID string, chunks []Chunk, texts, markdown []string, prevHashes map[string]bool, replaceExisting bool) {
	if s.deps.Embeddings == nil {
		return
	}
	var records []EmbeddingRecord
	for i, chunk := range chunks {
		if !replaceExisting && prevHashes[chunk.ContentHash] {
			continue
		}
		records = append(records, EmbeddingRecord{
			WorkbookID:  workbookID,
			VersionID:   versionID,
			ChunkID:     chunk.ID,
			ContentHash: chunk.ContentHash,
			Text:        texts[i],
			Markdown:    markdown[i],
		})
	}
	if len(records) == 0 && !replaceExisting {
		return
	}
	if err := s.deps.Embeddings.StoreEmbeddings(ctx, records, replaceExisting); err != nil {
		s.deps.Logger.Warn("embedding hand-off failed, version is committed",
			"version", versionID, "records", len(records), "error", err)
	}
}

// ListVersions returns a workbook's version history, oldest first.
// Returns ErrNoVersion if the path has never been extracted.
func (s *Service) ListVersions(ctx context.Context, path string) ([]*Version, error) {
	canonical, _, err := s.resolvePaths(ctx, path)
	if err != nil {
		return nil, err
	}
	wb, err := s.deps.Store.FindWorkbookByPath(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if wb == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoVersion, canonical)
	}
	return s.deps.Store.ListVersions(ctx, wb.ID)
}

// PendingEdits returns edits proposed against the workbook's latest version,
// optionally filtered by sheet and status.
func (s *Service) PendingEdits(ctx context.Context, path, sheetName string, status EditStatus) ([]*PendingEdit, error) {
	canonical, _, err := s.resolvePaths(ctx, path)
	if err != nil {
		return nil, err
	}
	wb, err := s.deps.Store.FindWorkbookByPath(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if wb == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoVersion, canonical)
	}
	latest, err := s.deps.Store.LatestVersion(ctx, wb.ID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoVersion, canonical)
	}
	return s.deps.Store.PendingEditsForVersion(ctx, latest.ID, sheetName, status)
}

// DownloadVersion writes a version's captured file blob to w, decrypting
// with dctx when the blob was stored encrypted (dctx may be nil for
// unencrypted vaults). Returns ErrVersionNotFound for unknown IDs and an
// error when the version has no blob.
func (s *Service) DownloadVersion(ctx context.Context, versionID string, w io.Writer, dctx DecryptionContext) error {
	version, err := s.deps.Store.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if version == nil {
		return fmt.Errorf("%w: %s", ErrVersionNotFound, versionID)
	}
	if version.FileChecksum == "" {
		return fmt.Errorf("version %s has no captured file blob", versionID)
	}
	if dctx == nil {
		return s.deps.Vault.GetContent(version.FileChecksum, w)
	}
	var buf bytes.Buffer
	if err := s.deps.Vault.GetContent(version.FileChecksum, &buf); err != nil {
		return err
	}
	return dctx.Decrypt(&buf, w)
}

// StartEditingSession maps a temporary session path to the workbook's
// canonical path, so edits and snapshots during the session read and write
// the live temp file while identity stays on the canonical path.
func (s *Service) StartEditingSession(ctx context.Context, sessionPath, canonicalPath string) error {
	session, err := NormalizePath(sessionPath)
	if err != nil {
		return err
	}
	canonical, err := NormalizePath(canonicalPath)
	if err != nil {
		return err
	}
	return s.deps.Store.AddPathAlias(ctx, session, canonical)
}

// EndEditingSession removes a session path mapping.
func (s *Service) EndEditingSession(ctx context.Context, sessionPath string) error {
	session, err := NormalizePath(sessionPath)
	if err != nil {
		return err
	}
	return s.deps.Store.RemovePathAlias(ctx, session)
}

// ProposeEdit delegates to the edit manager.
func (s *Service) ProposeEdit(ctx context.Context, req ProposeRequest) (*PendingEdit, error) {
	return s.edits.ProposeEdit(ctx, req)
}

// AcceptEdits delegates to the edit manager.
func (s *Service) AcceptEdits(ctx context.Context, editIDs []string, createNewVersion bool) (*AcceptResult, error) {
	return s.edits.AcceptEdits(ctx, editIDs, createNewVersion)
}

// RejectEdits delegates to the edit manager.
func (s *Service) RejectEdits(ctx context.Context, editIDs []string) (*RejectResult, error) {
	return s.edits.RejectEdits(ctx, editIDs)
}

func (s *Service) resolvePaths(ctx context.Context, raw string) (canonical, live string, err error) {
	normalized, err := NormalizePath(raw)
	if err != nil {
		return "", "", err
	}
	canonical, err = s.deps.Store.ResolveAlias(ctx, normalized)
	if err != nil {
		return "", "", fmt.Errorf("resolving canonical path: %w", err)
	}
	live, err = s.deps.Store.SessionPathFor(ctx, canonical)
	if err != nil {
		return "", "", fmt.Errorf("resolving session path: %w", err)
	}
	return canonical, live, nil
}

// statsFor recomputes compression statistics from stored renderings, counting
// both text and markdown so cache hits report the same totals as fresh passes.
func statsFor(texts, markdown []string) CompressionStats {
	var stats CompressionStats
	for i := range texts {
		stats.TotalCharacters += len(texts[i]) + len(markdown[i])
	}
	if len(texts) > 0 {
		stats.AverageCharactersPerChunk = float64(stats.TotalCharacters) / float64(len(texts))
	}
	return stats
}
