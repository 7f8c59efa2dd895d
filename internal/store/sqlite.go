package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"gridvault/internal/core"
	"gridvault/internal/store/migrations"
)

// SQLiteStore implements core.Store using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	clock core.Clock
	idgen core.IDGenerator
}

// NewSQLiteStore creates a new SQLite store.
// path can be a file path or ":memory:" for an in-memory database.
// clock and idgen may be nil, in which case real implementations are used.
func NewSQLiteStore(path string, clock core.Clock, idgen core.IDGenerator) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStoreFromDB(db, clock, idgen), nil
}

// NewSQLiteStoreFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sql.DB, clock core.Clock, idgen core.IDGenerator) *SQLiteStore {
	if clock == nil {
		clock = core.RealClock{}
	}
	if idgen == nil {
		idgen = core.UUIDGenerator{}
	}
	return &SQLiteStore{db: db, clock: clock, idgen: idgen}
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tools and tests that need a properly configured
// connection. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Foreign keys are OFF by default in SQLite for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Workbook operations

func (s *SQLiteStore) CreateOrUpdateWorkbook(ctx context.Context, canonicalPath string) (*core.Workbook, error) {
	existing, err := s.FindWorkbookByPath(ctx, canonicalPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	wb := &core.Workbook{
		ID:            s.idgen.New(),
		CanonicalPath: canonicalPath,
		CreatedAt:     s.clock.Now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workbooks (id, canonical_path, created_at) VALUES (?, ?, ?)`,
		wb.ID, wb.CanonicalPath, wb.CreatedAt)
	if err != nil {
		// A concurrent creator may have won the unique-path race; fall back
		// to the row it created.
		if isConstraintErr(err) {
			return s.FindWorkbookByPath(ctx, canonicalPath)
		}
		return nil, fmt.Errorf("creating workbook: %w", err)
	}
	return wb, nil
}

func (s *SQLiteStore) FindWorkbookByPath(ctx context.Context, canonicalPath string) (*core.Workbook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, canonical_path, created_at FROM workbooks WHERE canonical_path = ?`, canonicalPath)
	return scanWorkbook(row)
}

func (s *SQLiteStore) GetWorkbook(ctx context.Context, workbookID string) (*core.Workbook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, canonical_path, created_at FROM workbooks WHERE id = ?`, workbookID)
	return scanWorkbook(row)
}

func scanWorkbook(row *sql.Row) (*core.Workbook, error) {
	var wb core.Workbook
	err := row.Scan(&wb.ID, &wb.CanonicalPath, &wb.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding workbook: %w", err)
	}
	return &wb, nil
}

// Version operations

// CreateVersion appends a new version in a single transaction:
//  1. Claims the next version_number for the workbook.
//  2. Inserts the version row (the unique (workbook_id, version_number)
//     index turns concurrent racers into ErrConcurrentWrite).
//  3. Inserts content-addressed chunk contents, deduplicating by hash.
//  4. Inserts the ordered version_chunks join rows.
//
// If anything fails the transaction rolls back; readers never observe a
// version with a partial chunk set.
func (s *SQLiteStore) CreateVersion(ctx context.Context, workbookID, changeDescription string, chunks []core.Chunk, texts, markdown []string, fileChecksum string) (*core.Version, error) {
	if len(texts) != len(chunks) || len(markdown) != len(chunks) {
		return nil, fmt.Errorf("chunk renderings mismatch: %d chunks, %d texts, %d markdown",
			len(chunks), len(texts), len(markdown))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: starting transaction: %v", core.ErrStorageWrite, err)
	}
	defer tx.Rollback()

	var next int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version_number), 0) + 1 FROM versions WHERE workbook_id = ?`,
		workbookID).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("%w: assigning version number: %v", core.ErrStorageWrite, err)
	}

	version := &core.Version{
		ID:                s.idgen.New(),
		WorkbookID:        workbookID,
		VersionNumber:     next,
		ChangeDescription: changeDescription,
		FileChecksum:      fileChecksum,
		CreatedAt:         s.clock.Now(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO versions (id, workbook_id, version_number, change_description, file_checksum, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		version.ID, version.WorkbookID, version.VersionNumber,
		version.ChangeDescription, version.FileChecksum, version.CreatedAt)
	if err != nil {
		if isConstraintErr(err) {
			return nil, fmt.Errorf("%w: version %d for workbook %s already claimed",
				core.ErrConcurrentWrite, next, workbookID)
		}
		return nil, fmt.Errorf("%w: inserting version: %v", core.ErrStorageWrite, err)
	}

	now := s.clock.Now()
	for i, chunk := range chunks {
		cellData, err := json.Marshal(chunk.Rows)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding chunk %s: %v", core.ErrStorageWrite, chunk.ID, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO chunk_contents (hash, cell_data, text, markdown, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			chunk.ContentHash, string(cellData), texts[i], markdown[i], now)
		if err != nil {
			return nil, fmt.Errorf("%w: inserting chunk content %s: %v", core.ErrStorageWrite, chunk.ID, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO version_chunks (version_id, position, chunk_id, sheet_name, start_row, end_row, row_count, content_hash)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			version.ID, i, chunk.ID, chunk.SheetName, chunk.StartRow, chunk.EndRow, chunk.RowCount, chunk.ContentHash)
		if err != nil {
			return nil, fmt.Errorf("%w: inserting version chunk %s: %v", core.ErrStorageWrite, chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing version: %v", core.ErrStorageWrite, err)
	}

	return version, nil
}

func (s *SQLiteStore) LatestVersion(ctx context.Context, workbookID string) (*core.Version, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workbook_id, version_number, change_description, file_checksum, created_at
		 FROM versions WHERE workbook_id = ? ORDER BY version_number DESC LIMIT 1`, workbookID)
	return scanVersion(row)
}

func (s *SQLiteStore) GetVersion(ctx context.Context, versionID string) (*core.Version, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workbook_id, version_number, change_description, file_checksum, created_at
		 FROM versions WHERE id = ?`, versionID)
	return scanVersion(row)
}

func scanVersion(row *sql.Row) (*core.Version, error) {
	var v core.Version
	err := row.Scan(&v.ID, &v.WorkbookID, &v.VersionNumber, &v.ChangeDescription, &v.FileChecksum, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding version: %w", err)
	}
	return &v, nil
}

func (s *SQLiteStore) ListVersions(ctx context.Context, workbookID string) ([]*core.Version, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workbook_id, version_number, change_description, file_checksum, created_at
		 FROM versions WHERE workbook_id = ? ORDER BY version_number ASC`, workbookID)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	var versions []*core.Version
	for rows.Next() {
		var v core.Version
		if err := rows.Scan(&v.ID, &v.WorkbookID, &v.VersionNumber, &v.ChangeDescription, &v.FileChecksum, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

func (s *SQLiteStore) GetAllChunks(ctx context.Context, versionID string) ([]core.Chunk, error) {
	if err := s.requireVersion(ctx, versionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT vc.chunk_id, vc.sheet_name, vc.start_row, vc.end_row, vc.row_count, vc.content_hash, cc.cell_data
		 FROM version_chunks vc
		 JOIN chunk_contents cc ON cc.hash = vc.content_hash
		 WHERE vc.version_id = ? ORDER BY vc.position ASC`, versionID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	defer rows.Close()

	var chunks []core.Chunk
	for rows.Next() {
		var chunk core.Chunk
		var cellData string
		if err := rows.Scan(&chunk.ID, &chunk.SheetName, &chunk.StartRow, &chunk.EndRow, &chunk.RowCount, &chunk.ContentHash, &cellData); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(cellData), &chunk.Rows); err != nil {
			return nil, fmt.Errorf("decoding chunk %s cell data: %w", chunk.ID, err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStore) GetChunkRenderings(ctx context.Context, versionID string) ([]core.ChunkRendering, error) {
	if err := s.requireVersion(ctx, versionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT vc.chunk_id, vc.content_hash, cc.text, cc.markdown
		 FROM version_chunks vc
		 JOIN chunk_contents cc ON cc.hash = vc.content_hash
		 WHERE vc.version_id = ? ORDER BY vc.position ASC`, versionID)
	if err != nil {
		return nil, fmt.Errorf("loading chunk renderings: %w", err)
	}
	defer rows.Close()

	var renderings []core.ChunkRendering
	for rows.Next() {
		var r core.ChunkRendering
		if err := rows.Scan(&r.ChunkID, &r.ContentHash, &r.Text, &r.Markdown); err != nil {
			return nil, fmt.Errorf("scanning chunk rendering: %w", err)
		}
		renderings = append(renderings, r)
	}
	return renderings, rows.Err()
}

func (s *SQLiteStore) requireVersion(ctx context.Context, versionID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM versions WHERE id = ?`, versionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", core.ErrVersionNotFound, versionID)
	}
	if err != nil {
		return fmt.Errorf("checking version: %w", err)
	}
	return nil
}

// Pending edit operations

func (s *SQLiteStore) CreatePendingEdit(ctx context.Context, edit *core.PendingEdit) error {
	cellData, err := json.Marshal(edit.CellData)
	if err != nil {
		return fmt.Errorf("encoding cell data: %w", err)
	}
	originalState, err := json.Marshal(edit.OriginalState)
	if err != nil {
		return fmt.Errorf("encoding original state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_edits (id, version_id, workbook_id, sheet_name, cell_address, cell_data, original_state, intended_fill_color, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		edit.ID, edit.VersionID, edit.WorkbookID, edit.SheetName, edit.CellAddress,
		string(cellData), string(originalState), edit.IntendedFillColor, string(edit.Status), edit.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating pending edit: %w", err)
	}
	return nil
}

const pendingEditColumns = `id, version_id, workbook_id, sheet_name, cell_address, cell_data, original_state, intended_fill_color, status, created_at, resolved_at`

func (s *SQLiteStore) GetPendingEdit(ctx context.Context, editID string) (*core.PendingEdit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pendingEditColumns+` FROM pending_edits WHERE id = ?`, editID)
	if err != nil {
		return nil, fmt.Errorf("finding pending edit: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err() // Not found
	}
	return scanPendingEdit(rows)
}

func (s *SQLiteStore) PendingEditsForVersion(ctx context.Context, versionID, sheetName string, status core.EditStatus) ([]*core.PendingEdit, error) {
	query := `SELECT ` + pendingEditColumns + ` FROM pending_edits WHERE version_id = ?`
	args := []any{versionID}
	if sheetName != "" {
		query += ` AND sheet_name = ?`
		args = append(args, sheetName)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pending edits: %w", err)
	}
	defer rows.Close()

	var edits []*core.PendingEdit
	for rows.Next() {
		edit, err := scanPendingEdit(rows)
		if err != nil {
			return nil, err
		}
		edits = append(edits, edit)
	}
	return edits, rows.Err()
}

func (s *SQLiteStore) EarliestPendingEditForCell(ctx context.Context, workbookID, sheetName, cellAddress string) (*core.PendingEdit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pendingEditColumns+` FROM pending_edits
		 WHERE workbook_id = ? AND sheet_name = ? AND cell_address = ? AND status = 'pending'
		 ORDER BY created_at ASC, id ASC LIMIT 1`,
		workbookID, sheetName, cellAddress)
	if err != nil {
		return nil, fmt.Errorf("finding earliest pending edit: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err() // Not found
	}
	return scanPendingEdit(rows)
}

func scanPendingEdit(rows *sql.Rows) (*core.PendingEdit, error) {
	var edit core.PendingEdit
	var cellData, originalState, status string
	var resolvedAt sql.NullTime
	err := rows.Scan(&edit.ID, &edit.VersionID, &edit.WorkbookID, &edit.SheetName, &edit.CellAddress,
		&cellData, &originalState, &edit.IntendedFillColor, &status, &edit.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning pending edit: %w", err)
	}
	if err := json.Unmarshal([]byte(cellData), &edit.CellData); err != nil {
		return nil, fmt.Errorf("decoding cell data: %w", err)
	}
	if err := json.Unmarshal([]byte(originalState), &edit.OriginalState); err != nil {
		return nil, fmt.Errorf("decoding original state: %w", err)
	}
	edit.Status = core.EditStatus(status)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		edit.ResolvedAt = &t
	}
	return &edit, nil
}

// ResolvePendingEdit is a compare-and-set: the UPDATE only matches rows still
// in pending state, so a second accept/reject of the same ID reports false
// instead of double-committing.
func (s *SQLiteStore) ResolvePendingEdit(ctx context.Context, editID string, status core.EditStatus, resolvedAt time.Time) (bool, error) {
	if status != core.StatusAccepted && status != core.StatusRejected {
		return false, fmt.Errorf("invalid terminal status: %s", status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_edits SET status = ?, resolved_at = ? WHERE id = ? AND status = 'pending'`,
		string(status), resolvedAt, editID)
	if err != nil {
		return false, fmt.Errorf("resolving pending edit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking resolved rows: %w", err)
	}
	return n == 1, nil
}

// Path alias operations

func (s *SQLiteStore) AddPathAlias(ctx context.Context, sessionPath, canonicalPath string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO path_aliases (session_path, canonical_path) VALUES (?, ?)
		 ON CONFLICT(session_path) DO UPDATE SET canonical_path = excluded.canonical_path`,
		sessionPath, canonicalPath)
	if err != nil {
		return fmt.Errorf("adding path alias: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ResolveAlias(ctx context.Context, path string) (string, error) {
	var canonical string
	err := s.db.QueryRowContext(ctx,
		`SELECT canonical_path FROM path_aliases WHERE session_path = ?`, path).Scan(&canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return path, nil // No alias: the path is its own canonical
	}
	if err != nil {
		return "", fmt.Errorf("resolving path alias: %w", err)
	}
	return canonical, nil
}

func (s *SQLiteStore) SessionPathFor(ctx context.Context, canonicalPath string) (string, error) {
	var session string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_path FROM path_aliases WHERE canonical_path = ? LIMIT 1`, canonicalPath).Scan(&session)
	if errors.Is(err, sql.ErrNoRows) {
		return canonicalPath, nil // No active session: live file is the canonical path
	}
	if err != nil {
		return "", fmt.Errorf("finding session path: %w", err)
	}
	return session, nil
}

func (s *SQLiteStore) RemovePathAlias(ctx context.Context, sessionPath string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM path_aliases WHERE session_path = ?`, sessionPath)
	if err != nil {
		return fmt.Errorf("removing path alias: %w", err)
	}
	return nil
}

// Operation tracking

func (s *SQLiteStore) CreateOperation(ctx context.Context, operation, parameters string) (*core.Operation, error) {
	startedAt := s.clock.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (started_at, operation, parameters, status) VALUES (?, ?, ?, '')`,
		startedAt, operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting operation ID: %w", err)
	}
	return &core.Operation{ID: id, Operation: operation, Parameters: parameters, StartedAt: startedAt}, nil
}

func (s *SQLiteStore) FinishOperation(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE operations SET finished_at = ?, status = ? WHERE id = ?`,
		s.clock.Now(), status, id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListOperations(ctx context.Context, limit int) ([]*core.Operation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, operation, parameters, status
		 FROM operations ORDER BY id DESC LIMIT ?`, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*core.Operation
	for rows.Next() {
		var op core.Operation
		var finishedAt sql.NullTime
		if err := rows.Scan(&op.ID, &op.StartedAt, &finishedAt, &op.Operation, &op.Parameters, &op.Status); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			op.FinishedAt = &t
		}
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// Migrate brings the database schema to the latest version. Safe to call on
// a fresh database.
func (s *SQLiteStore) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// Compile-time check that SQLiteStore implements core.Store
var _ core.Store = (*SQLiteStore)(nil)
