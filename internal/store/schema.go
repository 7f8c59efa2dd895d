package store

// Schema is the complete current schema, kept in sync with the migration
// files. Tests apply it directly to in-memory databases instead of running
// the migration machinery.
const Schema = `
CREATE TABLE workbooks (
    id TEXT PRIMARY KEY,
    canonical_path TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE versions (
    id TEXT PRIMARY KEY,
    workbook_id TEXT NOT NULL REFERENCES workbooks(id),
    version_number INTEGER NOT NULL,
    change_description TEXT NOT NULL DEFAULT '',
    file_checksum TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    UNIQUE (workbook_id, version_number)
);

CREATE TABLE chunk_contents (
    hash TEXT PRIMARY KEY,
    cell_data TEXT NOT NULL,
    text TEXT NOT NULL,
    markdown TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE version_chunks (
    version_id TEXT NOT NULL REFERENCES versions(id),
    position INTEGER NOT NULL,
    chunk_id TEXT NOT NULL,
    sheet_name TEXT NOT NULL,
    start_row INTEGER NOT NULL,
    end_row INTEGER NOT NULL,
    row_count INTEGER NOT NULL,
    content_hash TEXT NOT NULL REFERENCES chunk_contents(hash),
    PRIMARY KEY (version_id, position)
);

CREATE TABLE pending_edits (
    id TEXT PRIMARY KEY,
    version_id TEXT NOT NULL REFERENCES versions(id),
    workbook_id TEXT NOT NULL REFERENCES workbooks(id),
    sheet_name TEXT NOT NULL,
    cell_address TEXT NOT NULL,
    cell_data TEXT NOT NULL,
    original_state TEXT NOT NULL,
    intended_fill_color TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP NOT NULL,
    resolved_at TIMESTAMP
);

CREATE INDEX idx_pending_edits_cell ON pending_edits(workbook_id, sheet_name, cell_address, status);
CREATE INDEX idx_pending_edits_version ON pending_edits(version_id, status);

CREATE TABLE path_aliases (
    session_path TEXT PRIMARY KEY,
    canonical_path TEXT NOT NULL
);

CREATE INDEX idx_path_aliases_canonical ON path_aliases(canonical_path);

CREATE TABLE operations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    operation TEXT NOT NULL,
    parameters TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT ''
);
`
