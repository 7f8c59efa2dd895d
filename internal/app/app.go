package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gridvault/internal/compress"
	"gridvault/internal/config"
	"gridvault/internal/core"
	"gridvault/internal/diff"
	"gridvault/internal/encryption"
	"gridvault/internal/office"
	"gridvault/internal/partition"
	"gridvault/internal/store"
	"gridvault/internal/vault"
)

// App is the application layer between the CLI and the core Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the store lifecycle on Close.
type App struct {
	cfg       *config.Config
	store     core.Store
	vault     core.Vault
	encryptor core.Encryptor
	service   *core.Service
	op        *OperationRecord
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Extract", "AcceptEdits").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	v, err := vault.NewVaultFromConfig(cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	st, err := store.NewStoreFromConfig(cfg.Store, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	// File-backed stores are migrated in place; memory stores get the schema
	// applied at open and have nothing to migrate.
	if cfg.Store.Type == "sqlite" {
		sqliteStore, ok := st.(*store.SQLiteStore)
		if !ok {
			st.Close()
			return nil, fmt.Errorf("sqlite store has unexpected type %T", st)
		}
		if err := sqliteStore.Migrate(); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrating store schema: %w", err)
		}
		if err := sqliteStore.CheckMigrations(); err != nil {
			st.Close()
			return nil, fmt.Errorf("store schema out of date: %w", err)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := core.NewService(core.Deps{
		Store:       st,
		Office:      office.NewExcelizeOffice(),
		Vault:       v,
		Encryptor:   enc,
		Partitioner: partition.NewSheetPartitioner(),
		Compressor:  compress.NewChunkCompressor(),
		Describer:   diff.NewTextDescriber(),
		Logger:      &slogAdapter{l: logger},
	})

	return &App{
		cfg:       cfg,
		store:     st,
		vault:     v,
		encryptor: enc,
		service:   svc,
		op:        NewOperationRecord(operation, ""),
		logFile:   logFile,
	}, nil
}

// persistOperation saves the operation record to the store, giving it an
// auto-increment ID. Only store-mutating commands call this.
func (a *App) persistOperation() error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	rec, err := a.store.CreateOperation(context.Background(), a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = rec.ID
	return nil
}

// Extract runs the extraction pipeline on the given workbook path.
// Config-level extraction defaults apply unless overridden in the request.
func (a *App) Extract(rawPath string, forceRefresh, storeFileBlob, includeEmptyChunks bool, progress core.ProgressFunc) (*core.ExtractResult, error) {
	a.op.Parameters = rawPath
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	res, err := a.service.Extract(context.Background(), core.ExtractRequest{
		Path:               rawPath,
		RowsPerChunk:       a.cfg.Extraction.RowsPerChunk,
		MaxColsPerSheet:    a.cfg.Extraction.MaxColsPerSheet,
		MaxCellsPerChunk:   a.cfg.Extraction.MaxCellsPerChunk,
		MaxCellLength:      a.cfg.Extraction.MaxCellLength,
		ForceRefresh:       forceRefresh,
		StoreFileBlob:      storeFileBlob,
		IncludeEmptyChunks: includeEmptyChunks || a.cfg.Extraction.IncludeEmptyChunks,
		Progress:           progress,
	})
	if err != nil {
		a.op.Status = "error"
		return nil, err
	}
	return res, nil
}

// Versions returns the version history for a workbook path, oldest first.
func (a *App) Versions(rawPath string) ([]*core.Version, error) {
	return a.service.ListVersions(context.Background(), rawPath)
}

// PendingEdits returns edits proposed against the workbook's latest version.
func (a *App) PendingEdits(rawPath, sheetName string, status core.EditStatus) ([]*core.PendingEdit, error) {
	return a.service.PendingEdits(context.Background(), rawPath, sheetName, status)
}

// ProposeEdit applies a cell edit to the live file and records it as pending.
func (a *App) ProposeEdit(rawPath, sheetName, cellAddress, value, formula, fillColor string) (*core.PendingEdit, error) {
	a.op.Parameters = fmt.Sprintf("%s %s!%s", rawPath, sheetName, cellAddress)
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	edit, err := a.service.ProposeEdit(context.Background(), core.ProposeRequest{
		Path:        rawPath,
		SheetName:   sheetName,
		CellAddress: cellAddress,
		NewState:    core.CellState{Value: value, Formula: formula},
		FillColor:   fillColor,
	})
	if err != nil {
		a.op.Status = "error"
		return nil, err
	}
	return edit, nil
}

// AcceptEdits accepts a batch of pending edits, optionally snapshotting the
// affected workbooks as new versions.
func (a *App) AcceptEdits(editIDs []string, createNewVersion bool) (*core.AcceptResult, error) {
	a.op.Parameters = strings.Join(editIDs, " ")
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	res, err := a.service.AcceptEdits(context.Background(), editIDs, createNewVersion)
	if err != nil {
		a.op.Status = "error"
		return nil, err
	}
	if !res.Success {
		a.op.Status = "error"
	}
	return res, nil
}

// RejectEdits rejects a batch of pending edits, restoring their cells.
func (a *App) RejectEdits(editIDs []string) (*core.RejectResult, error) {
	a.op.Parameters = strings.Join(editIDs, " ")
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	res, err := a.service.RejectEdits(context.Background(), editIDs)
	if err != nil {
		a.op.Status = "error"
		return nil, err
	}
	if !res.Success {
		a.op.Status = "error"
	}
	return res, nil
}

// DownloadVersion writes a version's captured file blob to w. passphrase
// unlocks the decryption key; pass empty when blobs are stored unencrypted.
func (a *App) DownloadVersion(versionID string, w io.Writer, passphrase string) error {
	var dctx core.DecryptionContext
	if passphrase != "" {
		var err error
		dctx, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return fmt.Errorf("unlocking decryption key: %w", err)
		}
	}
	return a.service.DownloadVersion(context.Background(), versionID, w, dctx)
}

// StartEditingSession maps a session temp path to a canonical workbook path.
func (a *App) StartEditingSession(sessionPath, canonicalPath string) error {
	a.op.Parameters = sessionPath + " -> " + canonicalPath
	if err := a.persistOperation(); err != nil {
		return err
	}
	if err := a.service.StartEditingSession(context.Background(), sessionPath, canonicalPath); err != nil {
		a.op.Status = "error"
		return err
	}
	return nil
}

// EndEditingSession removes a session path mapping.
func (a *App) EndEditingSession(sessionPath string) error {
	a.op.Parameters = sessionPath
	if err := a.persistOperation(); err != nil {
		return err
	}
	if err := a.service.EndEditingSession(context.Background(), sessionPath); err != nil {
		a.op.Status = "error"
		return err
	}
	return nil
}

// History returns the most recent operations, newest first.
func (a *App) History(limit int) ([]*core.Operation, error) {
	return a.store.ListOperations(context.Background(), limit)
}

// SetupEncryption generates the age key pair protected by the passphrase.
func (a *App) SetupEncryption(passphrase string) error {
	return a.encryptor.Setup(passphrase)
}

// Close finalizes the operation record and closes all resources.
func (a *App) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.store.FinishOperation(context.Background(), a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.store.Close(); err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("closing store: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
