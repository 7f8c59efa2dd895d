package core

import (
	"context"
	"fmt"
	"strings"
)

// DefaultPendingFill is the fill color applied to a cell while its edit is
// pending, so a human reviewer can see what changed. Light yellow.
const DefaultPendingFill = "FFF2CC"

// Snapshotter creates a new version capturing a workbook's current state.
// Implemented by Service; injected so the edit manager can trigger snapshots
// after accepts without owning the extraction pipeline.
type Snapshotter interface {
	Snapshot(ctx context.Context, canonicalPath, changeDescription string) (*Version, error)
}

// PendingEditManager runs the two-phase commit protocol for cell-level
// edits: propose applies the new data to the live file and records a pending
// edit; accept/reject move it to a terminal state, clearing the visual
// marker or rolling the cell back.
//
// The manager is the sole writer to the live file during the cycle; it takes
// the exclusive path scope for every propose/accept/reject so extraction
// never observes a half-written cell.
type PendingEditManager struct {
	store       Store
	office      Office
	locks       *PathLocks
	snapshotter Snapshotter
	logger      Logger
	clock       Clock
	idgen       IDGenerator
}

// NewPendingEditManager creates a manager. snapshotter may be nil, in which
// case accepts never create versions regardless of the request.
func NewPendingEditManager(store Store, office Office, locks *PathLocks, snapshotter Snapshotter, logger Logger, clock Clock, idgen IDGenerator) *PendingEditManager {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &PendingEditManager{
		store:       store,
		office:      office,
		locks:       locks,
		snapshotter: snapshotter,
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
	}
}

// SetSnapshotter wires the snapshotter after construction. Breaks the
// construction cycle between the manager and the service that owns it.
func (m *PendingEditManager) SetSnapshotter(s Snapshotter) { m.snapshotter = s }

// ProposeRequest describes a single-cell edit proposal.
type ProposeRequest struct {
	Path        string
	SheetName   string
	CellAddress string
	NewState    CellState
	// FillColor marks the cell while pending. Empty uses DefaultPendingFill.
	FillColor string
}

// ProposeEdit captures the cell's current state, applies the new data to the
// live file with the pending fill marker, and records a pending edit against
// the workbook's latest version.
//
// Proposing a second edit to a cell that already has a pending edit is
// permitted; the earliest original state is preserved across the chain so a
// later rejection restores the true pre-edit value.
func (m *PendingEditManager) ProposeEdit(ctx context.Context, req ProposeRequest) (*PendingEdit, error) {
	canonical, live, err := m.resolvePaths(ctx, req.Path)
	if err != nil {
		return nil, err
	}

	m.locks.Lock(canonical)
	defer m.locks.Unlock(canonical)

	wb, err := m.store.FindWorkbookByPath(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("looking up workbook: %w", err)
	}
	if wb == nil {
		return nil, fmt.Errorf("%w: %s (extract it first)", ErrNoVersion, canonical)
	}
	latest, err := m.store.LatestVersion(ctx, wb.ID)
	if err != nil {
		return nil, fmt.Errorf("looking up latest version: %w", err)
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: %s (extract it first)", ErrNoVersion, canonical)
	}

	if !m.office.Exists(live) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, live)
	}

	// The original state must be the true pre-edit state: if the cell
	// already has a pending edit, reuse its captured original instead of
	// reading the intermediate pending value from the file.
	var original CellState
	earliest, err := m.store.EarliestPendingEditForCell(ctx, wb.ID, req.SheetName, req.CellAddress)
	if err != nil {
		return nil, fmt.Errorf("checking for chained edits: %w", err)
	}
	if earliest != nil {
		original = earliest.OriginalState
	} else {
		original, err = m.office.ReadCell(live, req.SheetName, req.CellAddress)
		if err != nil {
			return nil, fmt.Errorf("reading cell %s!%s: %w", req.SheetName, req.CellAddress, err)
		}
	}

	fill := req.FillColor
	if fill == "" {
		fill = DefaultPendingFill
	}

	applied := CellState{Value: req.NewState.Value, Formula: req.NewState.Formula, FillColor: fill}
	if err := m.office.WriteCell(live, req.SheetName, req.CellAddress, applied); err != nil {
		return nil, fmt.Errorf("applying edit to %s!%s: %w", req.SheetName, req.CellAddress, err)
	}

	edit := &PendingEdit{
		ID:                m.idgen.New(),
		VersionID:         latest.ID,
		WorkbookID:        wb.ID,
		SheetName:         req.SheetName,
		CellAddress:       req.CellAddress,
		CellData:          req.NewState,
		OriginalState:     original,
		IntendedFillColor: fill,
		Status:            StatusPending,
		CreatedAt:         m.clock.Now(),
	}
	if err := m.store.CreatePendingEdit(ctx, edit); err != nil {
		// The file was already mutated; roll the cell back so a failed
		// proposal leaves no trace.
		if revertErr := m.office.RevertCell(live, req.SheetName, req.CellAddress, original); revertErr != nil {
			m.logger.Error("failed to roll back cell after store failure",
				"sheet", req.SheetName, "cell", req.CellAddress, "error", revertErr)
		}
		return nil, fmt.Errorf("recording pending edit: %w", err)
	}

	m.logger.Info("edit proposed", "edit", edit.ID, "sheet", req.SheetName, "cell", req.CellAddress)
	return edit, nil
}

// AcceptResult reports the outcome of a batch accept.
type AcceptResult struct {
	AcceptedCount int
	FailedIDs     []string
	// VersionIDs are the new snapshot versions created for the affected
	// workbooks, when requested.
	VersionIDs []string
	// Success is true only if every requested ID was accepted.
	Success bool
}

// AcceptEdits transitions each pending edit to accepted, clears its fill
// marker, and snapshots each affected workbook afterwards when
// createNewVersion is set. IDs that are unknown or already terminal are reported
// in FailedIDs rather than failing the batch; calling accept twice on the
// same ID does not double-commit.
func (m *PendingEditManager) AcceptEdits(ctx context.Context, editIDs []string, createNewVersion bool) (*AcceptResult, error) {
	res := &AcceptResult{}

	groups, failed, err := m.groupByWorkbook(ctx, editIDs)
	if err != nil {
		return nil, err
	}
	res.FailedIDs = failed

	for _, group := range groups {
		accepted := m.acceptGroup(ctx, group, res)
		if accepted > 0 && createNewVersion && m.snapshotter != nil {
			desc := fmt.Sprintf("accepted %d edit(s): %s", accepted, strings.Join(group.cellRefs(StatusAccepted), ", "))
			version, err := m.snapshotter.Snapshot(ctx, group.canonical, desc)
			if err != nil {
				m.logger.Error("snapshot after accept failed", "path", group.canonical, "error", err)
			} else {
				res.VersionIDs = append(res.VersionIDs, version.ID)
			}
		}
	}

	res.Success = len(res.FailedIDs) == 0 && res.AcceptedCount == len(editIDs)
	return res, nil
}

// acceptGroup processes one workbook's edits under the exclusive path scope.
// The lock is released before the caller snapshots, since extraction takes
// the shared scope on the same path.
func (m *PendingEditManager) acceptGroup(ctx context.Context, group *editGroup, res *AcceptResult) int {
	m.locks.Lock(group.canonical)
	defer m.locks.Unlock(group.canonical)

	accepted := 0
	for _, edit := range group.edits {
		// Keep the committed content but drop the pending marker, restoring
		// whatever fill the cell had before the edit chain started.
		cleared := CellState{
			Value:     edit.CellData.Value,
			Formula:   edit.CellData.Formula,
			FillColor: edit.OriginalState.FillColor,
		}
		if err := m.office.WriteCell(group.live, edit.SheetName, edit.CellAddress, cleared); err != nil {
			m.logger.Error("clearing pending marker failed", "edit", edit.ID, "error", err)
			res.FailedIDs = append(res.FailedIDs, edit.ID)
			continue
		}

		ok, err := m.store.ResolvePendingEdit(ctx, edit.ID, StatusAccepted, m.clock.Now())
		if err != nil {
			m.logger.Error("resolving edit failed", "edit", edit.ID, "error", err)
			res.FailedIDs = append(res.FailedIDs, edit.ID)
			continue
		}
		if !ok {
			res.FailedIDs = append(res.FailedIDs, edit.ID)
			continue
		}
		edit.Status = StatusAccepted
		accepted++
		res.AcceptedCount++
	}
	return accepted
}

// RejectResult reports the outcome of a batch reject.
type RejectResult struct {
	RejectedCount int
	FailedIDs     []string
	Success       bool
}

// RejectEdits restores each pending edit's original state to the live file
// (undoing both the value change and the marker) and transitions it to
// rejected. No new version is created. Partial-tolerance semantics match
// AcceptEdits.
func (m *PendingEditManager) RejectEdits(ctx context.Context, editIDs []string) (*RejectResult, error) {
	res := &RejectResult{}

	groups, failed, err := m.groupByWorkbook(ctx, editIDs)
	if err != nil {
		return nil, err
	}
	res.FailedIDs = failed

	for _, group := range groups {
		m.locks.Lock(group.canonical)
		for _, edit := range group.edits {
			if err := m.office.RevertCell(group.live, edit.SheetName, edit.CellAddress, edit.OriginalState); err != nil {
				m.logger.Error("reverting cell failed", "edit", edit.ID, "error", err)
				res.FailedIDs = append(res.FailedIDs, edit.ID)
				continue
			}
			ok, err := m.store.ResolvePendingEdit(ctx, edit.ID, StatusRejected, m.clock.Now())
			if err != nil {
				m.logger.Error("resolving edit failed", "edit", edit.ID, "error", err)
				res.FailedIDs = append(res.FailedIDs, edit.ID)
				continue
			}
			if !ok {
				res.FailedIDs = append(res.FailedIDs, edit.ID)
				continue
			}
			res.RejectedCount++
		}
		m.locks.Unlock(group.canonical)
	}

	res.Success = len(res.FailedIDs) == 0 && res.RejectedCount == len(editIDs)
	return res, nil
}

// editGroup collects one workbook's edits from a batch, with the resolved
// canonical and live paths.
type editGroup struct {
	canonical string
	live      string
	edits     []*PendingEdit
}

func (g *editGroup) cellRefs(status EditStatus) []string {
	var refs []string
	for _, e := range g.edits {
		if e.Status == status {
			refs = append(refs, e.SheetName+"!"+e.CellAddress)
		}
	}
	return refs
}

// groupByWorkbook loads the batch's edits and groups the still-pending ones
// by workbook. Unknown IDs and already-terminal edits go straight to failed.
func (m *PendingEditManager) groupByWorkbook(ctx context.Context, editIDs []string) ([]*editGroup, []string, error) {
	var failed []string
	byWorkbook := make(map[string]*editGroup)
	var order []string

	for _, id := range editIDs {
		edit, err := m.store.GetPendingEdit(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("loading edit %s: %w", id, err)
		}
		if edit == nil || edit.Status != StatusPending {
			failed = append(failed, id)
			continue
		}

		group, ok := byWorkbook[edit.WorkbookID]
		if !ok {
			wb, err := m.store.GetWorkbook(ctx, edit.WorkbookID)
			if err != nil {
				return nil, nil, fmt.Errorf("loading workbook %s: %w", edit.WorkbookID, err)
			}
			if wb == nil {
				failed = append(failed, id)
				continue
			}
			live, err := m.store.SessionPathFor(ctx, wb.CanonicalPath)
			if err != nil {
				return nil, nil, fmt.Errorf("resolving live path: %w", err)
			}
			group = &editGroup{canonical: wb.CanonicalPath, live: live}
			byWorkbook[edit.WorkbookID] = group
			order = append(order, edit.WorkbookID)
		}
		group.edits = append(group.edits, edit)
	}

	groups := make([]*editGroup, 0, len(order))
	for _, id := range order {
		groups = append(groups, byWorkbook[id])
	}
	return groups, failed, nil
}

// resolvePaths normalizes a raw path and applies the two-level lookup:
// canonical identity first, then the live session path shadowing it.
func (m *PendingEditManager) resolvePaths(ctx context.Context, raw string) (canonical, live string, err error) {
	normalized, err := NormalizePath(raw)
	if err != nil {
		return "", "", err
	}
	canonical, err = m.store.ResolveAlias(ctx, normalized)
	if err != nil {
		return "", "", fmt.Errorf("resolving canonical path: %w", err)
	}
	live, err = m.store.SessionPathFor(ctx, canonical)
	if err != nil {
		return "", "", fmt.Errorf("resolving session path: %w", err)
	}
	return canonical, live, nil
}
