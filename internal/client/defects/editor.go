package defects

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sitebatch/maintenance/internal/models"
	"go.uber.org/zap"
)

// ErrSaveInProgress is returned when Save is called while a save is running.
var ErrSaveInProgress = errors.New("a save is already in progress")

// Rows is the row store half of the backend client.
type Rows interface {
	Select(ctx context.Context, table string, q models.Query, dest any) error
	Insert(ctx context.Context, table string, row, dest any) error
	Update(ctx context.Context, table, id string, patch any) error
}

// Users yields the signed-in user, or nil.
type Users interface {
	CurrentUser() *models.User
}

const (
	tableDefects  = "defects"
	tableActivity = "defect_activity"
)

// SavedMessage is the activity log text of a save with the given status.
func SavedMessage(s models.Status) string {
	return fmt.Sprintf("Status saved as %q", string(s))
}

// Editor edits one defect. Its methods are safe for concurrent use; only
// one save runs at a time and edits are rejected while it does.
type Editor struct {
	rows    Rows
	objects Objects
	users   Users
	log     *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	state State
}

// NewEditor returns an editor showing d as handed over by the list.
func NewEditor(d models.Defect, rows Rows, objects Objects, users Users, log *zap.Logger) *Editor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Editor{
		rows:    rows,
		objects: objects,
		users:   users,
		log:     log,
		now:     time.Now,
		state:   NewState(d),
	}
}

// State returns a copy of the current state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state
	s.StagedRepairPhotos = slices.Clone(s.StagedRepairPhotos)
	return s
}

// Dispatch applies a user action to the state. While a save is in flight
// only Loaded is accepted; edits return ErrSaveInProgress.
func (e *Editor) Dispatch(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, loaded := ev.(Loaded); e.state.Loading && !loaded {
		return ErrSaveInProgress
	}
	s, err := Reduce(e.state, ev)
	if err != nil {
		return err
	}
	e.state = s
	return nil
}

// Open re-reads the defect so the editor starts from the current record
// rather than the list payload.
func (e *Editor) Open(ctx context.Context) error {
	d, err := e.fetch(ctx)
	if err != nil {
		return err
	}
	return e.Dispatch(Loaded{Defect: *d})
}

func (e *Editor) fetch(ctx context.Context) (*models.Defect, error) {
	id := e.State().Defect.ID
	var rows []models.Defect
	err := e.rows.Select(ctx, tableDefects, models.Query{
		Filters: []models.Filter{{Column: "id", Value: id}},
		Limit:   1,
	}, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("defect %s: %w", id, models.ErrNotFound)
	}
	return &rows[0], nil
}

// Save stores the local edits. Staged repair photos are uploaded first,
// then the defect is updated, then one activity entry is appended and the
// record is read back. Saving as Completed locks the defect. When the
// update fails the local edits are kept and nothing is logged.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.state.Loading {
		e.mu.Unlock()
		return ErrSaveInProgress
	}
	e.state.Loading = true
	snap := e.state
	snap.StagedRepairPhotos = slices.Clone(snap.StagedRepairPhotos)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.state.Loading = false
		e.mu.Unlock()
	}()

	id := snap.Defect.ID
	finalLocked := snap.Locked || snap.Status == models.StatusCompleted

	var uploaded []string
	if len(snap.StagedRepairPhotos) > 0 {
		names := RepairObjectNames(id, e.now(), snap.StagedRepairPhotos)
		results := UploadBatch(ctx, e.objects, models.RepairPhotosBucket, names, snap.StagedRepairPhotos)
		for _, r := range results {
			if !r.OK() {
				e.log.Warn("repair photo skipped", zap.String("defect", id), zap.Int("index", r.Index), zap.Error(r.Err))
			}
		}
		uploaded = SucceededURLs(results)
	}

	status := snap.Status
	actions := snap.ActionsTaken
	company := snap.RepairCompany
	patch := models.DefectPatch{
		Status:        &status,
		ActionsTaken:  &actions,
		RepairCompany: &company,
		Locked:        &finalLocked,
	}
	if len(uploaded) > 0 {
		patch.RepairPhotos = &uploaded
	}
	if err := e.rows.Update(ctx, tableDefects, id, patch); err != nil {
		return fmt.Errorf("update defect: %w", err)
	}

	e.mu.Lock()
	e.state.Locked = finalLocked
	e.mu.Unlock()

	e.logActivity(ctx, id, SavedMessage(status), finalLocked)

	d, err := e.fetch(ctx)
	if err != nil {
		// The save went through; show what was written.
		e.log.Warn("reload after save failed", zap.String("defect", id), zap.Error(err))
		saved := snap.Defect
		saved.Status = status
		saved.Locked = finalLocked
		saved.ActionsTaken = actions
		saved.RepairCompany = company
		if len(uploaded) > 0 {
			saved.RepairPhotos = uploaded
		}
		d = &saved
	}
	return e.Dispatch(Loaded{Defect: *d})
}

// logActivity appends the audit entry of a save. A failure is logged and
// does not fail the save.
func (e *Editor) logActivity(ctx context.Context, defectID, message string, locked bool) {
	entry := models.ActivityEntry{
		DefectID: defectID,
		Message:  message,
		Locked:   locked,
	}
	if u := e.users.CurrentUser(); u != nil {
		entry.PerformedBy = u.Email
		entry.SubmittedBy = u.Email
	}
	if err := e.rows.Insert(ctx, tableActivity, entry, nil); err != nil {
		e.log.Warn("activity log failed", zap.String("defect", defectID), zap.Error(err))
	}
}

// Activity returns the activity log of the defect, newest first.
func (e *Editor) Activity(ctx context.Context) ([]models.ActivityEntry, error) {
	var entries []models.ActivityEntry
	err := e.rows.Select(ctx, tableActivity, models.Query{
		Filters: []models.Filter{{Column: "defect_id", Value: e.State().Defect.ID}},
		Order:   &models.Order{Column: "created_at"},
	}, &entries)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
