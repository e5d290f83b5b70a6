package service

import (
	"cmp"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sitebatch/maintenance/internal/auth"
	"github.com/sitebatch/maintenance/internal/models"
	"go.uber.org/zap"
)

// DefectRepository defines the persistence operations needed by the DefectService.
type DefectRepository interface {
	List(ctx context.Context, q models.Query) ([]models.Defect, error)
	Insert(ctx context.Context, d *models.Defect) (*models.Defect, error)
	// Update applies a patch; a locked defect refuses status changes and unlocking.
	Update(ctx context.Context, id string, patch models.DefectPatch) (*models.Defect, error)
}

// ActivityRepository defines the persistence operations for the activity log.
type ActivityRepository interface {
	List(ctx context.Context, q models.Query) ([]models.ActivityEntry, error)
	Insert(ctx context.Context, e *models.ActivityEntry) (*models.ActivityEntry, error)
}

// DefectService implements the defect and activity row store.
type DefectService struct {
	defects  DefectRepository
	activity ActivityRepository
	log      *zap.Logger
	now      func() time.Time
}

// NewDefectService constructs a DefectService over the given repositories.
func NewDefectService(defects DefectRepository, activity ActivityRepository, log *zap.Logger) *DefectService {
	return &DefectService{defects: defects, activity: activity, log: log, now: time.Now}
}

// ListDefects returns the defects selected by q.
func (s *DefectService) ListDefects(ctx context.Context, q models.Query) ([]models.Defect, error) {
	return s.defects.List(ctx, q)
}

// CreateDefect validates nd and stores it as a new defect. A new defect is
// always Reported and unlocked, whatever status nd carries; the author
// fields default to the caller.
func (s *DefectService) CreateDefect(ctx context.Context, caller auth.Identity, nd models.NewDefect) (*models.Defect, error) {
	if strings.TrimSpace(nd.Asset) == "" || strings.TrimSpace(nd.Title) == "" || strings.TrimSpace(nd.Description) == "" {
		return nil, fmt.Errorf("%w: asset, title and description are required", models.ErrInvalidInput)
	}
	category, ok := models.ParseCategory(string(nd.Category))
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %q", models.ErrInvalidInput, nd.Category)
	}
	if nd.Priority < 1 || nd.Priority > 5 {
		return nil, fmt.Errorf("%w: priority must be between 1 and 5", models.ErrInvalidInput)
	}
	d := &models.Defect{
		ID:          uuid.NewString(),
		Asset:       nd.Asset,
		Title:       nd.Title,
		Description: nd.Description,
		Category:    category,
		Priority:    nd.Priority,
		Status:      models.StatusReported,
		PhotoURLs:   nd.PhotoURLs,
		SubmittedBy: cmp.Or(nd.SubmittedBy, caller.Email),
		CreatedBy:   cmp.Or(nd.CreatedBy, caller.UserID),
		CreatedAt:   s.now().UTC(),
	}
	out, err := s.defects.Insert(ctx, d)
	if err != nil {
		return nil, err
	}
	s.log.Info("defect created", zap.String("defect_id", out.ID), zap.String("asset", out.Asset))
	return out, nil
}

// UpdateDefect applies patch to the defect with the given id.
func (s *DefectService) UpdateDefect(ctx context.Context, id string, patch models.DefectPatch) (*models.Defect, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", models.ErrInvalidInput)
	}
	if patch.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", models.ErrInvalidInput)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, *patch.Status)
	}
	out, err := s.defects.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.log.Info("defect updated",
		zap.String("defect_id", out.ID),
		zap.String("status", string(out.Status)),
		zap.Bool("locked", out.Locked))
	return out, nil
}

// ListActivity returns the activity entries selected by q.
func (s *DefectService) ListActivity(ctx context.Context, q models.Query) ([]models.ActivityEntry, error) {
	return s.activity.List(ctx, q)
}

// AddActivity appends an entry to a defect's log. Missing author fields
// default to the caller's e-mail.
func (s *DefectService) AddActivity(ctx context.Context, caller auth.Identity, e models.ActivityEntry) (*models.ActivityEntry, error) {
	if e.DefectID == "" || strings.TrimSpace(e.Message) == "" {
		return nil, fmt.Errorf("%w: defect_id and message are required", models.ErrInvalidInput)
	}
	if _, err := uuid.Parse(e.DefectID); err != nil {
		return nil, fmt.Errorf("%w: defect_id %q is not a uuid", models.ErrInvalidInput, e.DefectID)
	}
	e.ID = uuid.NewString()
	e.PerformedBy = cmp.Or(e.PerformedBy, caller.Email)
	e.SubmittedBy = cmp.Or(e.SubmittedBy, caller.Email)
	e.CreatedAt = s.now().UTC()
	return s.activity.Insert(ctx, &e)
}
