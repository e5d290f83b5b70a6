package defects

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sitebatch/maintenance/internal/models"
	"go.uber.org/zap"
)

// Assets is the fixed list of plant a defect can be reported on.
var Assets = []string{
	"BX22", "BX33", "BX64", "MM2", "MM3", "RMX1", "FOAM MIX PLANT", "TWIN SILO", "CEMENT TANKER",
}

// PriorityLevel describes one of the five priorities.
type PriorityLevel struct {
	Value    int
	Label    string
	Guidance string
	Color    string
}

// Priorities lists the priority levels, most severe first.
var Priorities = []PriorityLevel{
	{1, "1 - Dangerous", "Work must be STOPPED immediately", "#ff4d4d"},
	{2, "2 - Major", "Repair needed same shift", "#ff944d"},
	{3, "3 - Routine", "Repair within 2-3 days", "#ffd24d"},
	{4, "4 - Minor", "Repair within 1-2 weeks", "#4da6ff"},
	{5, "5 - Cosmetic", "Repair when convenient", "#d9d9d9"},
}

// ValidationError rejects a draft before anything is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Draft is a defect being reported. Priority and Category hold the raw
// picker values and are empty until chosen.
type Draft struct {
	Asset       string
	Title       string
	Description string
	Priority    string
	Category    string
	Photos      []Photo
}

// Validate checks the required fields in screen order and returns the
// first failure.
func (d *Draft) Validate() error {
	switch {
	case d.Asset == "":
		return &ValidationError{Field: "asset", Message: "Please select an asset."}
	case strings.TrimSpace(d.Title) == "":
		return &ValidationError{Field: "title", Message: "Please enter a title."}
	case strings.TrimSpace(d.Description) == "":
		return &ValidationError{Field: "description", Message: "Please enter a description."}
	case d.Priority == "":
		return &ValidationError{Field: "priority", Message: "Please select a priority."}
	case d.Category == "":
		return &ValidationError{Field: "category", Message: "Please select a category."}
	}
	if _, err := d.priority(); err != nil {
		return &ValidationError{Field: "priority", Message: "Please select a priority."}
	}
	if _, ok := models.ParseCategory(d.Category); !ok {
		return &ValidationError{Field: "category", Message: "Please select a category."}
	}
	return nil
}

func (d *Draft) priority() (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(d.Priority))
	if err != nil || p < 1 || p > len(Priorities) {
		return 0, fmt.Errorf("priority %q out of range", d.Priority)
	}
	return p, nil
}

// AddPhoto stages a photo for submission.
func (d *Draft) AddPhoto(p Photo) {
	d.Photos = append(d.Photos, p)
}

// RemovePhoto drops the staged photo at index i.
func (d *Draft) RemovePhoto(i int) error {
	if i < 0 || i >= len(d.Photos) {
		return fmt.Errorf("no staged photo at position %d", i+1)
	}
	d.Photos = slices.Delete(d.Photos, i, i+1)
	return nil
}

// Creator submits drafts.
type Creator struct {
	rows    Rows
	objects Objects
	users   Users
	log     *zap.Logger
	now     func() time.Time
}

// NewCreator returns a Creator writing through rows and objects.
func NewCreator(rows Rows, objects Objects, users Users, log *zap.Logger) *Creator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Creator{rows: rows, objects: objects, users: users, log: log, now: time.Now}
}

// Submit validates draft and inserts one defect with status Reported. Staged
// photos are uploaded once the row exists and their links stored on it;
// photos that fail are skipped. No activity entry is written.
func (c *Creator) Submit(ctx context.Context, draft Draft) (*models.Defect, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	priority, _ := draft.priority()
	category, _ := models.ParseCategory(draft.Category)

	row := models.NewDefect{
		Asset:       draft.Asset,
		Title:       draft.Title,
		Description: draft.Description,
		Category:    category,
		Priority:    priority,
		Status:      models.StatusReported,
		SubmittedBy: "Unknown",
	}
	if u := c.users.CurrentUser(); u != nil {
		if u.Email != "" {
			row.SubmittedBy = u.Email
		}
		row.CreatedBy = u.ID
	}

	var created models.Defect
	if err := c.rows.Insert(ctx, tableDefects, row, &created); err != nil {
		return nil, fmt.Errorf("insert defect: %w", err)
	}
	if len(draft.Photos) == 0 {
		return &created, nil
	}

	names := CreationObjectNames(created.ID, c.now(), draft.Photos)
	results := UploadBatch(ctx, c.objects, models.DefectPhotosBucket, names, draft.Photos)
	for _, r := range results {
		if !r.OK() {
			c.log.Warn("defect photo skipped", zap.String("defect", created.ID), zap.Int("index", r.Index), zap.Error(r.Err))
		}
	}
	urls := SucceededURLs(results)
	if urls == nil {
		urls = []string{}
	}
	if err := c.rows.Update(ctx, tableDefects, created.ID, models.DefectPatch{PhotoURLs: &urls}); err != nil {
		// The defect exists; only its photo links are missing.
		c.log.Warn("storing photo links failed", zap.String("defect", created.ID), zap.Error(err))
		return &created, nil
	}
	created.PhotoURLs = urls
	return &created, nil
}
