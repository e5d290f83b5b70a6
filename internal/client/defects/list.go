package defects

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/sitebatch/maintenance/internal/models"
)

// Badge colours of the status enum.
const (
	ColorReported   = "#ff4d4d"
	ColorInProgress = "#ffa31a"
	ColorCompleted  = "#28a745"
)

// TimeLayout formats creation times in the list and the activity log.
const TimeLayout = "02 Jan 2006 15:04"

// ListView holds the defects shown on the list screen.
type ListView struct {
	rows Rows

	mu    sync.Mutex
	items []models.Defect
}

// NewListView returns an empty list.
func NewListView(rows Rows) *ListView {
	return &ListView{rows: rows}
}

// Focus reads all defects, newest first, and replaces the held items. On
// failure the previous items are kept.
func (v *ListView) Focus(ctx context.Context) error {
	var items []models.Defect
	err := v.rows.Select(ctx, tableDefects, models.Query{
		Order: &models.Order{Column: "created_at"},
	}, &items)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.items = items
	v.mu.Unlock()
	return nil
}

// Items returns the held defects.
func (v *ListView) Items() []models.Defect {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.items)
}

// Select returns the full record at index i for the editor.
func (v *ListView) Select(i int) (models.Defect, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i < 0 || i >= len(v.items) {
		return models.Defect{}, fmt.Errorf("no defect at position %d", i+1)
	}
	return v.items[i], nil
}

// Row is the display form of a defect in the list.
type Row struct {
	Asset    string
	Title    string
	Category string
	Priority string
	Status   string
	Color    string
	Created  string
}

// Present formats d for the list.
func Present(d models.Defect) Row {
	status := string(d.Status)
	if status == "" {
		status = string(models.StatusReported)
	}
	return Row{
		Asset:    d.Asset,
		Title:    d.Title,
		Category: string(d.Category),
		Priority: strconv.Itoa(d.Priority),
		Status:   status,
		Color:    StatusColor(d.Status),
		Created:  formatTime(d.CreatedAt),
	}
}

// StatusColor returns the badge colour of s. Legacy, empty and unknown
// values use the Reported colour.
func StatusColor(s models.Status) string {
	switch s {
	case models.StatusInProgress:
		return ColorInProgress
	case models.StatusCompleted:
		return ColorCompleted
	}
	return ColorReported
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(TimeLayout)
}

// ActivityLine formats an activity entry as
// "<message>, <time> by <author>" with a " (Locked)" suffix for entries
// written when the defect was locked.
func ActivityLine(e models.ActivityEntry) string {
	author := e.SubmittedBy
	if author == "" {
		author = e.PerformedBy
	}
	if author == "" {
		author = "Unknown"
	}
	line := fmt.Sprintf("%s, %s by %s", e.Message, formatTime(e.CreatedAt), author)
	if e.Locked {
		line += " (Locked)"
	}
	return line
}
