package models

import (
	"strings"
	"time"
)

// Status is the repair state of a defect.
type Status string

const (
	// StatusReported is the state of a freshly submitted defect.
	StatusReported Status = "Reported"
	// StatusInProgress means repair work has started.
	StatusInProgress Status = "In Progress"
	// StatusCompleted means the repair is done. Saving it locks the defect.
	StatusCompleted Status = "Completed"
	// StatusOpen is a legacy value found on old rows; it is shown as Reported.
	StatusOpen Status = "Open"
)

// Valid reports whether s is one of the three lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusReported, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Category classifies a defect.
type Category string

const (
	CategoryHealthAndSafety Category = "Health and Safety"
	CategoryEnvironmental   Category = "Environmental"
	CategoryQuality         Category = "Quality"
)

// Categories lists the selectable categories in display order.
var Categories = []Category{CategoryHealthAndSafety, CategoryEnvironmental, CategoryQuality}

// ParseCategory matches s against the known categories, ignoring case and
// surrounding blanks.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

// Defect is a reported maintenance issue on an asset.
type Defect struct {
	ID            string    `json:"id"`
	Asset         string    `json:"asset"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      Category  `json:"category"`
	Priority      int       `json:"priority"`
	Status        Status    `json:"status"`
	Locked        bool      `json:"locked"`
	ActionsTaken  string    `json:"actions_taken"`
	RepairCompany string    `json:"repair_company"`
	PhotoURLs     []string  `json:"photo_urls"`
	RepairPhotos  []string  `json:"repair_photos"`
	SubmittedBy   string    `json:"submitted_by"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewDefect is the insert payload for a defect. Unset photo urls are left to
// the database default.
type NewDefect struct {
	Asset       string   `json:"asset"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Priority    int      `json:"priority"`
	Status      Status   `json:"status,omitempty"`
	SubmittedBy string   `json:"submitted_by"`
	CreatedBy   string   `json:"created_by,omitempty"`
	PhotoURLs   []string `json:"photo_urls,omitempty"`
}

// DefectPatch is a partial update of a defect. Nil fields are left unchanged.
type DefectPatch struct {
	Status        *Status   `json:"status,omitempty"`
	ActionsTaken  *string   `json:"actions_taken,omitempty"`
	RepairCompany *string   `json:"repair_company,omitempty"`
	PhotoURLs     *[]string `json:"photo_urls,omitempty"`
	RepairPhotos  *[]string `json:"repair_photos,omitempty"`
	Locked        *bool     `json:"locked,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p DefectPatch) Empty() bool {
	return p.Status == nil && p.ActionsTaken == nil && p.RepairCompany == nil &&
		p.PhotoURLs == nil && p.RepairPhotos == nil && p.Locked == nil
}

// ActivityEntry is an immutable audit record appended on each defect save.
type ActivityEntry struct {
	ID          string    `json:"id"`
	DefectID    string    `json:"defect_id"`
	Message     string    `json:"message"`
	PerformedBy string    `json:"performed_by"`
	SubmittedBy string    `json:"submitted_by"`
	Locked      bool      `json:"locked"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter is an equality condition on a column.
type Filter struct {
	Column string
	Value  string
}

// Order sorts a selection by a column.
type Order struct {
	Column    string
	Ascending bool
}

// Query selects rows from a table.
type Query struct {
	Filters []Filter
	Order   *Order
	// Limit caps the number of rows; zero means no limit.
	Limit int
}
