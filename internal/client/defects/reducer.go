// Package defects implements the defect screens of the client: the list,
// the creation flow and the record editor with its status state machine.
package defects

import (
	"slices"
	"strings"

	"github.com/sitebatch/maintenance/internal/models"
)

// State is the editable view of one defect.
type State struct {
	// Defect is the record as last read from the backend.
	Defect models.Defect

	Status             models.Status
	Locked             bool
	ActionsTaken       string
	RepairCompany      string
	StagedRepairPhotos []Photo

	// Loading is set while a save is in flight.
	Loading bool
}

// Event is a user action or backend answer applied by Reduce.
type Event interface {
	event()
}

// CycleStatus advances the status to the next state of the cycle.
type CycleStatus struct{}

// EditActionsTaken replaces the actions-taken text.
type EditActionsTaken struct{ Text string }

// EditRepairCompany replaces the repair company text.
type EditRepairCompany struct{ Text string }

// AddRepairPhoto stages a repair photo for the next save.
type AddRepairPhoto struct{ Photo Photo }

// Loaded replaces the whole state with a record read from the backend.
type Loaded struct{ Defect models.Defect }

func (CycleStatus) event()       {}
func (EditActionsTaken) event()  {}
func (EditRepairCompany) event() {}
func (AddRepairPhoto) event()    {}
func (Loaded) event()            {}

// NextStatus returns the status following s in the cycle
// Reported → In Progress → Completed → In Progress.
func NextStatus(s models.Status) models.Status {
	switch s {
	case models.StatusInProgress:
		return models.StatusCompleted
	case models.StatusCompleted:
		return models.StatusInProgress
	}
	return models.StatusInProgress
}

// NormalizeStatus maps legacy, empty and unknown values to Reported.
func NormalizeStatus(s models.Status) models.Status {
	if s.Valid() {
		return s
	}
	return models.StatusReported
}

// NewState returns the state of an editor opened on d.
func NewState(d models.Defect) State {
	s, _ := Reduce(State{}, Loaded{Defect: d})
	return s
}

// Reduce applies e to s. A status change on a locked defect fails with
// models.ErrDefectLocked and returns s unchanged. Reduce never modifies the
// slices of s.
func Reduce(s State, e Event) (State, error) {
	switch e := e.(type) {
	case CycleStatus:
		if s.Locked {
			return s, models.ErrDefectLocked
		}
		s.Status = NextStatus(s.Status)

	case EditActionsTaken:
		s.ActionsTaken = e.Text
		if strings.TrimSpace(e.Text) != "" {
			s = autoAdvance(s)
		}

	case EditRepairCompany:
		s.RepairCompany = e.Text
		if strings.TrimSpace(e.Text) != "" {
			s = autoAdvance(s)
		}

	case AddRepairPhoto:
		s.StagedRepairPhotos = append(slices.Clip(s.StagedRepairPhotos), e.Photo)
		s = autoAdvance(s)

	case Loaded:
		s = State{
			Defect:        e.Defect,
			Status:        NormalizeStatus(e.Defect.Status),
			Locked:        e.Defect.Locked,
			ActionsTaken:  e.Defect.ActionsTaken,
			RepairCompany: e.Defect.RepairCompany,
			Loading:       s.Loading,
		}
	}
	return s, nil
}

// autoAdvance starts the work on a reported defect as soon as any repair
// detail is entered.
func autoAdvance(s State) State {
	if !s.Locked && s.Status == models.StatusReported {
		s.Status = models.StatusInProgress
	}
	return s
}
