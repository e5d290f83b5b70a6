package defects

import (
	"errors"
	"testing"

	"github.com/sitebatch/maintenance/internal/models"
)

func TestReduce_StatusCycle(t *testing.T) {
	s := NewState(models.Defect{ID: "d1", Status: models.StatusReported})
	want := []models.Status{
		models.StatusInProgress,
		models.StatusCompleted,
		models.StatusInProgress,
		models.StatusCompleted,
		models.StatusInProgress,
	}
	for i, w := range want {
		var err error
		s, err = Reduce(s, CycleStatus{})
		if err != nil {
			t.Fatalf("step %d: unexpected error %v", i, err)
		}
		if s.Status != w {
			t.Fatalf("step %d: status = %q; want %q", i, s.Status, w)
		}
	}
}

func TestReduce_LockedRejectsCycle(t *testing.T) {
	s := NewState(models.Defect{ID: "d1", Status: models.StatusCompleted, Locked: true})

	got, err := Reduce(s, CycleStatus{})
	if !errors.Is(err, models.ErrDefectLocked) {
		t.Fatalf("err = %v; want ErrDefectLocked", err)
	}
	if err.Error() != "defect is completed and cannot be changed" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if got.Status != models.StatusCompleted || !got.Locked {
		t.Errorf("state changed: %+v", got)
	}
}

func TestReduce_AutoAdvance(t *testing.T) {
	tests := []struct {
		name   string
		start  models.Defect
		event  Event
		status models.Status
	}{
		{"actions text", models.Defect{Status: models.StatusReported}, EditActionsTaken{Text: "Tightened bolt"}, models.StatusInProgress},
		{"company text", models.Defect{Status: models.StatusReported}, EditRepairCompany{Text: "Acme"}, models.StatusInProgress},
		{"repair photo", models.Defect{Status: models.StatusReported}, AddRepairPhoto{Photo: Photo{Name: "a.jpg"}}, models.StatusInProgress},
		{"blank text", models.Defect{Status: models.StatusReported}, EditActionsTaken{Text: "   "}, models.StatusReported},
		{"already completed", models.Defect{Status: models.StatusCompleted}, EditActionsTaken{Text: "x"}, models.StatusCompleted},
		{"locked", models.Defect{Status: models.StatusReported, Locked: true}, EditActionsTaken{Text: "x"}, models.StatusReported},
		{"legacy open", models.Defect{Status: models.StatusOpen}, EditRepairCompany{Text: "Acme"}, models.StatusInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Reduce(NewState(tt.start), tt.event)
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if s.Status != tt.status {
				t.Errorf("status = %q; want %q", s.Status, tt.status)
			}
		})
	}
}

func TestReduce_EditsKeepText(t *testing.T) {
	s := NewState(models.Defect{Status: models.StatusInProgress})
	s, _ = Reduce(s, EditActionsTaken{Text: "Replaced seal"})
	s, _ = Reduce(s, EditRepairCompany{Text: "Acme Hydraulics"})
	if s.ActionsTaken != "Replaced seal" || s.RepairCompany != "Acme Hydraulics" {
		t.Errorf("unexpected state %+v", s)
	}
}

func TestReduce_AddPhotoDoesNotAlias(t *testing.T) {
	s := NewState(models.Defect{Status: models.StatusInProgress})
	s.StagedRepairPhotos = make([]Photo, 1, 4)

	next, _ := Reduce(s, AddRepairPhoto{Photo: Photo{Name: "b.jpg"}})
	other, _ := Reduce(s, AddRepairPhoto{Photo: Photo{Name: "c.jpg"}})

	if len(s.StagedRepairPhotos) != 1 {
		t.Fatalf("input state modified: %d photos", len(s.StagedRepairPhotos))
	}
	if next.StagedRepairPhotos[1].Name != "b.jpg" || other.StagedRepairPhotos[1].Name != "c.jpg" {
		t.Errorf("states share a backing array")
	}
}

func TestReduce_Loaded(t *testing.T) {
	s := NewState(models.Defect{ID: "d1", Status: models.StatusReported})
	s, _ = Reduce(s, AddRepairPhoto{Photo: Photo{Name: "a.jpg"}})
	s.Loading = true

	d := models.Defect{
		ID: "d1", Status: models.StatusCompleted, Locked: true,
		ActionsTaken: "done", RepairCompany: "Acme",
	}
	s, _ = Reduce(s, Loaded{Defect: d})

	if s.Status != models.StatusCompleted || !s.Locked || s.ActionsTaken != "done" || s.RepairCompany != "Acme" {
		t.Errorf("fields not refreshed: %+v", s)
	}
	if len(s.StagedRepairPhotos) != 0 {
		t.Error("staged photos not cleared")
	}
	if !s.Loading {
		t.Error("loading flag must survive a reload")
	}
}

func TestNormalizeStatus(t *testing.T) {
	for in, want := range map[models.Status]models.Status{
		models.StatusOpen:       models.StatusReported,
		"":                      models.StatusReported,
		"Bogus":                 models.StatusReported,
		models.StatusInProgress: models.StatusInProgress,
		models.StatusCompleted:  models.StatusCompleted,
	} {
		if got := NormalizeStatus(in); got != want {
			t.Errorf("NormalizeStatus(%q) = %q; want %q", in, got, want)
		}
	}
}
