package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sitebatch/maintenance/internal/models"
)

func setupDefectMock(t *testing.T) (*PostgresDefectRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	return NewPostgresDefectRepository(db), mock, func() { db.Close() }
}

var created = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func defectRows() *sqlmock.Rows {
	return sqlmock.NewRows(defectColumns)
}

func addDefect(rows *sqlmock.Rows, id string, status string, locked bool) *sqlmock.Rows {
	return rows.AddRow(id, "BX22", "Hydraulic leak", "Leaking ram", "Health and Safety", 2,
		status, locked, nil, "Acme", "{https://x/a.jpg}", nil, "alice@example.com", nil, created)
}

func TestDefectList(t *testing.T) {
	repo, mock, cleanup := setupDefectMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM defects WHERE status = $1 ORDER BY created_at DESC LIMIT 5`)).
		WithArgs("Reported").
		WillReturnRows(addDefect(addDefect(defectRows(), "d1", "Reported", false), "d2", "Reported", false))

	got, err := repo.List(context.Background(), models.Query{
		Filters: []models.Filter{{Column: "status", Value: "Reported"}},
		Order:   &models.Order{Column: "created_at"},
		Limit:   5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 defects, got %d", len(got))
	}
	d := got[0]
	if d.ID != "d1" || d.Category != models.CategoryHealthAndSafety || d.Priority != 2 {
		t.Errorf("unexpected defect: %+v", d)
	}
	if d.ActionsTaken != "" || d.RepairCompany != "Acme" {
		t.Errorf("unexpected nullable fields: %q %q", d.ActionsTaken, d.RepairCompany)
	}
	if len(d.PhotoURLs) != 1 || d.PhotoURLs[0] != "https://x/a.jpg" {
		t.Errorf("unexpected photo urls: %v", d.PhotoURLs)
	}
	if d.RepairPhotos != nil {
		t.Errorf("expected nil repair photos, got %v", d.RepairPhotos)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDefectList_RejectsUnknownColumns(t *testing.T) {
	repo, _, cleanup := setupDefectMock(t)
	defer cleanup()

	tests := []struct {
		name string
		q    models.Query
	}{
		{"filter", models.Query{Filters: []models.Filter{{Column: "password", Value: "x"}}}},
		{"order", models.Query{Order: &models.Order{Column: "description; DROP TABLE defects"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.List(context.Background(), tt.q)
			if !errors.Is(err, models.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestDefectGet_NotFound(t *testing.T) {
	repo, mock, cleanup := setupDefectMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM defects WHERE id = $1`)).
		WithArgs("nope").
		WillReturnRows(defectRows())

	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDefectInsert(t *testing.T) {
	repo, mock, cleanup := setupDefectMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO defects (id,asset,title`)).
		WithArgs("d1", "BX22", "Hydraulic leak", "Leaking ram", "Health and Safety", 2,
			"Reported", false, "", "", sqlmock.AnyArg(), sqlmock.AnyArg(),
			"alice@example.com", nil, created).
		WillReturnRows(addDefect(defectRows(), "d1", "Reported", false))

	out, err := repo.Insert(context.Background(), &models.Defect{
		ID: "d1", Asset: "BX22", Title: "Hydraulic leak", Description: "Leaking ram",
		Category: models.CategoryHealthAndSafety, Priority: 2, Status: models.StatusReported,
		SubmittedBy: "alice@example.com", CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ID != "d1" {
		t.Errorf("expected d1, got %s", out.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDefectUpdate(t *testing.T) {
	lockQuery := regexp.QuoteMeta(`SELECT status, locked FROM defects WHERE id = $1 FOR UPDATE`)
	completed := models.StatusCompleted
	inProgress := models.StatusInProgress
	yes, no := true, false
	actions := "Replaced seal"

	tests := []struct {
		name       string
		curStatus  string
		curLocked  bool
		patch      models.DefectPatch
		wantUpdate bool
		wantErr    error
	}{
		{
			name:       "complete and lock",
			curStatus:  "In Progress",
			patch:      models.DefectPatch{Status: &completed, Locked: &yes, ActionsTaken: &actions},
			wantUpdate: true,
		},
		{
			name:       "locked defect keeps status",
			curStatus:  "Completed",
			curLocked:  true,
			patch:      models.DefectPatch{Status: &completed, Locked: &yes, ActionsTaken: &actions},
			wantUpdate: true,
		},
		{
			name:      "locked defect status change",
			curStatus: "Completed",
			curLocked: true,
			patch:     models.DefectPatch{Status: &inProgress},
			wantErr:   models.ErrDefectLocked,
		},
		{
			name:      "locked defect unlock",
			curStatus: "Completed",
			curLocked: true,
			patch:     models.DefectPatch{Locked: &no},
			wantErr:   models.ErrDefectLocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupDefectMock(t)
			defer cleanup()

			mock.ExpectBegin()
			mock.ExpectQuery(lockQuery).WithArgs("d1").
				WillReturnRows(sqlmock.NewRows([]string{"status", "locked"}).AddRow(tt.curStatus, tt.curLocked))
			if tt.wantUpdate {
				mock.ExpectQuery(`UPDATE defects SET status = \$1, actions_taken = \$2, locked = \$3 WHERE id = \$4 RETURNING`).
					WithArgs("Completed", actions, true, "d1").
					WillReturnRows(addDefect(defectRows(), "d1", "Completed", true))
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			out, err := repo.Update(context.Background(), "d1", tt.patch)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantUpdate && (!out.Locked || out.Status != models.StatusCompleted) {
				t.Errorf("unexpected row after update: %+v", out)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestDefectUpdate_NotFound(t *testing.T) {
	repo, mock, cleanup := setupDefectMock(t)
	defer cleanup()

	status := models.StatusInProgress
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"status", "locked"}))
	mock.ExpectRollback()

	if _, err := repo.Update(context.Background(), "ghost", models.DefectPatch{Status: &status}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDefectUpdate_EmptyPatch(t *testing.T) {
	repo, _, cleanup := setupDefectMock(t)
	defer cleanup()

	if _, err := repo.Update(context.Background(), "d1", models.DefectPatch{}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
