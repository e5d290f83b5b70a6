package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/sitebatch/maintenance/internal/models"
)

func setupActivityMock(t *testing.T) (*PostgresActivityRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	return NewPostgresActivityRepository(db), mock, func() { db.Close() }
}

func TestActivityList(t *testing.T) {
	repo, mock, cleanup := setupActivityMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM defect_activity WHERE defect_id = $1 ORDER BY created_at DESC`)).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows(activityColumns).
			AddRow("a2", "d1", `Status saved as "Completed"`, "bob@example.com", "bob@example.com", true, created).
			AddRow("a1", "d1", `Status saved as "In Progress"`, nil, nil, false, created))

	got, err := repo.List(context.Background(), models.Query{
		Filters: []models.Filter{{Column: "defect_id", Value: "d1"}},
		Order:   &models.Order{Column: "created_at"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a2" || !got[0].Locked {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if got[1].PerformedBy != "" {
		t.Errorf("expected empty author for NULL, got %q", got[1].PerformedBy)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestActivityList_RejectsUnknownColumn(t *testing.T) {
	repo, _, cleanup := setupActivityMock(t)
	defer cleanup()

	_, err := repo.List(context.Background(), models.Query{Filters: []models.Filter{{Column: "message", Value: "x"}}})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestActivityInsert(t *testing.T) {
	entry := &models.ActivityEntry{
		ID: "a1", DefectID: "d1", Message: `Status saved as "Completed"`,
		PerformedBy: "bob@example.com", SubmittedBy: "bob@example.com", Locked: true, CreatedAt: created,
	}

	t.Run("ok", func(t *testing.T) {
		repo, mock, cleanup := setupActivityMock(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO defect_activity (id,defect_id,message,performed_by,submitted_by,locked,created_at)`)).
			WithArgs("a1", "d1", entry.Message, "bob@example.com", "bob@example.com", true, created).
			WillReturnRows(sqlmock.NewRows(activityColumns).
				AddRow("a1", "d1", entry.Message, "bob@example.com", "bob@example.com", true, created))

		out, err := repo.Insert(context.Background(), entry)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Message != entry.Message {
			t.Errorf("unexpected message %q", out.Message)
		}
	})

	t.Run("unknown defect", func(t *testing.T) {
		repo, mock, cleanup := setupActivityMock(t)
		defer cleanup()

		mock.ExpectQuery(`INSERT INTO defect_activity`).
			WillReturnError(&pq.Error{Code: "23503"})

		if _, err := repo.Insert(context.Background(), entry); !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
