package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sitebatch/maintenance/internal/models"
)

var activityColumns = []string{
	"id", "defect_id", "message", "performed_by", "submitted_by", "locked", "created_at",
}

var activityQueryColumns = columnSet{
	"id": true, "defect_id": true, "locked": true, "created_at": true,
}

// PostgresActivityRepository stores the append-only defect activity log.
type PostgresActivityRepository struct {
	DB *sql.DB
}

// NewPostgresActivityRepository creates a new PostgresActivityRepository using the provided *sql.DB.
func NewPostgresActivityRepository(db *sql.DB) *PostgresActivityRepository {
	return &PostgresActivityRepository{DB: db}
}

func scanActivity(row rowScanner) (*models.ActivityEntry, error) {
	var (
		e             models.ActivityEntry
		by, submitted sql.NullString
	)
	if err := row.Scan(&e.ID, &e.DefectID, &e.Message, &by, &submitted, &e.Locked, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.PerformedBy = by.String
	e.SubmittedBy = submitted.String
	return &e, nil
}

// List returns the activity entries selected by q.
func (r *PostgresActivityRepository) List(ctx context.Context, q models.Query) ([]models.ActivityEntry, error) {
	b, err := activityQueryColumns.apply(psql.Select(activityColumns...).From("defect_activity"), q)
	if err != nil {
		return nil, err
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	entries := []models.ActivityEntry{}
	for rows.Next() {
		e, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}

// Insert appends e to the log and returns the stored entry.
// A defect id that does not exist yields models.ErrNotFound.
func (r *PostgresActivityRepository) Insert(ctx context.Context, e *models.ActivityEntry) (*models.ActivityEntry, error) {
	query, args, err := psql.Insert("defect_activity").
		Columns(activityColumns...).
		Values(e.ID, e.DefectID, e.Message, e.PerformedBy, e.SubmittedBy, e.Locked, e.CreatedAt).
		Suffix("RETURNING " + strings.Join(activityColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}
	out, err := scanActivity(r.DB.QueryRowContext(ctx, query, args...))
	if isForeignKeyViolation(err) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	return out, nil
}
