package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/sitebatch/maintenance/internal/models"
)

var defectColumns = []string{
	"id", "asset", "title", "description", "category", "priority", "status", "locked",
	"actions_taken", "repair_company", "photo_urls", "repair_photos",
	"submitted_by", "created_by", "created_at",
}

var defectQueryColumns = columnSet{
	"id": true, "asset": true, "category": true, "priority": true, "status": true,
	"locked": true, "created_by": true, "created_at": true,
}

// PostgresDefectRepository stores defects in PostgreSQL.
type PostgresDefectRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresDefectRepository creates a new PostgresDefectRepository using the provided *sql.DB.
func NewPostgresDefectRepository(db *sql.DB) *PostgresDefectRepository {
	return &PostgresDefectRepository{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefect(row rowScanner) (*models.Defect, error) {
	var (
		d                                  models.Defect
		actions, company, submitted, owner sql.NullString
		photos, repairs                    pq.StringArray
	)
	err := row.Scan(&d.ID, &d.Asset, &d.Title, &d.Description, &d.Category, &d.Priority,
		&d.Status, &d.Locked, &actions, &company, &photos, &repairs,
		&submitted, &owner, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.ActionsTaken = actions.String
	d.RepairCompany = company.String
	d.SubmittedBy = submitted.String
	d.CreatedBy = owner.String
	d.PhotoURLs = []string(photos)
	d.RepairPhotos = []string(repairs)
	return &d, nil
}

// List returns the defects selected by q.
//
//	ctx: context for cancellation and deadlines
//	q:   equality filters, order and limit; columns must be whitelisted
//
// Returns models.ErrInvalidInput for unknown columns.
func (r *PostgresDefectRepository) List(ctx context.Context, q models.Query) ([]models.Defect, error) {
	b, err := defectQueryColumns.apply(psql.Select(defectColumns...).From("defects"), q)
	if err != nil {
		return nil, err
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list defects: %w", err)
	}
	defer rows.Close()

	defects := []models.Defect{}
	for rows.Next() {
		d, err := scanDefect(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		defects = append(defects, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list defects: %w", err)
	}
	return defects, nil
}

// Get returns the defect with the given id or models.ErrNotFound.
func (r *PostgresDefectRepository) Get(ctx context.Context, id string) (*models.Defect, error) {
	query, args, err := psql.Select(defectColumns...).From("defects").Where("id = ?", id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	d, err := scanDefect(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get defect: %w", err)
	}
	return d, nil
}

// Insert stores d and returns the row as written.
func (r *PostgresDefectRepository) Insert(ctx context.Context, d *models.Defect) (*models.Defect, error) {
	var createdBy any
	if d.CreatedBy != "" {
		createdBy = d.CreatedBy
	}
	query, args, err := psql.Insert("defects").
		Columns(defectColumns...).
		Values(d.ID, d.Asset, d.Title, d.Description, string(d.Category), d.Priority,
			string(d.Status), d.Locked, d.ActionsTaken, d.RepairCompany,
			pq.Array(d.PhotoURLs), pq.Array(d.RepairPhotos),
			d.SubmittedBy, createdBy, d.CreatedAt).
		Suffix("RETURNING " + strings.Join(defectColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}
	out, err := scanDefect(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("insert defect: %w", err)
	}
	return out, nil
}

// Update applies patch to the defect with the given id inside a
// transaction. A locked defect keeps its status and its lock: a patch that
// would change either yields models.ErrDefectLocked.
func (r *PostgresDefectRepository) Update(ctx context.Context, id string, patch models.DefectPatch) (*models.Defect, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("%w: empty patch", models.ErrInvalidInput)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		status models.Status
		locked bool
	)
	err = tx.QueryRowContext(ctx, `
		SELECT status, locked FROM defects WHERE id = $1 FOR UPDATE
	`, id).Scan(&status, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock defect: %w", err)
	}
	if locked {
		if patch.Status != nil && *patch.Status != status {
			return nil, models.ErrDefectLocked
		}
		if patch.Locked != nil && !*patch.Locked {
			return nil, models.ErrDefectLocked
		}
	}

	b := psql.Update("defects").Where("id = ?", id)
	if patch.Status != nil {
		b = b.Set("status", string(*patch.Status))
	}
	if patch.ActionsTaken != nil {
		b = b.Set("actions_taken", *patch.ActionsTaken)
	}
	if patch.RepairCompany != nil {
		b = b.Set("repair_company", *patch.RepairCompany)
	}
	if patch.PhotoURLs != nil {
		b = b.Set("photo_urls", pq.Array(*patch.PhotoURLs))
	}
	if patch.RepairPhotos != nil {
		b = b.Set("repair_photos", pq.Array(*patch.RepairPhotos))
	}
	if patch.Locked != nil {
		b = b.Set("locked", *patch.Locked)
	}
	query, args, err := b.Suffix("RETURNING " + strings.Join(defectColumns, ", ")).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	out, err := scanDefect(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("update defect: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}
