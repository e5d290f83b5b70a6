package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sitebatch/maintenance/internal/models"
)

// PostgresObjectRepository keeps uploaded photos in the storage_objects table.
type PostgresObjectRepository struct {
	DB *sql.DB
}

// NewPostgresObjectRepository creates a new PostgresObjectRepository using the provided *sql.DB.
func NewPostgresObjectRepository(db *sql.DB) *PostgresObjectRepository {
	return &PostgresObjectRepository{DB: db}
}

// Put stores obj. An existing object with the same bucket and name yields
// models.ErrObjectExists.
func (r *PostgresObjectRepository) Put(ctx context.Context, obj *models.Object) error {
	var owner any
	if obj.Owner != "" {
		owner = obj.Owner
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO storage_objects (bucket, name, content_type, data, owner, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, obj.Bucket, obj.Name, obj.ContentType, obj.Data, owner, obj.CreatedAt)
	if isUniqueViolation(err) {
		return models.ErrObjectExists
	}
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Get returns the object stored under bucket/name or models.ErrNotFound.
func (r *PostgresObjectRepository) Get(ctx context.Context, bucket, name string) (*models.Object, error) {
	var (
		obj   = models.Object{Bucket: bucket, Name: name}
		owner sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT content_type, data, owner, created_at FROM storage_objects WHERE bucket = $1 AND name = $2
	`, bucket, name).Scan(&obj.ContentType, &obj.Data, &owner, &obj.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	obj.Owner = owner.String
	return &obj, nil
}
