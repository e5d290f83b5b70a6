// Package repository provides the PostgreSQL persistence behind the
// backend services: accounts and tokens, defects, activity and objects.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sitebatch/maintenance/internal/models"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PostgresAuthRepository implements account and token persistence using a PostgreSQL database.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a new PostgresAuthRepository with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

const userColumns = `id, email, password_hash, email_confirmed_at, invited_at,
		recovery_sent_at, last_sign_in_at, password_updated_at, user_metadata, created_at`

// CreateUser inserts u. A taken e-mail address yields models.ErrUserExists.
func (r *PostgresAuthRepository) CreateUser(ctx context.Context, u *models.User) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, email_confirmed_at, invited_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Email, u.PasswordHash, u.EmailConfirmedAt, u.InvitedAt, u.CreatedAt)
	if isUniqueViolation(err) {
		return models.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("CreateUser: %w", err)
	}
	return nil
}

// GetUserByEmail returns the user registered under email or models.ErrNotFound.
func (r *PostgresAuthRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetUserByID returns the user with the given id or models.ErrNotFound.
func (r *PostgresAuthRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u                                              models.User
		confirmed, invited, recovery, signIn, pwUpdate sql.NullTime
		meta                                           []byte
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &confirmed, &invited,
		&recovery, &signIn, &pwUpdate, &meta, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Aud = "authenticated"
	u.EmailConfirmedAt = timePtr(confirmed)
	u.InvitedAt = timePtr(invited)
	u.RecoverySentAt = timePtr(recovery)
	u.LastSignInAt = timePtr(signIn)
	u.PasswordUpdatedAt = timePtr(pwUpdate)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &u.Metadata); err != nil {
			return nil, fmt.Errorf("decode user metadata: %w", err)
		}
	}
	return &u, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// UpdatePassword stores a new password hash and records when it changed.
func (r *PostgresAuthRepository) UpdatePassword(ctx context.Context, id string, hash []byte, at time.Time) error {
	return r.execOne(ctx, "UpdatePassword", `
		UPDATE users SET password_hash = $2, password_updated_at = $3 WHERE id = $1
	`, id, hash, at)
}

// MergeMetadata merges data into the user's metadata, replacing keys that
// already exist.
func (r *PostgresAuthRepository) MergeMetadata(ctx context.Context, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode user metadata: %w", err)
	}
	return r.execOne(ctx, "MergeMetadata", `
		UPDATE users SET user_metadata = user_metadata || $2::jsonb WHERE id = $1
	`, id, raw)
}

// MarkSignedIn records a successful sign-in.
func (r *PostgresAuthRepository) MarkSignedIn(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, "MarkSignedIn", `
		UPDATE users SET last_sign_in_at = $2 WHERE id = $1
	`, id, at)
}

// MarkRecoverySent records that a recovery link was issued.
func (r *PostgresAuthRepository) MarkRecoverySent(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, "MarkRecoverySent", `
		UPDATE users SET recovery_sent_at = $2 WHERE id = $1
	`, id, at)
}

// ConfirmEmail marks the address confirmed unless it already is.
func (r *PostgresAuthRepository) ConfirmEmail(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, "ConfirmEmail", `
		UPDATE users SET email_confirmed_at = COALESCE(email_confirmed_at, $2) WHERE id = $1
	`, id, at)
}

func (r *PostgresAuthRepository) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// StoreToken saves the hash of an issued refresh or link token.
func (r *PostgresAuthRepository) StoreToken(ctx context.Context, hash, userID string, kind models.TokenKind, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO auth_tokens (token_hash, user_id, kind, expires_at) VALUES ($1, $2, $3, $4)
	`, hash, userID, string(kind), expiresAt)
	if err != nil {
		return fmt.Errorf("StoreToken: %w", err)
	}
	return nil
}

// ConsumeToken deletes the token with the given hash and kind and returns
// its owner. Unknown and expired tokens yield models.ErrInvalidToken; an
// expired token is still removed.
func (r *PostgresAuthRepository) ConsumeToken(ctx context.Context, hash string, kind models.TokenKind, now time.Time) (string, error) {
	var (
		userID    string
		expiresAt time.Time
	)
	err := r.DB.QueryRowContext(ctx, `
		DELETE FROM auth_tokens WHERE token_hash = $1 AND kind = $2 RETURNING user_id, expires_at
	`, hash, string(kind)).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("ConsumeToken: %w", err)
	}
	if !now.Before(expiresAt) {
		return "", models.ErrInvalidToken
	}
	return userID, nil
}

// RevokeTokens deletes every token of the given kind owned by userID.
func (r *PostgresAuthRepository) RevokeTokens(ctx context.Context, userID string, kind models.TokenKind) error {
	_, err := r.DB.ExecContext(ctx, `
		DELETE FROM auth_tokens WHERE user_id = $1 AND kind = $2
	`, userID, string(kind))
	if err != nil {
		return fmt.Errorf("RevokeTokens: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}
