package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-api/internal/models"
)

// UserRepository provides database access for accounts and refresh sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateWithProfile inserts the user and its profile in one transaction.
func (r *UserRepository) CreateWithProfile(ctx context.Context, user *models.User, profile *models.Profile) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const userQuery = `INSERT INTO users (id, email, password_hash, role, created_at, updated_at) VALUES (:id, :email, :password_hash, :role, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		const profileQuery = `INSERT INTO profiles (id, role, first_name, last_name, bio, updated_at) VALUES (:id, :role, :first_name, :last_name, :bio, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, profileQuery, profile); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		return nil
	})
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, role, created_at, updated_at FROM users WHERE lower(email) = lower($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, role, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// CreateRefreshToken persists a refresh token session.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const query = `INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at, revoked) VALUES (:id, :user_id, :token_hash, :expires_at, :created_at, :revoked)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken looks up a session by the hash of its token.
func (r *UserRepository) FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token_hash, expires_at, created_at, revoked FROM refresh_tokens WHERE token_hash = $1 LIMIT 1`
	var token models.RefreshToken
	if err := r.db.GetContext(ctx, &token, query, tokenHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &token, nil
}

// RevokeRefreshToken marks a session revoked. Returns sql.ErrNoRows when the
// token was already revoked, which makes rotation single-use.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string) error {
	const query = `UPDATE refresh_tokens SET revoked = true WHERE id = $1 AND revoked = false`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteExpiredRefreshTokens removes sessions that expired before cutoff.
func (r *UserRepository) DeleteExpiredRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
