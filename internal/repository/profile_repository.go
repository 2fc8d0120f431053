package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-api/internal/models"
)

const profileColumns = `id, role, COALESCE(first_name, '') AS first_name, COALESCE(last_name, '') AS last_name, COALESCE(bio, '') AS bio, updated_at`

// ProfileRepository reads and updates public profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByID returns one profile.
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	var p models.Profile
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &p, nil
}

// FindByIDs returns the profiles that exist among ids.
func (r *ProfileRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Profile, error) {
	if len(ids) == 0 {
		return []models.Profile{}, nil
	}
	query, args, err := sqlx.In(`SELECT `+profileColumns+` FROM profiles WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build profiles query: %w", err)
	}
	var out []models.Profile
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find profiles: %w", err)
	}
	return out, nil
}

// ListByRole returns every profile with the role ordered by name.
func (r *ProfileRepository) ListByRole(ctx context.Context, role models.Role) ([]models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE role = $1 ORDER BY last_name NULLS LAST, first_name NULLS LAST, id`
	var out []models.Profile
	if err := r.db.SelectContext(ctx, &out, query, role); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}

// Update writes the editable fields.
func (r *ProfileRepository) Update(ctx context.Context, p *models.Profile) error {
	const query = `UPDATE profiles SET first_name = :first_name, last_name = :last_name, bio = :bio, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
