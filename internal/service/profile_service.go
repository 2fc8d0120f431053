package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/internal/models"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
)

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Profile, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.Profile, error)
	Update(ctx context.Context, p *models.Profile) error
}

// ProfileService manages the public profile of each account.
type ProfileService struct {
	repo      profileRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs a ProfileService.
func NewProfileService(repo profileRepository, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{repo: repo, validator: validate, logger: logger}
}

// Get returns the profile for id.
func (s *ProfileService) Get(ctx context.Context, id string) (*models.Profile, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return p, nil
}

// Update edits the caller's own profile.
func (s *ProfileService) Update(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.FirstName = strings.TrimSpace(req.FirstName)
	p.LastName = strings.TrimSpace(req.LastName)
	p.Bio = strings.TrimSpace(req.Bio)
	p.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return p, nil
}

// ListByRole returns every profile with role.
func (s *ProfileService) ListByRole(ctx context.Context, role models.Role) ([]models.Profile, error) {
	profiles, err := s.repo.ListByRole(ctx, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list profiles")
	}
	return profiles, nil
}

// Lookup resolves profiles by id, keyed by id. Unknown ids are absent.
func (s *ProfileService) Lookup(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	profiles, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profiles")
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

// RequireRole loads id and checks that it has role.
func (s *ProfileService) RequireRole(ctx context.Context, id string, role models.Role) (*models.Profile, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Role != role {
		return nil, appErrors.Clone(appErrors.ErrNotFound, string(role)+" not found")
	}
	return p, nil
}
