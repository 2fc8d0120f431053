package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-api/internal/models"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
)

type mockProfileRepo struct {
	profiles map[string]*models.Profile
	updated  *models.Profile
}

func newMockProfileRepo(profiles ...models.Profile) *mockProfileRepo {
	m := &mockProfileRepo{profiles: map[string]*models.Profile{}}
	for i := range profiles {
		p := profiles[i]
		m.profiles[p.ID] = &p
	}
	return m
}

func (m *mockProfileRepo) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	if p, ok := m.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProfileRepo) FindByIDs(ctx context.Context, ids []string) ([]models.Profile, error) {
	var out []models.Profile
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProfileRepo) ListByRole(ctx context.Context, role models.Role) ([]models.Profile, error) {
	var out []models.Profile
	for _, p := range m.profiles {
		if p.Role == role {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProfileRepo) Update(ctx context.Context, p *models.Profile) error {
	m.updated = p
	m.profiles[p.ID] = p
	return nil
}

func TestProfileServiceUpdate(t *testing.T) {
	repo := newMockProfileRepo(models.Profile{ID: "s1", Role: models.RoleStudent})
	svc := NewProfileService(repo, nil, nil)

	p, err := svc.Update(context.Background(), "s1", models.UpdateProfileRequest{FirstName: " Anna ", Bio: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Anna", p.FirstName)
	assert.Equal(t, "Anna", repo.updated.FirstName)
	assert.Equal(t, models.RoleStudent, p.Role)
}

func TestProfileServiceGetNotFound(t *testing.T) {
	svc := NewProfileService(newMockProfileRepo(), nil, nil)
	_, err := svc.Get(context.Background(), "missing")
	assert.True(t, appErrors.IsKind(err, appErrors.ErrNotFound))
}

func TestProfileServiceRequireRole(t *testing.T) {
	repo := newMockProfileRepo(
		models.Profile{ID: "t1", Role: models.RoleTeacher},
		models.Profile{ID: "s1", Role: models.RoleStudent},
	)
	svc := NewProfileService(repo, nil, nil)

	_, err := svc.RequireRole(context.Background(), "t1", models.RoleTeacher)
	require.NoError(t, err)
	_, err = svc.RequireRole(context.Background(), "s1", models.RoleTeacher)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrNotFound))

	students, err := svc.ListByRole(context.Background(), models.RoleStudent)
	require.NoError(t, err)
	assert.Len(t, students, 1)

	lookup, err := svc.Lookup(context.Background(), []string{"t1", "ghost"})
	require.NoError(t, err)
	assert.Contains(t, lookup, "t1")
	assert.NotContains(t, lookup, "ghost")
}
