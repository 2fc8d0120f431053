package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/internal/repository"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
)

type mockAvailabilityRepo struct {
	slots    []models.AvailabilitySlot
	booked   []models.AvailabilitySlot
	replaced map[string][]string
	lists    int
}

func (m *mockAvailabilityRepo) ReplaceDay(ctx context.Context, teacherID, date string, slots []string) error {
	for _, b := range m.booked {
		if b.TeacherID != teacherID || b.Date != date {
			continue
		}
		kept := false
		for _, slot := range slots {
			kept = kept || slot == b.TimeSlot
		}
		if !kept {
			return fmt.Errorf("%w: %s", repository.ErrSlotBooked, b.TimeSlot)
		}
	}
	if m.replaced == nil {
		m.replaced = map[string][]string{}
	}
	m.replaced[teacherID+"/"+date] = slots
	return nil
}

func (m *mockAvailabilityRepo) List(ctx context.Context, filter models.AvailabilityFilter) ([]models.AvailabilitySlot, error) {
	m.lists++
	var out []models.AvailabilitySlot
	for _, s := range m.slots {
		if filter.TeacherID != "" && s.TeacherID != filter.TeacherID {
			continue
		}
		if s.Date < filter.From || (filter.To != "" && s.Date > filter.To) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *mockAvailabilityRepo) Exists(ctx context.Context, teacherID, date, slot string) (bool, error) {
	for _, s := range m.slots {
		if s.TeacherID == teacherID && s.Date == date && s.TimeSlot == slot {
			return true, nil
		}
	}
	return false, nil
}

type mockOccupiedRepo struct {
	occupied []models.AvailabilitySlot
	// onList runs after the snapshot is taken, simulating a booking that
	// commits while a listing is in flight.
	onList func()
}

func (m *mockOccupiedRepo) ListOccupied(ctx context.Context, filter models.AvailabilityFilter) ([]models.AvailabilitySlot, error) {
	if m.onList != nil {
		defer func() {
			hook := m.onList
			m.onList = nil
			hook()
		}()
	}
	var out []models.AvailabilitySlot
	for _, s := range m.occupied {
		if filter.TeacherID != "" && s.TeacherID != filter.TeacherID {
			continue
		}
		if s.Date < filter.From || (filter.To != "" && s.Date > filter.To) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

type memoryCacheRepo struct {
	data        map[string][]byte
	counters    map[string]int64
	invalidated []string
	incrErr     error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{data: map[string][]byte{}, counters: map[string]int64{}}
}

func (m *memoryCacheRepo) Counter(ctx context.Context, key string) (int64, error) {
	return m.counters[key], nil
}

func (m *memoryCacheRepo) Incr(ctx context.Context, key string) (int64, error) {
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.counters[key]++
	return m.counters[key], nil
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	m.data = map[string][]byte{}
	return nil
}

var testNow = time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

func TestAvailableSlotsRemovesOccupied(t *testing.T) {
	declared := []models.AvailabilitySlot{
		{TeacherID: "t1", Date: "2024-05-10", TimeSlot: "09:00"},
		{TeacherID: "t1", Date: "2024-05-10", TimeSlot: "10:30"},
		{TeacherID: "t2", Date: "2024-05-10", TimeSlot: "09:00"},
	}
	occupied := []models.AvailabilitySlot{{TeacherID: "t1", Date: "2024-05-10", TimeSlot: "09:00"}}

	free := AvailableSlots(declared, occupied)
	require.Len(t, free, 2)
	assert.Equal(t, "10:30", free[0].TimeSlot)
	assert.Equal(t, "t2", free[1].TeacherID)

	assert.NotNil(t, AvailableSlots(nil, nil))
}

func TestAvailabilityReplaceDay(t *testing.T) {
	repo := &mockAvailabilityRepo{}
	cacheRepo := newMemoryCacheRepo()
	svc := NewAvailabilityService(repo, &mockOccupiedRepo{}, newTestCatalog(t, testNow),
		NewCacheService(cacheRepo, nil, time.Minute, nil, true), time.Minute, nil, nil)

	slots, err := svc.ReplaceDay(context.Background(), "t1", models.RoleTeacher, dto.ReplaceAvailabilityRequest{
		Date: "2024-05-11", TimeSlots: []string{"18:00", "09:00"},
	})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, []string{"09:00", "18:00"}, repo.replaced["t1/2024-05-11"])
	assert.Equal(t, int64(1), cacheRepo.counters[availabilityGenKey])
	assert.Empty(t, cacheRepo.invalidated)

	// clearing a day is allowed
	_, err = svc.ReplaceDay(context.Background(), "t1", models.RoleTeacher, dto.ReplaceAvailabilityRequest{Date: "2024-05-11"})
	require.NoError(t, err)
	assert.Empty(t, repo.replaced["t1/2024-05-11"])
}

func TestAvailabilityReplaceDayValidation(t *testing.T) {
	svc := NewAvailabilityService(&mockAvailabilityRepo{}, &mockOccupiedRepo{}, newTestCatalog(t, testNow), nil, 0, nil, nil)
	ctx := context.Background()

	_, err := svc.ReplaceDay(ctx, "s1", models.RoleStudent, dto.ReplaceAvailabilityRequest{Date: "2024-05-11", TimeSlots: []string{"09:00"}})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrForbidden))

	_, err = svc.ReplaceDay(ctx, "t1", models.RoleTeacher, dto.ReplaceAvailabilityRequest{Date: "2024-05-09", TimeSlots: []string{"09:00"}})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))

	_, err = svc.ReplaceDay(ctx, "t1", models.RoleTeacher, dto.ReplaceAvailabilityRequest{Date: "2024-05-11", TimeSlots: []string{"09:15"}})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))

	_, err = svc.ReplaceDay(ctx, "t1", models.RoleTeacher, dto.ReplaceAvailabilityRequest{Date: "2024-05-11", TimeSlots: []string{"09:00", "09:00"}})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))

	_, err = svc.ReplaceDay(ctx, "t1", models.RoleTeacher, dto.ReplaceAvailabilityRequest{Date: "11.05.2024", TimeSlots: []string{"09:00"}})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))
}

func TestAvailabilityReplaceDayKeepsBookedSlots(t *testing.T) {
	repo := &mockAvailabilityRepo{booked: []models.AvailabilitySlot{{TeacherID: "t1", Date: "2024-05-11", TimeSlot: "12:00"}}}
	cacheRepo := newMemoryCacheRepo()
	svc := NewAvailabilityService(repo, &mockOccupiedRepo{}, newTestCatalog(t, testNow),
		NewCacheService(cacheRepo, nil, time.Minute, nil, true), time.Minute, nil, nil)

	_, err := svc.ReplaceDay(context.Background(), "t1", models.RoleTeacher, dto.ReplaceAvailabilityRequest{Date: "2024-05-11", TimeSlots: []string{"09:00"}})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrConflict))
	assert.ErrorIs(t, err, repository.ErrSlotBooked)
	assert.Nil(t, repo.replaced)
	assert.Zero(t, cacheRepo.counters[availabilityGenKey])

	_, err = svc.ReplaceDay(context.Background(), "t1", models.RoleTeacher, dto.ReplaceAvailabilityRequest{Date: "2024-05-11", TimeSlots: []string{"09:00", "12:00"}})
	assert.NoError(t, err)
}

func TestAvailabilityListAvailableUsesCache(t *testing.T) {
	repo := &mockAvailabilityRepo{slots: []models.AvailabilitySlot{
		{TeacherID: "t1", Date: "2024-05-09", TimeSlot: "09:00"},
		{TeacherID: "t1", Date: "2024-05-10", TimeSlot: "09:00"},
		{TeacherID: "t1", Date: "2024-05-10", TimeSlot: "10:30"},
	}}
	occupied := &mockOccupiedRepo{occupied: []models.AvailabilitySlot{{TeacherID: "t1", Date: "2024-05-10", TimeSlot: "09:00"}}}
	cacheRepo := newMemoryCacheRepo()
	svc := NewAvailabilityService(repo, occupied, newTestCatalog(t, testNow),
		NewCacheService(cacheRepo, nil, time.Minute, nil, true), time.Minute, nil, nil)

	free, err := svc.ListAvailable(context.Background(), dto.AvailabilityQuery{From: "2024-05-01"})
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, "10:30", free[0].TimeSlot)
	assert.Contains(t, cacheRepo.data, "availability:g0:all:2024-05-10:2024-06-09")

	_, err = svc.ListAvailable(context.Background(), dto.AvailabilityQuery{From: "2024-05-01"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lists)

	svc.Invalidate(context.Background())
	_, err = svc.ListAvailable(context.Background(), dto.AvailabilityQuery{From: "2024-05-01"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lists)
}

func TestAvailabilityListAvailableEmptyWindow(t *testing.T) {
	svc := NewAvailabilityService(&mockAvailabilityRepo{}, &mockOccupiedRepo{}, newTestCatalog(t, testNow), nil, 0, nil, nil)
	free, err := svc.ListAvailable(context.Background(), dto.AvailabilityQuery{From: "2024-05-20", To: "2024-05-15"})
	require.NoError(t, err)
	assert.Empty(t, free)
	assert.NotNil(t, free)
}

func TestAvailabilityListAvailableIgnoresListingRacingABooking(t *testing.T) {
	repo := &mockAvailabilityRepo{slots: []models.AvailabilitySlot{
		{TeacherID: "t1", Date: "2024-05-10", TimeSlot: "09:00"},
		{TeacherID: "t1", Date: "2024-05-10", TimeSlot: "10:30"},
	}}
	occupied := &mockOccupiedRepo{}
	cacheRepo := newMemoryCacheRepo()
	svc := NewAvailabilityService(repo, occupied, newTestCatalog(t, testNow),
		NewCacheService(cacheRepo, nil, time.Minute, nil, true), time.Minute, nil, nil)
	ctx := context.Background()

	occupied.onList = func() {
		occupied.occupied = append(occupied.occupied, models.AvailabilitySlot{TeacherID: "t1", Date: "2024-05-10", TimeSlot: "10:30"})
		svc.Invalidate(ctx)
	}
	first, err := svc.ListAvailable(ctx, dto.AvailabilityQuery{TeacherID: "t1"})
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := svc.ListAvailable(ctx, dto.AvailabilityQuery{TeacherID: "t1"})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "09:00", second[0].TimeSlot)
	assert.Equal(t, 2, repo.lists)
}

func TestAvailabilityInvalidateFallsBackToDelete(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	cacheRepo.incrErr = assert.AnError
	svc := NewAvailabilityService(&mockAvailabilityRepo{}, &mockOccupiedRepo{}, newTestCatalog(t, testNow),
		NewCacheService(cacheRepo, nil, time.Minute, nil, true), time.Minute, nil, nil)

	svc.Invalidate(context.Background())
	assert.Equal(t, []string{"availability:*"}, cacheRepo.invalidated)
}
