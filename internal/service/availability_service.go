package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/internal/repository"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
)

const (
	availabilityCachePrefix = "availability:"
	availabilityGenKey      = "availability-gen"
	defaultAvailabilityDays = 30
)

type availabilityRepository interface {
	ReplaceDay(ctx context.Context, teacherID, date string, slots []string) error
	List(ctx context.Context, filter models.AvailabilityFilter) ([]models.AvailabilitySlot, error)
	Exists(ctx context.Context, teacherID, date, slot string) (bool, error)
}

type occupiedSlotRepository interface {
	ListOccupied(ctx context.Context, filter models.AvailabilityFilter) ([]models.AvailabilitySlot, error)
}

// AvailabilityService publishes teacher timetables and answers which slots
// can still be booked.
type AvailabilityService struct {
	repo      availabilityRepository
	bookings  occupiedSlotRepository
	catalog   *SlotCatalog
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs the service. cache may be nil.
func NewAvailabilityService(repo availabilityRepository, bookings occupiedSlotRepository, catalog *SlotCatalog, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, bookings: bookings, catalog: catalog, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// ReplaceDay swaps the teacher's slots for one date with req.TimeSlots. Slots
// that already carry an active booking cannot be withdrawn.
func (s *AvailabilityService) ReplaceDay(ctx context.Context, teacherID string, role models.Role, req dto.ReplaceAvailabilityRequest) ([]models.AvailabilitySlot, error) {
	if !role.CanPublishAvailability() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can publish availability")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if s.catalog.IsPast(req.Date) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is in the past")
	}

	seen := make(map[string]struct{}, len(req.TimeSlots))
	slots := make([]string, 0, len(req.TimeSlots))
	for _, slot := range req.TimeSlots {
		if !s.catalog.Valid(slot) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown time slot %q", slot))
		}
		if _, dup := seen[slot]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate time slot %q", slot))
		}
		seen[slot] = struct{}{}
		slots = append(slots, slot)
	}
	s.catalog.Sort(slots)

	if err := s.repo.ReplaceDay(ctx, teacherID, req.Date, slots); err != nil {
		if errors.Is(err, repository.ErrSlotBooked) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "a withdrawn slot is already booked")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability")
	}
	s.invalidate(ctx)

	s.logger.Info("availability replaced", zap.String("teacher_id", teacherID), zap.String("date", req.Date), zap.Int("slots", len(slots)))

	result := make([]models.AvailabilitySlot, 0, len(slots))
	for _, slot := range slots {
		result = append(result, models.AvailabilitySlot{TeacherID: teacherID, Date: req.Date, TimeSlot: slot})
	}
	return result, nil
}

// ListTeacherAvailability returns everything the teacher declared in the window.
func (s *AvailabilityService) ListTeacherAvailability(ctx context.Context, teacherID, from, to string) ([]models.AvailabilitySlot, error) {
	slots, err := s.repo.List(ctx, models.AvailabilityFilter{TeacherID: teacherID, From: from, To: to})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	return slots, nil
}

// ListAvailable returns declared slots without an active booking. The window
// never starts before today and defaults to thirty days.
func (s *AvailabilityService) ListAvailable(ctx context.Context, q dto.AvailabilityQuery) ([]models.AvailabilitySlot, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}
	filter := s.window(q)
	if filter.To < filter.From {
		return []models.AvailabilitySlot{}, nil
	}

	// The generation is read before the queries, so a listing computed
	// across a concurrent invalidation lands under a key nobody reads.
	gen, cacheable := s.cache.Generation(ctx, availabilityGenKey)
	key := availabilityCacheKey(gen, filter)
	if cacheable {
		var cached []models.AvailabilitySlot
		if s.cache.Get(ctx, key, &cached) {
			return cached, nil
		}
	}

	declared, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	occupied, err := s.bookings.ListOccupied(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}

	free := AvailableSlots(declared, occupied)
	if cacheable {
		s.cache.Set(ctx, key, free, s.cacheTTL)
	}
	return free, nil
}

// IsPublished reports whether the teacher declared slot on date.
func (s *AvailabilityService) IsPublished(ctx context.Context, teacherID, date, slot string) (bool, error) {
	ok, err := s.repo.Exists(ctx, teacherID, date, slot)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check availability")
	}
	return ok, nil
}

// Invalidate drops cached listings after a booking change.
func (s *AvailabilityService) Invalidate(ctx context.Context) {
	s.invalidate(ctx)
}

func (s *AvailabilityService) invalidate(ctx context.Context) {
	if !s.cache.Bump(ctx, availabilityGenKey) {
		s.cache.Invalidate(ctx, availabilityCachePrefix+"*")
	}
}

func (s *AvailabilityService) window(q dto.AvailabilityQuery) models.AvailabilityFilter {
	today := s.catalog.Today()
	from := q.From
	if from == "" || from < today {
		from = today
	}
	to := q.To
	if to == "" {
		to = s.catalog.AddDays(from, defaultAvailabilityDays)
	}
	return models.AvailabilityFilter{TeacherID: q.TeacherID, From: from, To: to}
}

func availabilityCacheKey(gen int64, f models.AvailabilityFilter) string {
	teacher := f.TeacherID
	if teacher == "" {
		teacher = "all"
	}
	return fmt.Sprintf("%sg%d:%s:%s:%s", availabilityCachePrefix, gen, teacher, f.From, f.To)
}

// AvailableSlots removes every occupied slot from declared, keeping the order
// of declared. The result is never nil.
func AvailableSlots(declared, occupied []models.AvailabilitySlot) []models.AvailabilitySlot {
	taken := make(map[models.SlotKey]struct{}, len(occupied))
	for _, o := range occupied {
		taken[o.Key()] = struct{}{}
	}
	free := make([]models.AvailabilitySlot, 0, len(declared))
	for _, d := range declared {
		if _, ok := taken[d.Key()]; ok {
			continue
		}
		free = append(free, d)
	}
	return free
}
