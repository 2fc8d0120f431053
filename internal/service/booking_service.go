package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/internal/repository"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
	mailer "github.com/noah-isme/tutor-api/pkg/mail"
)

type bookingRepository interface {
	Create(ctx context.Context, b *models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Booking, error)
	ListByTeacher(ctx context.Context, teacherID, from, to string) ([]models.Booking, error)
	Cancel(ctx context.Context, id, by string, at time.Time) (*models.Booking, error)
	Confirm(ctx context.Context, id string, at time.Time) (*models.Booking, error)
}

type slotPublisher interface {
	IsPublished(ctx context.Context, teacherID, date, slot string) (bool, error)
	Invalidate(ctx context.Context)
}

type profileLookup interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
	RequireRole(ctx context.Context, id string, role models.Role) (*models.Profile, error)
}

type emailNotifier interface {
	Notify(msg *mailer.Message)
}

// BookingService reserves published slots and manages the booking lifecycle.
type BookingService struct {
	repo      bookingRepository
	slots     slotPublisher
	profiles  profileLookup
	notifier  emailNotifier
	catalog   *SlotCatalog
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewBookingService constructs a BookingService. notifier may be nil.
func NewBookingService(repo bookingRepository, slots slotPublisher, profiles profileLookup, notifier emailNotifier, catalog *SlotCatalog, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		repo:      repo,
		slots:     slots,
		profiles:  profiles,
		notifier:  notifier,
		catalog:   catalog,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create books a published slot for the student. A concurrent booking of the
// same slot loses on the storage constraint and gets ErrSlotTaken.
func (s *BookingService) Create(ctx context.Context, studentID string, role models.Role, req dto.CreateBookingRequest) (*models.Booking, error) {
	if !role.CanBook() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can book lessons")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if s.catalog.IsPast(req.Date) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot book a date in the past")
	}
	if !s.catalog.Valid(req.TimeSlot) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown time slot")
	}

	teacher, err := s.profiles.RequireRole(ctx, req.TeacherID, models.RoleTeacher)
	if err != nil {
		return nil, err
	}
	published, err := s.slots.IsPublished(ctx, req.TeacherID, req.Date, req.TimeSlot)
	if err != nil {
		return nil, err
	}
	if !published {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "time slot is not offered by this teacher")
	}

	now := s.now()
	booking := &models.Booking{
		ID:          uuid.NewString(),
		TeacherID:   req.TeacherID,
		StudentID:   studentID,
		Date:        req.Date,
		TimeSlot:    req.TimeSlot,
		Subject:     strings.TrimSpace(req.Subject),
		ContactInfo: strings.TrimSpace(req.ContactInfo),
		Status:      models.BookingPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "time slot is not offered by this teacher")
		}
		if repository.IsUniqueViolation(err) {
			s.metrics.BookingEvent("conflict")
			return nil, appErrors.Wrap(err, appErrors.ErrSlotTaken.Code, appErrors.ErrSlotTaken.Status, appErrors.ErrSlotTaken.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}

	s.slots.Invalidate(ctx)
	s.metrics.BookingEvent("created")
	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("teacher_id", booking.TeacherID),
		zap.String("date", booking.Date),
		zap.String("time_slot", booking.TimeSlot))

	s.notifyCreated(ctx, booking, teacher)
	return booking, nil
}

// Cancel marks the booking cancelled. Only its student or teacher may do so.
// Cancelling twice returns the cancelled booking unchanged.
func (s *BookingService) Cancel(ctx context.Context, bookingID, requesterID string) (*models.Booking, error) {
	booking, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.StudentID != requesterID && booking.TeacherID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a participant of this booking")
	}
	switch booking.Status {
	case models.BookingCancelled:
		return booking, nil
	case models.BookingCompleted:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "completed bookings cannot be cancelled")
	}

	updated, err := s.repo.Cancel(ctx, bookingID, requesterID, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.cancelRaced(ctx, bookingID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}

	s.slots.Invalidate(ctx)
	s.metrics.BookingEvent("cancelled")
	s.logger.Info("booking cancelled", zap.String("booking_id", bookingID), zap.String("by", requesterID))
	return updated, nil
}

// cancelRaced resolves a cancel whose conditional update matched nothing
// because another transition landed first.
func (s *BookingService) cancelRaced(ctx context.Context, bookingID string) (*models.Booking, error) {
	current, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case models.BookingCancelled:
		return current, nil
	case models.BookingCompleted:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "completed bookings cannot be cancelled")
	}
	return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "booking changed concurrently")
}

// Confirm moves a pending booking to confirmed. Only the booking's teacher may confirm.
func (s *BookingService) Confirm(ctx context.Context, bookingID, teacherID string) (*models.Booking, error) {
	booking, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the booked teacher can confirm")
	}
	switch booking.Status {
	case models.BookingConfirmed:
		return booking, nil
	case models.BookingPending:
	default:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only pending bookings can be confirmed")
	}

	updated, err := s.repo.Confirm(ctx, bookingID, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "booking changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm booking")
	}
	s.metrics.BookingEvent("confirmed")
	return updated, nil
}

// ListForUser returns the caller's bookings split into upcoming and past.
func (s *BookingService) ListForUser(ctx context.Context, userID string, role models.Role) (*models.BookingOverview, error) {
	var (
		bookings []models.Booking
		err      error
	)
	if role == models.RoleTeacher {
		bookings, err = s.repo.ListByTeacher(ctx, userID, "", "")
	} else {
		bookings, err = s.repo.ListByStudent(ctx, userID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return SplitBookings(bookings, s.catalog.Today()), nil
}

// SplitBookings sorts bookings into upcoming and past relative to today.
// Cancelled and completed bookings always count as past.
func SplitBookings(bookings []models.Booking, today string) *models.BookingOverview {
	overview := &models.BookingOverview{Upcoming: []models.Booking{}, Past: []models.Booking{}}
	for _, b := range bookings {
		if b.Date < today || b.Status == models.BookingCancelled || b.Status == models.BookingCompleted {
			overview.Past = append(overview.Past, b)
			continue
		}
		overview.Upcoming = append(overview.Upcoming, b)
	}
	return overview
}

func (s *BookingService) find(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

func (s *BookingService) notifyCreated(ctx context.Context, b *models.Booking, teacher *models.Profile) {
	if s.notifier == nil {
		return
	}
	studentName := b.StudentID
	if student, err := s.profiles.Get(ctx, b.StudentID); err == nil {
		studentName = student.DisplayName()
	}
	s.notifier.Notify(&mailer.Message{
		Subject:  "New lesson booking",
		Template: mailer.TemplateBookingCreated,
		Data: map[string]string{
			"StudentName": studentName,
			"TeacherName": teacher.DisplayName(),
			"Date":        b.Date,
			"TimeSlot":    b.TimeSlot,
			"Subject":     b.Subject,
			"ContactInfo": b.ContactInfo,
		},
	})
}
