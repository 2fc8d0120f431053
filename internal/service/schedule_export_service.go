package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
	"github.com/noah-isme/tutor-api/pkg/export"
)

type teacherBookingLister interface {
	ListByTeacher(ctx context.Context, teacherID, from, to string) ([]models.Booking, error)
}

type profileResolver interface {
	Lookup(ctx context.Context, ids []string) (map[string]models.Profile, error)
}

var scheduleHeaders = []string{"Date", "Time", "Student", "Subject", "Contact", "Status"}

// ScheduleExport is a rendered timetable.
type ScheduleExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ScheduleExportService renders a teacher's bookings as CSV or PDF.
type ScheduleExportService struct {
	bookings  teacherBookingLister
	profiles  profileResolver
	catalog   *SlotCatalog
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleExportService constructs the exporter.
func NewScheduleExportService(bookings teacherBookingLister, profiles profileResolver, catalog *SlotCatalog, validate *validator.Validate, logger *zap.Logger) *ScheduleExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleExportService{bookings: bookings, profiles: profiles, catalog: catalog, validator: validate, logger: logger}
}

// Export renders the teacher's bookings in [from, to]. The window defaults to
// the next thirty days.
func (s *ScheduleExportService) Export(ctx context.Context, teacher Actor, q dto.ScheduleExportQuery) (*ScheduleExport, error) {
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can export schedules")
	}
	if err := s.validator.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	format, err := export.ParseFormat(q.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export format")
	}
	from := q.From
	if from == "" {
		from = s.catalog.Today()
	}
	to := q.To
	if to == "" {
		to = s.catalog.AddDays(from, defaultAvailabilityDays)
	}

	bookings, err := s.bookings.ListByTeacher(ctx, teacher.ID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
	}
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.StudentID)
	}
	students, err := s.profiles.Lookup(ctx, dedupe(ids))
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Title:   fmt.Sprintf("Schedule %s to %s", from, to),
		Headers: scheduleHeaders,
		Rows:    make([]map[string]string, 0, len(bookings)),
	}
	for _, b := range bookings {
		name := b.StudentID
		if p, ok := students[b.StudentID]; ok {
			name = p.DisplayName()
		}
		data.Rows = append(data.Rows, map[string]string{
			"Date":    b.Date,
			"Time":    b.TimeSlot,
			"Student": name,
			"Subject": b.Subject,
			"Contact": b.ContactInfo,
			"Status":  string(b.Status),
		})
	}

	body, err := export.Render(format, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule")
	}
	s.logger.Info("schedule exported", zap.String("teacher_id", teacher.ID), zap.String("format", string(format)), zap.Int("rows", len(data.Rows)))
	return &ScheduleExport{
		Filename:    fmt.Sprintf("schedule_%s_%s.%s", from, to, format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}
