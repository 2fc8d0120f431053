package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
)

type stubTeacherBookings struct {
	from, to string
	bookings []models.Booking
}

func (s *stubTeacherBookings) ListByTeacher(ctx context.Context, teacherID, from, to string) ([]models.Booking, error) {
	s.from, s.to = from, to
	return s.bookings, nil
}

func TestScheduleExportCSV(t *testing.T) {
	lister := &stubTeacherBookings{bookings: []models.Booking{
		{StudentID: "s1", Date: "2024-05-11", TimeSlot: "09:00", Subject: "Algebra", Status: models.BookingConfirmed},
		{StudentID: "s-unknown", Date: "2024-05-12", TimeSlot: "12:00", Subject: "Geometry", Status: models.BookingPending},
	}}
	profiles := NewProfileService(newMockProfileRepo(models.Profile{ID: "s1", Role: models.RoleStudent, FirstName: "Anna", LastName: "K"}), nil, nil)
	svc := NewScheduleExportService(lister, profiles, newTestCatalog(t, testNow), nil, nil)

	out, err := svc.Export(context.Background(), Actor{ID: "t1", Role: models.RoleTeacher}, dto.ScheduleExportQuery{})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-10", lister.from)
	assert.Equal(t, "2024-06-09", lister.to)
	assert.Equal(t, "text/csv", out.ContentType)
	assert.Equal(t, "schedule_2024-05-10_2024-06-09.csv", out.Filename)
	assert.True(t, bytes.Contains(out.Body, []byte("Anna K")))
	assert.True(t, bytes.Contains(out.Body, []byte("s-unknown")))
}

func TestScheduleExportPDFAndRejections(t *testing.T) {
	svc := NewScheduleExportService(&stubTeacherBookings{}, NewProfileService(newMockProfileRepo(), nil, nil), newTestCatalog(t, testNow), nil, nil)
	ctx := context.Background()

	out, err := svc.Export(ctx, Actor{ID: "t1", Role: models.RoleTeacher}, dto.ScheduleExportQuery{Format: "pdf", From: "2024-05-01", To: "2024-05-31"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.True(t, bytes.HasPrefix(out.Body, []byte("%PDF")))

	_, err = svc.Export(ctx, Actor{ID: "s1", Role: models.RoleStudent}, dto.ScheduleExportQuery{})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrForbidden))

	_, err = svc.Export(ctx, Actor{ID: "t1", Role: models.RoleTeacher}, dto.ScheduleExportQuery{Format: "xlsx"})
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))
}
