package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/internal/service"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
)

type bookingServiceMock struct {
	createReq  dto.CreateBookingRequest
	createErr  error
	cancelBy   string
	overview   *models.BookingOverview
	exportQ    dto.ScheduleExportQuery
	exportResp *service.ScheduleExport
}

func (m *bookingServiceMock) Create(ctx context.Context, studentID string, role models.Role, req dto.CreateBookingRequest) (*models.Booking, error) {
	m.createReq = req
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.Booking{ID: "b1", StudentID: studentID, TeacherID: req.TeacherID, Date: req.Date, TimeSlot: req.TimeSlot, Status: models.BookingPending}, nil
}

func (m *bookingServiceMock) Cancel(ctx context.Context, bookingID, requesterID string) (*models.Booking, error) {
	m.cancelBy = requesterID
	return &models.Booking{ID: bookingID, Status: models.BookingCancelled}, nil
}

func (m *bookingServiceMock) Confirm(ctx context.Context, bookingID, teacherID string) (*models.Booking, error) {
	return nil, appErrors.Clone(appErrors.ErrForbidden, "only the booking's teacher can confirm")
}

func (m *bookingServiceMock) ListForUser(ctx context.Context, userID string, role models.Role) (*models.BookingOverview, error) {
	return m.overview, nil
}

func (m *bookingServiceMock) Export(ctx context.Context, teacher service.Actor, q dto.ScheduleExportQuery) (*service.ScheduleExport, error) {
	m.exportQ = q
	return m.exportResp, nil
}

func TestBookingHandlerCreate(t *testing.T) {
	svc := &bookingServiceMock{}
	h := NewBookingHandler(svc, svc)

	body := mustJSON(t, dto.CreateBookingRequest{TeacherID: "t1", Date: "2024-05-11", TimeSlot: "10:30", Subject: "Algebra"})
	c, w := newGinContext(http.MethodPost, "/bookings", body)
	asUser(c, "s1", models.RoleStudent)

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "10:30", svc.createReq.TimeSlot)
	assert.Contains(t, string(decode(t, w).Data), `"status":"pending"`)
}

func TestBookingHandlerCreateSlotTaken(t *testing.T) {
	svc := &bookingServiceMock{createErr: appErrors.Clone(appErrors.ErrSlotTaken, "slot already booked")}
	h := NewBookingHandler(svc, svc)

	body := mustJSON(t, dto.CreateBookingRequest{TeacherID: "t1", Date: "2024-05-11", TimeSlot: "10:30", Subject: "Algebra"})
	c, w := newGinContext(http.MethodPost, "/bookings", body)
	asUser(c, "s1", models.RoleStudent)

	h.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrSlotTaken.Code, decode(t, w).Error.Code)
}

func TestBookingHandlerRequiresClaims(t *testing.T) {
	h := NewBookingHandler(&bookingServiceMock{}, nil)
	c, w := newGinContext(http.MethodGet, "/bookings", nil)

	h.List(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBookingHandlerCancelAndConfirm(t *testing.T) {
	svc := &bookingServiceMock{}
	h := NewBookingHandler(svc, svc)

	c, w := newGinContext(http.MethodPost, "/bookings/b1/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	asUser(c, "t1", models.RoleTeacher)
	h.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", svc.cancelBy)

	c, w = newGinContext(http.MethodPost, "/bookings/b1/confirm", nil)
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	asUser(c, "t2", models.RoleTeacher)
	h.Confirm(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBookingHandlerExport(t *testing.T) {
	svc := &bookingServiceMock{exportResp: &service.ScheduleExport{Filename: "schedule.csv", ContentType: "text/csv", Body: []byte("Date,Time\n")}}
	h := NewBookingHandler(svc, svc)

	c, w := newGinContext(http.MethodGet, "/bookings/export?format=csv&from=2024-05-01", nil)
	asUser(c, "t1", models.RoleTeacher)
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", svc.exportQ.Format)
	assert.Equal(t, "2024-05-01", svc.exportQ.From)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "schedule.csv")
}
