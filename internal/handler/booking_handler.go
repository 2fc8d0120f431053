package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/internal/service"
	"github.com/noah-isme/tutor-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, studentID string, role models.Role, req dto.CreateBookingRequest) (*models.Booking, error)
	Cancel(ctx context.Context, bookingID, requesterID string) (*models.Booking, error)
	Confirm(ctx context.Context, bookingID, teacherID string) (*models.Booking, error)
	ListForUser(ctx context.Context, userID string, role models.Role) (*models.BookingOverview, error)
}

type scheduleExporter interface {
	Export(ctx context.Context, teacher service.Actor, q dto.ScheduleExportQuery) (*service.ScheduleExport, error)
}

// BookingHandler exposes booking lifecycle endpoints.
type BookingHandler struct {
	service  bookingService
	exporter scheduleExporter
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(svc bookingService, exporter scheduleExporter) *BookingHandler {
	return &BookingHandler{service: svc, exporter: exporter}
}

// Create godoc
// @Summary Book a slot
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookingRequest true "Booking"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope "slot not published"
// @Failure 409 {object} response.Envelope "slot taken"
// @Security BearerAuth
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid booking payload"))
		return
	}
	booking, err := h.service.Create(c.Request.Context(), actor.ID, actor.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// List godoc
// @Summary Caller's bookings split into upcoming and past
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	overview, err := h.service.ListForUser(c.Request.Context(), actor.ID, actor.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, overview)
}

// Cancel godoc
// @Summary Cancel a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope "already completed"
// @Security BearerAuth
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	booking, err := h.service.Cancel(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, booking)
}

// Confirm godoc
// @Summary Confirm a pending booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings/{id}/confirm [post]
func (h *BookingHandler) Confirm(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	booking, err := h.service.Confirm(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, booking)
}

// Export godoc
// @Summary Export the teacher's schedule
// @Tags Bookings
// @Produce text/csv
// @Produce application/pdf
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /bookings/export [get]
func (h *BookingHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var q dto.ScheduleExportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, invalidPayload(err, "invalid export query"))
		return
	}
	out, err := h.exporter.Export(c.Request.Context(), actor, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	c.Data(http.StatusOK, out.ContentType, out.Body)
}
