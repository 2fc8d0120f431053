package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/pkg/response"
)

type availabilityService interface {
	ReplaceDay(ctx context.Context, teacherID string, role models.Role, req dto.ReplaceAvailabilityRequest) ([]models.AvailabilitySlot, error)
	ListTeacherAvailability(ctx context.Context, teacherID, from, to string) ([]models.AvailabilitySlot, error)
	ListAvailable(ctx context.Context, q dto.AvailabilityQuery) ([]models.AvailabilitySlot, error)
}

// AvailabilityHandler exposes teacher timetables and the open-slot listing.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(svc availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// ListAvailable godoc
// @Summary List bookable slots
// @Description Declared slots without an active booking. Without teacher_id every teacher is listed; each slot carries its teacher_id.
// @Tags Availability
// @Produce json
// @Param teacher_id query string false "Teacher ID"
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /availability [get]
func (h *AvailabilityHandler) ListAvailable(c *gin.Context) {
	var q dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, invalidPayload(err, "invalid availability query"))
		return
	}
	slots, err := h.service.ListAvailable(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil, map[string]interface{}{"count": len(slots)})
}

// Mine godoc
// @Summary Teacher's declared slots
// @Tags Availability
// @Produce json
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /availability/mine [get]
func (h *AvailabilityHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	slots, err := h.service.ListTeacherAvailability(c.Request.Context(), actor.ID, c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, slots)
}

// ReplaceDay godoc
// @Summary Replace a day's slots
// @Description Replaces every slot of the date. Withdrawing a booked slot is rejected.
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body dto.ReplaceAvailabilityRequest true "Date and slots"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /availability [put]
func (h *AvailabilityHandler) ReplaceDay(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ReplaceAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid availability payload"))
		return
	}
	slots, err := h.service.ReplaceDay(c.Request.Context(), actor.ID, actor.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, slots)
}
