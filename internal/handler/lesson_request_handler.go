package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/pkg/response"
)

type lessonRequestService interface {
	Submit(ctx context.Context, req dto.LessonRequest) error
}

// LessonRequestHandler accepts the anonymous "request a lesson" form.
type LessonRequestHandler struct {
	service lessonRequestService
}

// NewLessonRequestHandler constructs the handler.
func NewLessonRequestHandler(svc lessonRequestService) *LessonRequestHandler {
	return &LessonRequestHandler{service: svc}
}

// Submit godoc
// @Summary Request a lesson
// @Description Validates the form and notifies the operator by email. Nothing is stored.
// @Tags Public
// @Accept json
// @Produce json
// @Param payload body dto.LessonRequest true "Form"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /lesson-requests [post]
func (h *LessonRequestHandler) Submit(c *gin.Context) {
	var req dto.LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid request form"))
		return
	}
	if err := h.service.Submit(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"status": "received"})
}
