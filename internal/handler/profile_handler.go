package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/pkg/response"
)

type profileService interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
	Update(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.Profile, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.Profile, error)
}

// ProfileHandler serves the caller's profile and the teacher/student directories.
type ProfileHandler struct {
	service profileService
}

// NewProfileHandler constructs the handler.
func NewProfileHandler(svc profileService) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

// Me godoc
// @Summary Current profile
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me [get]
func (h *ProfileHandler) Me(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	profile, err := h.service.Get(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

// UpdateMe godoc
// @Summary Update current profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Param payload body models.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me [put]
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid profile payload"))
		return
	}
	profile, err := h.service.Update(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

// Students godoc
// @Summary List students
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students [get]
func (h *ProfileHandler) Students(c *gin.Context) {
	h.listByRole(c, models.RoleStudent)
}

// Teachers godoc
// @Summary List teachers
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *ProfileHandler) Teachers(c *gin.Context) {
	h.listByRole(c, models.RoleTeacher)
}

func (h *ProfileHandler) listByRole(c *gin.Context, role models.Role) {
	profiles, err := h.service.ListByRole(c.Request.Context(), role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profiles, nil, map[string]interface{}{"count": len(profiles)})
}
