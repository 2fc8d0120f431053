package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/internal/service"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
	"github.com/noah-isme/tutor-api/pkg/response"
	"github.com/noah-isme/tutor-api/pkg/storage"
)

type cheatSheetService interface {
	CreateTopic(ctx context.Context, teacher service.Actor, req dto.CreateTopicRequest) (*models.CheatSheetTopic, error)
	ListTopics(ctx context.Context, actor service.Actor) ([]models.CheatSheetTopic, error)
	DeleteTopic(ctx context.Context, teacherID, topicID string) error
	Attach(ctx context.Context, teacher service.Actor, req dto.AttachCheatSheetRequest, file storage.Upload) (*models.CheatSheet, error)
	ListForStudent(ctx context.Context, teacherID, studentID string) ([]models.CheatSheet, error)
	ListMine(ctx context.Context, studentID, topicID string) ([]models.CheatSheet, error)
	DownloadLink(ctx context.Context, actor service.Actor, sheetID string) (*models.DownloadLink, error)
	Delete(ctx context.Context, teacherID, sheetID string) error
}

// CheatSheetHandler exposes topics and per-student reference sheets.
type CheatSheetHandler struct {
	service cheatSheetService
}

// NewCheatSheetHandler constructs the handler.
func NewCheatSheetHandler(svc cheatSheetService) *CheatSheetHandler {
	return &CheatSheetHandler{service: svc}
}

// Topics godoc
// @Summary List topics
// @Description Teachers see their own topics; students see topics holding at least one of their sheets.
// @Tags CheatSheets
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /cheatsheets/topics [get]
func (h *CheatSheetHandler) Topics(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	topics, err := h.service.ListTopics(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, topics)
}

// CreateTopic godoc
// @Summary Create a topic
// @Tags CheatSheets
// @Accept json
// @Produce json
// @Param payload body dto.CreateTopicRequest true "Topic"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /cheatsheets/topics [post]
func (h *CheatSheetHandler) CreateTopic(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid topic payload"))
		return
	}
	topic, err := h.service.CreateTopic(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, topic)
}

// DeleteTopic godoc
// @Summary Delete a topic with its sheets
// @Tags CheatSheets
// @Param id path string true "Topic ID"
// @Success 204
// @Security BearerAuth
// @Router /cheatsheets/topics/{id} [delete]
func (h *CheatSheetHandler) DeleteTopic(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.DeleteTopic(c.Request.Context(), actor.ID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Attach godoc
// @Summary Upload a sheet for a student
// @Tags CheatSheets
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Sheet"
// @Param student_id formData string true "Student ID"
// @Param topic_id formData string true "Topic ID"
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /cheatsheets [post]
func (h *CheatSheetHandler) Attach(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AttachCheatSheetRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid cheat sheet form"))
		return
	}
	upload, release, err := formUpload(c, "file", true)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer release()

	sheet, err := h.service.Attach(c.Request.Context(), actor, req, *upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sheet)
}

// List godoc
// @Summary List sheets
// @Description Teachers pass student_id; students may filter by topic_id.
// @Tags CheatSheets
// @Produce json
// @Param student_id query string false "Student ID (teachers)"
// @Param topic_id query string false "Topic ID (students)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /cheatsheets [get]
func (h *CheatSheetHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var (
		sheets []models.CheatSheet
		err    error
	)
	if actor.Role.CanAssignWork() {
		studentID := c.Query("student_id")
		if studentID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id is required"))
			return
		}
		sheets, err = h.service.ListForStudent(c.Request.Context(), actor.ID, studentID)
	} else {
		sheets, err = h.service.ListMine(c.Request.Context(), actor.ID, c.Query("topic_id"))
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sheets)
}

// Download godoc
// @Summary Signed link to a sheet
// @Tags CheatSheets
// @Produce json
// @Param id path string true "Sheet ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /cheatsheets/{id}/download [get]
func (h *CheatSheetHandler) Download(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	link, err := h.service.DownloadLink(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}

// Delete godoc
// @Summary Delete a sheet and its file
// @Tags CheatSheets
// @Param id path string true "Sheet ID"
// @Success 204
// @Security BearerAuth
// @Router /cheatsheets/{id} [delete]
func (h *CheatSheetHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor.ID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
