package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/internal/service"
	"github.com/noah-isme/tutor-api/pkg/response"
	"github.com/noah-isme/tutor-api/pkg/storage"
)

type homeworkService interface {
	Create(ctx context.Context, teacher service.Actor, req dto.CreateHomeworkRequest, file storage.Upload) (*dto.HomeworkDetail, error)
	List(ctx context.Context, teacherID string) ([]models.Homework, error)
	Detail(ctx context.Context, teacherID, homeworkID string) (*dto.HomeworkDetail, error)
	Assign(ctx context.Context, teacherID, homeworkID string, req dto.AssignHomeworkRequest) (*dto.HomeworkDetail, error)
	Delete(ctx context.Context, teacherID, homeworkID string) error
	ListAssigned(ctx context.Context, studentID string) ([]models.AssignedHomework, error)
	Submit(ctx context.Context, studentID, homeworkID string, req dto.SubmitHomeworkRequest, file *storage.Upload) (*models.StudentHomework, error)
	DownloadLink(ctx context.Context, actor service.Actor, homeworkID string) (*models.DownloadLink, error)
	SolutionLink(ctx context.Context, actor service.Actor, homeworkID, studentID string) (*models.DownloadLink, error)
}

// HomeworkHandler exposes homework authoring, assignment and submission.
type HomeworkHandler struct {
	service homeworkService
}

// NewHomeworkHandler constructs the handler.
func NewHomeworkHandler(svc homeworkService) *HomeworkHandler {
	return &HomeworkHandler{service: svc}
}

// Create godoc
// @Summary Create a homework
// @Tags Homework
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Assignment file"
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param student_ids formData []string false "Students to assign"
// @Param answer_key formData []string false "Twelve EGE answers"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /homeworks [post]
func (h *HomeworkHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateHomeworkRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid homework form"))
		return
	}
	upload, release, err := formUpload(c, "file", true)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer release()

	detail, err := h.service.Create(c.Request.Context(), actor, req, *upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List godoc
// @Summary Teacher's homeworks, newest first
// @Tags Homework
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /homeworks [get]
func (h *HomeworkHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Detail godoc
// @Summary Homework with its assignments and submissions
// @Tags Homework
// @Produce json
// @Param id path string true "Homework ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /homeworks/{id} [get]
func (h *HomeworkHandler) Detail(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	detail, err := h.service.Detail(c.Request.Context(), actor.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Assign godoc
// @Summary Assign a homework to more students
// @Tags Homework
// @Accept json
// @Produce json
// @Param id path string true "Homework ID"
// @Param payload body dto.AssignHomeworkRequest true "Students"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /homeworks/{id}/assign [post]
func (h *HomeworkHandler) Assign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AssignHomeworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid assignment payload"))
		return
	}
	detail, err := h.service.Assign(c.Request.Context(), actor.ID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Delete godoc
// @Summary Delete a homework and its files
// @Tags Homework
// @Param id path string true "Homework ID"
// @Success 204
// @Security BearerAuth
// @Router /homeworks/{id} [delete]
func (h *HomeworkHandler) Delete(c *gin.Context) {
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

// Assigned godoc
// @Summary Student's assigned homeworks
// @Tags Homework
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /homeworks/assigned [get]
func (h *HomeworkHandler) Assigned(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.ListAssigned(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Submit godoc
// @Summary Submit a solution
// @Description Requires a file, EGE answers or both. Answers are scored when the homework has a key.
// @Tags Homework
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Homework ID"
// @Param file formData file false "Solution file"
// @Param answers formData []string false "Twelve EGE answers"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /homeworks/{id}/submit [post]
func (h *HomeworkHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitHomeworkRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid submission form"))
		return
	}
	upload, release, err := formUpload(c, "file", false)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer release()

	submission, err := h.service.Submit(c.Request.Context(), actor.ID, c.Param("id"), req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, submission)
}

// Download godoc
// @Summary Signed link to the assignment file
// @Tags Homework
// @Produce json
// @Param id path string true "Homework ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /homeworks/{id}/download [get]
func (h *HomeworkHandler) Download(c *gin.Context) {
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

// Solution godoc
// @Summary Signed link to a student's solution
// @Tags Homework
// @Produce json
// @Param id path string true "Homework ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /homeworks/{id}/solutions/{studentId} [get]
func (h *HomeworkHandler) Solution(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	link, err := h.service.SolutionLink(c.Request.Context(), actor, c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}
