package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-api/internal/service"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
	"github.com/noah-isme/tutor-api/pkg/response"
)

type objectOpener interface {
	Open(ctx context.Context, token string) (*service.StoredObject, error)
}

// FileHandler streams stored objects behind signed tokens.
type FileHandler struct {
	files objectOpener
}

// NewFileHandler constructs the handler.
func NewFileHandler(files objectOpener) *FileHandler {
	return &FileHandler{files: files}
}

// Download godoc
// @Summary Download a stored file
// @Description The token comes from a download link and expires.
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	obj, err := h.files.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer obj.File.Close() //nolint:errcheck

	info, err := obj.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file"))
		return
	}
	contentType := obj.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", obj.Name))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, obj.File, nil)
}
