package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-api/internal/middleware"
	"github.com/noah-isme/tutor-api/internal/service"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
	"github.com/noah-isme/tutor-api/pkg/response"
	"github.com/noah-isme/tutor-api/pkg/storage"
)

// actorFromContext returns the authenticated caller or writes 401.
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return service.Actor{}, false
	}
	return service.Actor{ID: claims.UserID, Role: claims.Role}, true
}

func invalidPayload(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}

// formUpload opens the multipart file in field. A missing optional file
// yields a nil upload.
func formUpload(c *gin.Context, field string, required bool) (*storage.Upload, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return nil, func() {}, nil
		}
		return nil, nil, invalidPayload(err, field+" file is required")
	}
	file, err := header.Open()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	upload := &storage.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Content:  file,
	}
	return upload, func() { _ = file.Close() }, nil
}
