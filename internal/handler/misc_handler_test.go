package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/internal/service"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
)

type lessonRequestMock struct{ got dto.LessonRequest }

func (m *lessonRequestMock) Submit(ctx context.Context, req dto.LessonRequest) error {
	m.got = req
	if req.Phone == "" {
		return appErrors.Clone(appErrors.ErrValidation, "phone is required")
	}
	return nil
}

func TestLessonRequestHandler(t *testing.T) {
	svc := &lessonRequestMock{}
	h := NewLessonRequestHandler(svc)

	c, w := newGinContext(http.MethodPost, "/lesson-requests", mustJSON(t, dto.LessonRequest{Name: "Anna", Phone: "+7 900 123-45-67", Subject: "ege"}))
	h.Submit(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "ege", svc.got.Subject)

	c, w = newGinContext(http.MethodPost, "/lesson-requests", mustJSON(t, dto.LessonRequest{Name: "Anna", Subject: "ege"}))
	h.Submit(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type openerMock struct {
	obj *service.StoredObject
	err error
}

func (m *openerMock) Open(ctx context.Context, token string) (*service.StoredObject, error) {
	return m.obj, m.err
}

func TestFileHandlerDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)

	h := NewFileHandler(&openerMock{obj: &service.StoredObject{File: f, Name: "sheet.pdf", MimeType: "application/pdf"}})
	c, w := newGinContext(http.MethodGet, "/files/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	h.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4", w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sheet.pdf")
}

func TestFileHandlerExpiredToken(t *testing.T) {
	h := NewFileHandler(&openerMock{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link")})
	c, w := newGinContext(http.MethodGet, "/files/old", nil)
	c.Params = gin.Params{{Key: "token", Value: "old"}}
	h.Download(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type authServiceMock struct {
	signedOut string
}

func (m *authServiceMock) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	if req.Email == "taken@example.com" {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	}
	return &models.AuthResponse{AccessToken: "a", RefreshToken: "r", User: models.UserInfo{Email: req.Email, Role: models.Role(req.Role)}}, nil
}

func (m *authServiceMock) SignIn(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	return nil, appErrors.ErrInvalidCredentials
}

func (m *authServiceMock) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.AuthResponse, error) {
	return &models.AuthResponse{AccessToken: "a2", RefreshToken: "r2"}, nil
}

func (m *authServiceMock) SignOut(ctx context.Context, userID, refreshToken string) error {
	m.signedOut = userID + ":" + refreshToken
	return nil
}

func TestAuthHandlerFlows(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)

	c, w := newGinContext(http.MethodPost, "/auth/signup", mustJSON(t, models.SignUpRequest{Email: "new@example.com", Password: "secret1", Role: "teacher"}))
	h.SignUp(c)
	assert.Equal(t, http.StatusCreated, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/signup", mustJSON(t, models.SignUpRequest{Email: "taken@example.com", Password: "secret1", Role: "teacher"}))
	h.SignUp(c)
	assert.Equal(t, http.StatusConflict, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/signin", mustJSON(t, models.LoginRequest{Email: "a@b.c", Password: "x"}))
	h.SignIn(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/signout", mustJSON(t, models.RefreshTokenRequest{RefreshToken: "r"}))
	asUser(c, "u1", models.RoleStudent)
	h.SignOut(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u1:r", svc.signedOut)
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{
		"postgres": PingFunc(func(ctx context.Context) error { return nil }),
		"redis":    PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})

	c, w := newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusOK, w.Code)
}
