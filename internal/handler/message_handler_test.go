package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/internal/realtime"
	"github.com/noah-isme/tutor-api/internal/service"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
)

type messageServiceMock struct {
	hub  *realtime.Hub
	sent []string
}

func (m *messageServiceMock) key(actor service.Actor, counterpartID string) (models.ConversationKey, error) {
	if counterpartID == "ghost" {
		return models.ConversationKey{}, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	if actor.Role == models.RoleTeacher {
		return models.ConversationKey{TeacherID: actor.ID, StudentID: counterpartID}, nil
	}
	return models.ConversationKey{TeacherID: counterpartID, StudentID: actor.ID}, nil
}

func (m *messageServiceMock) History(ctx context.Context, actor service.Actor, counterpartID string) ([]models.Message, error) {
	if _, err := m.key(actor, counterpartID); err != nil {
		return nil, err
	}
	return []models.Message{{ID: 1, Content: "hi"}}, nil
}

func (m *messageServiceMock) Send(ctx context.Context, actor service.Actor, counterpartID string, req dto.SendMessageRequest) (*models.Message, error) {
	key, err := m.key(actor, counterpartID)
	if err != nil {
		return nil, err
	}
	m.sent = append(m.sent, req.Content)
	msg := models.Message{ID: int64(len(m.sent) + 1), TeacherID: key.TeacherID, StudentID: key.StudentID, SenderID: actor.ID, Content: req.Content, CreatedAt: time.Now()}
	if m.hub != nil {
		m.hub.Publish(ctx, msg)
	}
	return &msg, nil
}

func (m *messageServiceMock) MarkRead(ctx context.Context, actor service.Actor, counterpartID string) error {
	return nil
}

func (m *messageServiceMock) Subscribe(ctx context.Context, actor service.Actor, counterpartID string) (*realtime.Subscription, error) {
	key, err := m.key(actor, counterpartID)
	if err != nil {
		return nil, err
	}
	return m.hub.Subscribe(key), nil
}

func (m *messageServiceMock) ListConversations(ctx context.Context, actor service.Actor) ([]models.ConversationSummary, error) {
	return []models.ConversationSummary{}, nil
}

func TestMessageHandlerSendAndHistory(t *testing.T) {
	svc := &messageServiceMock{}
	h := NewMessageHandler(svc, nil, time.Second, nil)

	c, w := newGinContext(http.MethodPost, "/conversations/t1/messages", mustJSON(t, dto.SendMessageRequest{Content: "hello"}))
	c.Params = gin.Params{{Key: "counterpartId", Value: "t1"}}
	asUser(c, "s1", models.RoleStudent)
	h.Send(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"hello"}, svc.sent)

	c, w = newGinContext(http.MethodGet, "/conversations/ghost/messages", nil)
	c.Params = gin.Params{{Key: "counterpartId", Value: "ghost"}}
	asUser(c, "s1", models.RoleStudent)
	h.History(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newGinContext(http.MethodPost, "/conversations/t1/read", nil)
	c.Params = gin.Params{{Key: "counterpartId", Value: "t1"}}
	asUser(c, "s1", models.RoleStudent)
	h.MarkRead(c)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestMessageHandlerStream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := realtime.NewHub(4, nil, nil)
	svc := &messageServiceMock{hub: hub}
	h := NewMessageHandler(svc, []string{"https://app.example.com"}, 50*time.Millisecond, nil)

	r := gin.New()
	r.GET("/conversations/:counterpartId/stream", func(c *gin.Context) {
		asUser(c, "s1", models.RoleStudent)
		c.Next()
	}, h.Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/conversations/t1/stream"

	header := http.Header{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Eventually(t, func() bool { return hub.Active() == 0 }, time.Second, 5*time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://app.example.com"}})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Active() == 1 }, time.Second, 5*time.Millisecond)

	_, err = svc.Send(context.Background(), service.Actor{ID: "t1", Role: models.RoleTeacher}, "s1", dto.SendMessageRequest{Content: "pushed"})
	require.NoError(t, err)

	var got models.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "pushed", got.Content)
	assert.Equal(t, "t1", got.TeacherID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestMessageHandlerStreamRejectsUnknownCounterpart(t *testing.T) {
	h := NewMessageHandler(&messageServiceMock{hub: realtime.NewHub(1, nil, nil)}, []string{"*"}, time.Second, nil)
	c, w := newGinContext(http.MethodGet, "/conversations/ghost/stream", nil)
	c.Params = gin.Params{{Key: "counterpartId", Value: "ghost"}}
	asUser(c, "s1", models.RoleStudent)

	h.Stream(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
