package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/internal/realtime"
	"github.com/noah-isme/tutor-api/internal/service"
	"github.com/noah-isme/tutor-api/pkg/response"
)

const (
	streamWriteWait = 10 * time.Second
	streamReadLimit = 512
)

type messageService interface {
	History(ctx context.Context, actor service.Actor, counterpartID string) ([]models.Message, error)
	Send(ctx context.Context, actor service.Actor, counterpartID string, req dto.SendMessageRequest) (*models.Message, error)
	MarkRead(ctx context.Context, actor service.Actor, counterpartID string) error
	Subscribe(ctx context.Context, actor service.Actor, counterpartID string) (*realtime.Subscription, error)
	ListConversations(ctx context.Context, actor service.Actor) ([]models.ConversationSummary, error)
}

// MessageHandler serves conversations over HTTP and the WebSocket push stream.
type MessageHandler struct {
	service      messageService
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       *zap.Logger
}

// NewMessageHandler constructs the handler. allowedOrigins restricts browser
// stream connections. An empty list or "*" admits any origin.
func NewMessageHandler(svc messageService, allowedOrigins []string, pingInterval time.Duration, logger *zap.Logger) *MessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &MessageHandler{
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		pingInterval: pingInterval,
		logger:       logger,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Conversations godoc
// @Summary Chat list
// @Description Latest message and unread count per counterpart, most recent first
// @Tags Messaging
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /conversations [get]
func (h *MessageHandler) Conversations(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	list, err := h.service.ListConversations(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// History godoc
// @Summary Conversation history
// @Tags Messaging
// @Produce json
// @Param counterpartId path string true "Other participant"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /conversations/{counterpartId}/messages [get]
func (h *MessageHandler) History(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	messages, err := h.service.History(c.Request.Context(), actor, c.Param("counterpartId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, messages)
}

// Send godoc
// @Summary Send a message
// @Tags Messaging
// @Accept json
// @Produce json
// @Param counterpartId path string true "Other participant"
// @Param payload body dto.SendMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /conversations/{counterpartId}/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid message payload"))
		return
	}
	msg, err := h.service.Send(c.Request.Context(), actor, c.Param("counterpartId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// MarkRead godoc
// @Summary Mark the counterpart's messages read
// @Description Best effort; the update runs in the background.
// @Tags Messaging
// @Produce json
// @Param counterpartId path string true "Other participant"
// @Success 202 {object} response.Envelope
// @Security BearerAuth
// @Router /conversations/{counterpartId}/read [post]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), actor, c.Param("counterpartId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"status": "queued"})
}

// Stream godoc
// @Summary Push stream of new messages
// @Description Upgrades to WebSocket and writes each stored message of the conversation as JSON. Pass the token as access_token when headers cannot be set.
// @Tags Messaging
// @Param counterpartId path string true "Other participant"
// @Param access_token query string false "Access token"
// @Success 101
// @Security BearerAuth
// @Router /conversations/{counterpartId}/stream [get]
func (h *MessageHandler) Stream(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	sub, err := h.service.Subscribe(c.Request.Context(), actor, c.Param("counterpartId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.pump(conn, sub)
}

// pump writes pushes and pings until the peer leaves or the subscription ends.
func (h *MessageHandler) pump(conn *websocket.Conn, sub *realtime.Subscription) {
	pongWait := 2 * h.pingInterval
	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case msg, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("stream write failed", zap.String("conversation", sub.Key().String()), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
