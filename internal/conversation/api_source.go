package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
)

// APISource talks to the tutor API: JSON over HTTP for history, sends and
// read receipts, and the WebSocket stream for pushes.
type APISource struct {
	base   *url.URL
	token  string
	client *http.Client
	dialer *websocket.Dialer
	logger *zap.Logger
}

// NewAPISource builds a source for the API mounted at baseURL, e.g.
// "https://tutor.example.com/api/v1". token is the access token of the
// signed-in user.
func NewAPISource(baseURL, token string, client *http.Client, logger *zap.Logger) (*APISource, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", base.Scheme)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APISource{base: base, token: token, client: client, dialer: websocket.DefaultDialer, logger: logger}, nil
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

// History implements Source.
func (s *APISource) History(ctx context.Context, counterpartID string) ([]models.Message, error) {
	var out []models.Message
	if err := s.do(ctx, http.MethodGet, s.conversationPath(counterpartID, "messages"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Send implements Source.
func (s *APISource) Send(ctx context.Context, counterpartID, content string) (*models.Message, error) {
	var out models.Message
	req := dto.SendMessageRequest{Content: content}
	if err := s.do(ctx, http.MethodPost, s.conversationPath(counterpartID, "messages"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead implements Source.
func (s *APISource) MarkRead(ctx context.Context, counterpartID string) error {
	return s.do(ctx, http.MethodPost, s.conversationPath(counterpartID, "read"), nil, nil)
}

// Subscribe implements Source by dialing the conversation stream.
func (s *APISource) Subscribe(ctx context.Context, counterpartID string) (Stream, error) {
	u := *s.base
	u.Path = s.conversationPath(counterpartID, "stream")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("access_token", s.token)
	u.RawQuery = q.Encode()

	conn, resp, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open conversation stream")
	}
	return newWSStream(conn, s.logger), nil
}

func (s *APISource) conversationPath(counterpartID, action string) string {
	return s.base.Path + "/conversations/" + url.PathEscape(counterpartID) + "/" + action
}

func (s *APISource) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	u := *s.base
	u.Path = path
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "malformed response")
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "malformed response data")
	}
	return nil
}

// decodeError maps an error response back into the server's typed error so
// callers can branch with errors.IsKind.
func decodeError(resp *http.Response) error {
	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err == nil && env.Error != nil {
		if env.Error.Status == 0 {
			env.Error.Status = resp.StatusCode
		}
		return env.Error
	}
	return appErrors.New(kindCode(resp.StatusCode), resp.StatusCode, http.StatusText(resp.StatusCode))
}

func kindCode(status int) string {
	for _, kind := range []*appErrors.Error{
		appErrors.ErrValidation, appErrors.ErrUnauthorized, appErrors.ErrForbidden,
		appErrors.ErrNotFound, appErrors.ErrConflict, appErrors.ErrPreconditionFailed,
	} {
		if kind.Status == status {
			return kind.Code
		}
	}
	return appErrors.ErrInternal.Code
}

type wsStream struct {
	conn     *websocket.Conn
	messages chan models.Message
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
	logger   *zap.Logger
}

func newWSStream(conn *websocket.Conn, logger *zap.Logger) *wsStream {
	s := &wsStream{
		conn:     conn,
		messages: make(chan models.Message, 16),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger,
	}
	go s.read()
	return s
}

func (s *wsStream) Messages() <-chan models.Message { return s.messages }

func (s *wsStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline())
		err = s.conn.Close()
		<-s.done
	})
	return err
}

func (s *wsStream) read() {
	defer close(s.done)
	defer close(s.messages)
	for {
		var msg models.Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("conversation stream read", zap.Error(err))
			}
			return
		}
		select {
		case s.messages <- msg:
		case <-s.stop:
			return
		}
	}
}

func deadline() time.Time { return time.Now().Add(time.Second) }
