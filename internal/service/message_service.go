package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/internal/dto"
	"github.com/noah-isme/tutor-api/internal/models"
	"github.com/noah-isme/tutor-api/internal/realtime"
	"github.com/noah-isme/tutor-api/internal/repository"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
	"github.com/noah-isme/tutor-api/pkg/jobs"
)

const jobTypeMarkRead = "mark_read"

type messageRepository interface {
	Insert(ctx context.Context, m *models.Message) error
	History(ctx context.Context, key models.ConversationKey) ([]models.Message, error)
	MarkRead(ctx context.Context, key models.ConversationKey, readerID string) (int64, error)
	LatestPerConversation(ctx context.Context, userID string) ([]repository.ConversationRow, error)
}

type conversationHub interface {
	Publish(ctx context.Context, msg models.Message)
	Subscribe(key models.ConversationKey) *realtime.Subscription
}

type profileDirectory interface {
	RequireRole(ctx context.Context, id string, role models.Role) (*models.Profile, error)
	Lookup(ctx context.Context, ids []string) (map[string]models.Profile, error)
}

type markReadPayload struct {
	Key      models.ConversationKey
	ReaderID string
}

// Actor is the authenticated side of a conversation request.
type Actor struct {
	ID   string
	Role models.Role
}

// MessageService stores chat messages between a teacher and a student and
// pushes each insert to live subscribers.
type MessageService struct {
	repo      messageRepository
	hub       conversationHub
	profiles  profileDirectory
	metrics   *MetricsService
	readQueue *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMessageService constructs the service. Read receipts go through a queue
// without retries; call Start before use.
func NewMessageService(repo messageRepository, hub conversationHub, profiles profileDirectory, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MessageService{repo: repo, hub: hub, profiles: profiles, metrics: metrics, validator: validate, logger: logger}
	s.readQueue = jobs.NewQueue("read_receipts", s.handleMarkRead, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: -1,
		Logger:     logger,
	})
	return s
}

// Start launches the read receipt worker.
func (s *MessageService) Start(ctx context.Context) { s.readQueue.Start(ctx) }

// Stop waits for the read receipt worker.
func (s *MessageService) Stop() { s.readQueue.Stop() }

// Resolve maps the actor and counterpart onto the conversation key. The
// counterpart must hold the opposite role.
func (s *MessageService) Resolve(ctx context.Context, actor Actor, counterpartID string) (models.ConversationKey, error) {
	if !actor.Role.Valid() {
		return models.ConversationKey{}, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
	if counterpartID == "" || counterpartID == actor.ID {
		return models.ConversationKey{}, appErrors.Clone(appErrors.ErrValidation, "invalid counterpart")
	}
	if _, err := s.profiles.RequireRole(ctx, counterpartID, actor.Role.Counterpart()); err != nil {
		return models.ConversationKey{}, err
	}
	if actor.Role == models.RoleTeacher {
		return models.ConversationKey{TeacherID: actor.ID, StudentID: counterpartID}, nil
	}
	return models.ConversationKey{TeacherID: counterpartID, StudentID: actor.ID}, nil
}

// History returns the whole conversation ordered by created_at then id.
func (s *MessageService) History(ctx context.Context, actor Actor, counterpartID string) ([]models.Message, error) {
	key, err := s.Resolve(ctx, actor, counterpartID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.History(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load messages")
	}
	return msgs, nil
}

// Send stores a message and publishes the stored row.
func (s *MessageService) Send(ctx context.Context, actor Actor, counterpartID string, req dto.SendMessageRequest) (*models.Message, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message")
	}
	key, err := s.Resolve(ctx, actor, counterpartID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{TeacherID: key.TeacherID, StudentID: key.StudentID, SenderID: actor.ID, Content: req.Content}
	if err := s.repo.Insert(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}

	s.hub.Publish(ctx, *msg)
	s.metrics.MessageSent()
	return msg, nil
}

// MarkRead schedules a best-effort read receipt for the counterpart's
// messages. Failures are logged, never returned.
func (s *MessageService) MarkRead(ctx context.Context, actor Actor, counterpartID string) error {
	key, err := s.Resolve(ctx, actor, counterpartID)
	if err != nil {
		return err
	}
	if err := s.readQueue.Enqueue(jobs.Job{Type: jobTypeMarkRead, Payload: markReadPayload{Key: key, ReaderID: actor.ID}}); err != nil {
		s.logger.Warn("read receipt not queued", zap.String("conversation", key.String()), zap.Error(err))
	}
	return nil
}

// Subscribe opens a push subscription on the conversation.
func (s *MessageService) Subscribe(ctx context.Context, actor Actor, counterpartID string) (*realtime.Subscription, error) {
	key, err := s.Resolve(ctx, actor, counterpartID)
	if err != nil {
		return nil, err
	}
	return s.hub.Subscribe(key), nil
}

// ListConversations returns the actor's chat list, most recent first.
func (s *MessageService) ListConversations(ctx context.Context, actor Actor) ([]models.ConversationSummary, error) {
	rows, err := s.repo.LatestPerConversation(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conversations")
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.CounterpartID)
	}
	profiles, err := s.profiles.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.ConversationSummary, 0, len(rows))
	for _, r := range rows {
		counterpart, ok := profiles[r.CounterpartID]
		if !ok {
			counterpart = models.Profile{ID: r.CounterpartID, Role: actor.Role.Counterpart()}
		}
		out = append(out, models.ConversationSummary{Counterpart: counterpart, LastMessage: r.Message, Unread: r.Unread})
	}
	return out, nil
}

func (s *MessageService) handleMarkRead(ctx context.Context, job jobs.Job) error {
	p, ok := job.Payload.(markReadPayload)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	n, err := s.repo.MarkRead(ctx, p.Key, p.ReaderID)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Debug("messages marked read", zap.String("conversation", p.Key.String()), zap.Int64("count", n))
	}
	return nil
}
