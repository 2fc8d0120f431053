package service

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/pkg/jobs"
	mailer "github.com/noah-isme/tutor-api/pkg/mail"
)

const jobTypeEmail = "email"

// NotificationConfig controls outbound email dispatch.
type NotificationConfig struct {
	Operator   mail.Address
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationService sends templated email from a background queue so
// request handlers never wait on the mail provider.
type NotificationService struct {
	sender   mailer.Sender
	queue    *jobs.Queue
	operator mail.Address
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationService builds the service and its queue. Call Start before
// enqueueing.
func NewNotificationService(sender mailer.Sender, cfg NotificationConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{sender: sender, operator: cfg.Operator, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("email", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the mail workers.
func (s *NotificationService) Start(ctx context.Context) { s.queue.Start(ctx) }

// Stop waits for the workers to exit.
func (s *NotificationService) Stop() { s.queue.Stop() }

// Operator is the address that receives lesson requests and booking notices.
func (s *NotificationService) Operator() mail.Address { return s.operator }

// Notify queues msg. Failures to queue are logged and swallowed.
func (s *NotificationService) Notify(msg *mailer.Message) {
	if msg == nil {
		return
	}
	if !msg.HasRecipients() {
		msg.To = []mail.Address{s.operator}
	}
	if err := s.queue.Enqueue(jobs.Job{Type: jobTypeEmail, Payload: msg}); err != nil {
		s.logger.Warn("email not queued", zap.String("template", msg.Template), zap.Error(err))
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(*mailer.Message)
	if !ok {
		s.logger.Error("unexpected email payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := msg.Render(); err != nil {
		s.logger.Error("email render failed", zap.String("template", msg.Template), zap.Error(err))
		s.metrics.EmailResult(msg.Template, err)
		return nil
	}
	err := s.sender.Send(ctx, msg)
	s.metrics.EmailResult(msg.Template, err)
	if err != nil {
		return fmt.Errorf("send %s: %w", msg.Template, err)
	}
	s.logger.Info("email sent", zap.String("template", msg.Template), zap.Int("recipients", len(msg.To)))
	return nil
}
