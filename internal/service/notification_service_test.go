package service

import (
	"context"
	"errors"
	"net/mail"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mailer "github.com/noah-isme/tutor-api/pkg/mail"
)

type recordingSender struct {
	mu    sync.Mutex
	fails int
	sent  []*mailer.Message
}

func (r *recordingSender) Send(ctx context.Context, msg *mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails > 0 {
		r.fails--
		return errors.New("provider down")
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestNotificationServiceDefaultsToOperator(t *testing.T) {
	sender := &recordingSender{}
	svc := NewNotificationService(sender, NotificationConfig{
		Operator: mail.Address{Name: "Ops", Address: "ops@example.com"},
	}, NewMetricsService(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Notify(&mailer.Message{Subject: "hello", Body: "body"})

	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, "ops@example.com", sender.sent[0].To[0].Address)
	assert.Equal(t, "body", sender.sent[0].TextContent)
}

func TestNotificationServiceRetries(t *testing.T) {
	sender := &recordingSender{fails: 1}
	svc := NewNotificationService(sender, NotificationConfig{
		Operator:   mail.Address{Address: "ops@example.com"},
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
	}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Notify(&mailer.Message{Subject: "retry", Body: "again"})
	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestNotificationServiceBeforeStartIsSilent(t *testing.T) {
	sender := &recordingSender{}
	svc := NewNotificationService(sender, NotificationConfig{}, nil, nil)
	svc.Notify(&mailer.Message{Body: "dropped"})
	svc.Notify(nil)
	assert.Equal(t, 0, sender.count())
}
