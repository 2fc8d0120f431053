package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-api/internal/dto"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
	mailer "github.com/noah-isme/tutor-api/pkg/mail"
)

func TestLessonRequestSubmit(t *testing.T) {
	notifier := &capturingNotifier{}
	svc, err := NewLessonRequestService(notifier, nil, nil)
	require.NoError(t, err)

	err = svc.Submit(context.Background(), dto.LessonRequest{
		Name: " Anna ", Phone: "+7 (900) 123-45-67", Subject: "ege", Message: "Need help with geometry",
	})
	require.NoError(t, err)
	require.Len(t, notifier.msgs, 1)
	msg := notifier.msgs[0]
	assert.Equal(t, mailer.TemplateBookingRequest, msg.Template)
	data := msg.Data.(map[string]string)
	assert.Equal(t, "Anna", data["Name"])
	assert.Equal(t, "EGE preparation", data["SubjectLabel"])
	assert.Empty(t, msg.To)
}

func TestLessonRequestValidation(t *testing.T) {
	notifier := &capturingNotifier{}
	svc, err := NewLessonRequestService(notifier, nil, nil)
	require.NoError(t, err)

	cases := []dto.LessonRequest{
		{Phone: "+79001234567", Subject: "ege"},
		{Name: "Anna", Phone: "call me", Subject: "ege"},
		{Name: "Anna", Phone: "+79001234567", Subject: "cooking"},
		{Name: "Anna", Phone: "+79001234567", Subject: "ege", Email: "not-an-email"},
	}
	for _, c := range cases {
		err := svc.Submit(context.Background(), c)
		assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation), "%+v", c)
	}
	assert.Empty(t, notifier.msgs)
}
