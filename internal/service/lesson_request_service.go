package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-api/internal/dto"
	appErrors "github.com/noah-isme/tutor-api/pkg/errors"
	mailer "github.com/noah-isme/tutor-api/pkg/mail"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{5,18}[0-9]$`)

// RegisterPhoneValidation adds the "phone" tag to validate.
func RegisterPhoneValidation(validate *validator.Validate) error {
	return validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
}

// LessonRequestService forwards the public lesson request form to the operator.
// Nothing is stored.
type LessonRequestService struct {
	notifier  emailNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonRequestService constructs the service and registers the phone rule on validate.
func NewLessonRequestService(notifier emailNotifier, validate *validator.Validate, logger *zap.Logger) (*LessonRequestService, error) {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := RegisterPhoneValidation(validate); err != nil {
		return nil, err
	}
	return &LessonRequestService{notifier: notifier, validator: validate, logger: logger}, nil
}

// Submit validates the request and queues the operator email.
func (s *LessonRequestService) Submit(ctx context.Context, req dto.LessonRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson request")
	}

	s.notifier.Notify(&mailer.Message{
		Subject:  "Lesson request: " + req.Name,
		Template: mailer.TemplateBookingRequest,
		Data: map[string]string{
			"Name":         req.Name,
			"Phone":        req.Phone,
			"Email":        req.Email,
			"SubjectLabel": dto.LessonRequestSubjects[req.Subject],
			"Message":      strings.TrimSpace(req.Message),
		},
	})
	s.logger.Info("lesson request received", zap.String("subject", req.Subject))
	return nil
}
