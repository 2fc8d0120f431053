package mail

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridSender posts messages to the SendGrid v3 API.
type SendgridSender struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

var _ Sender = (*SendgridSender)(nil)

// NewSendgridSender builds a sender for the given API key and From identity.
func NewSendgridSender(key, fromName, fromAddress string) *SendgridSender {
	return &SendgridSender{
		key:        key,
		host:       sendgridHost,
		from:       sgmail.NewEmail(fromName, fromAddress),
		subjPrefix: "[" + fromName + "] ",
	}
}

// Send renders and delivers msg. Non-2xx responses are returned as errors so
// the mail queue can retry them. The SendGrid client takes no context, so ctx
// is only checked before the request is issued.
func (s *SendgridSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Render(); err != nil {
		return err
	}
	if !msg.HasRecipients() {
		return fmt.Errorf("message %q has no recipients", msg.Subject)
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func (s *SendgridSender) prepare(msg *Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}
