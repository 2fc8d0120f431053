package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	"strings"
	texttmpl "text/template"
)

//go:embed templates/*
var templateFS embed.FS

var (
	textTemplates = texttmpl.Must(texttmpl.ParseFS(templateFS, "templates/*.txt"))
	htmlTemplates = htmltmpl.Must(htmltmpl.ParseFS(templateFS, "templates/*.html"))
)

// Template names shipped with the service.
const (
	TemplateBookingRequest = "booking_request"
	TemplateBookingCreated = "booking_created"
)

// Message is an outbound email. Either Body or Template must be set.
type Message struct {
	To       []mail.Address
	Subject  string
	Body     string
	Template string
	Data     interface{}

	TextContent string
	HTMLContent string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Render fills TextContent and HTMLContent from Body or the named template.
func (m *Message) Render() error {
	if m.Body != "" {
		m.TextContent = m.Body
		return nil
	}
	if m.Template == "" {
		return fmt.Errorf("message has neither body nor template")
	}

	var text bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, m.Template+".txt", m.Data); err != nil {
		return fmt.Errorf("render %s.txt: %w", m.Template, err)
	}
	m.TextContent = strings.TrimSpace(text.String())

	if htmlTemplates.Lookup(m.Template+".html") != nil {
		var html bytes.Buffer
		if err := htmlTemplates.ExecuteTemplate(&html, m.Template+".html", m.Data); err != nil {
			return fmt.Errorf("render %s.html: %w", m.Template, err)
		}
		m.HTMLContent = html.String()
	}
	return nil
}

// HasRecipients reports whether at least one address is set.
func (m *Message) HasRecipients() bool {
	return len(m.To) > 0
}
