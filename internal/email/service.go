package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// TemplateElement is used by a renderer to identify the different parts of an email template.
type TemplateElement string

const (
	ElementSubject TemplateElement = "subject"
	ElementBody    TemplateElement = "body"
)

// Renderer is responsible for rendering email templates.
type Renderer interface {
	Render(w io.Writer, name string, element TemplateElement, data any) error
}

// Sender is responsible for actually sending an email.
type Sender interface {
	Send(ctx context.Context, from, recipient Address, subject, body string) error
}

// ServiceConfig is the configuration for the email service.
type ServiceConfig struct {
	// From is the sender address used for all outgoing email.
	From Address
	// SendTimeout bounds a single delivery attempt. A slow mail
	// transport must not be able to stall callers indefinitely.
	SendTimeout time.Duration
}

// Service renders templated emails and hands them to a Sender.
//
// Delivery is best-effort. Callers are expected to treat a returned
// error as a warning signal, it must never be used to undo state
// changes that happened before the send.
type Service struct {
	renderer Renderer
	sender   Sender
	cfg      ServiceConfig
}

func NewService(renderer Renderer, sender Sender, cfg ServiceConfig) *Service {
	return &Service{
		renderer: renderer,
		sender:   sender,
		cfg:      cfg,
	}
}

// Send renders the named template with the provided data and sends the
// result to the recipient.
func (s *Service) Send(ctx context.Context, name string, recipient Address, data any) error {
	var buf bytes.Buffer

	err := s.renderer.Render(&buf, name, ElementSubject, data)
	if err != nil {
		return fmt.Errorf("failed to render subject of %q: %w", name, err)
	}

	// Subjects are single line, templates may contain surrounding whitespace.
	subject := strings.TrimSpace(buf.String())

	buf.Reset()
	err = s.renderer.Render(&buf, name, ElementBody, data)
	if err != nil {
		return fmt.Errorf("failed to render body of %q: %w", name, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	err = s.sender.Send(sendCtx, s.cfg.From, recipient, subject, buf.String())
	if err != nil {
		return fmt.Errorf("failed to send %q email: %w", name, err)
	}

	return nil
}
