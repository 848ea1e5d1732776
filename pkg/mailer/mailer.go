package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/certy/pkg/sanitizer"
)

// Mailer composes per-record messages and hands them to a Sender.
type Mailer struct {
	sender   Sender
	renderer *Renderer
	config   Config
}

// New creates a new Mailer with the given sender and renderer.
func New(sender Sender, renderer *Renderer, cfg Config) *Mailer {
	if cfg.FallbackSubject == "" {
		cfg.FallbackSubject = DefaultSubject
	}
	if renderer == nil {
		renderer = NewRenderer(nil)
	}
	return &Mailer{
		sender:   sender,
		renderer: renderer,
		config:   cfg,
	}
}

// Renderer returns the renderer used to compose messages.
func (m *Mailer) Renderer() *Renderer { return m.renderer }

// SendParams contains parameters for sending a templated email.
type SendParams struct {
	To       string            // Single recipient
	Template *Template         // Parsed message template
	Data     map[string]string // Placeholder values

	// Optional overrides
	Subject     string       // Used when the template has no subject
	Layout      string       // Override default layout
	From        string       // Override default sender
	ReplyTo     string       // Reply-to address
	CC          []string     // Carbon copy
	BCC         []string     // Blind carbon copy
	Attachments []Attachment // File attachments
}

// Compose renders params into an Email without sending it.
// Subject resolution: template frontmatter > params.Subject > config fallback.
func (m *Mailer) Compose(params SendParams) (*Email, error) {
	if params.To == "" {
		return nil, ErrNoRecipient
	}

	tmpl := params.Template
	if tmpl == nil {
		tmpl = &Template{Metadata: map[string]any{}, Body: DefaultBody}
	}

	layout := params.Layout
	if layout == "" {
		layout = m.config.DefaultLayout
	}

	subject := params.Subject
	if subject == "" {
		subject = m.config.FallbackSubject
	}

	result, err := m.renderer.Render(layout, tmpl, subject, params.Data)
	if err != nil {
		return nil, errors.Join(ErrRenderFailed, err)
	}

	from := params.From
	if from == "" {
		from = m.config.From
	}

	return &Email{
		To:          []string{params.To},
		Subject:     sanitizer.PlainText(result.Subject),
		HTML:        result.HTML,
		Text:        result.Text,
		From:        from,
		ReplyTo:     params.ReplyTo,
		CC:          params.CC,
		BCC:         params.BCC,
		Attachments: params.Attachments,
	}, nil
}

// Send renders a template and sends an email.
func (m *Mailer) Send(ctx context.Context, params SendParams) error {
	email, err := m.Compose(params)
	if err != nil {
		return err
	}
	return m.SendRaw(ctx, email)
}

// SendRaw sends a pre-built email without template rendering.
// Errors already classified by the sender keep their class; anything
// else is reported as ErrSendFailed.
func (m *Mailer) SendRaw(ctx context.Context, email *Email) error {
	if len(email.To) == 0 {
		return ErrNoRecipient
	}
	if email.Subject == "" {
		return ErrNoSubject
	}
	if email.HTML == "" && email.Text == "" {
		return ErrNoContent
	}

	if err := m.sender.Send(ctx, email); err != nil {
		return classify(err)
	}

	return nil
}

// Open starts a delivery session when the sender supports one.
func (m *Mailer) Open(ctx context.Context) error {
	s, ok := m.sender.(Session)
	if !ok {
		return nil
	}
	if err := s.Open(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// Close ends the delivery session, if any.
func (m *Mailer) Close() error {
	if s, ok := m.sender.(Session); ok {
		return s.Close()
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrAuth), errors.Is(err, ErrConnect),
		errors.Is(err, ErrSendFailed), errors.Is(err, ErrInvalidRecipient),
		errors.Is(err, ErrSessionClosed):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
}
