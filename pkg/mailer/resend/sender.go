package resend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v3"

	"github.com/dmitrymomot/certy/pkg/mailer"
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("resend: api key is required")

// Sender implements mailer.Sender using the Resend API.
// Each message is a separate HTTPS request, so there is no session to open.
type Sender struct {
	client *resend.Client
	config Config
}

// New creates a new Resend sender.
func New(cfg Config) (*Sender, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Sender{
		client: resend.NewClient(cfg.APIKey),
		config: cfg,
	}, nil
}

// Send implements mailer.Sender.
func (s *Sender) Send(ctx context.Context, email *mailer.Email) error {
	req := &resend.SendEmailRequest{
		From:    s.from(email.From),
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		ReplyTo: email.ReplyTo,
		Cc:      email.CC,
		Bcc:     email.BCC,
		Headers: email.Headers,
	}

	if len(email.Attachments) > 0 {
		req.Attachments = convertAttachments(email.Attachments)
	}

	if _, err := s.client.Emails.SendWithContext(ctx, req); err != nil {
		return classify(err)
	}

	return nil
}

func (s *Sender) from(override string) string {
	if override != "" {
		return override
	}
	if s.config.SenderName != "" {
		return fmt.Sprintf("%s <%s>", s.config.SenderName, s.config.SenderEmail)
	}
	return s.config.SenderEmail
}

func convertAttachments(attachments []mailer.Attachment) []*resend.Attachment {
	result := make([]*resend.Attachment, len(attachments))
	for i, a := range attachments {
		result[i] = &resend.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: a.ContentType,
		}
	}
	return result
}

// classify maps API failures onto mailer error classes. The client reports
// HTTP failures as plain errors, so the status is read from the message.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"),
		strings.Contains(msg, "api key is invalid"), strings.Contains(msg, "missing api key"):
		return fmt.Errorf("%w: resend: %v", mailer.ErrAuth, err)
	case strings.Contains(msg, "validation_error"), strings.Contains(msg, "invalid `to`"):
		return fmt.Errorf("%w: %w: resend: %v", mailer.ErrSendFailed, mailer.ErrInvalidRecipient, err)
	default:
		return fmt.Errorf("%w: resend: %v", mailer.ErrSendFailed, err)
	}
}
