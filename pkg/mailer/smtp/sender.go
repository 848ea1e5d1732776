package smtp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"strings"
	"sync"

	"github.com/wneessen/go-mail"

	"github.com/dmitrymomot/certy/pkg/mailer"
)

// Sender implements mailer.Session over SMTP using go-mail.
// When a session is open, every Send reuses the same authenticated
// connection and reconnects once if the server has dropped it; otherwise
// each Send dials, sends and disconnects.
type Sender struct {
	client *mail.Client
	config Config

	mu   sync.Mutex
	open bool
}

// New validates cfg and creates a sender. No connection is made.
func New(cfg Config) (*Sender, error) {
	if cfg.TLS == "" {
		cfg.TLS = TLSMandatory
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := mail.NewClient(cfg.Host, clientOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("smtp: create client: %w", err)
	}

	return &Sender{client: client, config: cfg}, nil
}

func clientOptions(cfg Config) []mail.Option {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLS)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.SSL {
		opts = append(opts, mail.WithSSLPort(false))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	return opts
}

func tlsPolicy(s string) mail.TLSPolicy {
	switch s {
	case TLSOpportunistic:
		return mail.TLSOpportunistic
	case TLSNone:
		return mail.NoTLS
	default:
		return mail.TLSMandatory
	}
}

// Open dials the server and authenticates. Calling Open on an open
// session is a no-op.
func (s *Sender) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return nil
	}
	if err := s.client.DialWithContext(ctx); err != nil {
		return classifyDial(err)
	}
	s.open = true
	return nil
}

// Close ends the session.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("smtp: close: %w", err)
	}
	return nil
}

// Send implements mailer.Sender. Messages on one session are sent one at a time.
func (s *Sender) Send(ctx context.Context, email *mailer.Email) error {
	msg, err := s.buildMessage(email)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if !s.open {
		if err := s.client.DialAndSendWithContext(ctx, msg); err != nil && !msg.IsDelivered() {
			return classify(err)
		}
		return nil
	}

	err = s.client.Send(msg)
	if connLost(err) {
		// The server dropped an idle or long-lived session. Dial once more;
		// the message never reached MAIL FROM, so resending is safe.
		if err := s.redial(ctx); err != nil {
			return err
		}
		err = s.client.Send(msg)
	}
	// A failed RSET after an accepted DATA still means delivered.
	if err != nil && !msg.IsDelivered() {
		return classify(err)
	}
	return nil
}

// redial replaces a dead session. The caller holds s.mu.
func (s *Sender) redial(ctx context.Context) error {
	_ = s.client.Close()
	if err := s.client.DialWithContext(ctx); err != nil {
		return classifyDial(err)
	}
	return nil
}

// connLost reports a failed connection check before any message data
// was sent.
func connLost(err error) bool {
	var sendErr *mail.SendError
	return errors.As(err, &sendErr) && sendErr.Reason == mail.ErrConnCheck
}

func (s *Sender) buildMessage(email *mailer.Email) (*mail.Msg, error) {
	msg := mail.NewMsg()

	from := email.From
	if from == "" {
		from = s.config.From
	}
	if from == "" {
		from = s.config.Username
	}
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("%w: invalid sender %q: %v", mailer.ErrSendFailed, from, err)
	}
	if err := msg.To(email.To...); err != nil {
		return nil, fmt.Errorf("%w: %v", mailer.ErrInvalidRecipient, err)
	}
	if len(email.CC) > 0 {
		if err := msg.Cc(email.CC...); err != nil {
			return nil, fmt.Errorf("%w: cc: %v", mailer.ErrInvalidRecipient, err)
		}
	}
	if len(email.BCC) > 0 {
		if err := msg.Bcc(email.BCC...); err != nil {
			return nil, fmt.Errorf("%w: bcc: %v", mailer.ErrInvalidRecipient, err)
		}
	}
	if email.ReplyTo != "" {
		if err := msg.ReplyTo(email.ReplyTo); err != nil {
			return nil, fmt.Errorf("%w: reply-to: %v", mailer.ErrSendFailed, err)
		}
	}
	for k, v := range email.Headers {
		msg.SetGenHeader(mail.Header(k), v)
	}

	msg.Subject(email.Subject)
	switch {
	case email.Text != "" && email.HTML != "":
		msg.SetBodyString(mail.TypeTextPlain, email.Text)
		msg.AddAlternativeString(mail.TypeTextHTML, email.HTML)
	case email.HTML != "":
		msg.SetBodyString(mail.TypeTextHTML, email.HTML)
	default:
		msg.SetBodyString(mail.TypeTextPlain, email.Text)
	}

	for _, a := range email.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		if err := msg.AttachReader(a.Filename, bytes.NewReader(a.Content),
			mail.WithFileContentType(mail.ContentType(ct))); err != nil {
			return nil, fmt.Errorf("%w: attach %s: %v", mailer.ErrSendFailed, a.Filename, err)
		}
	}

	return msg, nil
}

// classifyDial maps a connection or authentication failure.
func classifyDial(err error) error {
	if isAuthError(err) {
		return fmt.Errorf("%w: %v", mailer.ErrAuth, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", mailer.ErrConnect, err)
}

// classify maps any error returned while delivering a message.
func classify(err error) error {
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		if sendErr.Reason == mail.ErrSMTPRcptTo {
			return fmt.Errorf("%w: %w: %v", mailer.ErrSendFailed, mailer.ErrInvalidRecipient, err)
		}
		if sendErr.Reason == mail.ErrConnCheck {
			return classifyDial(err)
		}
		return fmt.Errorf("%w: %v", mailer.ErrSendFailed, err)
	}
	return classifyDial(err)
}

var authCodes = map[int]bool{530: true, 534: true, 535: true, 538: true}

func isAuthError(err error) bool {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && authCodes[tpErr.Code] {
		return true
	}
	switch {
	case errors.Is(err, mail.ErrPlainAuthNotSupported),
		errors.Is(err, mail.ErrLoginAuthNotSupported),
		errors.Is(err, mail.ErrNoSupportedAuthDiscovered):
		return true
	}
	return strings.Contains(err.Error(), "SMTP AUTH failed")
}
