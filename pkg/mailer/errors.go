package mailer

import "errors"

var (
	ErrNoRecipient        = errors.New("mailer: no recipient specified")
	ErrNoSubject          = errors.New("mailer: no subject specified")
	ErrNoContent          = errors.New("mailer: no content provided")
	ErrTemplateNotFound   = errors.New("mailer: template not found")
	ErrLayoutNotFound     = errors.New("mailer: layout not found")
	ErrRenderFailed       = errors.New("mailer: render failed")
	ErrSendFailed         = errors.New("mailer: send failed")
	ErrInvalidFrontmatter = errors.New("mailer: invalid frontmatter")
	ErrInvalidRecipient   = errors.New("mailer: invalid recipient")
	ErrAuth               = errors.New("mailer: authentication failed")
	ErrConnect            = errors.New("mailer: connection failed")
	ErrSessionClosed      = errors.New("mailer: session is not open")
)

// IsFatal reports whether err means no further message can be delivered
// through the same sender, as opposed to a failure scoped to one message.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrConnect)
}
