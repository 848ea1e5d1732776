package mailer

// Email represents a fully composed message ready for delivery.
type Email struct {
	Headers     map[string]string
	Subject     string
	HTML        string
	Text        string
	From        string
	ReplyTo     string
	To          []string
	CC          []string
	BCC         []string
	Attachments []Attachment
}

// Attachment represents a file attached to an email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Size returns the total attachment payload in bytes.
func (e *Email) Size() int {
	n := 0
	for _, a := range e.Attachments {
		n += len(a.Content)
	}
	return n
}
