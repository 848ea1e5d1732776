// Package mailer composes and delivers per-recipient email with attachments.
//
// The package separates delivery (Sender implementations such as the smtp
// and resend subpackages) from composition (Renderer), so the same message
// template can be delivered through any provider.
//
// # Templates
//
// A message template is markdown with optional YAML frontmatter. Body and
// subject use {field} placeholders that are filled from record data:
//
//	---
//	Subject: Certificate for {name}
//	---
//	Dear {name},
//
//	Congratulations on completing the {branch} programme.
//
// Unknown placeholders are left untouched. The rendered markdown becomes the
// plain-text part; its HTML conversion, sanitized and wrapped in a layout,
// becomes the HTML part.
//
// # Sessions
//
// Senders that implement Session keep one authenticated connection open for a
// whole batch. Call Mailer.Open before the first message and Mailer.Close after
// the last one.
//
// # Errors
//
// Sender errors are classified so callers can decide whether to continue:
//
//   - ErrAuth, ErrConnect: fatal for the session (see IsFatal)
//   - ErrInvalidRecipient: the server rejected the recipient
//   - ErrSendFailed: any other per-message delivery failure
package mailer
