// Package smtp delivers mailer.Email messages over SMTP.
//
// A Sender can either dial per message or hold one authenticated session
// open across many messages (Open/Send.../Close). Delivery errors are mapped
// onto the mailer error classes: authentication and connection failures are
// fatal for the session, recipient rejections and other SMTP replies are
// scoped to the single message.
//
// Credentials come from Config, which implements slog.LogValuer and
// fmt.Stringer so the password is never written to logs.
package smtp
