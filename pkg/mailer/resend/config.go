package resend

import "log/slog"

// Config holds Resend email provider configuration.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	APIKey      string `env:"RESEND_API_KEY"`
	SenderEmail string `env:"RESEND_FROM_EMAIL"`
	SenderName  string `env:"RESEND_FROM_NAME"`
}

// LogValue implements slog.LogValuer without exposing the API key.
func (c Config) LogValue() slog.Value {
	key := ""
	if c.APIKey != "" {
		key = "[REDACTED]"
	}
	return slog.GroupValue(
		slog.String("api_key", key),
		slog.String("sender_email", c.SenderEmail),
		slog.String("sender_name", c.SenderName),
	)
}
