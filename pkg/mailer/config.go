package mailer

// Default message parts used when the operator supplies none.
const (
	DefaultSubject = "Your Certificate"
	DefaultBody    = "Dear {name},\n\nPlease find your certificate attached.\n\nBest regards,\nCertificate Team"
)

// Config holds mailer defaults. Embed in app config for env parsing.
type Config struct {
	From            string `env:"MAIL_FROM"`
	FallbackSubject string `env:"MAIL_SUBJECT" envDefault:"Your Certificate"`
	DefaultLayout   string `env:"MAIL_LAYOUT" envDefault:"default.html"`
}
