package domain

// Template names the message an EmailDispatcher should render.
type Template string

const (
	TemplateVerifyEmail          Template = "verify_email"
	TemplatePasswordReset        Template = "password_reset"
	TemplateCompleteRegistration Template = "complete_registration"
	TemplateAccreditationRefused Template = "accreditation_rejected"
)

// Email is one outbound notification. Link carries the raw token embedded
// in a URL and must not be logged.
type Email struct {
	To       string
	Template Template
	Link     string
}
