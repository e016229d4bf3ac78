package dto

type SendEmailPayload struct {
	To          string   `json:"to" validate:"required,email"`
	Subject     string   `json:"subject" validate:"required"`
	Body        string   `json:"body" validate:"required"`
	Attachments []string `json:"attachments,omitempty"`
}
