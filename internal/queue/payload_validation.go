package queue

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/skillforge/pipeline/common"
	"github.com/skillforge/pipeline/internal/config"
	"github.com/skillforge/pipeline/internal/dto"
	"github.com/skillforge/pipeline/middleware"
)

var validate = validator.New()

func validateKindPayload(kind config.JobKind, raw json.RawMessage) error {
	switch kind {
	case config.KindCertificate:
		return validatePayload[dto.IssueCertificatePayload](raw)
	case config.KindEmail:
		return validatePayload[dto.SendEmailPayload](raw)
	case config.KindNotification:
		return validatePayload[dto.CreateNotificationPayload](raw)
	case config.KindVideo:
		return validatePayload[dto.TranscodeVideoPayload](raw)
	}
	return nil
}

func validatePayload[T any](raw json.RawMessage) error {
	var payload T

	if err := json.Unmarshal(raw, &payload); err != nil {
		return common.APIError{
			Status:  http.StatusBadRequest,
			Message: "invalid payload format",
		}
	}

	if err := validate.Struct(payload); err != nil {
		return common.APIError{
			Status:  http.StatusBadRequest,
			Message: "payload validation failed",
			Fields:  middleware.FormatValidationErrors(err),
		}
	}

	return nil
}
