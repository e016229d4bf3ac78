package dto

import "encoding/json"

type CreateNotificationPayload struct {
	UserID  string          `json:"user_id" validate:"required"`
	Type    string          `json:"type" validate:"required"`
	Title   string          `json:"title" validate:"required"`
	Message string          `json:"message" validate:"required"`
	Data    json.RawMessage `json:"data,omitempty"`
}
