package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/skillforge/pipeline/internal/dto"
	"gorm.io/datatypes"
)

// EmailSender delivers a single message. The production binary wires an
// SMTP-backed implementation; tests and local runs use SimulatedSender.
type EmailSender interface {
	Send(ctx context.Context, msg dto.SendEmailPayload) (messageID string, err error)
}

// NotificationCreator persists an in-app notification for a user.
type NotificationCreator interface {
	Create(ctx context.Context, n dto.CreateNotificationPayload) (id string, err error)
}

// NewEmailHandler returns the handler for email jobs.
func NewEmailHandler(sender EmailSender) Handler {
	return func(ctx context.Context, payload datatypes.JSON) (any, error) {
		var email dto.SendEmailPayload
		if err := json.Unmarshal(payload, &email); err != nil {
			return nil, fmt.Errorf("unmarshal email payload: %w", err)
		}

		msgID, err := sender.Send(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("send email to %s: %w", email.To, err)
		}

		return map[string]any{
			"to":         email.To,
			"subject":    email.Subject,
			"message_id": msgID,
			"sent_at":    time.Now().UTC().Format(time.RFC3339),
		}, nil
	}
}

// NewNotificationHandler returns the handler for notification jobs.
func NewNotificationHandler(creator NotificationCreator) Handler {
	return func(ctx context.Context, payload datatypes.JSON) (any, error) {
		var n dto.CreateNotificationPayload
		if err := json.Unmarshal(payload, &n); err != nil {
			return nil, fmt.Errorf("unmarshal notification payload: %w", err)
		}

		id, err := creator.Create(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("create notification for %s: %w", n.UserID, err)
		}

		return map[string]any{
			"notification_id": id,
			"user_id":         n.UserID,
			"created_at":      time.Now().UTC().Format(time.RFC3339),
		}, nil
	}
}

// NewTranscodeHandler returns the handler for video transcode jobs. The
// work is simulated per resolution; a real transcoder would shell out to
// ffmpeg here.
func NewTranscodeHandler() Handler {
	return func(ctx context.Context, payload datatypes.JSON) (any, error) {
		var v dto.TranscodeVideoPayload
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("unmarshal transcode payload: %w", err)
		}

		outputs := make([]string, 0, len(v.Resolutions))
		for _, res := range v.Resolutions {
			select {
			case <-time.After(200 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			outputs = append(outputs, fmt.Sprintf("%s.%s.mp4", v.VideoID, res))
			log.Printf("🎬 Transcoded %s to %s", v.VideoID, res)
		}

		return map[string]any{
			"video_id":    v.VideoID,
			"outputs":     outputs,
			"finished_at": time.Now().UTC().Format(time.RFC3339),
		}, nil
	}
}

// SimulatedSender logs instead of sending. Used by local runs and tests.
type SimulatedSender struct {
	Delay time.Duration
}

func (s SimulatedSender) Send(ctx context.Context, msg dto.SendEmailPayload) (string, error) {
	delay := s.Delay
	if delay == 0 {
		delay = 100 * time.Millisecond
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	log.Printf("📧 Sent email to %s: %s", msg.To, msg.Subject)
	return fmt.Sprintf("msg_%d", time.Now().UnixNano()), nil
}

// LogNotifier logs instead of persisting. Used by local runs and tests.
type LogNotifier struct{}

func (LogNotifier) Create(ctx context.Context, n dto.CreateNotificationPayload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	log.Printf("🔔 Notification for %s: %s", n.UserID, n.Title)
	return fmt.Sprintf("notif_%d", time.Now().UnixNano()), nil
}
