package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/ahmedit-11/artfolio-chat/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// NotificationEmitter forwards new-message notifications to the platform
// event bus, where the push service picks them up.
type NotificationEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type NotificationEnvelope struct {
	SchemaVersion int                 `json:"schema_version"`
	EventType     string              `json:"event_type"`
	OccurredAt    string              `json:"occurred_at"`
	Service       string              `json:"service"`
	Environment   string              `json:"environment"`
	RecipientID   string              `json:"recipient_id"`
	Payload       models.Notification `json:"payload"`
}

func NewNotificationEmitter(publisher Publisher, routingKey, service, environment string) *NotificationEmitter {
	return &NotificationEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// NewMessage publishes one notification envelope. Failures are logged, never
// propagated: a broken bus must not break chat delivery.
func (e *NotificationEmitter) NewMessage(ctx context.Context, recipientID string, n models.Notification) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := NotificationEnvelope{
		SchemaVersion: 1,
		EventType:     "chat_notification",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RecipientID:   recipientID,
		Payload:       n,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Printf("notification publish failed: %v", err)
	}
}
