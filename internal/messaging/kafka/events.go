package kafka

import (
	"encoding/json"
	"time"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "eshop.order.events"
	TopicNotifications   = "eshop.notifications"
	TopicDeadLetterQueue = "eshop.dlq"
)

// Kafka headers
const (
	HeaderEventType   = "x-event-type"
	HeaderAggregateID = "x-aggregate-id"
	HeaderTemplate    = "x-template"
)

// OutboxEnvelope — сообщение в TopicOrderEvents, собранное из записи outbox.
type OutboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NotificationEvent — модель письма для внешнего сервиса рассылки.
type NotificationEvent struct {
	ID        string            `json:"id"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Template  string            `json:"template"`
	Model     map[string]string `json:"model"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewNotificationEvent переносит уведомление ядра в формат сообщения.
func NewNotificationEvent(n domain.Notification, createdAt time.Time) NotificationEvent {
	model := make(map[string]string, len(n.Model))
	for k, v := range n.Model {
		model[k] = v
	}
	return NotificationEvent{
		ID:        n.ID,
		Recipient: n.Recipient,
		Subject:   n.Subject,
		Template:  n.Template,
		Model:     model,
		CreatedAt: createdAt,
	}
}
