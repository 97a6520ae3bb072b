package kafka

import (
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

// NotificationPublisher передаёт модели писем сервису рассылки через Kafka.
type NotificationPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

// NewNotificationPublisher создаёт Notifier поверх Kafka producer.
func NewNotificationPublisher(producer *Producer, topic string) *NotificationPublisher {
	if topic == "" {
		topic = TopicNotifications
	}
	return &NotificationPublisher{
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}
}

// Notify публикует уведомление с ключом-получателем; пустой ID заполняется UUID.
func (p *NotificationPublisher) Notify(notification domain.Notification) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}

	event := NewNotificationEvent(notification, p.now().UTC())
	return p.producer.PublishEvent(p.topic, notification.Recipient, event, map[string]string{
		HeaderTemplate: notification.Template,
	})
}

var _ domain.Notifier = (*NotificationPublisher)(nil)
