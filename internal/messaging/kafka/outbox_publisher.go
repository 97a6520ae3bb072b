package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

var errPublisherNotInitialized = errors.New("kafka publisher is not initialized")

// NewOutboxEnvelope заворачивает запись outbox в сообщение топика.
func NewOutboxEnvelope(msg domain.OutboxMessage, publishedAt time.Time) OutboxEnvelope {
	return OutboxEnvelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		PublishedAt:   publishedAt.UTC(),
	}
}

// DecodeOutboxEnvelope разбирает сообщение, отправленное OutboxTopicPublisher.
func DecodeOutboxEnvelope(value []byte) (OutboxEnvelope, error) {
	var envelope OutboxEnvelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		return OutboxEnvelope{}, fmt.Errorf("decode outbox envelope: %w", err)
	}
	if len(envelope.Payload) == 0 {
		return OutboxEnvelope{}, fmt.Errorf("outbox envelope %q has no payload", envelope.ID)
	}
	return envelope, nil
}

// partitionKey держит события одного заказа в одной партиции.
func (e OutboxEnvelope) partitionKey() string {
	if e.AggregateID != "" {
		return e.AggregateID
	}
	return e.ID
}

// OutboxTopicPublisher отправляет записи outbox в один топик.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

// NewOutboxPublisher создаёт паблишер outbox; пустой topic означает TopicOrderEvents.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}

	envelope := NewOutboxEnvelope(event, p.now())
	return p.producer.PublishEvent(p.topic, envelope.partitionKey(), envelope, map[string]string{
		HeaderEventType:   event.EventType,
		HeaderAggregateID: event.AggregateID,
	})
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
