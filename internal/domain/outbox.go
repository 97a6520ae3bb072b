package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Типы событий, которые lifecycle ставит в outbox.
const (
	EventOrderPlaced   = "order.placed"
	EventOrderCanceled = "order.canceled"
	EventGoodsPurged   = "goods.purged"
)

// OutboxMessage — событие, ожидающее публикации во внешний брокер.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// NewOutboxMessage кодирует payload в JSON и собирает событие агрегата.
func NewOutboxMessage(aggregateType, aggregateID, eventType string, payload any) (OutboxMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	}, nil
}

// OutboxStats — размер очереди неотправленных событий.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OldestAge возвращает возраст самого старого неотправленного события
// или ноль, если очередь пуста.
func (s OutboxStats) OldestAge(now time.Time) time.Duration {
	if s.PendingCount == 0 || s.OldestPendingAt.IsZero() {
		return 0
	}
	return max(now.Sub(s.OldestPendingAt), 0)
}

// OutboxRepository хранит события до подтверждения публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	// PullPending выдаёт до limit неотправленных событий в порядке постановки.
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// OutboxPublisher доставляет событие во внешний брокер. Повторная доставка
// того же события допустима.
type OutboxPublisher interface {
	Publish(event OutboxMessage) error
}
