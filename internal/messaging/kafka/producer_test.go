package kafka

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

func TestProducerConfig(t *testing.T) {
	cfg := ProducerConfig()
	require.Equal(t, defaultClientID, cfg.ClientID)
	require.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	require.True(t, cfg.Producer.Idempotent)
	require.True(t, cfg.Producer.Return.Successes)
	require.Equal(t, 1, cfg.Net.MaxOpenRequests)
	require.NoError(t, cfg.Validate())

	cfg = ProducerConfig(WithClientID("eshop-replay"), WithRetries(2, time.Second), WithClientID(""))
	require.Equal(t, "eshop-replay", cfg.ClientID)
	require.Equal(t, 2, cfg.Producer.Retry.Max)
	require.Equal(t, time.Second, cfg.Producer.Retry.Backoff)
}

func TestProducer_PublishEvent(t *testing.T) {
	sent := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		value, _ := msg.Value.Encode()
		switch {
		case msg.Topic != TopicOrderEvents:
			return errors.New("wrong topic " + msg.Topic)
		case string(key) != "42":
			return errors.New("wrong key " + string(key))
		case string(value) != `{"order_id":42}`:
			return errors.New("wrong value " + string(value))
		case !msg.Timestamp.Equal(sent):
			return errors.New("wrong timestamp")
		case len(msg.Headers) != 2 ||
			string(msg.Headers[0].Key) != HeaderAggregateID ||
			string(msg.Headers[1].Key) != HeaderEventType:
			return errors.New("headers are not sorted")
		}
		return nil
	})

	producer := NewProducerFromSync(mockProducer)
	producer.now = func() time.Time { return sent }

	err := producer.PublishEvent(TopicOrderEvents, "42", map[string]int{"order_id": 42}, map[string]string{
		HeaderEventType:   domain.EventOrderPlaced,
		HeaderAggregateID: "42",
	})
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestProducer_PublishEventFailures(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer := NewProducerFromSync(mockProducer)

	err := producer.PublishEvent(TopicOrderEvents, "42", struct{}{}, nil)
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	err = producer.PublishEvent(TopicOrderEvents, "42", make(chan int), nil)
	require.ErrorContains(t, err, "encode")
	require.NoError(t, producer.Close())
}

func TestRecordHeaders(t *testing.T) {
	require.Nil(t, recordHeaders(nil))
	headers := recordHeaders(map[string]string{"b": "2", "a": "1"})
	require.Len(t, headers, 2)
	require.Equal(t, "a", string(headers[0].Key))
	require.Equal(t, "1", string(headers[0].Value))
}

func TestNewNotificationEventCopiesModel(t *testing.T) {
	model := map[string]string{"orderId": "1"}
	createdAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	event := NewNotificationEvent(domain.Notification{
		ID:        "n-1",
		Recipient: "ann@shop.test",
		Subject:   domain.OrderDetailsSubject,
		Template:  domain.OrderDetailsTemplate,
		Model:     model,
	}, createdAt)
	model["orderId"] = "2"

	require.Equal(t, "1", event.Model["orderId"])
	require.Equal(t, createdAt, event.CreatedAt)

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"template":"orderDetails.html"`)
}
