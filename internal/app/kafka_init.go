package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/eshop/internal/messaging/kafka"
)

// connectKafka подключает producer к cfg.KafkaBrokers. Без брокеров или при
// ошибке подключения возвращается nil: outbox не ведётся, уведомления
// пишутся в лог. Возвращаемую функцию нужно вызвать при остановке.
func connectKafka(cfg Config, logger *log.Entry) (*kafka.Producer, func()) {
	brokers := compact(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		logger.Info("kafka brokers not configured, order events stay local")
		return nil, func() {}
	}

	entry := logger.WithField("brokers", brokers)
	producer, err := kafka.NewProducer(brokers, kafka.WithClientID(cfg.KafkaClientID))
	if err != nil {
		entry.WithError(err).Warn("kafka unavailable, continuing without it")
		return nil, func() {}
	}
	entry.Info("kafka producer connected")

	return producer, func() {
		if err := producer.Close(); err != nil {
			entry.WithError(err).Warn("kafka producer close failed")
			return
		}
		entry.Info("kafka producer closed")
	}
}
