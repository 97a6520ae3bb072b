// Package notify содержит Notifier для локального запуска без брокера.
package notify

import (
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

// LogNotifier пишет модели писем в лог вместо отправки.
type LogNotifier struct {
	logger *log.Entry
}

// NewLogNotifier создаёт LogNotifier; nil logger заменяется компонентным.
func NewLogNotifier(logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.WithField("component", "log-notifier")
	}
	return &LogNotifier{logger: logger}
}

// Notify логирует уведомление и никогда не возвращает ошибку.
func (n *LogNotifier) Notify(notification domain.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}

	fields := log.Fields{
		"notification_id": notification.ID,
		"recipient":       notification.Recipient,
		"subject":         notification.Subject,
		"template":        notification.Template,
	}
	for k, v := range notification.Model {
		fields["model_"+k] = v
	}
	n.logger.WithFields(fields).Info("notification prepared")
	return nil
}

var _ domain.Notifier = (*LogNotifier)(nil)
