package notify

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

func TestLogNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	notifier := NewLogNotifier(log.NewEntry(logger))

	err := notifier.Notify(domain.Notification{
		Recipient: "ann@shop.test",
		Subject:   domain.OrderDetailsSubject,
		Template:  domain.OrderDetailsTemplate,
		Model:     map[string]string{"orderId": "3"},
	})
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, "notification prepared", entry.Message)
	require.Equal(t, "ann@shop.test", entry.Data["recipient"])
	require.Equal(t, "3", entry.Data["model_orderId"])
	require.NotEmpty(t, entry.Data["notification_id"])
}
