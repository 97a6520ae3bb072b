// Package lifecycle превращает корзину покупателя в заказ, отменяет заказы
// с возвратом остатков и чистит каталог после оформления.
package lifecycle

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/metrics"
	"github.com/vladislavdragonenkov/eshop/internal/query"
	"github.com/vladislavdragonenkov/eshop/internal/service/reservation"
)

// Dependencies — хранилища и коллабораторы менеджера заказов.
// Outbox, Timeline и Notifier необязательны.
type Dependencies struct {
	Orders   domain.OrderRepository
	Users    domain.UserRepository
	Engine   *reservation.Engine
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository
	Notifier domain.Notifier
}

// Options задаёт вспомогательные параметры менеджера.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.StoreMetrics
	Now     func() time.Time
}

// Option настраивает Manager.
type Option func(*Options)

// WithLogger задаёт logger менеджера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics подключает метрики заказов.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		opts.Now = now
	}
}

// Manager управляет жизненным циклом заказа.
type Manager struct {
	orders   domain.OrderRepository
	users    domain.UserRepository
	engine   *reservation.Engine
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	notifier domain.Notifier
	metrics  *metrics.StoreMetrics
	logger   *log.Entry
	now      func() time.Time
}

// NewManager создаёт менеджер заказов.
func NewManager(deps Dependencies, options ...Option) *Manager {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "order-lifecycle")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Manager{
		orders:   deps.Orders,
		users:    deps.Users,
		engine:   deps.Engine,
		outbox:   deps.Outbox,
		timeline: deps.Timeline,
		notifier: deps.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// CancelResult описывает итог отмены: отменённый заказ (если он указан)
// и строки корзины, возвращённые на склад.
type CancelResult struct {
	Order    *domain.Order
	Restored []domain.CartLine
}

// PlaceOrder оформляет корзину покупателя login в заказ.
// Пустая корзина даёт ErrOrderNotPlaced, и никаких побочных эффектов не происходит.
func (m *Manager) PlaceOrder(login string) (domain.Order, error) {
	started := m.now()
	defer func() { m.metrics.RecordOperationDuration("place_order", m.now().Sub(started)) }()

	buyer, err := m.users.GetByLogin(login)
	if err != nil {
		return domain.Order{}, fmt.Errorf("resolve buyer: %w", err)
	}

	var placed domain.Order
	err = m.engine.Checkout(buyer.Email, func(lines []domain.CartLine) error {
		order, err := domain.NewOrder(buyer, lines, m.now())
		if err != nil {
			return err
		}
		saved, err := m.orders.Create(order)
		if err != nil {
			return fmt.Errorf("persist order: %w", err)
		}
		placed = saved
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotPlaced) {
			m.logger.WithField("buyer", login).Warn("checkout rejected: cart is empty")
		}
		return domain.Order{}, err
	}

	m.metrics.RecordOrderPlaced(placed.TotalPrice.InexactFloat64())
	m.logger.WithFields(log.Fields{
		"order_id": placed.ID,
		"buyer":    placed.BuyerLogin,
		"total":    domain.FormatPrice(placed.TotalPrice),
		"lines":    len(placed.Lines),
	}).Info("order placed")

	m.emitEvent(placed.ID, domain.EventOrderPlaced, domain.TimelineOrderPlaced, map[string]interface{}{
		"buyer":       placed.BuyerLogin,
		"total_price": domain.FormatPrice(placed.TotalPrice),
		"lines":       len(placed.Lines),
		"reason":      "order placed by " + placed.BuyerLogin,
	})
	m.notifyOrderDetails(placed, buyer)

	return placed, nil
}

// Cancel возвращает на склад всё, что лежит в корзине login, и очищает её.
// Если orderID > 0, восстанавливается корзина покупателя заказа, заказ
// отвязывается от строк и в историю пишется отмена; чужой заказ может
// отменить только администратор.
func (m *Manager) Cancel(login string, orderID int64) (CancelResult, error) {
	started := m.now()
	defer func() { m.metrics.RecordOperationDuration("cancel_order", m.now().Sub(started)) }()

	user, err := m.users.GetByLogin(login)
	if err != nil {
		return CancelResult{}, fmt.Errorf("resolve user: %w", err)
	}

	var order *domain.Order
	cartOwner := user.Email
	if orderID > 0 {
		found, err := m.orders.Get(orderID)
		if err != nil {
			return CancelResult{}, err
		}
		if found.BuyerLogin != user.Email && !domain.HasAdminRole(user) {
			return CancelResult{}, fmt.Errorf("%w: order %d belongs to another buyer", domain.ErrAccessDenied, orderID)
		}
		order = &found
		cartOwner = found.BuyerLogin
	}

	restored, err := m.engine.Restore(cartOwner)
	if err != nil {
		return CancelResult{Restored: restored}, fmt.Errorf("restore cart: %w", err)
	}

	if order != nil {
		if err := m.orders.DetachLines(order.ID); err != nil {
			return CancelResult{Restored: restored}, fmt.Errorf("detach order lines: %w", err)
		}
		order.Lines = nil
		m.emitEvent(order.ID, domain.EventOrderCanceled, domain.TimelineOrderCanceled, map[string]interface{}{
			"buyer":          order.BuyerLogin,
			"restored_lines": len(restored),
			"reason":         "canceled by " + user.Email,
		})
	}

	m.metrics.RecordOrderCanceled()
	m.logger.WithFields(log.Fields{
		"user":     user.Email,
		"buyer":    cartOwner,
		"order_id": orderID,
		"restored": len(restored),
	}).Info("order canceled")

	return CancelResult{Order: order, Restored: restored}, nil
}

// FinalizeAfterPlacement удаляет распроданные товары из каталога и очищает корзину login.
func (m *Manager) FinalizeAfterPlacement(login string) ([]int64, error) {
	started := m.now()
	defer func() { m.metrics.RecordOperationDuration("finalize", m.now().Sub(started)) }()

	purged, err := m.engine.PurgeDepleted(login)
	if err != nil {
		return purged, fmt.Errorf("purge depleted goods: %w", err)
	}
	m.engine.Clear(login)

	if len(purged) > 0 {
		m.enqueue("catalog", "goods", domain.EventGoodsPurged, map[string]interface{}{
			"good_ids": purged,
			"ts":       m.now().UTC().Format(time.RFC3339Nano),
		})
	}
	return purged, nil
}

// TotalOrders возвращает количество сохранённых заказов.
func (m *Manager) TotalOrders() (int, error) {
	return m.orders.Count()
}

// Get возвращает заказ по id.
func (m *Manager) Get(id int64) (domain.Order, error) {
	return m.orders.Get(id)
}

// List возвращает страницу журнала заказов и общее количество заказов в выборке.
func (m *Manager) List(view query.OrdersView) ([]domain.Order, int, error) {
	if view.PageSize <= 0 {
		return nil, 0, domain.ErrInvalidPageSize
	}
	orders, err := m.orders.List()
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	page, total := view.Apply(orders)
	return page, total, nil
}

// ListByBuyer возвращает последние заказы покупателя.
func (m *Manager) ListByBuyer(login string, limit int) ([]domain.Order, error) {
	return m.orders.ListByBuyer(login, limit)
}

// Timeline возвращает историю заказа: всю по возрастанию времени
// или последние события от новых к старым.
func (m *Manager) Timeline(orderID int64, all bool) ([]domain.TimelineEvent, error) {
	if _, err := m.orders.Get(orderID); err != nil {
		return nil, err
	}
	if m.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}

	events, err := m.timeline.List(orderID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	if all {
		return events, nil
	}

	last := make([]domain.TimelineEvent, 0, domain.LastEntriesLimit)
	for i := len(events) - 1; i >= 0 && len(last) < domain.LastEntriesLimit; i-- {
		last = append(last, events[i])
	}
	return last, nil
}

func (m *Manager) notifyOrderDetails(order domain.Order, buyer domain.User) {
	if m.notifier == nil {
		return
	}

	admins, err := m.users.ListByRole(domain.RoleAdmin)
	if err != nil {
		m.logger.WithError(err).WithField("order_id", order.ID).Warn("list admins for notification failed")
	}

	for _, recipient := range append(admins, buyer) {
		err := m.notifier.Notify(domain.OrderDetailsNotification(order, recipient))
		m.metrics.RecordNotification(err)
		if err != nil {
			m.logger.WithError(err).WithFields(log.Fields{
				"order_id":  order.ID,
				"recipient": recipient.Email,
			}).Warn("order notification failed")
		}
	}
}

// emitEvent пишет событие заказа в outbox и в историю заказа.
func (m *Manager) emitEvent(orderID int64, eventType, timelineType string, payload map[string]interface{}) {
	occurred := m.now().UTC()
	payload["order_id"] = orderID
	payload["ts"] = occurred.Format(time.RFC3339Nano)
	m.enqueue("order", strconv.FormatInt(orderID, 10), eventType, payload)

	if m.timeline == nil {
		return
	}
	reason, _ := payload["reason"].(string)
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     timelineType,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := m.timeline.Append(event); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    timelineType,
		}).Warn("append timeline event failed")
		return
	}
	m.metrics.RecordTimelineEvent()
}

func (m *Manager) enqueue(aggregateType, aggregateID, eventType string, payload map[string]interface{}) {
	if m.outbox == nil {
		return
	}

	msg, err := domain.NewOutboxMessage(aggregateType, aggregateID, eventType, payload)
	if err != nil {
		m.logger.WithError(err).WithField("event", eventType).Error("marshal event failed")
		return
	}
	if _, err := m.outbox.Enqueue(msg); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Error("enqueue event failed")
		return
	}
	m.metrics.RecordOutboxEvent()
}
