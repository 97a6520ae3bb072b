// Package feedback принимает отзывы покупателей, комментарии и файлы к заказам.
package feedback

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/metrics"
)

// Dependencies — хранилища сервиса отзывов. Attachments, Timeline и Notifier необязательны.
type Dependencies struct {
	Feedback    domain.FeedbackRepository
	Attachments domain.AttachmentRepository
	Orders      domain.OrderRepository
	Users       domain.UserRepository
	Timeline    domain.TimelineRepository
	Notifier    domain.Notifier
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics подключает метрики событий истории и уведомлений.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service управляет отзывами и комментариями.
type Service struct {
	feedback    domain.FeedbackRepository
	attachments domain.AttachmentRepository
	orders      domain.OrderRepository
	users       domain.UserRepository
	timeline    domain.TimelineRepository
	notifier    domain.Notifier
	metrics     *metrics.StoreMetrics
	logger      *log.Entry
	now         func() time.Time
}

// NewService создаёт сервис отзывов.
func NewService(deps Dependencies, options ...Option) *Service {
	s := &Service{
		feedback:    deps.Feedback,
		attachments: deps.Attachments,
		orders:      deps.Orders,
		users:       deps.Users,
		timeline:    deps.Timeline,
		notifier:    deps.Notifier,
		logger:      log.WithField("component", "feedback"),
		now:         time.Now,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Leave сохраняет отзыв покупателя к заказу и уведомляет администраторов.
// Администраторы отзывы не оставляют.
func (s *Service) Leave(login string, orderID int64, rate int, text string) (domain.Feedback, error) {
	author, err := s.users.GetByLogin(login)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("resolve author: %w", err)
	}
	if domain.HasAdminRole(author) {
		return domain.Feedback{}, fmt.Errorf("%w: access is allowed only for buyer", domain.ErrAccessDenied)
	}
	if _, err := s.orders.Get(orderID); err != nil {
		return domain.Feedback{}, err
	}

	feedback := domain.Feedback{
		OrderID:     orderID,
		AuthorLogin: author.Email,
		Rate:        rate,
		Text:        strings.TrimSpace(text),
		CreatedAt:   s.now().UTC(),
	}
	if errs := feedback.Validate(); len(errs) > 0 {
		return domain.Feedback{}, errors.Join(errs...)
	}

	saved, err := s.feedback.CreateFeedback(feedback)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("save feedback: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"author":   author.Email,
		"rate":     rate,
	}).Info("feedback left")

	s.appendTimeline(orderID, domain.TimelineFeedbackLeft, fmt.Sprintf("rate %d from %s", rate, author.Email), saved.CreatedAt)
	s.notifyAdmins(saved, author)
	return saved, nil
}

// List возвращает отзывы заказа от новых к старым: все или последние пять.
func (s *Service) List(orderID int64, all bool) ([]domain.Feedback, error) {
	if _, err := s.orders.Get(orderID); err != nil {
		return nil, err
	}
	return s.feedback.ListFeedback(orderID, limitFor(all))
}

// AddComment сохраняет комментарий любого зарегистрированного пользователя к заказу.
func (s *Service) AddComment(login string, orderID int64, text string) (domain.Comment, error) {
	author, err := s.users.GetByLogin(login)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("resolve author: %w", err)
	}
	if _, err := s.orders.Get(orderID); err != nil {
		return domain.Comment{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Comment{}, domain.ErrTextRequired
	}

	saved, err := s.feedback.CreateComment(domain.Comment{
		OrderID:     orderID,
		AuthorLogin: author.Email,
		Text:        text,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return domain.Comment{}, fmt.Errorf("save comment: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"author":   author.Email,
	}).Debug("comment added")
	s.appendTimeline(orderID, domain.TimelineCommentAdded, "comment by "+author.Email, saved.CreatedAt)
	return saved, nil
}

// ListComments возвращает комментарии заказа от новых к старым: все или последние пять.
func (s *Service) ListComments(orderID int64, all bool) ([]domain.Comment, error) {
	if _, err := s.orders.Get(orderID); err != nil {
		return nil, err
	}
	return s.feedback.ListComments(orderID, limitFor(all))
}

func (s *Service) appendTimeline(orderID int64, eventType, reason string, occurred time.Time) {
	if s.timeline == nil {
		return
	}
	err := s.timeline.Append(domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: occurred,
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("append timeline event failed")
		return
	}
	s.metrics.RecordTimelineEvent()
}

func (s *Service) notifyAdmins(feedback domain.Feedback, author domain.User) {
	if s.notifier == nil {
		return
	}
	admins, err := s.users.ListByRole(domain.RoleAdmin)
	if err != nil {
		s.logger.WithError(err).Warn("list admins for notification failed")
		return
	}
	for _, admin := range admins {
		err := s.notifier.Notify(domain.FeedbackNotification(feedback, author, admin))
		s.metrics.RecordNotification(err)
		if err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id":  feedback.OrderID,
				"recipient": admin.Email,
			}).Warn("feedback notification failed")
		}
	}
}

func limitFor(all bool) int {
	if all {
		return 0
	}
	return domain.LastEntriesLimit
}
