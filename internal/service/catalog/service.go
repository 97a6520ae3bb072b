// Package catalog реализует административное управление каталогом и выборки для витрины.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/query"
)

// Reservations не даёт удалить товар, зарезервированный в корзинах.
type Reservations interface {
	DeleteUnreserved(id int64, del func(id int64) error) error
}

// Service управляет каталогом товаров.
type Service struct {
	goods        domain.GoodRepository
	users        domain.UserRepository
	reservations Reservations
	logger       *log.Entry
	now          func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithReservations запрещает удалять товары, которые лежат в корзинах.
func WithReservations(r Reservations) Option {
	return func(s *Service) {
		s.reservations = r
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService создаёт сервис каталога.
func NewService(goods domain.GoodRepository, users domain.UserRepository, options ...Option) *Service {
	s := &Service{
		goods:  goods,
		users:  users,
		logger: log.WithField("component", "catalog"),
		now:    time.Now,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Create добавляет товар в каталог. Доступно только администратору.
func (s *Service) Create(login string, good domain.Good) (domain.Good, error) {
	admin, err := s.requireAdmin(login)
	if err != nil {
		return domain.Good{}, err
	}

	good.Title = strings.TrimSpace(good.Title)
	if err := validate(&good); err != nil {
		return domain.Good{}, err
	}
	good.CreatedBy = admin.Email
	good.UpdatedAt = s.now().UTC()

	saved, err := s.goods.Create(good)
	if err != nil {
		return domain.Good{}, fmt.Errorf("create good: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"good_id": saved.ID,
		"title":   saved.Title,
		"price":   domain.FormatPrice(saved.Price),
		"admin":   admin.Email,
	}).Info("good created")
	return saved, nil
}

// Update полностью заменяет товар. Доступно только администратору.
func (s *Service) Update(login string, good domain.Good) (domain.Good, error) {
	admin, err := s.requireAdmin(login)
	if err != nil {
		return domain.Good{}, err
	}

	current, err := s.goods.Get(good.ID)
	if err != nil {
		return domain.Good{}, err
	}

	good.Title = strings.TrimSpace(good.Title)
	if err := validate(&good); err != nil {
		return domain.Good{}, err
	}
	good.CreatedBy = current.CreatedBy
	good.UpdatedAt = s.now().UTC()

	if err := s.goods.Update(good); err != nil {
		return domain.Good{}, fmt.Errorf("update good: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"good_id": good.ID,
		"admin":   admin.Email,
	}).Info("good updated")
	return good, nil
}

// Delete удаляет товар. Доступно только администратору.
// С WithReservations товар из чьей-либо корзины не удаляется.
func (s *Service) Delete(login string, id int64) error {
	admin, err := s.requireAdmin(login)
	if err != nil {
		return err
	}
	del := s.goods.Delete
	if s.reservations != nil {
		err = s.reservations.DeleteUnreserved(id, del)
	} else {
		err = del(id)
	}
	if err != nil {
		return err
	}

	s.logger.WithFields(log.Fields{
		"good_id": id,
		"admin":   admin.Email,
	}).Info("good deleted")
	return nil
}

// Get возвращает товар по id.
func (s *Service) Get(id int64) (domain.Good, error) {
	return s.goods.Get(id)
}

// ListForBuyer возвращает каталог для витрины покупателя, упорядоченный по названию.
func (s *Service) ListForBuyer() ([]domain.Good, error) {
	goods, err := s.goods.List()
	if err != nil {
		return nil, fmt.Errorf("list goods: %w", err)
	}
	return goods, nil
}

// ListForAdmin применяет поиск, сортировку, направление и пагинацию к каталогу.
// Возвращает страницу и количество товаров, прошедших поиск.
func (s *Service) ListForAdmin(view query.GoodsView) ([]domain.Good, int, error) {
	if view.PageSize <= 0 {
		return nil, 0, domain.ErrInvalidPageSize
	}

	goods, err := s.goods.List()
	if err != nil {
		return nil, 0, fmt.Errorf("list goods: %w", err)
	}
	page, total := view.Apply(goods)
	return page, total, nil
}

// Search возвращает товары, у которых поле field содержит text.
func (s *Service) Search(field domain.GoodSearchField, text string) ([]domain.Good, error) {
	return s.goods.Search(field, text)
}

// Total возвращает количество товаров в каталоге.
func (s *Service) Total() (int, error) {
	return s.goods.Count()
}

func (s *Service) requireAdmin(login string) (domain.User, error) {
	user, err := s.users.GetByLogin(login)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.User{}, fmt.Errorf("%w: unknown user %q", domain.ErrAccessDenied, login)
		}
		return domain.User{}, fmt.Errorf("resolve user: %w", err)
	}
	if !domain.HasAdminRole(user) {
		return domain.User{}, fmt.Errorf("%w: catalog is managed by admins only", domain.ErrAccessDenied)
	}
	return user, nil
}

func validate(good *domain.Good) error {
	if errs := good.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
