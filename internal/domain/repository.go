package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GoodRepository описывает каталог товаров.
type GoodRepository interface {
	// List возвращает весь каталог, упорядоченный по названию.
	List() ([]Good, error)
	// Get возвращает товар по id или ErrGoodNotFound.
	Get(id int64) (Good, error)
	// FindByTitleAndPrice ищет товар по паре из витрины или возвращает ErrProductNotFound.
	FindByTitleAndPrice(title string, price decimal.Decimal) (Good, error)
	// Search фильтрует каталог; GoodSearchDefault возвращает его целиком.
	Search(field GoodSearchField, text string) ([]Good, error)
	// Create сохраняет новый товар и присваивает ему id.
	Create(good Good) (Good, error)
	// Update полностью заменяет товар с тем же id.
	Update(good Good) error
	// AdjustQuantity атомарно меняет остаток на delta; уход в минус даёт ErrOutOfStock.
	AdjustQuantity(id int64, delta int64) (Good, error)
	// SetQuantity перезаписывает остаток.
	SetQuantity(id int64, qty int64) (Good, error)
	// Delete удаляет товар по id.
	Delete(id int64) error
	// Count возвращает количество товаров в каталоге.
	Count() (int, error)
}

// OrderRepository описывает журнал заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе со строками и присваивает ему id.
	Create(order Order) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id int64) (Order, error)
	// List возвращает все заказы в порядке id.
	List() ([]Order, error)
	// ListByBuyer возвращает заказы покупателя с опциональным ограничением на количество.
	ListByBuyer(login string, limit int) ([]Order, error)
	// DetachLines отвязывает строки от отменённого заказа.
	DetachLines(id int64) error
	// Count возвращает количество сохранённых заказов.
	Count() (int, error)
}

// UserRepository описывает справочник пользователей.
type UserRepository interface {
	Create(user User) (User, error)
	// GetByLogin возвращает пользователя по email или ErrUserNotFound.
	GetByLogin(login string) (User, error)
	ListByRole(role Role) ([]User, error)
}

// FeedbackRepository хранит отзывы и комментарии к заказам.
type FeedbackRepository interface {
	CreateFeedback(feedback Feedback) (Feedback, error)
	// ListFeedback возвращает отзывы заказа от новых к старым; limit <= 0 — без ограничения.
	ListFeedback(orderID int64, limit int) ([]Feedback, error)
	CreateComment(comment Comment) (Comment, error)
	// ListComments возвращает комментарии заказа от новых к старым; limit <= 0 — без ограничения.
	ListComments(orderID int64, limit int) ([]Comment, error)
}

// AttachmentRepository хранит файлы, прикреплённые к заказам.
type AttachmentRepository interface {
	Create(attachment Attachment) (Attachment, error)
	// Get возвращает файл заказа по id; ErrAttachmentNotFound, если его нет.
	Get(orderID, id int64) (Attachment, error)
	// ListByOrder возвращает файлы заказа в порядке добавления.
	ListByOrder(orderID int64) ([]Attachment, error)
	// DeleteByName удаляет все файлы заказа с этим именем; ErrAttachmentNotFound, если таких нет.
	DeleteByName(orderID int64, name string) (int, error)
}

// TimelineRepository хранит историю заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	// List возвращает события от старых к новым.
	List(orderID int64) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит ответы мутирующих вызовов по ключу идемпотентности.
type IdempotencyRepository interface {
	// CreateProcessing занимает ключ; занятый живой ключ даёт
	// ErrIdempotencyKeyAlreadyExists или ErrIdempotencyHashMismatch вместе с записью.
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, responseCode int) error
	MarkFailed(key string, responseBody []byte, responseCode int) error
	// DeleteExpired удаляет до limit ключей с ttl <= before.
	DeleteExpired(before time.Time, limit int) (int, error)
}
