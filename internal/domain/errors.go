package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — общий признак отсутствующей сущности (товар, заказ, пользователь).
	ErrNotFound = errors.New("not found")
	// ErrGoodNotFound возвращается, если товара с таким id нет в каталоге.
	ErrGoodNotFound = fmt.Errorf("good %w", ErrNotFound)
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	// ErrAttachmentNotFound возвращается, если у заказа нет такого файла.
	ErrAttachmentNotFound = fmt.Errorf("attachment %w", ErrNotFound)
	// ErrUserNotFound возвращается, если пользователь с таким логином не зарегистрирован.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrAlreadyExists — нарушение уникальности при создании записи.
	ErrAlreadyExists = errors.New("already exists")

	// ErrProductSelectionEmpty — покупатель не выбрал товар.
	ErrProductSelectionEmpty = errors.New("you should select the product first")
	// ErrProductNotFound — в каталоге нет товара с такой парой (title, price).
	ErrProductNotFound = errors.New("product not found")
	// ErrOutOfStock — на складе не осталось единиц товара.
	ErrOutOfStock = errors.New("product out of stock")
	// ErrProductNotInCart — попытка убрать из корзины то, чего в ней нет.
	ErrProductNotInCart = errors.New("product is not in the cart")
	// ErrOrderNotPlaced — оформление заказа с пустой корзиной.
	ErrOrderNotPlaced = errors.New("your order not placed yet")
	// ErrGoodReserved — товар лежит в корзине покупателя и не может быть удалён.
	ErrGoodReserved = errors.New("good is reserved in a cart")
	// ErrAccessDenied — роль пользователя не допускает операцию.
	ErrAccessDenied = errors.New("access denied")

	// ErrLoginRequired — не передан логин вызывающего пользователя.
	ErrLoginRequired = errors.New("login is required")
	// ErrTitleRequired — у товара пустое название.
	ErrTitleRequired = errors.New("good title is required")
	// ErrPriceInvalid — цена отрицательная или содержит больше двух знаков после точки.
	ErrPriceInvalid = errors.New("price must be non-negative with at most two fractional digits")
	// ErrQuantityNegative — отрицательный остаток на складе.
	ErrQuantityNegative = errors.New("quantity must be non-negative")
	// ErrInvalidPageSize — размер страницы должен быть положительным.
	ErrInvalidPageSize = errors.New("page size must be greater than zero")
	// ErrFeedbackRateInvalid — оценка вне диапазона 1..5.
	ErrFeedbackRateInvalid = errors.New("feedback rate must be between 1 and 5")
	// ErrTextRequired — пустой текст отзыва или комментария.
	ErrTextRequired = errors.New("text is required")
	// ErrAttachmentNameRequired — у файла нет имени.
	ErrAttachmentNameRequired = errors.New("attachment name is required")
	// ErrAttachmentEmpty — файл без содержимого.
	ErrAttachmentEmpty = errors.New("attachment is empty")
	// ErrAttachmentTooLarge — файл больше MaxAttachmentSize.
	ErrAttachmentTooLarge = errors.New("attachment is too large")

	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — не передан хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже использован тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ уже использован другим запросом.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — запись по ключу отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound проверяет, относится ли ошибка к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIdempotencyConflict проверяет, что ключ идемпотентности уже занят.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
