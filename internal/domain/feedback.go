package domain

import (
	"strings"
	"time"
)

// LastEntriesLimit — сколько последних отзывов, комментариев и событий
// показывается, когда полный список не запрошен.
const LastEntriesLimit = 5

// Feedback — оценка заказа покупателем.
type Feedback struct {
	ID          int64
	OrderID     int64
	AuthorLogin string
	Rate        int
	Text        string
	CreatedAt   time.Time
}

// Validate проверяет оценку и текст отзыва.
func (f *Feedback) Validate() []error {
	var errs []error
	if f.Rate < 1 || f.Rate > 5 {
		errs = append(errs, ErrFeedbackRateInvalid)
	}
	if strings.TrimSpace(f.Text) == "" {
		errs = append(errs, ErrTextRequired)
	}
	return errs
}

// Comment — произвольный комментарий к заказу от любого участника.
type Comment struct {
	ID          int64
	OrderID     int64
	AuthorLogin string
	Text        string
	CreatedAt   time.Time
}
