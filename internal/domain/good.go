package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale — число знаков после точки во всех ценах магазина.
const PriceScale = 2

// Good — товар каталога с остатком на складе.
type Good struct {
	ID          int64
	Title       string
	Price       decimal.Decimal
	Description string
	// Quantity — количество единиц на складе, никогда не меньше нуля.
	Quantity  int64
	CreatedBy string
	UpdatedAt time.Time
}

// Matches сообщает, совпадает ли товар с парой (title, price) из витрины покупателя.
func (g Good) Matches(title string, price decimal.Decimal) bool {
	return g.Title == title && g.Price.Equal(price)
}

// InStock проверяет, что на складе осталась хотя бы одна единица.
func (g Good) InStock() bool {
	return g.Quantity >= 1
}

// Validate проверяет поля товара перед сохранением и возвращает список замечаний.
func (g *Good) Validate() []error {
	var errs []error

	if strings.TrimSpace(g.Title) == "" {
		errs = append(errs, ErrTitleRequired)
	}
	if !validPrice(g.Price) {
		errs = append(errs, ErrPriceInvalid)
	}
	if g.Quantity < 0 {
		errs = append(errs, ErrQuantityNegative)
	}

	return errs
}

// NormalizePrice приводит цену из выпадающего списка витрины к виду с двумя знаками:
// "5" -> "5.00", "5.1" -> "5.10", "5.25" остаётся без изменений.
func NormalizePrice(text string) string {
	dot := strings.Index(text, ".")
	if dot < 0 {
		return text + ".00"
	}
	if len(text[dot+1:]) > 1 {
		return text
	}
	return text + "0"
}

// ParsePrice разбирает цену из свободного текста в десятичное значение с фиксированной точкой.
func ParsePrice(text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: empty price", ErrPriceInvalid)
	}

	price, err := decimal.NewFromString(NormalizePrice(text))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrPriceInvalid, text)
	}
	if !validPrice(price) {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrPriceInvalid, text)
	}

	return price, nil
}

// FormatPrice возвращает цену в отображаемом виде с двумя знаками после точки.
func FormatPrice(price decimal.Decimal) string {
	return price.StringFixed(PriceScale)
}

func validPrice(price decimal.Decimal) bool {
	return !price.IsNegative() && price.Equal(price.Round(PriceScale))
}
