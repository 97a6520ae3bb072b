package domain

import "github.com/shopspring/decimal"

// CartLine — снимок товара, зарезервированного в корзине покупателя.
// Последующие изменения товара в каталоге на строку корзины не влияют.
type CartLine struct {
	GoodID      int64
	Title       string
	Price       decimal.Decimal
	Description string
	// Quantity — зарезервированное количество; при добавлении через витрину всегда 1.
	Quantity int64
}

// NewCartLine снимает копию товара с количеством qty.
func NewCartLine(good Good, qty int64) CartLine {
	return CartLine{
		GoodID:      good.ID,
		Title:       good.Title,
		Price:       good.Price,
		Description: good.Description,
		Quantity:    qty,
	}
}

// Matches сравнивает строку с парой (title, price) из витрины.
func (l CartLine) Matches(title string, price decimal.Decimal) bool {
	return l.Title == title && l.Price.Equal(price)
}

// Equal — полное равенство снимков, по которому корзина удаляет строки.
func (l CartLine) Equal(other CartLine) bool {
	return l.GoodID == other.GoodID &&
		l.Title == other.Title &&
		l.Price.Equal(other.Price) &&
		l.Description == other.Description &&
		l.Quantity == other.Quantity
}

// RestoredQuantity вычисляет остаток товара после возврата строки корзины на склад.
// Если товар успел закончиться, остаток перезаписывается зарезервированным количеством,
// иначе зарезервированное количество прибавляется.
func RestoredQuantity(current, reserved int64) int64 {
	if current < 1 {
		return reserved
	}
	return current + reserved
}

// ReservedUnits считает, сколько единиц товара goodID лежит в строках корзины.
func ReservedUnits(lines []CartLine, goodID int64) int64 {
	var total int64
	for _, line := range lines {
		if line.GoodID == goodID {
			total += line.Quantity
		}
	}
	return total
}
