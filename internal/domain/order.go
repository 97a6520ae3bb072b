package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order — оформленный заказ покупателя.
// После сохранения заказ не меняется, кроме отвязки строк при отмене.
type Order struct {
	ID          int64
	BuyerLogin  string
	BuyerName   string
	Lines       []CartLine
	TotalPrice  decimal.Decimal
	Description string
	PlacedAt    time.Time
}

// NewOrder собирает заказ из снимка корзины покупателя.
// Пустая корзина даёт ErrOrderNotPlaced.
func NewOrder(buyer User, lines []CartLine, placedAt time.Time) (Order, error) {
	if len(lines) == 0 {
		return Order{}, ErrOrderNotPlaced
	}

	snapshot := append([]CartLine(nil), lines...)
	total := TotalOf(snapshot)

	return Order{
		BuyerLogin:  buyer.Email,
		BuyerName:   buyer.Name,
		Lines:       snapshot,
		TotalPrice:  total,
		Description: Describe(snapshot, total),
		PlacedAt:    placedAt.UTC(),
	}, nil
}

// TotalOf суммирует цены строк; каждая строка учитывается один раз
// независимо от зарезервированного количества.
func TotalOf(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Price)
	}
	return total
}

// Describe формирует нумерованный текст заказа для писем и истории:
//
//	1) Widget 5.00 $
//	2) Gadget 2.50 $
//
//	Total: $ 7.50
func Describe(lines []CartLine, total decimal.Decimal) string {
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%d) %s %s $\n", i+1, line.Title, FormatPrice(line.Price))
	}
	fmt.Fprintf(&b, "\nTotal: $ %s", FormatPrice(total))
	return b.String()
}

// Clone возвращает копию заказа с независимым срезом строк.
func (o Order) Clone() Order {
	dst := o
	dst.Lines = append([]CartLine(nil), o.Lines...)
	return dst
}
