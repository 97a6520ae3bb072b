// Package query содержит чистые функции поиска, сортировки и постраничной
// выдачи для административных списков товаров и заказов.
package query

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

// Paginate возвращает страницу pageNumber (нумерация с 1) размера pageSize.
// Пустой вход, номер страницы вне диапазона и неположительный размер дают пустой срез.
// Положительность pageSize проверяет вызывающий код.
func Paginate[T any](items []T, pageSize, pageNumber int) []T {
	if len(items) == 0 || pageSize <= 0 || pageNumber < 1 {
		return []T{}
	}

	// Сравнение с числом страниц до умножения: (pageNumber-1)*pageSize может переполнить int.
	if pageNumber > PageCount(len(items), pageSize) {
		return []T{}
	}
	start := (pageNumber - 1) * pageSize
	end := start + min(pageSize, len(items)-start)

	return append([]T(nil), items[start:end]...)
}

// PageCount возвращает число страниц размера pageSize.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	pages := total / pageSize
	if total%pageSize != 0 {
		pages++
	}
	return pages
}

// ApplyDirection разворачивает отсортированный по возрастанию срез при Desc.
func ApplyDirection[T any](items []T, direction domain.Direction) []T {
	out := append([]T(nil), items...)
	if direction == domain.Desc {
		slices.Reverse(out)
	}
	return out
}

func goodComparator(field domain.GoodSortField) func(a, b domain.Good) int {
	switch field {
	case domain.GoodSortTitle:
		return func(a, b domain.Good) int { return cmp.Compare(a.Title, b.Title) }
	case domain.GoodSortPrice:
		return func(a, b domain.Good) int { return a.Price.Cmp(b.Price) }
	default:
		return func(a, b domain.Good) int { return cmp.Compare(a.ID, b.ID) }
	}
}

// SortGoods сортирует копию каталога по возрастанию поля.
func SortGoods(goods []domain.Good, field domain.GoodSortField) []domain.Good {
	out := append([]domain.Good(nil), goods...)
	slices.SortStableFunc(out, goodComparator(field))
	return out
}

func orderComparator(field domain.OrderSortField) func(a, b domain.Order) int {
	switch field {
	case domain.OrderSortTotalPrice:
		return func(a, b domain.Order) int { return a.TotalPrice.Cmp(b.TotalPrice) }
	case domain.OrderSortUser:
		return func(a, b domain.Order) int { return cmp.Compare(a.BuyerName, b.BuyerName) }
	default:
		return func(a, b domain.Order) int { return cmp.Compare(a.ID, b.ID) }
	}
}

// SortOrders сортирует копию журнала заказов по возрастанию поля.
func SortOrders(orders []domain.Order, field domain.OrderSortField) []domain.Order {
	out := append([]domain.Order(nil), orders...)
	slices.SortStableFunc(out, orderComparator(field))
	return out
}

// GoodPredicate возвращает фильтр поиска по полю. Числовые поля сравниваются
// по вхождению подстроки в их строковое представление, текстовые — без учёта регистра.
func GoodPredicate(field domain.GoodSearchField, text string) func(domain.Good) bool {
	needle := strings.ToLower(text)
	switch field {
	case domain.GoodSearchID:
		return func(g domain.Good) bool { return strings.Contains(strconv.FormatInt(g.ID, 10), text) }
	case domain.GoodSearchPrice:
		return func(g domain.Good) bool { return strings.Contains(domain.FormatPrice(g.Price), text) }
	case domain.GoodSearchTitle:
		return func(g domain.Good) bool { return strings.Contains(strings.ToLower(g.Title), needle) }
	case domain.GoodSearchDescription:
		return func(g domain.Good) bool { return strings.Contains(strings.ToLower(g.Description), needle) }
	default:
		return func(domain.Good) bool { return true }
	}
}

// SearchGoods отбирает товары по полю и тексту, сохраняя порядок входа.
func SearchGoods(goods []domain.Good, field domain.GoodSearchField, text string) []domain.Good {
	match := GoodPredicate(field, text)
	out := make([]domain.Good, 0, len(goods))
	for _, g := range goods {
		if match(g) {
			out = append(out, g)
		}
	}
	return out
}

// GoodsView описывает запрос административного списка товаров.
type GoodsView struct {
	SearchField domain.GoodSearchField
	SearchText  string
	SortField   domain.GoodSortField
	Direction   domain.Direction
	PageSize    int
	PageNumber  int
}

// Apply выполняет поиск, сортировку, направление и постраничную выдачу.
// Вторым значением возвращается размер выборки до нарезки на страницы.
func (v GoodsView) Apply(goods []domain.Good) ([]domain.Good, int) {
	found := SearchGoods(goods, v.SearchField, v.SearchText)
	sorted := ApplyDirection(SortGoods(found, v.SortField), v.Direction)
	return Paginate(sorted, v.PageSize, v.PageNumber), len(sorted)
}

// OrdersView описывает запрос административного списка заказов.
type OrdersView struct {
	SortField  domain.OrderSortField
	Direction  domain.Direction
	PageSize   int
	PageNumber int
}

// Apply сортирует и нарезает журнал заказов.
func (v OrdersView) Apply(orders []domain.Order) ([]domain.Order, int) {
	sorted := ApplyDirection(SortOrders(orders, v.SortField), v.Direction)
	return Paginate(sorted, v.PageSize, v.PageNumber), len(sorted)
}
