package domain

import "strings"

// GoodSortField — поле сортировки каталога.
type GoodSortField int

const (
	// GoodSortDefault сортирует по id.
	GoodSortDefault GoodSortField = iota
	GoodSortID
	GoodSortTitle
	GoodSortPrice
)

// ParseGoodSortField разбирает имя поля; неизвестное имя даёт GoodSortDefault.
func ParseGoodSortField(name string) GoodSortField {
	switch strings.TrimSpace(name) {
	case "id":
		return GoodSortID
	case "title":
		return GoodSortTitle
	case "price":
		return GoodSortPrice
	default:
		return GoodSortDefault
	}
}

func (f GoodSortField) String() string {
	switch f {
	case GoodSortID:
		return "id"
	case GoodSortTitle:
		return "title"
	case GoodSortPrice:
		return "price"
	default:
		return "default"
	}
}

// GoodSearchField — поле поиска по каталогу.
type GoodSearchField int

const (
	// GoodSearchDefault не фильтрует каталог.
	GoodSearchDefault GoodSearchField = iota
	GoodSearchID
	GoodSearchTitle
	GoodSearchPrice
	GoodSearchDescription
)

// ParseGoodSearchField разбирает имя поля; неизвестное имя даёт GoodSearchDefault.
func ParseGoodSearchField(name string) GoodSearchField {
	switch strings.TrimSpace(name) {
	case "id":
		return GoodSearchID
	case "title":
		return GoodSearchTitle
	case "price":
		return GoodSearchPrice
	case "description":
		return GoodSearchDescription
	default:
		return GoodSearchDefault
	}
}

func (f GoodSearchField) String() string {
	switch f {
	case GoodSearchID:
		return "id"
	case GoodSearchTitle:
		return "title"
	case GoodSearchPrice:
		return "price"
	case GoodSearchDescription:
		return "description"
	default:
		return "default"
	}
}

// OrderSortField — поле сортировки журнала заказов.
type OrderSortField int

const (
	// OrderSortDefault сортирует по id.
	OrderSortDefault OrderSortField = iota
	OrderSortID
	OrderSortTotalPrice
	// OrderSortUser сортирует по имени покупателя.
	OrderSortUser
)

// ParseOrderSortField разбирает имя поля; неизвестное имя даёт OrderSortDefault.
func ParseOrderSortField(name string) OrderSortField {
	switch strings.TrimSpace(name) {
	case "id":
		return OrderSortID
	case "totalPrice":
		return OrderSortTotalPrice
	case "user":
		return OrderSortUser
	default:
		return OrderSortDefault
	}
}

func (f OrderSortField) String() string {
	switch f {
	case OrderSortID:
		return "id"
	case OrderSortTotalPrice:
		return "totalPrice"
	case OrderSortUser:
		return "user"
	default:
		return "default"
	}
}

// Direction — направление сортировки.
type Direction int

const (
	// Asc — по возрастанию; используется для любого значения, кроме "desc".
	Asc Direction = iota
	Desc
)

// ParseDirection возвращает Desc только для строки "desc".
func ParseDirection(name string) Direction {
	if name == "desc" {
		return Desc
	}
	return Asc
}

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}
