package grpcsvc

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/query"
)

// GoodSelection — пара (название, цена), которой витрина выбирает товар.
type GoodSelection struct {
	Title string `json:"title"`
	Price string `json:"price"`
}

// OrderRef ссылается на заказ. OrderID = 0 при отмене означает «только корзина».
type OrderRef struct {
	OrderID int64 `json:"order_id"`
}

// ListOrdersRequest — параметры журнала заказов.
type ListOrdersRequest struct {
	SortField  string `json:"sort_field,omitempty"`
	Direction  string `json:"direction,omitempty"`
	PageSize   int    `json:"page_size"`
	PageNumber int    `json:"page_number"`
}

// ListGoodsRequest — параметры списка товаров. PageSize = 0 выдаёт витрину покупателя.
type ListGoodsRequest struct {
	SearchField string `json:"search_field,omitempty"`
	SearchText  string `json:"search_text,omitempty"`
	SortField   string `json:"sort_field,omitempty"`
	Direction   string `json:"direction,omitempty"`
	PageSize    int    `json:"page_size"`
	PageNumber  int    `json:"page_number"`
}

// SearchGoodsRequest — поиск по одному полю каталога.
type SearchGoodsRequest struct {
	Field string `json:"field"`
	Text  string `json:"text"`
}

// GoodRef ссылается на товар каталога.
type GoodRef struct {
	ID int64 `json:"id"`
}

// GoodInput — данные товара для создания или изменения.
type GoodInput struct {
	ID          int64  `json:"id,omitempty"`
	Title       string `json:"title"`
	Price       string `json:"price"`
	Description string `json:"description,omitempty"`
	Quantity    int64  `json:"quantity"`
}

// FeedbackInput — отзыв покупателя к заказу.
type FeedbackInput struct {
	OrderID int64  `json:"order_id"`
	Rate    int    `json:"rate"`
	Text    string `json:"text"`
}

// CommentInput — комментарий к заказу.
type CommentInput struct {
	OrderID int64  `json:"order_id"`
	Text    string `json:"text"`
}

// AttachmentInput — файл для прикрепления к заказу. Content передаётся в base64.
type AttachmentInput struct {
	OrderID int64  `json:"order_id"`
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// AttachmentRef ссылается на файл заказа по id или по имени.
type AttachmentRef struct {
	OrderID int64  `json:"order_id"`
	ID      int64  `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
}

// EntriesRequest запрашивает отзывы, комментарии или историю заказа.
// Без All возвращаются только последние записи.
type EntriesRequest struct {
	OrderID int64 `json:"order_id"`
	All     bool  `json:"all,omitempty"`
}

// Good — товар в ответах сервиса.
type Good struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Price       string    `json:"price"`
	Description string    `json:"description,omitempty"`
	Quantity    int64     `json:"quantity"`
	CreatedBy   string    `json:"created_by,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CartLine — строка корзины или заказа.
type CartLine struct {
	GoodID      int64  `json:"good_id"`
	Title       string `json:"title"`
	Price       string `json:"price"`
	Description string `json:"description,omitempty"`
	Quantity    int64  `json:"quantity"`
}

// Cart — текущее содержимое корзины. Line заполняется только при добавлении.
type Cart struct {
	Line       *CartLine  `json:"line,omitempty"`
	Lines      []CartLine `json:"lines"`
	TotalPrice string     `json:"total_price"`
}

// Order — оформленный заказ.
type Order struct {
	ID          int64      `json:"id"`
	BuyerLogin  string     `json:"buyer_login"`
	BuyerName   string     `json:"buyer_name"`
	Lines       []CartLine `json:"lines"`
	TotalPrice  string     `json:"total_price"`
	Description string     `json:"description"`
	PlacedAt    time.Time  `json:"placed_at"`
}

// CancelResult — итог отмены: заказ (если указан) и возвращённые на склад строки.
type CancelResult struct {
	Order    *Order     `json:"order,omitempty"`
	Restored []CartLine `json:"restored"`
}

// FinalizeResult перечисляет товары, удалённые из каталога после оформления.
type FinalizeResult struct {
	PurgedGoodIDs []int64 `json:"purged_good_ids"`
}

// OrdersPage — страница журнала заказов.
type OrdersPage struct {
	Orders    []Order `json:"orders"`
	Total     int     `json:"total"`
	PageCount int     `json:"page_count"`
}

// GoodsPage — страница каталога.
type GoodsPage struct {
	Goods     []Good `json:"goods"`
	Total     int    `json:"total"`
	PageCount int    `json:"page_count"`
}

// Count — количество записей.
type Count struct {
	Count int `json:"count"`
}

// Feedback — отзыв к заказу.
type Feedback struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
	AuthorLogin string    `json:"author_login"`
	Rate        int       `json:"rate"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// FeedbackList — отзывы заказа от новых к старым.
type FeedbackList struct {
	Items []Feedback `json:"items"`
}

// Comment — комментарий к заказу.
type Comment struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
	AuthorLogin string    `json:"author_login"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// CommentList — комментарии заказа от новых к старым.
type CommentList struct {
	Items []Comment `json:"items"`
}

// Attachment — файл заказа. Content заполняется только при скачивании.
type Attachment struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"order_id"`
	Name       string    `json:"name"`
	Size       int       `json:"size"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
	Content    []byte    `json:"content,omitempty"`
}

// AttachmentList — файлы заказа в порядке добавления.
type AttachmentList struct {
	Items []Attachment `json:"items"`
}

// TimelineEvent — событие истории заказа.
type TimelineEvent struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason"`
	Occurred time.Time `json:"occurred"`
}

// Timeline — история заказа.
type Timeline struct {
	Events []TimelineEvent `json:"events"`
}

// Empty — пустой ответ.
type Empty struct{}

func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert message to struct: %w", err)
	}
	return out, nil
}

func decodeStruct(in *structpb.Struct, v any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("convert struct to json: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}
	return nil
}

func toGood(g domain.Good) Good {
	return Good{
		ID:          g.ID,
		Title:       g.Title,
		Price:       domain.FormatPrice(g.Price),
		Description: g.Description,
		Quantity:    g.Quantity,
		CreatedBy:   g.CreatedBy,
		UpdatedAt:   g.UpdatedAt,
	}
}

func toGoods(goods []domain.Good) []Good {
	out := make([]Good, 0, len(goods))
	for _, g := range goods {
		out = append(out, toGood(g))
	}
	return out
}

func toCartLine(l domain.CartLine) CartLine {
	return CartLine{
		GoodID:      l.GoodID,
		Title:       l.Title,
		Price:       domain.FormatPrice(l.Price),
		Description: l.Description,
		Quantity:    l.Quantity,
	}
}

func toCartLines(lines []domain.CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, toCartLine(l))
	}
	return out
}

func toCart(lines []domain.CartLine) Cart {
	return Cart{
		Lines:      toCartLines(lines),
		TotalPrice: domain.FormatPrice(domain.TotalOf(lines)),
	}
}

func toOrder(o domain.Order) Order {
	return Order{
		ID:          o.ID,
		BuyerLogin:  o.BuyerLogin,
		BuyerName:   o.BuyerName,
		Lines:       toCartLines(o.Lines),
		TotalPrice:  domain.FormatPrice(o.TotalPrice),
		Description: o.Description,
		PlacedAt:    o.PlacedAt,
	}
}

func toOrdersPage(orders []domain.Order, total, pageSize int) OrdersPage {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrder(o))
	}
	return OrdersPage{Orders: out, Total: total, PageCount: query.PageCount(total, pageSize)}
}

func toFeedback(f domain.Feedback) Feedback {
	return Feedback{
		ID:          f.ID,
		OrderID:     f.OrderID,
		AuthorLogin: f.AuthorLogin,
		Rate:        f.Rate,
		Text:        f.Text,
		CreatedAt:   f.CreatedAt,
	}
}

func toFeedbackList(items []domain.Feedback) FeedbackList {
	out := make([]Feedback, 0, len(items))
	for _, f := range items {
		out = append(out, toFeedback(f))
	}
	return FeedbackList{Items: out}
}

func toComment(c domain.Comment) Comment {
	return Comment{
		ID:          c.ID,
		OrderID:     c.OrderID,
		AuthorLogin: c.AuthorLogin,
		Text:        c.Text,
		CreatedAt:   c.CreatedAt,
	}
}

func toCommentList(items []domain.Comment) CommentList {
	out := make([]Comment, 0, len(items))
	for _, c := range items {
		out = append(out, toComment(c))
	}
	return CommentList{Items: out}
}

func toAttachment(a domain.Attachment, withContent bool) Attachment {
	out := Attachment{
		ID:         a.ID,
		OrderID:    a.OrderID,
		Name:       a.Name,
		Size:       a.Size(),
		UploadedBy: a.UploadedBy,
		CreatedAt:  a.CreatedAt,
	}
	if withContent {
		out.Content = a.Content
	}
	return out
}

func toAttachmentList(items []domain.Attachment) AttachmentList {
	out := make([]Attachment, 0, len(items))
	for _, a := range items {
		out = append(out, toAttachment(a, false))
	}
	return AttachmentList{Items: out}
}

func toTimeline(events []domain.TimelineEvent) Timeline {
	out := make([]TimelineEvent, 0, len(events))
	for _, e := range events {
		out = append(out, TimelineEvent{Type: e.Type, Reason: e.Reason, Occurred: e.Occurred})
	}
	return Timeline{Events: out}
}

func (in GoodInput) toDomain() (domain.Good, error) {
	price, err := domain.ParsePrice(in.Price)
	if err != nil {
		return domain.Good{}, err
	}
	return domain.Good{
		ID:          in.ID,
		Title:       in.Title,
		Price:       price,
		Description: in.Description,
		Quantity:    in.Quantity,
	}, nil
}

func (r ListOrdersRequest) view() query.OrdersView {
	return query.OrdersView{
		SortField:  domain.ParseOrderSortField(r.SortField),
		Direction:  domain.ParseDirection(r.Direction),
		PageSize:   r.PageSize,
		PageNumber: r.PageNumber,
	}
}

func (r ListGoodsRequest) view() query.GoodsView {
	return query.GoodsView{
		SearchField: domain.ParseGoodSearchField(r.SearchField),
		SearchText:  r.SearchText,
		SortField:   domain.ParseGoodSortField(r.SortField),
		Direction:   domain.ParseDirection(r.Direction),
		PageSize:    r.PageSize,
		PageNumber:  r.PageNumber,
	}
}
