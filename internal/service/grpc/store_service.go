package grpcsvc

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/query"
	"github.com/vladislavdragonenkov/eshop/internal/service/catalog"
	"github.com/vladislavdragonenkov/eshop/internal/service/feedback"
	"github.com/vladislavdragonenkov/eshop/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/eshop/internal/service/reservation"
)

// Dependencies — сервисы, поверх которых работает gRPC API магазина.
type Dependencies struct {
	Engine      *reservation.Engine
	Manager     *lifecycle.Manager
	Catalog     *catalog.Service
	Feedback    *feedback.Service
	Users       domain.UserRepository
	Idempotency domain.IdempotencyRepository
}

// Option настраивает StoreService.
type Option func(*StoreService)

// WithLogger задаёт логгер сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *StoreService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock подменяет источник времени для TTL ключей идемпотентности.
func WithClock(now func() time.Time) Option {
	return func(s *StoreService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIdempotencyTTL задаёт время жизни ключа идемпотентности.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(s *StoreService) {
		if ttl > 0 {
			s.idemTTL = ttl
		}
	}
}

// StoreService реализует StoreServer: корзины, заказы, каталог и отзывы.
// Вызывающий пользователь передаётся в metadata x-user-login.
type StoreService struct {
	engine   *reservation.Engine
	manager  *lifecycle.Manager
	catalog  *catalog.Service
	feedback *feedback.Service
	users    domain.UserRepository
	idem     domain.IdempotencyRepository

	logger  *log.Entry
	now     func() time.Time
	idemTTL time.Duration
}

// NewStoreService конструирует сервис с зависимостями.
func NewStoreService(deps Dependencies, options ...Option) *StoreService {
	s := &StoreService{
		engine:   deps.Engine,
		manager:  deps.Manager,
		catalog:  deps.Catalog,
		feedback: deps.Feedback,
		users:    deps.Users,
		idem:     deps.Idempotency,
		logger:   log.New().WithField("component", "store-service"),
		now:      time.Now,
		idemTTL:  domain.DefaultIdempotencyTTL,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

var _ StoreServer = (*StoreService)(nil)

// AddGood резервирует одну единицу выбранного товара в корзине вызывающего.
func (s *StoreService) AddGood(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.withIdempotency(ctx, MethodAddGood, user.Email, in, func(context.Context) (*structpb.Struct, error) {
		var req GoodSelection
		if err := decodeRequest(in, &req); err != nil {
			return nil, err
		}
		line, err := s.engine.AddOne(user.Email, req.Title, req.Price)
		if err != nil {
			return nil, s.fail(MethodAddGood, user.Email, err)
		}
		cart := toCart(s.engine.CurrentCart(user.Email))
		added := toCartLine(line)
		cart.Line = &added
		return s.respond(cart)
	})
}

// RemoveGood возвращает на склад одну единицу выбранного товара из корзины.
func (s *StoreService) RemoveGood(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.withIdempotency(ctx, MethodRemoveGood, user.Email, in, func(context.Context) (*structpb.Struct, error) {
		var req GoodSelection
		if err := decodeRequest(in, &req); err != nil {
			return nil, err
		}
		if err := s.engine.RemoveOne(user.Email, req.Title, req.Price); err != nil {
			return nil, s.fail(MethodRemoveGood, user.Email, err)
		}
		return s.respond(toCart(s.engine.CurrentCart(user.Email)))
	})
}

// GetCart возвращает корзину вызывающего.
func (s *StoreService) GetCart(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.respond(toCart(s.engine.CurrentCart(user.Email)))
}

// PlaceOrder оформляет корзину вызывающего в заказ.
func (s *StoreService) PlaceOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.withIdempotency(ctx, MethodPlaceOrder, user.Email, in, func(context.Context) (*structpb.Struct, error) {
		order, err := s.manager.PlaceOrder(user.Email)
		if err != nil {
			return nil, s.fail(MethodPlaceOrder, user.Email, err)
		}
		return s.respond(toOrder(order))
	})
}

// CancelOrder возвращает корзину на склад и, если передан order_id, отменяет заказ.
func (s *StoreService) CancelOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.withIdempotency(ctx, MethodCancelOrder, user.Email, in, func(context.Context) (*structpb.Struct, error) {
		var req OrderRef
		if err := decodeRequest(in, &req); err != nil {
			return nil, err
		}
		result, err := s.manager.Cancel(user.Email, req.OrderID)
		if err != nil {
			return nil, s.fail(MethodCancelOrder, user.Email, err)
		}
		resp := CancelResult{Restored: toCartLines(result.Restored)}
		if result.Order != nil {
			order := toOrder(*result.Order)
			resp.Order = &order
		}
		return s.respond(resp)
	})
}

// FinalizeOrder удаляет распроданные товары и очищает корзину после оформления.
func (s *StoreService) FinalizeOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.withIdempotency(ctx, MethodFinalizeOrder, user.Email, in, func(context.Context) (*structpb.Struct, error) {
		purged, err := s.manager.FinalizeAfterPlacement(user.Email)
		if err != nil {
			return nil, s.fail(MethodFinalizeOrder, user.Email, err)
		}
		if purged == nil {
			purged = []int64{}
		}
		return s.respond(FinalizeResult{PurgedGoodIDs: purged})
	})
}

// GetOrder возвращает заказ владельцу или администратору.
func (s *StoreService) GetOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req OrderRef
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	order, err := s.visibleOrder(user, req.OrderID)
	if err != nil {
		return nil, s.fail(MethodGetOrder, user.Email, err)
	}
	return s.respond(toOrder(order))
}

// ListOrders возвращает страницу журнала: администратору все заказы, покупателю свои.
func (s *StoreService) ListOrders(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req ListOrdersRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}

	view := req.view()
	if domain.HasAdminRole(user) {
		orders, total, err := s.manager.List(view)
		if err != nil {
			return nil, s.fail(MethodListOrders, user.Email, err)
		}
		return s.respond(toOrdersPage(orders, total, view.PageSize))
	}

	if view.PageSize <= 0 {
		return nil, s.fail(MethodListOrders, user.Email, domain.ErrInvalidPageSize)
	}
	own, err := s.manager.ListByBuyer(user.Email, 0)
	if err != nil {
		return nil, s.fail(MethodListOrders, user.Email, err)
	}
	orders, total := view.Apply(own)
	return s.respond(toOrdersPage(orders, total, view.PageSize))
}

// CountOrders возвращает количество сохранённых заказов.
func (s *StoreService) CountOrders(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if _, err := s.caller(ctx); err != nil {
		return nil, err
	}
	count, err := s.manager.TotalOrders()
	if err != nil {
		return nil, s.fail(MethodCountOrders, "", err)
	}
	return s.respond(Count{Count: count})
}

// ListGoods без page_size выдаёт витрину покупателя, иначе административную страницу каталога.
func (s *StoreService) ListGoods(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req ListGoodsRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}

	if req.PageSize == 0 {
		goods, err := s.catalog.ListForBuyer()
		if err != nil {
			return nil, s.fail(MethodListGoods, user.Email, err)
		}
		return s.respond(GoodsPage{Goods: toGoods(goods), Total: len(goods), PageCount: 1})
	}

	if !domain.HasAdminRole(user) {
		return nil, s.fail(MethodListGoods, user.Email, domain.ErrAccessDenied)
	}
	view := req.view()
	goods, total, err := s.catalog.ListForAdmin(view)
	if err != nil {
		return nil, s.fail(MethodListGoods, user.Email, err)
	}
	return s.respond(GoodsPage{
		Goods:     toGoods(goods),
		Total:     total,
		PageCount: query.PageCount(total, view.PageSize),
	})
}

// SearchGoods ищет товары по одному полю.
func (s *StoreService) SearchGoods(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req SearchGoodsRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	goods, err := s.catalog.Search(domain.ParseGoodSearchField(req.Field), req.Text)
	if err != nil {
		return nil, s.fail(MethodSearchGoods, user.Email, err)
	}
	return s.respond(GoodsPage{Goods: toGoods(goods), Total: len(goods), PageCount: 1})
}

// GetGood возвращает товар по id.
func (s *StoreService) GetGood(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req GoodRef
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	good, err := s.catalog.Get(req.ID)
	if err != nil {
		return nil, s.fail(MethodGetGood, user.Email, err)
	}
	return s.respond(toGood(good))
}

// CreateGood добавляет товар в каталог; доступно администратору.
func (s *StoreService) CreateGood(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.withIdempotency(ctx, MethodCreateGood, user.Email, in, func(context.Context) (*structpb.Struct, error) {
		good, err := decodeGood(in)
		if err != nil {
			return nil, s.fail(MethodCreateGood, user.Email, err)
		}
		created, err := s.catalog.Create(user.Email, good)
		if err != nil {
			return nil, s.fail(MethodCreateGood, user.Email, err)
		}
		return s.respond(toGood(created))
	})
}

// UpdateGood заменяет товар каталога; доступно администратору.
func (s *StoreService) UpdateGood(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.withIdempotency(ctx, MethodUpdateGood, user.Email, in, func(context.Context) (*structpb.Struct, error) {
		good, err := decodeGood(in)
		if err != nil {
			return nil, s.fail(MethodUpdateGood, user.Email, err)
		}
		updated, err := s.catalog.Update(user.Email, good)
		if err != nil {
			return nil, s.fail(MethodUpdateGood, user.Email, err)
		}
		return s.respond(toGood(updated))
	})
}

// DeleteGood удаляет товар из каталога; доступно администратору.
func (s *StoreService) DeleteGood(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.withIdempotency(ctx, MethodDeleteGood, user.Email, in, func(context.Context) (*structpb.Struct, error) {
		var req GoodRef
		if err := decodeRequest(in, &req); err != nil {
			return nil, err
		}
		if err := s.catalog.Delete(user.Email, req.ID); err != nil {
			return nil, s.fail(MethodDeleteGood, user.Email, err)
		}
		return s.respond(Empty{})
	})
}

// LeaveFeedback сохраняет отзыв покупателя к заказу.
func (s *StoreService) LeaveFeedback(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.withIdempotency(ctx, MethodLeaveFeedback, user.Email, in, func(context.Context) (*structpb.Struct, error) {
		var req FeedbackInput
		if err := decodeRequest(in, &req); err != nil {
			return nil, err
		}
		saved, err := s.feedback.Leave(user.Email, req.OrderID, req.Rate, req.Text)
		if err != nil {
			return nil, s.fail(MethodLeaveFeedback, user.Email, err)
		}
		return s.respond(toFeedback(saved))
	})
}

// ListFeedback возвращает отзывы заказа.
func (s *StoreService) ListFeedback(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req EntriesRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	items, err := s.feedback.List(req.OrderID, req.All)
	if err != nil {
		return nil, s.fail(MethodListFeedback, user.Email, err)
	}
	return s.respond(toFeedbackList(items))
}

// AddComment добавляет комментарий к заказу.
func (s *StoreService) AddComment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.withIdempotency(ctx, MethodAddComment, user.Email, in, func(context.Context) (*structpb.Struct, error) {
		var req CommentInput
		if err := decodeRequest(in, &req); err != nil {
			return nil, err
		}
		comment, err := s.feedback.AddComment(user.Email, req.OrderID, req.Text)
		if err != nil {
			return nil, s.fail(MethodAddComment, user.Email, err)
		}
		return s.respond(toComment(comment))
	})
}

// ListComments возвращает комментарии заказа.
func (s *StoreService) ListComments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req EntriesRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	items, err := s.feedback.ListComments(req.OrderID, req.All)
	if err != nil {
		return nil, s.fail(MethodListComments, user.Email, err)
	}
	return s.respond(toCommentList(items))
}

// GetTimeline возвращает историю заказа владельцу или администратору.
func (s *StoreService) GetTimeline(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req EntriesRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	if _, err := s.visibleOrder(user, req.OrderID); err != nil {
		return nil, s.fail(MethodGetTimeline, user.Email, err)
	}
	events, err := s.manager.Timeline(req.OrderID, req.All)
	if err != nil {
		return nil, s.fail(MethodGetTimeline, user.Email, err)
	}
	return s.respond(toTimeline(events))
}

// AddAttachment прикрепляет файл к заказу владельца или администратора.
func (s *StoreService) AddAttachment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.withIdempotency(ctx, MethodAddAttachment, user.Email, in, func(context.Context) (*structpb.Struct, error) {
		var req AttachmentInput
		if err := decodeRequest(in, &req); err != nil {
			return nil, err
		}
		saved, err := s.feedback.Attach(user.Email, req.OrderID, req.Name, req.Content)
		if err != nil {
			return nil, s.fail(MethodAddAttachment, user.Email, err)
		}
		return s.respond(toAttachment(saved, false))
	})
}

// DeleteAttachment удаляет файлы заказа с указанным именем.
func (s *StoreService) DeleteAttachment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.withIdempotency(ctx, MethodDeleteAttachment, user.Email, in, func(context.Context) (*structpb.Struct, error) {
		var req AttachmentRef
		if err := decodeRequest(in, &req); err != nil {
			return nil, err
		}
		if err := s.feedback.RemoveAttachment(user.Email, req.OrderID, req.Name); err != nil {
			return nil, s.fail(MethodDeleteAttachment, user.Email, err)
		}
		return s.respond(Empty{})
	})
}

// ListAttachments возвращает файлы заказа без содержимого.
func (s *StoreService) ListAttachments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req AttachmentRef
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	items, err := s.feedback.Attachments(user.Email, req.OrderID)
	if err != nil {
		return nil, s.fail(MethodListAttachments, user.Email, err)
	}
	return s.respond(toAttachmentList(items))
}

// GetAttachment возвращает файл заказа вместе с содержимым.
func (s *StoreService) GetAttachment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	var req AttachmentRef
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	attachment, err := s.feedback.Attachment(user.Email, req.OrderID, req.ID)
	if err != nil {
		return nil, s.fail(MethodGetAttachment, user.Email, err)
	}
	return s.respond(toAttachment(attachment, true))
}

func (s *StoreService) caller(ctx context.Context) (domain.User, error) {
	login := readMetadata(ctx, LoginHeader)
	if login == "" {
		return domain.User{}, status.Error(codes.Unauthenticated, LoginHeader+" metadata is required")
	}
	user, err := s.users.GetByLogin(login)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, status.Error(codes.Unauthenticated, "unknown user")
		}
		s.logger.WithError(err).WithField("login", login).Error("failed to resolve caller")
		return domain.User{}, status.Error(codes.Internal, "failed to resolve caller")
	}
	return user, nil
}

func (s *StoreService) visibleOrder(user domain.User, orderID int64) (domain.Order, error) {
	order, err := s.manager.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.BuyerLogin != user.Email && !domain.HasAdminRole(user) {
		return domain.Order{}, domain.ErrAccessDenied
	}
	return order, nil
}

func (s *StoreService) fail(method, login string, err error) error {
	st := toStatus(err)
	entry := s.logger.WithError(err).WithFields(log.Fields{
		"method": method,
		"login":  login,
	})
	if status.Code(st) == codes.Internal {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	return st
}

func (s *StoreService) respond(v any) (*structpb.Struct, error) {
	out, err := encodeStruct(v)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode response")
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func decodeRequest(in *structpb.Struct, v any) error {
	if err := decodeStruct(in, v); err != nil {
		return status.Error(codes.InvalidArgument, "malformed request: "+err.Error())
	}
	return nil
}

func decodeGood(in *structpb.Struct) (domain.Good, error) {
	var req GoodInput
	if err := decodeRequest(in, &req); err != nil {
		return domain.Good{}, err
	}
	req.Title = strings.TrimSpace(req.Title)
	return req.toDomain()
}
