package grpcsvc_test

import (
	"context"
	"math"
	"net"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/eshop/internal/service/grpc"
	"github.com/vladislavdragonenkov/eshop/internal/service/catalog"
	"github.com/vladislavdragonenkov/eshop/internal/service/feedback"
	"github.com/vladislavdragonenkov/eshop/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/eshop/internal/service/reservation"
	"github.com/vladislavdragonenkov/eshop/internal/storage/memory"
)

const (
	bufSize    = 1024 * 1024
	adminLogin = "admin@shop.test"
	annLogin   = "ann@shop.test"
	bobLogin   = "bob@shop.test"
)

type nopNotifier struct{}

func (nopNotifier) Notify(domain.Notification) error { return nil }

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func newTestClient(t *testing.T) *grpcsvc.Client {
	t.Helper()

	logger := loggerForTests()
	goods := memory.NewGoodRepository()
	for _, g := range []domain.Good{
		{Title: "Widget", Price: decimal.RequireFromString("5.00"), Quantity: 1},
		{Title: "Gadget", Price: decimal.RequireFromString("2.50"), Quantity: 4},
	} {
		_, err := goods.Create(g)
		require.NoError(t, err)
	}
	users := memory.NewUserRepository(
		domain.User{Name: "Admin", Email: adminLogin, Role: domain.RoleAdmin},
		domain.User{Name: "Ann", Email: annLogin, Role: domain.RoleBuyer},
		domain.User{Name: "Bob", Email: bobLogin, Role: domain.RoleBuyer},
	)
	orders := memory.NewOrderRepository()
	timeline := memory.NewTimelineRepository()
	storeMetrics := metrics.NewStoreMetricsWithRegisterer(prometheus.NewRegistry())

	engine := reservation.NewEngine(goods, reservation.WithLogger(logger), reservation.WithMetrics(storeMetrics))
	manager := lifecycle.NewManager(lifecycle.Dependencies{
		Orders:   orders,
		Users:    users,
		Engine:   engine,
		Outbox:   memory.NewOutboxRepository(),
		Timeline: timeline,
		Notifier: nopNotifier{},
	}, lifecycle.WithLogger(logger), lifecycle.WithMetrics(storeMetrics))

	service := grpcsvc.NewStoreService(grpcsvc.Dependencies{
		Engine:  engine,
		Manager: manager,
		Catalog: catalog.NewService(goods, users, catalog.WithLogger(logger), catalog.WithReservations(engine)),
		Feedback: feedback.NewService(feedback.Dependencies{
			Feedback:    memory.NewFeedbackRepository(),
			Attachments: memory.NewAttachmentRepository(),
			Orders:      orders,
			Users:       users,
			Timeline:    timeline,
			Notifier:    nopNotifier{},
		}, feedback.WithLogger(logger)),
		Users:       users,
		Idempotency: memory.NewIdempotencyRepository(),
	}, grpcsvc.WithLogger(logger))

	listener := bufconn.Listen(bufSize)
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcsvc.RecoveryInterceptor(logger)))
	grpcsvc.RegisterStoreServer(server, service)
	go func() {
		_ = server.Serve(listener)
	}()

	dialer := func(context.Context, string) (net.Conn, error) {
		return listener.Dial()
	}
	//nolint:staticcheck // grpc.Dial is required for bufconn testing
	conn, err := grpc.Dial("bufnet", grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})
	return grpcsvc.NewClient(conn)
}

func as(login string) context.Context {
	return grpcsvc.WithLogin(context.Background(), login)
}

func requireCode(t *testing.T, err error, expected codes.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, expected, status.Code(err), err.Error())
}

func TestStoreService_RequiresKnownCaller(t *testing.T) {
	client := newTestClient(t)

	_, err := client.GetCart(context.Background())
	requireCode(t, err, codes.Unauthenticated)

	_, err = client.GetCart(as("ghost@shop.test"))
	requireCode(t, err, codes.Unauthenticated)
}

func TestStoreService_CartPlaceAndGetOrder(t *testing.T) {
	client := newTestClient(t)
	ctx := as(annLogin)

	cart, err := client.AddGood(ctx, grpcsvc.GoodSelection{Title: "Widget", Price: "5"})
	require.NoError(t, err)
	require.NotNil(t, cart.Line)
	require.Equal(t, "5.00", cart.Line.Price)

	cart, err = client.AddGood(ctx, grpcsvc.GoodSelection{Title: "Gadget", Price: "2.5"})
	require.NoError(t, err)
	require.Len(t, cart.Lines, 2)
	require.Equal(t, "7.50", cart.TotalPrice)

	_, err = client.AddGood(as(bobLogin), grpcsvc.GoodSelection{Title: "Widget", Price: "5.00"})
	requireCode(t, err, codes.FailedPrecondition)

	order, err := client.PlaceOrder(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), order.ID)
	require.Equal(t, "7.50", order.TotalPrice)
	require.Equal(t, "1) Widget 5.00 $\n2) Gadget 2.50 $\n\nTotal: $ 7.50", order.Description)

	got, err := client.GetOrder(as(adminLogin), grpcsvc.OrderRef{OrderID: order.ID})
	require.NoError(t, err)
	require.Equal(t, annLogin, got.BuyerLogin)

	_, err = client.GetOrder(as(bobLogin), grpcsvc.OrderRef{OrderID: order.ID})
	requireCode(t, err, codes.PermissionDenied)

	_, err = client.GetOrder(ctx, grpcsvc.OrderRef{OrderID: 99})
	requireCode(t, err, codes.NotFound)

	finalized, err := client.FinalizeOrder(ctx)
	require.NoError(t, err)
	require.Len(t, finalized.PurgedGoodIDs, 1)

	cart, err = client.GetCart(ctx)
	require.NoError(t, err)
	require.Empty(t, cart.Lines)

	count, err := client.CountOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count.Count)
}

func TestStoreService_ReservationErrors(t *testing.T) {
	client := newTestClient(t)
	ctx := as(annLogin)

	_, err := client.AddGood(ctx, grpcsvc.GoodSelection{})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.AddGood(ctx, grpcsvc.GoodSelection{Title: "Nope", Price: "1.00"})
	requireCode(t, err, codes.NotFound)

	_, err = client.RemoveGood(ctx, grpcsvc.GoodSelection{Title: "Gadget", Price: "2.50"})
	requireCode(t, err, codes.FailedPrecondition)

	_, err = client.PlaceOrder(ctx)
	requireCode(t, err, codes.FailedPrecondition)
}

func TestStoreService_CancelRestoresCart(t *testing.T) {
	client := newTestClient(t)
	ctx := as(annLogin)

	_, err := client.AddGood(ctx, grpcsvc.GoodSelection{Title: "Gadget", Price: "2.50"})
	require.NoError(t, err)

	result, err := client.CancelOrder(ctx, grpcsvc.OrderRef{})
	require.NoError(t, err)
	require.Nil(t, result.Order)
	require.Len(t, result.Restored, 1)

	page, err := client.ListGoods(ctx, grpcsvc.ListGoodsRequest{})
	require.NoError(t, err)
	for _, good := range page.Goods {
		if good.Title == "Gadget" {
			require.Equal(t, int64(4), good.Quantity)
		}
	}
}

func TestStoreService_IdempotentReplay(t *testing.T) {
	client := newTestClient(t)
	ctx := grpcsvc.WithIdempotencyKey(as(annLogin), "add-1")
	selection := grpcsvc.GoodSelection{Title: "Gadget", Price: "2.50"}

	first, err := client.AddGood(ctx, selection)
	require.NoError(t, err)
	second, err := client.AddGood(ctx, selection)
	require.NoError(t, err)
	require.Equal(t, first, second)

	cart, err := client.GetCart(as(annLogin))
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)

	_, err = client.AddGood(ctx, grpcsvc.GoodSelection{Title: "Widget", Price: "5.00"})
	requireCode(t, err, codes.AlreadyExists)
}

func TestStoreService_IdempotentFailureReplay(t *testing.T) {
	client := newTestClient(t)
	ctx := grpcsvc.WithIdempotencyKey(as(annLogin), "place-1")

	_, err := client.PlaceOrder(ctx)
	requireCode(t, err, codes.FailedPrecondition)

	_, err = client.AddGood(as(annLogin), grpcsvc.GoodSelection{Title: "Gadget", Price: "2.50"})
	require.NoError(t, err)

	_, err = client.PlaceOrder(ctx)
	requireCode(t, err, codes.FailedPrecondition)
}

func TestStoreService_ConcurrentBuyersDoNotOversell(t *testing.T) {
	client := newTestClient(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for _, login := range []string{annLogin, bobLogin, annLogin, bobLogin, annLogin, bobLogin} {
		wg.Add(1)
		go func(login string) {
			defer wg.Done()
			if _, err := client.AddGood(as(login), grpcsvc.GoodSelection{Title: "Gadget", Price: "2.50"}); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(login)
	}
	wg.Wait()

	require.Equal(t, 4, success)
	good, err := client.GetGood(as(adminLogin), grpcsvc.GoodRef{ID: 2})
	require.NoError(t, err)
	require.Equal(t, int64(0), good.Quantity)
}

func TestStoreService_CatalogAdministration(t *testing.T) {
	client := newTestClient(t)
	admin := as(adminLogin)

	created, err := client.CreateGood(admin, grpcsvc.GoodInput{Title: " Gizmo ", Price: "3.1", Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, "Gizmo", created.Title)
	require.Equal(t, "3.10", created.Price)

	_, err = client.CreateGood(as(annLogin), grpcsvc.GoodInput{Title: "Hack", Price: "1.00"})
	requireCode(t, err, codes.PermissionDenied)

	_, err = client.CreateGood(admin, grpcsvc.GoodInput{Title: "Bad", Price: "1.005"})
	requireCode(t, err, codes.InvalidArgument)

	updated, err := client.UpdateGood(admin, grpcsvc.GoodInput{
		ID:       created.ID,
		Title:    created.Title,
		Price:    created.Price,
		Quantity: 7,
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), updated.Quantity)

	page, err := client.ListGoods(admin, grpcsvc.ListGoodsRequest{
		SortField:  "price",
		Direction:  "desc",
		PageSize:   2,
		PageNumber: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Equal(t, 2, page.PageCount)
	require.Equal(t, "Widget", page.Goods[0].Title)

	_, err = client.ListGoods(as(annLogin), grpcsvc.ListGoodsRequest{PageSize: 2, PageNumber: 1})
	requireCode(t, err, codes.PermissionDenied)

	_, err = client.ListGoods(admin, grpcsvc.ListGoodsRequest{PageSize: -1})
	requireCode(t, err, codes.InvalidArgument)

	found, err := client.SearchGoods(admin, grpcsvc.SearchGoodsRequest{Field: "title", Text: "gad"})
	require.NoError(t, err)
	require.Len(t, found.Goods, 1)

	require.NoError(t, client.DeleteGood(admin, grpcsvc.GoodRef{ID: created.ID}))
	_, err = client.GetGood(admin, grpcsvc.GoodRef{ID: created.ID})
	requireCode(t, err, codes.NotFound)
}

func TestStoreService_ListOrdersByRole(t *testing.T) {
	client := newTestClient(t)

	for _, login := range []string{annLogin, bobLogin} {
		_, err := client.AddGood(as(login), grpcsvc.GoodSelection{Title: "Gadget", Price: "2.50"})
		require.NoError(t, err)
		_, err = client.PlaceOrder(as(login))
		require.NoError(t, err)
	}

	all, err := client.ListOrders(as(adminLogin), grpcsvc.ListOrdersRequest{SortField: "user", Direction: "desc", PageSize: 10, PageNumber: 1})
	require.NoError(t, err)
	require.Equal(t, 2, all.Total)
	require.Equal(t, bobLogin, all.Orders[0].BuyerLogin)

	own, err := client.ListOrders(as(annLogin), grpcsvc.ListOrdersRequest{PageSize: 10, PageNumber: 1})
	require.NoError(t, err)
	require.Equal(t, 1, own.Total)
	require.Equal(t, annLogin, own.Orders[0].BuyerLogin)

	_, err = client.ListOrders(as(annLogin), grpcsvc.ListOrdersRequest{})
	requireCode(t, err, codes.InvalidArgument)
}

func TestStoreService_FeedbackCommentsAndTimeline(t *testing.T) {
	client := newTestClient(t)
	ann := as(annLogin)

	_, err := client.AddGood(ann, grpcsvc.GoodSelection{Title: "Gadget", Price: "2.50"})
	require.NoError(t, err)
	order, err := client.PlaceOrder(ann)
	require.NoError(t, err)

	left, err := client.LeaveFeedback(ann, grpcsvc.FeedbackInput{OrderID: order.ID, Rate: 5, Text: "great"})
	require.NoError(t, err)
	require.Equal(t, 5, left.Rate)

	_, err = client.LeaveFeedback(as(adminLogin), grpcsvc.FeedbackInput{OrderID: order.ID, Rate: 5, Text: "self"})
	requireCode(t, err, codes.PermissionDenied)

	_, err = client.LeaveFeedback(ann, grpcsvc.FeedbackInput{OrderID: order.ID, Rate: 9, Text: "too much"})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.AddComment(as(adminLogin), grpcsvc.CommentInput{OrderID: order.ID, Text: "shipped"})
	require.NoError(t, err)

	feedbacks, err := client.ListFeedback(ann, grpcsvc.EntriesRequest{OrderID: order.ID})
	require.NoError(t, err)
	require.Len(t, feedbacks.Items, 1)

	comments, err := client.ListComments(ann, grpcsvc.EntriesRequest{OrderID: order.ID, All: true})
	require.NoError(t, err)
	require.Len(t, comments.Items, 1)
	require.Equal(t, adminLogin, comments.Items[0].AuthorLogin)

	timeline, err := client.GetTimeline(ann, grpcsvc.EntriesRequest{OrderID: order.ID, All: true})
	require.NoError(t, err)
	require.Len(t, timeline.Events, 3)
	require.Equal(t, domain.TimelineOrderPlaced, timeline.Events[0].Type)

	_, err = client.GetTimeline(as(bobLogin), grpcsvc.EntriesRequest{OrderID: order.ID})
	requireCode(t, err, codes.PermissionDenied)
}

func TestStoreService_HugePageSizeReturnsEmptyPage(t *testing.T) {
	client := newTestClient(t)
	admin := as(adminLogin)

	for _, size := range []int{1 << 62, math.MaxInt} {
		page, err := client.ListGoods(admin, grpcsvc.ListGoodsRequest{PageSize: size, PageNumber: 3})
		require.NoError(t, err)
		require.Empty(t, page.Goods)
		require.Equal(t, 2, page.Total)
		require.Equal(t, 1, page.PageCount)

		first, err := client.ListGoods(admin, grpcsvc.ListGoodsRequest{PageSize: size, PageNumber: 1})
		require.NoError(t, err)
		require.Len(t, first.Goods, 2)
	}

	_, err := client.AddGood(as(annLogin), grpcsvc.GoodSelection{Title: "Gadget", Price: "2.50"})
	require.NoError(t, err)
	_, err = client.PlaceOrder(as(annLogin))
	require.NoError(t, err)

	orders, err := client.ListOrders(as(annLogin), grpcsvc.ListOrdersRequest{PageSize: 1 << 62, PageNumber: 2})
	require.NoError(t, err)
	require.Empty(t, orders.Orders)
	require.Equal(t, 1, orders.PageCount)

	orders, err = client.ListOrders(admin, grpcsvc.ListOrdersRequest{PageSize: math.MaxInt, PageNumber: math.MaxInt})
	require.NoError(t, err)
	require.Empty(t, orders.Orders)
}

func TestStoreService_AdminCancelRestoresBuyerCart(t *testing.T) {
	client := newTestClient(t)
	ann := as(annLogin)

	_, err := client.AddGood(ann, grpcsvc.GoodSelection{Title: "Gadget", Price: "2.50"})
	require.NoError(t, err)
	order, err := client.PlaceOrder(ann)
	require.NoError(t, err)
	_, err = client.AddGood(ann, grpcsvc.GoodSelection{Title: "Gadget", Price: "2.50"})
	require.NoError(t, err)

	result, err := client.CancelOrder(as(adminLogin), grpcsvc.OrderRef{OrderID: order.ID})
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	require.Len(t, result.Restored, 1)

	cart, err := client.GetCart(ann)
	require.NoError(t, err)
	require.Empty(t, cart.Lines)
}

func TestStoreService_DeleteReservedGoodIsRejected(t *testing.T) {
	client := newTestClient(t)
	admin := as(adminLogin)

	_, err := client.AddGood(as(bobLogin), grpcsvc.GoodSelection{Title: "Gadget", Price: "2.50"})
	require.NoError(t, err)

	err = client.DeleteGood(admin, grpcsvc.GoodRef{ID: 2})
	requireCode(t, err, codes.FailedPrecondition)

	_, err = client.CancelOrder(as(bobLogin), grpcsvc.OrderRef{})
	require.NoError(t, err)
	require.NoError(t, client.DeleteGood(admin, grpcsvc.GoodRef{ID: 2}))
}

func TestStoreService_Attachments(t *testing.T) {
	client := newTestClient(t)
	ann := as(annLogin)

	_, err := client.AddGood(ann, grpcsvc.GoodSelection{Title: "Gadget", Price: "2.50"})
	require.NoError(t, err)
	order, err := client.PlaceOrder(ann)
	require.NoError(t, err)

	content := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}
	saved, err := client.AddAttachment(ann, grpcsvc.AttachmentInput{OrderID: order.ID, Name: "receipt.png", Content: content})
	require.NoError(t, err)
	require.Equal(t, "receipt.png", saved.Name)
	require.Equal(t, len(content), saved.Size)
	require.Empty(t, saved.Content)

	list, err := client.ListAttachments(as(adminLogin), grpcsvc.AttachmentRef{OrderID: order.ID})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Empty(t, list.Items[0].Content)

	got, err := client.GetAttachment(ann, grpcsvc.AttachmentRef{OrderID: order.ID, ID: saved.ID})
	require.NoError(t, err)
	require.Equal(t, content, got.Content)

	_, err = client.ListAttachments(as(bobLogin), grpcsvc.AttachmentRef{OrderID: order.ID})
	requireCode(t, err, codes.PermissionDenied)
	_, err = client.AddAttachment(ann, grpcsvc.AttachmentInput{OrderID: order.ID, Name: "empty.txt"})
	requireCode(t, err, codes.InvalidArgument)

	require.NoError(t, client.DeleteAttachment(ann, grpcsvc.AttachmentRef{OrderID: order.ID, Name: "receipt.png"}))
	err = client.DeleteAttachment(ann, grpcsvc.AttachmentRef{OrderID: order.ID, Name: "receipt.png"})
	requireCode(t, err, codes.NotFound)

	timeline, err := client.GetTimeline(ann, grpcsvc.EntriesRequest{OrderID: order.ID, All: true})
	require.NoError(t, err)
	require.Len(t, timeline.Events, 3)
	require.Equal(t, domain.TimelineFileAttached, timeline.Events[1].Type)
	require.Equal(t, domain.TimelineFileRemoved, timeline.Events[2].Type)
}
