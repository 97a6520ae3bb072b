package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// WithLogin добавляет в исходящий контекст логин вызывающего пользователя.
func WithLogin(ctx context.Context, login string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, LoginHeader, login)
}

// WithIdempotencyKey добавляет в исходящий контекст ключ идемпотентности.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, IdempotencyKeyHeader, key)
}

// Client — типизированный клиент StoreService.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient создаёт клиента поверх открытого соединения.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any, opts ...grpc.CallOption) (Resp, error) {
	var resp Resp
	if req == nil {
		req = Empty{}
	}
	in, err := encodeStruct(req)
	if err != nil {
		return resp, status.Error(codes.InvalidArgument, err.Error())
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, in, out, opts...); err != nil {
		return resp, err
	}
	if err := decodeStruct(out, &resp); err != nil {
		return resp, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

func (c *Client) AddGood(ctx context.Context, req GoodSelection, opts ...grpc.CallOption) (Cart, error) {
	return invoke[Cart](ctx, c, MethodAddGood, req, opts...)
}

func (c *Client) RemoveGood(ctx context.Context, req GoodSelection, opts ...grpc.CallOption) (Cart, error) {
	return invoke[Cart](ctx, c, MethodRemoveGood, req, opts...)
}

func (c *Client) GetCart(ctx context.Context, opts ...grpc.CallOption) (Cart, error) {
	return invoke[Cart](ctx, c, MethodGetCart, nil, opts...)
}

func (c *Client) PlaceOrder(ctx context.Context, opts ...grpc.CallOption) (Order, error) {
	return invoke[Order](ctx, c, MethodPlaceOrder, nil, opts...)
}

func (c *Client) CancelOrder(ctx context.Context, req OrderRef, opts ...grpc.CallOption) (CancelResult, error) {
	return invoke[CancelResult](ctx, c, MethodCancelOrder, req, opts...)
}

func (c *Client) FinalizeOrder(ctx context.Context, opts ...grpc.CallOption) (FinalizeResult, error) {
	return invoke[FinalizeResult](ctx, c, MethodFinalizeOrder, nil, opts...)
}

func (c *Client) GetOrder(ctx context.Context, req OrderRef, opts ...grpc.CallOption) (Order, error) {
	return invoke[Order](ctx, c, MethodGetOrder, req, opts...)
}

func (c *Client) ListOrders(ctx context.Context, req ListOrdersRequest, opts ...grpc.CallOption) (OrdersPage, error) {
	return invoke[OrdersPage](ctx, c, MethodListOrders, req, opts...)
}

func (c *Client) CountOrders(ctx context.Context, opts ...grpc.CallOption) (Count, error) {
	return invoke[Count](ctx, c, MethodCountOrders, nil, opts...)
}

func (c *Client) ListGoods(ctx context.Context, req ListGoodsRequest, opts ...grpc.CallOption) (GoodsPage, error) {
	return invoke[GoodsPage](ctx, c, MethodListGoods, req, opts...)
}

func (c *Client) SearchGoods(ctx context.Context, req SearchGoodsRequest, opts ...grpc.CallOption) (GoodsPage, error) {
	return invoke[GoodsPage](ctx, c, MethodSearchGoods, req, opts...)
}

func (c *Client) GetGood(ctx context.Context, req GoodRef, opts ...grpc.CallOption) (Good, error) {
	return invoke[Good](ctx, c, MethodGetGood, req, opts...)
}

func (c *Client) CreateGood(ctx context.Context, req GoodInput, opts ...grpc.CallOption) (Good, error) {
	return invoke[Good](ctx, c, MethodCreateGood, req, opts...)
}

func (c *Client) UpdateGood(ctx context.Context, req GoodInput, opts ...grpc.CallOption) (Good, error) {
	return invoke[Good](ctx, c, MethodUpdateGood, req, opts...)
}

func (c *Client) DeleteGood(ctx context.Context, req GoodRef, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, MethodDeleteGood, req, opts...)
	return err
}

func (c *Client) LeaveFeedback(ctx context.Context, req FeedbackInput, opts ...grpc.CallOption) (Feedback, error) {
	return invoke[Feedback](ctx, c, MethodLeaveFeedback, req, opts...)
}

func (c *Client) ListFeedback(ctx context.Context, req EntriesRequest, opts ...grpc.CallOption) (FeedbackList, error) {
	return invoke[FeedbackList](ctx, c, MethodListFeedback, req, opts...)
}

func (c *Client) AddComment(ctx context.Context, req CommentInput, opts ...grpc.CallOption) (Comment, error) {
	return invoke[Comment](ctx, c, MethodAddComment, req, opts...)
}

func (c *Client) ListComments(ctx context.Context, req EntriesRequest, opts ...grpc.CallOption) (CommentList, error) {
	return invoke[CommentList](ctx, c, MethodListComments, req, opts...)
}

func (c *Client) GetTimeline(ctx context.Context, req EntriesRequest, opts ...grpc.CallOption) (Timeline, error) {
	return invoke[Timeline](ctx, c, MethodGetTimeline, req, opts...)
}

func (c *Client) AddAttachment(ctx context.Context, req AttachmentInput, opts ...grpc.CallOption) (Attachment, error) {
	return invoke[Attachment](ctx, c, MethodAddAttachment, req, opts...)
}

func (c *Client) DeleteAttachment(ctx context.Context, req AttachmentRef, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, MethodDeleteAttachment, req, opts...)
	return err
}

func (c *Client) ListAttachments(ctx context.Context, req AttachmentRef, opts ...grpc.CallOption) (AttachmentList, error) {
	return invoke[AttachmentList](ctx, c, MethodListAttachments, req, opts...)
}

func (c *Client) GetAttachment(ctx context.Context, req AttachmentRef, opts ...grpc.CallOption) (Attachment, error) {
	return invoke[Attachment](ctx, c, MethodGetAttachment, req, opts...)
}
