package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName — полное имя gRPC-сервиса магазина.
const ServiceName = "eshop.v1.StoreService"

// Полные имена методов StoreService.
const (
	MethodAddGood       = "/" + ServiceName + "/AddGood"
	MethodRemoveGood    = "/" + ServiceName + "/RemoveGood"
	MethodGetCart       = "/" + ServiceName + "/GetCart"
	MethodPlaceOrder    = "/" + ServiceName + "/PlaceOrder"
	MethodCancelOrder   = "/" + ServiceName + "/CancelOrder"
	MethodFinalizeOrder = "/" + ServiceName + "/FinalizeOrder"
	MethodGetOrder      = "/" + ServiceName + "/GetOrder"
	MethodListOrders    = "/" + ServiceName + "/ListOrders"
	MethodCountOrders   = "/" + ServiceName + "/CountOrders"
	MethodListGoods     = "/" + ServiceName + "/ListGoods"
	MethodSearchGoods   = "/" + ServiceName + "/SearchGoods"
	MethodGetGood       = "/" + ServiceName + "/GetGood"
	MethodCreateGood    = "/" + ServiceName + "/CreateGood"
	MethodUpdateGood    = "/" + ServiceName + "/UpdateGood"
	MethodDeleteGood    = "/" + ServiceName + "/DeleteGood"
	MethodLeaveFeedback = "/" + ServiceName + "/LeaveFeedback"
	MethodListFeedback  = "/" + ServiceName + "/ListFeedback"
	MethodAddComment    = "/" + ServiceName + "/AddComment"
	MethodListComments  = "/" + ServiceName + "/ListComments"
	MethodGetTimeline   = "/" + ServiceName + "/GetTimeline"

	MethodAddAttachment    = "/" + ServiceName + "/AddAttachment"
	MethodDeleteAttachment = "/" + ServiceName + "/DeleteAttachment"
	MethodListAttachments  = "/" + ServiceName + "/ListAttachments"
	MethodGetAttachment    = "/" + ServiceName + "/GetAttachment"
)

// StoreServer — серверная сторона StoreService. Тела запросов и ответов
// передаются как google.protobuf.Struct.
type StoreServer interface {
	AddGood(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveGood(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCart(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlaceOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FinalizeOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOrders(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CountOrders(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListGoods(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchGoods(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGood(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateGood(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateGood(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteGood(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LeaveFeedback(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListFeedback(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddComment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListComments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTimeline(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddAttachment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAttachment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAttachments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAttachment(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(StoreServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StoreServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(StoreServer), ctx, req.(*structpb.Struct))
		})
	}
}

// ServiceDesc описывает StoreService для grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddGood", Handler: handler(MethodAddGood, StoreServer.AddGood)},
		{MethodName: "RemoveGood", Handler: handler(MethodRemoveGood, StoreServer.RemoveGood)},
		{MethodName: "GetCart", Handler: handler(MethodGetCart, StoreServer.GetCart)},
		{MethodName: "PlaceOrder", Handler: handler(MethodPlaceOrder, StoreServer.PlaceOrder)},
		{MethodName: "CancelOrder", Handler: handler(MethodCancelOrder, StoreServer.CancelOrder)},
		{MethodName: "FinalizeOrder", Handler: handler(MethodFinalizeOrder, StoreServer.FinalizeOrder)},
		{MethodName: "GetOrder", Handler: handler(MethodGetOrder, StoreServer.GetOrder)},
		{MethodName: "ListOrders", Handler: handler(MethodListOrders, StoreServer.ListOrders)},
		{MethodName: "CountOrders", Handler: handler(MethodCountOrders, StoreServer.CountOrders)},
		{MethodName: "ListGoods", Handler: handler(MethodListGoods, StoreServer.ListGoods)},
		{MethodName: "SearchGoods", Handler: handler(MethodSearchGoods, StoreServer.SearchGoods)},
		{MethodName: "GetGood", Handler: handler(MethodGetGood, StoreServer.GetGood)},
		{MethodName: "CreateGood", Handler: handler(MethodCreateGood, StoreServer.CreateGood)},
		{MethodName: "UpdateGood", Handler: handler(MethodUpdateGood, StoreServer.UpdateGood)},
		{MethodName: "DeleteGood", Handler: handler(MethodDeleteGood, StoreServer.DeleteGood)},
		{MethodName: "LeaveFeedback", Handler: handler(MethodLeaveFeedback, StoreServer.LeaveFeedback)},
		{MethodName: "ListFeedback", Handler: handler(MethodListFeedback, StoreServer.ListFeedback)},
		{MethodName: "AddComment", Handler: handler(MethodAddComment, StoreServer.AddComment)},
		{MethodName: "ListComments", Handler: handler(MethodListComments, StoreServer.ListComments)},
		{MethodName: "GetTimeline", Handler: handler(MethodGetTimeline, StoreServer.GetTimeline)},
		{MethodName: "AddAttachment", Handler: handler(MethodAddAttachment, StoreServer.AddAttachment)},
		{MethodName: "DeleteAttachment", Handler: handler(MethodDeleteAttachment, StoreServer.DeleteAttachment)},
		{MethodName: "ListAttachments", Handler: handler(MethodListAttachments, StoreServer.ListAttachments)},
		{MethodName: "GetAttachment", Handler: handler(MethodGetAttachment, StoreServer.GetAttachment)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "eshop/v1/store.proto",
}

// RegisterStoreServer регистрирует реализацию StoreService на сервере.
func RegisterStoreServer(s grpc.ServiceRegistrar, srv StoreServer) {
	s.RegisterService(&ServiceDesc, srv)
}
