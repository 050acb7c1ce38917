package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/recognition"
	"github.com/joseph-ayodele/invoice-intake/internal/reconcile"
	"github.com/joseph-ayodele/invoice-intake/internal/services/invoice"
)

const invoiceServiceName = "invoiceintake.v1.InvoiceService"

// InvoiceServiceServer is the gRPC contract for the reconciliation session.
// Messages are google.protobuf.Struct documents shaped like the HTTP bodies.
type InvoiceServiceServer interface {
	StartSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetSession(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	EditItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	EditHeader(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ResolveItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Commit(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	Discard(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
	ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type startRequest struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Content   []byte `json:"content"` // base64 in the Struct
}

type itemEditRequest struct {
	Index int `json:"index"`
	reconcile.ItemEdit
}

type resolveRequest struct {
	Index int `json:"index"`
	invoice.ResolveRequest
}

type InvoiceServer struct {
	svc    InvoiceService
	logger *slog.Logger
}

func NewInvoiceServer(svc InvoiceService, logger *slog.Logger) *InvoiceServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceServer{svc: svc, logger: logger}
}

func (s *InvoiceServer) StartSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in startRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	v, err := s.svc.Start(ctx, recognition.Document{Name: in.Name, MediaType: in.MediaType, Content: in.Content})
	if err != nil {
		return nil, common.StatusFromError(err)
	}
	return toStruct(v)
}

func (s *InvoiceServer) GetSession(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	v, ok := s.svc.Current()
	if !ok {
		return nil, common.StatusFromError(common.NoSession())
	}
	return toStruct(v)
}

func (s *InvoiceServer) EditItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in itemEditRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	return s.reply(s.svc.EditItem(ctx, in.Index, in.ItemEdit))
}

func (s *InvoiceServer) EditHeader(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in reconcile.HeaderEdit
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	return s.reply(s.svc.EditHeader(ctx, in))
}

func (s *InvoiceServer) ResolveItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in resolveRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	return s.reply(s.svc.Resolve(ctx, in.Index, in.ResolveRequest))
}

func (s *InvoiceServer) Commit(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	res, err := s.svc.Commit(ctx)
	if err != nil {
		return nil, common.StatusFromError(err)
	}
	return toStruct(res)
}

func (s *InvoiceServer) Discard(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.svc.Discard()
	return &emptypb.Empty{}, nil
}

func (s *InvoiceServer) ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	products, err := s.svc.Products(ctx, req.GetFields()["query"].GetStringValue())
	if err != nil {
		s.logger.Error("list products failed", "error", err)
		return nil, common.StatusFromError(err)
	}
	return toStruct(map[string]any{"products": products})
}

func (s *InvoiceServer) reply(v invoice.View, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, common.StatusFromError(err)
	}
	return toStruct(v)
}

// RegisterInvoiceServiceServer registers srv under invoiceintake.v1.InvoiceService.
func RegisterInvoiceServiceServer(r grpc.ServiceRegistrar, srv InvoiceServiceServer) {
	r.RegisterService(&invoiceServiceDesc, srv)
}

var invoiceServiceDesc = grpc.ServiceDesc{
	ServiceName: invoiceServiceName,
	HandlerType: (*InvoiceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(invoiceServiceName, "StartSession", newStruct, func(srv InvoiceServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return srv.StartSession(ctx, in)
		}),
		unary(invoiceServiceName, "GetSession", newEmpty, func(srv InvoiceServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return srv.GetSession(ctx, in)
		}),
		unary(invoiceServiceName, "EditItem", newStruct, func(srv InvoiceServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return srv.EditItem(ctx, in)
		}),
		unary(invoiceServiceName, "EditHeader", newStruct, func(srv InvoiceServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return srv.EditHeader(ctx, in)
		}),
		unary(invoiceServiceName, "ResolveItem", newStruct, func(srv InvoiceServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return srv.ResolveItem(ctx, in)
		}),
		unary(invoiceServiceName, "Commit", newEmpty, func(srv InvoiceServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return srv.Commit(ctx, in)
		}),
		unary(invoiceServiceName, "Discard", newEmpty, func(srv InvoiceServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return srv.Discard(ctx, in)
		}),
		unary(invoiceServiceName, "ListProducts", newStruct, func(srv InvoiceServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return srv.ListProducts(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoiceintake/v1/invoice.proto",
}

func newStruct() *structpb.Struct { return &structpb.Struct{} }
func newEmpty() *emptypb.Empty    { return &emptypb.Empty{} }

// unary builds the method handler protoc-gen-go-grpc would generate.
func unary[S any, Req proto.Message](service, method string, newReq func() Req, call func(srv S, ctx context.Context, in Req) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + service + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, out any) error {
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return common.InvalidArgumentErrorf("decode request: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return common.InvalidArgumentErrorf("decode request: %v", err)
	}
	return nil
}
