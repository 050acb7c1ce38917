package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
)

const exportServiceName = "invoiceintake.v1.ExportService"

// ExportServiceServer is the gRPC contract for workbook exports. The request
// carries optional "from" and "to" dates (YYYY-MM-DD).
type ExportServiceServer interface {
	ExportInvoices(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error)
}

type ExportServer struct {
	svc    Exporter
	logger *slog.Logger
}

func NewExportServer(svc Exporter, logger *slog.Logger) *ExportServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportServer{svc: svc, logger: logger}
}

func (s *ExportServer) ExportInvoices(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {
	fields := req.GetFields()
	from, to, err := parseWindow(fields["from"].GetStringValue(), fields["to"].GetStringValue())
	if err != nil {
		return nil, common.StatusFromError(err)
	}

	xlsx, err := s.svc.ExportInvoicesXLSX(ctx, from, to)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "from", from, "to", to, "err", err)
		return nil, common.InternalError(err.Error())
	}
	return wrapperspb.Bytes(xlsx), nil
}

// RegisterExportServiceServer registers srv under invoiceintake.v1.ExportService.
func RegisterExportServiceServer(r grpc.ServiceRegistrar, srv ExportServiceServer) {
	r.RegisterService(&exportServiceDesc, srv)
}

var exportServiceDesc = grpc.ServiceDesc{
	ServiceName: exportServiceName,
	HandlerType: (*ExportServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(exportServiceName, "ExportInvoices", newStruct, func(srv ExportServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return srv.ExportInvoices(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoiceintake/v1/export.proto",
}

// parseWindow reads optional YYYY-MM-DD bounds. Blank means open.
func parseWindow(fromStr, toStr string) (*time.Time, *time.Time, error) {
	var fromPtr, toPtr *time.Time
	if fd := strings.TrimSpace(fromStr); fd != "" {
		t, err := time.Parse(time.DateOnly, fd)
		if err != nil {
			return nil, nil, common.InvalidInput("from must be YYYY-MM-DD")
		}
		fromPtr = &t
	}
	if td := strings.TrimSpace(toStr); td != "" {
		t, err := time.Parse(time.DateOnly, td)
		if err != nil {
			return nil, nil, common.InvalidInput("to must be YYYY-MM-DD")
		}
		toPtr = &t
	}
	if fromPtr != nil && toPtr != nil && toPtr.Before(*fromPtr) {
		return nil, nil, common.InvalidInput("to must not be before from")
	}
	return fromPtr, toPtr, nil
}
