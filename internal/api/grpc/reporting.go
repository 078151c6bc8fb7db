package credits

import (
	context "context"
	"errors"
	"time"

	model "github.com/glkeru/credits/internal/models"
	"go.uber.org/zap"
	grpc "google.golang.org/grpc"
	codes "google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type Reporting interface {
	Balance(ctx context.Context, accountId string) (int64, error)
	Transactions(ctx context.Context, accountId string, from time.Time, to time.Time) ([]model.Transaction, error)
}

type ReportingService struct {
	service Reporting
	logger  *zap.Logger
}

func NewReportingService(service Reporting, logger *zap.Logger) *ReportingService {
	return &ReportingService{service, logger}
}

func (p *ReportingService) toStatus(method string, err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	p.logger.Error(err.Error(), zap.String("service", method))
	if errors.Is(err, model.ErrStorageUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.Unavailable, "storage unavailable")
	}
	return status.Error(codes.Internal, "internal error")
}

func field(in *structpb.Struct, name string) string {
	if in == nil {
		return ""
	}
	v, ok := in.GetFields()[name]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

// Баланс: {"accountId"} -> {"accountId", "balance"}
func (p *ReportingService) GetBalance(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	account := field(in, "accountId")
	if account == "" {
		return nil, status.Error(codes.InvalidArgument, "accountId is required")
	}
	balance, err := p.service.Balance(ctx, account)
	if err != nil {
		return nil, p.toStatus("GetBalance", err)
	}
	return structpb.NewStruct(map[string]any{
		"accountId": account,
		"balance":   balance,
	})
}

// История транзакций: {"accountId", "dateFrom", "dateTo"} -> {"tnx": [...]}
func (p *ReportingService) GetTnx(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	account := field(in, "accountId")
	if account == "" {
		return nil, status.Error(codes.InvalidArgument, "accountId is required")
	}
	from, err := time.Parse("2006-01-02 15:04:05", field(in, "dateFrom")+" 00:00:00")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "dateFrom: expected YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02 15:04:05", field(in, "dateTo")+" 23:59:59")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "dateTo: expected YYYY-MM-DD")
	}
	if to.Before(from) {
		return nil, status.Error(codes.InvalidArgument, "dateTo is before dateFrom")
	}

	// получить транзакции
	tnxs, err := p.service.Transactions(ctx, account, from, to)
	if err != nil {
		return nil, p.toStatus("GetTnx", err)
	}
	// сформировать ответ
	resp := make([]any, len(tnxs))
	for i, v := range tnxs {
		// пакеты нужны для точного сторно
		grants := make([]any, len(v.GrantsTouched))
		for j, take := range v.GrantsTouched {
			grants[j] = map[string]any{
				"grantId": take.GrantID.String(),
				"amount":  take.Amount,
			}
		}
		msg := map[string]any{
			"id":             v.ID.String(),
			"code":           v.Code,
			"accountId":      v.AccountID,
			"counterpartyId": v.CounterpartyID,
			"grantsTouched":  grants,
			"credits":        v.CreditsDebited,
			"createdAt":      v.CreatedAt.Format(time.RFC3339),
			"status":         string(v.Status),
		}
		if v.ReversedAt != nil {
			msg["reversedAt"] = v.ReversedAt.Format(time.RFC3339)
		}
		resp[i] = msg
	}
	return structpb.NewStruct(map[string]any{"tnx": resp})
}

// Описание сервиса без .proto: сообщения - google.protobuf.Struct
type ReportingServer interface {
	GetBalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTnx(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

const (
	Reporting_GetBalance_FullMethodName = "/credits.Reporting/GetBalance"
	Reporting_GetTnx_FullMethodName     = "/credits.Reporting/GetTnx"
)

func RegisterReportingServer(s grpc.ServiceRegistrar, srv ReportingServer) {
	s.RegisterService(&Reporting_ServiceDesc, srv)
}

func unaryHandler(method string, call func(ReportingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReportingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReportingServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var Reporting_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "credits.Reporting",
	HandlerType: (*ReportingServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetBalance",
			Handler:    unaryHandler(Reporting_GetBalance_FullMethodName, ReportingServer.GetBalance),
		},
		{
			MethodName: "GetTnx",
			Handler:    unaryHandler(Reporting_GetTnx_FullMethodName, ReportingServer.GetTnx),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "credits/reporting",
}

type ReportingClient struct {
	cc grpc.ClientConnInterface
}

func NewReportingClient(cc grpc.ClientConnInterface) *ReportingClient {
	return &ReportingClient{cc}
}

func (c *ReportingClient) GetBalance(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, Reporting_GetBalance_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReportingClient) GetTnx(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := c.cc.Invoke(ctx, Reporting_GetTnx_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}
