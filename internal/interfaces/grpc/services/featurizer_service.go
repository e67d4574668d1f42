// Package services implements the gRPC services exposed by the featurizer.
package services

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/turtacn/padel-featurizer/internal/application/featurize"
	"github.com/turtacn/padel-featurizer/internal/featurizer/export"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// ServiceName is also the health check name of the featurizer.
const ServiceName = "padel.Featurizer"

const (
	featurizeMethod = "/" + ServiceName + "/Featurize"
	columnsMethod   = "/" + ServiceName + "/Columns"
)

type FeaturizeRequest struct {
	SMILES       []string `json:"smiles"`
	IgnoreErrors bool     `json:"ignore_errors"`
}

// Validate rejects requests without molecules.
func (r *FeaturizeRequest) Validate() error {
	if len(r.SMILES) == 0 {
		return fmt.Errorf("smiles is required")
	}
	return nil
}

// FeaturizeResponse holds null where a value is NaN.
type FeaturizeResponse struct {
	Featurizer string       `json:"featurizer"`
	Columns    []string     `json:"columns"`
	Rows       [][]*float64 `json:"rows"`
	Kept       []int        `json:"kept"`
	Failed     []int        `json:"failed,omitempty"`
	DurationMs int64        `json:"duration_ms"`
}

type ColumnsRequest struct{}

type ColumnsResponse struct {
	Featurizer string   `json:"featurizer"`
	Columns    []string `json:"columns"`
}

// FeaturizerServer is the server API of padel.Featurizer.
type FeaturizerServer interface {
	Featurize(context.Context, *FeaturizeRequest) (*FeaturizeResponse, error)
	Columns(context.Context, *ColumnsRequest) (*ColumnsResponse, error)
}

// FeaturizerService adapts the featurize application service.
type FeaturizerService struct {
	svc    featurize.Service
	logger logging.Logger
}

var _ FeaturizerServer = (*FeaturizerService)(nil)

func NewFeaturizerService(svc featurize.Service, logger logging.Logger) *FeaturizerService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &FeaturizerService{svc: svc, logger: logger}
}

func (s *FeaturizerService) Featurize(ctx context.Context, req *FeaturizeRequest) (*FeaturizeResponse, error) {
	resp, err := s.svc.Featurize(ctx, &featurize.Request{SMILES: req.SMILES, IgnoreErrors: req.IgnoreErrors})
	if err != nil {
		return nil, ToStatus(err)
	}
	rows := make([][]*float64, len(resp.Rows))
	for i, row := range resp.Rows {
		rows[i] = export.NullableRow(row)
	}
	return &FeaturizeResponse{
		Featurizer: resp.Featurizer,
		Columns:    resp.Columns,
		Rows:       rows,
		Kept:       resp.Kept,
		Failed:     resp.Failed(),
		DurationMs: resp.Duration.Milliseconds(),
	}, nil
}

func (s *FeaturizerService) Columns(context.Context, *ColumnsRequest) (*ColumnsResponse, error) {
	return &ColumnsResponse{Featurizer: s.svc.Name(), Columns: s.svc.Columns()}, nil
}

// ToStatus converts an application error to a gRPC status.  Internal
// errors are masked.
func ToStatus(err error) error {
	code := errors.GetCode(err)
	var appErr *errors.AppError
	if code == errors.CodeUnknown || code == errors.ErrCodeInternal || !errors.As(err, &appErr) {
		return status.Error(codes.Internal, "internal server error")
	}
	msg := code.String() + ": " + appErr.Message
	if appErr.Detail != "" {
		msg += " (" + appErr.Detail + ")"
	}
	return status.Error(grpcCode(errors.HTTPStatusForCode(code)), msg)
}

func grpcCode(httpStatus int) codes.Code {
	switch httpStatus {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return codes.InvalidArgument
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.AlreadyExists
	case http.StatusNotImplemented:
		return codes.Unimplemented
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return codes.Unavailable
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

func featurizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FeaturizeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FeaturizerServer).Featurize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: featurizeMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(FeaturizerServer).Featurize(ctx, req.(*FeaturizeRequest))
	})
}

func columnsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ColumnsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FeaturizerServer).Columns(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: columnsMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(FeaturizerServer).Columns(ctx, req.(*ColumnsRequest))
	})
}

// FeaturizerServiceDesc describes padel.Featurizer for grpc.Server.RegisterService.
var FeaturizerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FeaturizerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Featurize", Handler: featurizeHandler},
		{MethodName: "Columns", Handler: columnsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "padel/featurizer.json",
}

// FeaturizerClient calls padel.Featurizer over the json codec.
type FeaturizerClient struct {
	cc grpc.ClientConnInterface
}

func NewFeaturizerClient(cc grpc.ClientConnInterface) *FeaturizerClient {
	return &FeaturizerClient{cc: cc}
}

func (c *FeaturizerClient) Featurize(ctx context.Context, in *FeaturizeRequest, opts ...grpc.CallOption) (*FeaturizeResponse, error) {
	out := new(FeaturizeResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, featurizeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FeaturizerClient) Columns(ctx context.Context, opts ...grpc.CallOption) (*ColumnsResponse, error) {
	out := new(ColumnsResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, columnsMethod, &ColumnsRequest{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
