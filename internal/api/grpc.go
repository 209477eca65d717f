package api

import (
	"context"
	"encoding/json"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/miradorstack/churn-triage/internal/models"
)

// JSONCodecName is the content subtype clients select with grpc.CallContentSubtype.
const JSONCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return JSONCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

const (
	serviceName        = "churntriage.v1.ChurnTriage"
	methodScoreRecords = "/" + serviceName + "/ScoreRecords"
	methodGetRun       = "/" + serviceName + "/GetRun"
)

// ChurnTriageServer is the gRPC surface of the service.
type ChurnTriageServer interface {
	ScoreRecords(ctx context.Context, req *ScoreRecordsRequest) (*RunReply, error)
	GetRun(ctx context.Context, req *GetRunRequest) (*RunReply, error)
}

// ChurnTriageServiceDesc describes the JSON-coded churntriage.v1.ChurnTriage service.
var ChurnTriageServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ChurnTriageServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ScoreRecords", Handler: scoreRecordsHandler},
		{MethodName: "GetRun", Handler: getRunHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "churntriage/v1/churntriage.json",
}

func scoreRecordsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ScoreRecordsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChurnTriageServer).ScoreRecords(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodScoreRecords}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChurnTriageServer).ScoreRecords(ctx, req.(*ScoreRecordsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getRunHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetRunRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChurnTriageServer).GetRun(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetRun}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChurnTriageServer).GetRun(ctx, req.(*GetRunRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ChurnTriageClient calls the JSON-coded service.
type ChurnTriageClient struct {
	cc grpc.ClientConnInterface
}

// NewChurnTriageClient wraps a connection.
func NewChurnTriageClient(cc grpc.ClientConnInterface) *ChurnTriageClient {
	return &ChurnTriageClient{cc: cc}
}

// ScoreRecords scores an inline table.
func (c *ChurnTriageClient) ScoreRecords(ctx context.Context, in *ScoreRecordsRequest, opts ...grpc.CallOption) (*RunReply, error) {
	out := new(RunReply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, methodScoreRecords, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRun fetches a stored run.
func (c *ChurnTriageClient) GetRun(ctx context.Context, in *GetRunRequest, opts ...grpc.CallOption) (*RunReply, error) {
	out := new(RunReply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, methodGetRun, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCService adapts Triage to ChurnTriageServer.
type GRPCService struct {
	logger *slog.Logger
	svc    Triage
}

// NewGRPCService constructs the adapter.
func NewGRPCService(logger *slog.Logger, svc Triage) *GRPCService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCService{logger: logger, svc: svc}
}

// ScoreRecords implements ChurnTriageServer.
func (g *GRPCService) ScoreRecords(ctx context.Context, req *ScoreRecordsRequest) (*RunReply, error) {
	df, err := FromScoreRecordsRequest(req)
	if err != nil {
		return nil, grpcStatus(err)
	}
	run, err := g.svc.ScoreUpload(ctx, df, req.IDColumn, req.SourceName)
	if err != nil {
		g.logger.Debug("ScoreRecords failed", slog.Any("error", err))
		return nil, grpcStatus(err)
	}
	return toRunReply(run), nil
}

// GetRun implements ChurnTriageServer.
func (g *GRPCService) GetRun(ctx context.Context, req *GetRunRequest) (*RunReply, error) {
	if req == nil {
		req = &GetRunRequest{}
	}
	var (
		run models.Run
		err error
	)
	if req.RunID == "" {
		run, err = g.svc.LatestRun(ctx)
	} else {
		run, err = g.svc.Run(ctx, req.RunID)
	}
	if err != nil {
		return nil, grpcStatus(err)
	}
	return toRunReply(run), nil
}
