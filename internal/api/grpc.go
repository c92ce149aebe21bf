package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"edgelab/internal/store"
	"edgelab/internal/universe"
)

// GRPCServiceName is the fully qualified gRPC service name.
const GRPCServiceName = "edgelab.v1.Backtest"

// BacktestServer is the gRPC surface. Requests and responses are generic
// protobuf Structs carrying the same JSON documents as the HTTP API.
type BacktestServer interface {
	Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListStrategies(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListUniverses(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var _ BacktestServer = (*grpcService)(nil)

type grpcService struct {
	svc *Service
}

// RegisterGRPC registers the Service on gs.
func (s *Service) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&backtestServiceDesc, &grpcService{svc: s})
}

func (g *grpcService) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req BacktestRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
	}
	resp, err := g.svc.Backtest(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(resp)
}

func (g *grpcService) ListStrategies(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]any{"strategies": g.svc.Strategies()})
}

func (g *grpcService) ListUniverses(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]any{"universes": g.svc.Universes()})
}

func grpcError(err error) error {
	switch {
	case isClientError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct converts v to a Struct through its JSON encoding.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return s, nil
}

// fromStruct decodes s into v through its JSON encoding. encoding/json
// writes integral numbers without exponents, so integer fields survive.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ---------------------------------------------------------------------------
// Service descriptor
// ---------------------------------------------------------------------------

func unaryHandler(call func(BacktestServer, context.Context, *structpb.Struct) (*structpb.Struct, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BacktestServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + GRPCServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(BacktestServer), ctx, req.(*structpb.Struct))
		})
	}
}

var backtestServiceDesc = grpc.ServiceDesc{
	ServiceName: GRPCServiceName,
	HandlerType: (*BacktestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: unaryHandler(BacktestServer.Run, "Run")},
		{MethodName: "ListStrategies", Handler: unaryHandler(BacktestServer.ListStrategies, "ListStrategies")},
		{MethodName: "ListUniverses", Handler: unaryHandler(BacktestServer.ListUniverses, "ListUniverses")},
	},
	Streams: []grpc.StreamDesc{},
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// GRPCClient calls a remote Backtest service.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// DialGRPC creates a client for the service at addr.
func DialGRPC(addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPCClient{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// Backtest runs req on the server.
func (c *GRPCClient) Backtest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	var resp BacktestResponse
	if err := c.invoke(ctx, "Run", in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Strategies lists the server's strategies.
func (c *GRPCClient) Strategies(ctx context.Context) ([]StrategyInfo, error) {
	var out struct {
		Strategies []StrategyInfo `json:"strategies"`
	}
	if err := c.invoke(ctx, "ListStrategies", &structpb.Struct{}, &out); err != nil {
		return nil, err
	}
	return out.Strategies, nil
}

// Universes lists the server's universes.
func (c *GRPCClient) Universes(ctx context.Context) ([]universe.Universe, error) {
	var out struct {
		Universes []universe.Universe `json:"universes"`
	}
	if err := c.invoke(ctx, "ListUniverses", &structpb.Struct{}, &out); err != nil {
		return nil, err
	}
	return out.Universes, nil
}

func (c *GRPCClient) invoke(ctx context.Context, method string, in *structpb.Struct, v any) error {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+GRPCServiceName+"/"+method, in, out); err != nil {
		return err
	}
	if err := fromStruct(out, v); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	return nil
}
