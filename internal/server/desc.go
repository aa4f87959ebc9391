package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "expensetracker.v1.ReceiptPipeline"

	processReceiptMethod = "/" + ServiceName + "/ProcessReceipt"
	getReceiptJobMethod  = "/" + ServiceName + "/GetReceiptJob"
	exportExpensesMethod = "/" + ServiceName + "/ExportExpenses"
)

// ReceiptPipelineServer is the server API for proto/expensetracker/v1/pipeline.proto.
// Messages are protobuf well-known types so no generated code is needed.
type ReceiptPipelineServer interface {
	ProcessReceipt(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetReceiptJob(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ExportExpenses(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
}

func RegisterReceiptPipelineServer(s grpc.ServiceRegistrar, srv ReceiptPipelineServer) {
	s.RegisterService(&ReceiptPipelineServiceDesc, srv)
}

var ReceiptPipelineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReceiptPipelineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessReceipt", Handler: processReceiptHandler},
		{MethodName: "GetReceiptJob", Handler: getReceiptJobHandler},
		{MethodName: "ExportExpenses", Handler: exportExpensesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "expensetracker/v1/pipeline.proto",
}

func processReceiptHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReceiptPipelineServer).ProcessReceipt(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: processReceiptMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReceiptPipelineServer).ProcessReceipt(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getReceiptJobHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReceiptPipelineServer).GetReceiptJob(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getReceiptJobMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReceiptPipelineServer).GetReceiptJob(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func exportExpensesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReceiptPipelineServer).ExportExpenses(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: exportExpensesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReceiptPipelineServer).ExportExpenses(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ReceiptPipelineClient calls the service over a client connection.
type ReceiptPipelineClient struct {
	cc grpc.ClientConnInterface
}

func NewReceiptPipelineClient(cc grpc.ClientConnInterface) *ReceiptPipelineClient {
	return &ReceiptPipelineClient{cc: cc}
}

func (c *ReceiptPipelineClient) ProcessReceipt(ctx context.Context, path string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, processReceiptMethod, wrapperspb.String(path), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReceiptPipelineClient) GetReceiptJob(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getReceiptJobMethod, wrapperspb.String(id), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReceiptPipelineClient) ExportExpenses(ctx context.Context, from, to string, opts ...grpc.CallOption) ([]byte, error) {
	in, err := structpb.NewStruct(map[string]any{"from": from, "to": to})
	if err != nil {
		return nil, err
	}
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, exportExpensesMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}
