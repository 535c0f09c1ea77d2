package engine

import (
	"context"
	"encoding/json"

	"golang.org/x/xerrors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the gRPC service the engine exposes. Every operation is a
// unary method taking a google.protobuf.Struct of named arguments and
// returning a google.protobuf.Value.
const ServiceName = "zcn.engine.v1.Engine"

// GRPCEngine is a StorageEngine served by an engine process over gRPC.
type GRPCEngine struct {
	conn *grpc.ClientConn
}

var _ StorageEngine = (*GRPCEngine)(nil)

// Dial connects to the engine at addr. The connection is established lazily
// on the first call.
func Dial(addr string, opts ...grpc.DialOption) (*GRPCEngine, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, xerrors.Errorf("dial storage engine %s: %w", addr, err)
	}
	return &GRPCEngine{conn: conn}, nil
}

// Method returns the full gRPC method name of op.
func Method(op string) string {
	return "/" + ServiceName + "/" + op
}

func (e *GRPCEngine) invoke(ctx context.Context, op string, args map[string]any) (*structpb.Value, error) {
	in, err := structpb.NewStruct(args)
	if err != nil {
		return nil, xerrors.Errorf("engine %s: encode arguments: %w", op, err)
	}
	out := new(structpb.Value)
	if err := e.conn.Invoke(ctx, Method(op), in, out); err != nil {
		return nil, xerrors.Errorf("engine %s: %w", op, err)
	}
	return out, nil
}

func (e *GRPCEngine) call(ctx context.Context, op string, args map[string]any) (json.RawMessage, error) {
	out, err := e.invoke(ctx, op, args)
	if err != nil {
		return nil, err
	}
	raw, err := protojson.Marshal(out)
	if err != nil {
		return nil, xerrors.Errorf("engine %s: encode result: %w", op, err)
	}
	return raw, nil
}

func (e *GRPCEngine) exec(ctx context.Context, op string, args map[string]any) error {
	_, err := e.invoke(ctx, op, args)
	return err
}

func (e *GRPCEngine) Ready(ctx context.Context) (bool, error) {
	out, err := e.invoke(ctx, "Ready", nil)
	if err != nil {
		return false, err
	}
	return out.GetBoolValue(), nil
}

func (e *GRPCEngine) SetWallet(ctx context.Context, id Identity) error {
	return e.exec(ctx, "SetWallet", map[string]any{
		"client_id":  id.ClientID,
		"public_key": id.PublicKey,
		"scheme":     id.Scheme,
	})
}

func (e *GRPCEngine) ListAllocations(ctx context.Context) (json.RawMessage, error) {
	return e.call(ctx, "ListAllocations", nil)
}

func (e *GRPCEngine) GetAllocation(ctx context.Context, allocationID string) (json.RawMessage, error) {
	return e.call(ctx, "GetAllocation", map[string]any{"allocation_id": allocationID})
}

func (e *GRPCEngine) GetBlobbers(ctx context.Context) (json.RawMessage, error) {
	return e.call(ctx, "GetBlobbers", nil)
}

func (e *GRPCEngine) ListObjects(ctx context.Context, allocationID, path string) (json.RawMessage, error) {
	return e.call(ctx, "ListObjects", map[string]any{"allocation_id": allocationID, "path": path})
}

func (e *GRPCEngine) GetFileStats(ctx context.Context, allocationID, path string) (json.RawMessage, error) {
	return e.call(ctx, "GetFileStats", map[string]any{"allocation_id": allocationID, "path": path})
}

func (e *GRPCEngine) CreateDir(ctx context.Context, allocationID, path string) error {
	return e.exec(ctx, "CreateDir", map[string]any{"allocation_id": allocationID, "path": path})
}

func (e *GRPCEngine) DeleteObject(ctx context.Context, allocationID, path string) error {
	return e.exec(ctx, "DeleteObject", map[string]any{"allocation_id": allocationID, "path": path})
}

func (e *GRPCEngine) RenameObject(ctx context.Context, allocationID, path, newName string) error {
	return e.exec(ctx, "RenameObject", map[string]any{"allocation_id": allocationID, "path": path, "new_name": newName})
}

func (e *GRPCEngine) CopyObject(ctx context.Context, allocationID, path, destPath string) error {
	return e.exec(ctx, "CopyObject", map[string]any{"allocation_id": allocationID, "path": path, "dest_path": destPath})
}

func (e *GRPCEngine) MoveObject(ctx context.Context, allocationID, path, destPath string) error {
	return e.exec(ctx, "MoveObject", map[string]any{"allocation_id": allocationID, "path": path, "dest_path": destPath})
}

func (e *GRPCEngine) Close() error {
	return e.conn.Close()
}
