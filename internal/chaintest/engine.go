package chaintest

import (
	"context"
	"net"
	"path"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// EngineCall records one operation received by a fake engine.
type EngineCall struct {
	Op   string
	Args map[string]any
}

// Engine is an in-memory gRPC storage engine. It accepts any method of any
// service, answers Ready once the configured start-up delay has passed and
// replies to other operations with the results set via SetResult.
type Engine struct {
	mu      sync.Mutex
	readyAt time.Time
	results map[string]any
	errs    map[string]error
	calls   []EngineCall

	lis *bufconn.Listener
	srv *grpc.Server
}

// NewEngine starts a fake engine that reports ready after startup.
func NewEngine(t testing.TB, startup time.Duration) *Engine {
	t.Helper()

	e := &Engine{
		readyAt: time.Now().Add(startup),
		results: make(map[string]any),
		errs:    make(map[string]error),
		lis:     bufconn.Listen(1 << 20),
	}
	e.srv = grpc.NewServer(grpc.UnknownServiceHandler(e.handle))
	go func() {
		_ = e.srv.Serve(e.lis)
	}()

	t.Cleanup(e.srv.Stop)
	return e
}

// Target is the dial target to use together with DialOption.
func (e *Engine) Target() string {
	return "passthrough:///chaintest-engine"
}

// DialOption routes connections to the in-memory listener.
func (e *Engine) DialOption() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return e.lis.DialContext(ctx)
	})
}

// SetResult sets the value returned for op. v must be representable as a
// google.protobuf.Value.
func (e *Engine) SetResult(op string, v any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[op] = v
}

// SetError makes op fail with err.
func (e *Engine) SetError(op string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs[op] = err
}

// Calls returns the operations received so far, excluding Ready probes.
func (e *Engine) Calls() []EngineCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]EngineCall(nil), e.calls...)
}

func (e *Engine) handle(_ any, stream grpc.ServerStream) error {
	method, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "no method")
	}
	op := path.Base(method)

	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	e.mu.Lock()
	var result any
	var err error
	if op == "Ready" {
		result = !time.Now().Before(e.readyAt)
	} else {
		e.calls = append(e.calls, EngineCall{Op: op, Args: in.AsMap()})
		result, err = e.results[op], e.errs[op]
	}
	e.mu.Unlock()

	if err != nil {
		return status.Error(codes.Unknown, err.Error())
	}
	out, err := structpb.NewValue(result)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return stream.SendMsg(out)
}
