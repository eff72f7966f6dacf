package boundary

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tailored-agentic-units/spillq/observability"
)

// tracerName is the instrumentation scope name for boundary tracing.
const tracerName = "github.com/tailored-agentic-units/spillq/boundary"

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithTracer overrides the tracer from the global TracerProvider.
func WithTracer(t trace.Tracer) ServerOption {
	return func(s *Server) { s.tracer = t }
}

// WithObserver overrides the default NoOpObserver.
func WithObserver(o observability.Observer) ServerOption {
	return func(s *Server) { s.observer = o }
}

// Server answers framed requests from a byte stream, one at a time, in
// arrival order.
type Server struct {
	adapter  *Adapter
	tracer   trace.Tracer
	observer observability.Observer
}

// NewServer returns a server dispatching to a. Without WithTracer the global
// TracerProvider is used, which is a no-op unless one was installed.
func NewServer(a *Adapter, opts ...ServerOption) *Server {
	s := &Server{
		adapter:  a,
		tracer:   otel.Tracer(tracerName),
		observer: observability.NoOpObserver{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Serve reads request frames from r and writes one response frame per
// request to w until r ends, ctx is cancelled, or the stream breaks. A clean
// end of input returns nil. A request that cannot be decoded is answered
// with an InvalidArgument failure and serving continues.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	in := bufio.NewReader(r)
	out := bufio.NewWriter(w)

	observability.Emit(ctx, s.observer, EventServeStart, observability.LevelInfo, "boundary.Server", nil)

	served := 0
	err := func() error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			body, err := ReadFrame(in)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}

			var resp *Response
			var req Request
			if err := req.Unmarshal(body); err != nil {
				resp = failureResponse(Translate(err))
			} else {
				resp = s.Handle(ctx, &req)
			}

			if err := WriteFrame(out, resp.Marshal()); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
			if err := out.Flush(); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
			served++
		}
	}()

	data := map[string]any{"requests": served}
	if err != nil {
		data["error"] = err.Error()
	}
	observability.Emit(ctx, s.observer, EventServeStop, observability.LevelInfo, "boundary.Server", data)

	return err
}

// Handle executes one request inside its own span.
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	ctx, span := s.tracer.Start(ctx, "spillq."+req.Op.String(),
		trace.WithAttributes(
			attribute.String("spillq.op", req.Op.String()),
			attribute.Int64("spillq.handle", req.Handle),
		),
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	resp, err := s.dispatch(req)
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return resp
	}

	code := CodeOf(err)
	span.RecordError(err)
	span.SetAttributes(attribute.String("spillq.code", code.String()))
	span.SetStatus(codes.Error, err.Error())

	// An empty queue is an ordinary answer, not a problem worth reporting.
	level := observability.LevelWarning
	if code == connect.CodeOutOfRange {
		level = observability.LevelVerbose
	}
	observability.Emit(ctx, s.observer, EventRequestFailed, level, "boundary.Server", map[string]any{
		"op":     req.Op.String(),
		"handle": req.Handle,
		"code":   code.String(),
		"error":  err.Error(),
	})

	return failureResponse(err)
}

func (s *Server) dispatch(req *Request) (*Response, error) {
	a := s.adapter
	resp := &Response{}
	var err error

	switch req.Op {
	case OpInitStorage:
		err = a.InitStorage(req.Budget)
	case OpShutdownStorage:
		err = a.ShutdownStorage()
	case OpSetTempDirectory:
		err = a.SetTempDirectory(req.Path, req.Subpath)
	case OpSpilledBytes:
		resp.Spilled = a.SpilledBytes()
	case OpCreatePriority:
		resp.Handle, err = a.CreatePriority(int(req.SizeClass))
	case OpCreateFIFO:
		resp.Handle, err = a.CreateFIFO(int(req.SizeClass))
	case OpDestroy:
		err = a.Destroy(req.Handle)
	case OpPriorityPush:
		err = a.PriorityPush(req.Handle, req.Priority, req.Payload)
	case OpPriorityTop:
		resp.Priority, resp.Payload, err = a.PriorityTop(req.Handle)
	case OpPriorityPop:
		err = a.PriorityPop(req.Handle)
	case OpPrioritySize:
		resp.Size, err = a.PrioritySize(req.Handle)
	case OpPriorityIsEmpty:
		resp.Empty, err = a.PriorityIsEmpty(req.Handle)
	case OpFIFOPush:
		err = a.FIFOPush(req.Handle, req.Payload)
	case OpFIFOFront:
		resp.Payload, err = a.FIFOFront(req.Handle)
	case OpFIFOPop:
		err = a.FIFOPop(req.Handle)
	case OpFIFOSize:
		resp.Size, err = a.FIFOSize(req.Handle)
	case OpFIFOIsEmpty:
		resp.Empty, err = a.FIFOIsEmpty(req.Handle)
	default:
		err = Translate(fmt.Errorf("%w: %d", ErrUnknownOp, req.Op))
	}

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func failureResponse(err error) *Response {
	return &Response{
		Code:    CodeOf(err),
		Message: err.Error(),
	}
}
