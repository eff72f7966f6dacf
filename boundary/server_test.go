package boundary_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/tailored-agentic-units/spillq/boundary"
)

func setupTestTracer() (*tracetest.SpanRecorder, trace.Tracer) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, tp.Tracer("test")
}

func encodeRequests(t *testing.T, reqs ...boundary.Request) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	for _, req := range reqs {
		require.NoError(t, boundary.WriteFrame(&buf, req.Marshal()))
	}
	return &buf
}

func decodeResponses(t *testing.T, r io.Reader) []boundary.Response {
	t.Helper()

	in := bufio.NewReader(r)
	var out []boundary.Response
	for {
		body, err := boundary.ReadFrame(in)
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)

		var resp boundary.Response
		require.NoError(t, resp.Unmarshal(body))
		out = append(out, resp)
	}
}

func TestServer_Session(t *testing.T) {
	sr, tracer := setupTestTracer()
	a := boundary.NewAdapter(smallConfig(t))
	s := boundary.NewServer(a, boundary.WithTracer(tracer))

	in := encodeRequests(t,
		boundary.Request{Op: boundary.OpInitStorage, Budget: 32 << 20},
		boundary.Request{Op: boundary.OpCreatePriority, SizeClass: 8},
		boundary.Request{Op: boundary.OpPriorityPush, Handle: 1, Priority: 3.0, Payload: u64(1, 8)},
		boundary.Request{Op: boundary.OpPriorityPush, Handle: 1, Priority: 1.0, Payload: u64(2, 8)},
		boundary.Request{Op: boundary.OpPriorityPush, Handle: 1, Priority: 0, Payload: u64(3, 8)},
		boundary.Request{Op: boundary.OpPriorityTop, Handle: 1},
		boundary.Request{Op: boundary.OpPrioritySize, Handle: 1},
		boundary.Request{Op: boundary.OpCreateFIFO, SizeClass: 16},
		boundary.Request{Op: boundary.OpFIFOFront, Handle: 2},
		boundary.Request{Op: boundary.OpFIFOIsEmpty, Handle: 2},
		boundary.Request{Op: boundary.OpCreateFIFO, SizeClass: 7},
		boundary.Request{Op: boundary.OpPriorityPop, Handle: 42},
		boundary.Request{Op: boundary.Op(99)},
		boundary.Request{Op: boundary.OpSpilledBytes},
		boundary.Request{Op: boundary.OpShutdownStorage},
	)
	var out bytes.Buffer

	require.NoError(t, s.Serve(context.Background(), in, &out))
	resps := decodeResponses(t, &out)
	require.Len(t, resps, 15)

	codesSeen := make([]connect.Code, len(resps))
	for i, r := range resps {
		codesSeen[i] = r.Code
	}
	assert.Equal(t, []connect.Code{
		0, 0, 0, 0, 0, 0, 0, 0,
		connect.CodeOutOfRange,
		0,
		connect.CodeInvalidArgument,
		connect.CodeNotFound,
		connect.CodeInvalidArgument,
		0, 0,
	}, codesSeen)

	assert.Equal(t, int64(1), resps[1].Handle)
	assert.Equal(t, 0.0, resps[5].Priority)
	assert.Equal(t, u64(3, 8), resps[5].Payload)
	assert.Equal(t, uint64(3), resps[6].Size)
	assert.Equal(t, int64(2), resps[7].Handle)
	assert.True(t, resps[9].Empty)
	assert.NotEmpty(t, resps[11].Message)

	var f *boundary.Failure
	require.ErrorAs(t, resps[8].Err(), &f)
	assert.Equal(t, connect.CodeOutOfRange, f.Code)
	assert.NoError(t, resps[0].Err())

	spans := sr.Ended()
	require.Len(t, spans, 15, "one span per request, unknown ops included")
	assert.Equal(t, "spillq.init_storage", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, "spillq.fifo_front", spans[8].Name())
	assert.Equal(t, codes.Error, spans[8].Status().Code)
	assert.Equal(t, "spillq.op_99", spans[12].Name())
}

func TestServer_MalformedRequest(t *testing.T) {
	a := boundary.NewAdapter(smallConfig(t))
	s := boundary.NewServer(a)

	var in bytes.Buffer
	require.NoError(t, boundary.WriteFrame(&in, []byte{0x0a, 0xff}))
	require.NoError(t, boundary.WriteFrame(&in, (&boundary.Request{Op: boundary.OpSpilledBytes}).Marshal()))

	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), &in, &out))

	resps := decodeResponses(t, &out)
	require.Len(t, resps, 2)
	assert.Equal(t, connect.CodeInvalidArgument, resps[0].Code)
	assert.Equal(t, connect.Code(0), resps[1].Code)
	assert.Equal(t, uint64(0), resps[1].Spilled)
}

func TestServer_BrokenStream(t *testing.T) {
	s := boundary.NewServer(boundary.NewAdapter(smallConfig(t)))

	t.Run("truncated body", func(t *testing.T) {
		in := bytes.NewReader([]byte{0x05, 0x08})
		err := s.Serve(context.Background(), in, io.Discard)
		assert.ErrorIs(t, err, boundary.ErrMalformedFrame)
	})

	t.Run("oversized frame", func(t *testing.T) {
		var in bytes.Buffer
		in.Write([]byte{0xff, 0xff, 0xff, 0x7f})
		err := s.Serve(context.Background(), &in, io.Discard)
		assert.ErrorIs(t, err, boundary.ErrFrameTooLarge)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		in := encodeRequests(t, boundary.Request{Op: boundary.OpSpilledBytes})
		err := s.Serve(ctx, in, io.Discard)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRequest_SkipsUnknownFields(t *testing.T) {
	req := boundary.Request{Op: boundary.OpFIFOPush, Handle: 5, Payload: []byte("abcdefgh")}
	body := req.Marshal()
	// field 15, varint 1
	body = append(body, 0x78, 0x01)

	var got boundary.Request
	require.NoError(t, got.Unmarshal(body))
	assert.Equal(t, req, got)
}

func TestServer_NegativeZeroPriority(t *testing.T) {
	s := boundary.NewServer(boundary.NewAdapter(smallConfig(t)))
	negZero := math.Copysign(0, -1)

	in := encodeRequests(t,
		boundary.Request{Op: boundary.OpInitStorage},
		boundary.Request{Op: boundary.OpCreatePriority, SizeClass: 8},
		boundary.Request{Op: boundary.OpPriorityPush, Handle: 1, Priority: negZero, Payload: u64(1, 8)},
		boundary.Request{Op: boundary.OpPriorityTop, Handle: 1},
		boundary.Request{Op: boundary.OpShutdownStorage},
	)
	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), in, &out))

	resps := decodeResponses(t, &out)
	require.Len(t, resps, 5)
	require.NoError(t, resps[3].Err())
	assert.True(t, math.Signbit(resps[3].Priority), "priority %v lost its sign", resps[3].Priority)
}

func TestMarshal_KeepsSignedZero(t *testing.T) {
	negZero := math.Copysign(0, -1)

	req := boundary.Request{Op: boundary.OpPriorityTop, Priority: negZero}
	var gotReq boundary.Request
	require.NoError(t, gotReq.Unmarshal(req.Marshal()))
	assert.True(t, math.Signbit(gotReq.Priority))

	resp := boundary.Response{Priority: negZero}
	var gotResp boundary.Response
	require.NoError(t, gotResp.Unmarshal(resp.Marshal()))
	assert.True(t, math.Signbit(gotResp.Priority))

	var zero boundary.Response
	assert.Empty(t, zero.Marshal(), "positive zero is omitted")
}
