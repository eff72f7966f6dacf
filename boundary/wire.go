package boundary

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protowire"
)

// MaxFrameSize bounds the body of a single frame.
const MaxFrameSize = 1 << 20

// Op names a boundary operation on the wire.
type Op uint64

const (
	OpInitStorage Op = iota + 1
	OpShutdownStorage
	OpSetTempDirectory
	OpSpilledBytes
	OpCreatePriority
	OpCreateFIFO
	OpDestroy
	OpPriorityPush
	OpPriorityTop
	OpPriorityPop
	OpPrioritySize
	OpPriorityIsEmpty
	OpFIFOPush
	OpFIFOFront
	OpFIFOPop
	OpFIFOSize
	OpFIFOIsEmpty
)

var opNames = map[Op]string{
	OpInitStorage:      "init_storage",
	OpShutdownStorage:  "shutdown_storage",
	OpSetTempDirectory: "set_temp_directory",
	OpSpilledBytes:     "spilled_bytes",
	OpCreatePriority:   "create_priority",
	OpCreateFIFO:       "create_fifo",
	OpDestroy:          "destroy",
	OpPriorityPush:     "priority_push",
	OpPriorityTop:      "priority_top",
	OpPriorityPop:      "priority_pop",
	OpPrioritySize:     "priority_size",
	OpPriorityIsEmpty:  "priority_is_empty",
	OpFIFOPush:         "fifo_push",
	OpFIFOFront:        "fifo_front",
	OpFIFOPop:          "fifo_pop",
	OpFIFOSize:         "fifo_size",
	OpFIFOIsEmpty:      "fifo_is_empty",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "op_" + strconv.FormatUint(uint64(o), 10)
}

// Request field numbers.
const (
	reqOp        protowire.Number = 1
	reqHandle    protowire.Number = 2
	reqSizeClass protowire.Number = 3
	reqPriority  protowire.Number = 4
	reqPayload   protowire.Number = 5
	reqBudget    protowire.Number = 6
	reqPath      protowire.Number = 7
	reqSubpath   protowire.Number = 8
)

// Response field numbers.
const (
	respCode     protowire.Number = 1
	respMessage  protowire.Number = 2
	respHandle   protowire.Number = 3
	respPriority protowire.Number = 4
	respPayload  protowire.Number = 5
	respSize     protowire.Number = 6
	respEmpty    protowire.Number = 7
	respSpilled  protowire.Number = 8
)

// Request is one call from the foreign side. Only the fields its Op uses
// are meaningful.
type Request struct {
	Op        Op
	Handle    int64
	SizeClass int64
	Priority  float64
	Payload   []byte
	Budget    uint64
	Path      string
	Subpath   string
}

// Response answers one Request. A zero Code means success.
type Response struct {
	Code     connect.Code
	Message  string
	Handle   int64
	Priority float64
	Payload  []byte
	Size     uint64
	Empty    bool
	Spilled  uint64
}

// Marshal encodes r in protobuf wire format. Zero-valued fields are
// omitted, except Priority, which is always present for push requests.
// A negative zero priority is not zero-valued and is always kept.
func (r *Request) Marshal() []byte {
	var b []byte
	b = appendVarint(b, reqOp, uint64(r.Op))
	b = appendVarint(b, reqHandle, protowire.EncodeZigZag(r.Handle))
	b = appendVarint(b, reqSizeClass, protowire.EncodeZigZag(r.SizeClass))
	if math.Float64bits(r.Priority) != 0 || r.Op == OpPriorityPush {
		b = protowire.AppendTag(b, reqPriority, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(r.Priority))
	}
	b = appendBytes(b, reqPayload, r.Payload)
	b = appendVarint(b, reqBudget, r.Budget)
	b = appendBytes(b, reqPath, []byte(r.Path))
	b = appendBytes(b, reqSubpath, []byte(r.Subpath))
	return b
}

// Unmarshal decodes a request, skipping unknown fields.
func (r *Request) Unmarshal(b []byte) error {
	*r = Request{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == reqOp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.Op = Op(v)
			return n
		case num == reqHandle && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.Handle = protowire.DecodeZigZag(v)
			return n
		case num == reqSizeClass && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.SizeClass = protowire.DecodeZigZag(v)
			return n
		case num == reqPriority && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			r.Priority = math.Float64frombits(v)
			return n
		case num == reqPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			r.Payload = append([]byte(nil), v...)
			return n
		case num == reqBudget && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.Budget = v
			return n
		case num == reqPath && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			r.Path = string(v)
			return n
		case num == reqSubpath && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			r.Subpath = string(v)
			return n
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
}

// Marshal encodes r in protobuf wire format.
func (r *Response) Marshal() []byte {
	var b []byte
	b = appendVarint(b, respCode, uint64(r.Code))
	b = appendBytes(b, respMessage, []byte(r.Message))
	b = appendVarint(b, respHandle, protowire.EncodeZigZag(r.Handle))
	if math.Float64bits(r.Priority) != 0 {
		b = protowire.AppendTag(b, respPriority, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(r.Priority))
	}
	b = appendBytes(b, respPayload, r.Payload)
	b = appendVarint(b, respSize, r.Size)
	if r.Empty {
		b = appendVarint(b, respEmpty, 1)
	}
	b = appendVarint(b, respSpilled, r.Spilled)
	return b
}

// Unmarshal decodes a response, skipping unknown fields.
func (r *Response) Unmarshal(b []byte) error {
	*r = Response{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == respCode && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.Code = connect.Code(v)
			return n
		case num == respMessage && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			r.Message = string(v)
			return n
		case num == respHandle && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.Handle = protowire.DecodeZigZag(v)
			return n
		case num == respPriority && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			r.Priority = math.Float64frombits(v)
			return n
		case num == respPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			r.Payload = append([]byte(nil), v...)
			return n
		case num == respSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.Size = v
			return n
		case num == respEmpty && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.Empty = protowire.DecodeBool(v)
			return n
		case num == respSpilled && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.Spilled = v
			return n
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
}

// Err returns the failure the response carries, or nil on success.
func (r *Response) Err() error {
	if r.Code == 0 {
		return nil
	}
	return &Failure{Code: r.Code, Message: r.Message}
}

// ReadFrame reads one uvarint length-prefixed frame. It returns io.EOF only
// when the stream ends cleanly between frames.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, io.ErrUnexpectedEOF)
	}
	return body, nil
}

// WriteFrame writes body with its uvarint length prefix.
func WriteFrame(w io.Writer, body []byte) error {
	frame := protowire.AppendVarint(make([]byte, 0, len(body)+binary.MaxVarintLen64), uint64(len(body)))
	frame = append(frame, body...)
	_, err := w.Write(frame)
	return err
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func consumeFields(b []byte, field func(protowire.Number, protowire.Type, []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
		}
		b = b[n:]

		m := field(num, typ, b)
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformedFrame, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}
