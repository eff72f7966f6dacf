package observability

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SpanObserver attaches events to the span active in the event's context.
// Events emitted outside a recording span are dropped.
type SpanObserver struct{}

func (SpanObserver) OnEvent(ctx context.Context, event Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	keys := make([]string, 0, len(event.Data))
	for k := range event.Data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys)+2)
	attrs = append(attrs,
		attribute.String("event.source", event.Source),
		attribute.String("event.severity", event.Level.String()),
	)
	for _, k := range keys {
		attrs = append(attrs, attributeOf(k, event.Data[k]))
	}

	span.AddEvent(string(event.Type),
		trace.WithTimestamp(event.Timestamp),
		trace.WithAttributes(attrs...),
	)
}

func attributeOf(key string, v any) attribute.KeyValue {
	switch x := v.(type) {
	case string:
		return attribute.String(key, x)
	case bool:
		return attribute.Bool(key, x)
	case int:
		return attribute.Int(key, x)
	case int64:
		return attribute.Int64(key, x)
	case uint64:
		return attribute.Int64(key, int64(x))
	case float64:
		return attribute.Float64(key, x)
	case fmt.Stringer:
		return attribute.Stringer(key, x)
	default:
		return attribute.String(key, fmt.Sprint(x))
	}
}
