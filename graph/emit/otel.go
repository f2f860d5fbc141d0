package emit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into a short OpenTelemetry span.
//
// The span is named after event.Msg and carries:
//   - tripgraph.run_id, tripgraph.step and tripgraph.node_id
//   - tripgraph.attempt for node lifecycle events
//   - tripgraph.llm.* for model, tokens_in, tokens_out and cost_usd
//   - tripgraph.node.duration_ms for duration_ms
//   - every other Meta key as-is
//
// A string Meta["error"] marks the span as failed and records the error.
//
// Usage:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//	emitter := emit.NewOTelEmitter(otel.Tracer("tripgraph"))
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an emitter backed by tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit implements Emitter.
func (o *OTelEmitter) Emit(event Event) {
	o.record(context.Background(), event)
}

// EmitBatch records events as sibling spans under ctx's span, if any.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.record(ctx, event)
	}
	return nil
}

// Flush exports buffered spans if the global tracer provider supports it.
// Call it before shutdown.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := otel.GetTracerProvider().(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) record(ctx context.Context, event Event) {
	_, span := o.tracer.Start(ctx, event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("tripgraph.run_id", event.RunID),
		attribute.Int("tripgraph.step", event.Step),
		attribute.String("tripgraph.node_id", event.NodeID),
	)
	for key, value := range event.Meta {
		span.SetAttributes(metaAttribute(key, value))
	}

	if msg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, msg)
		span.RecordError(errors.New(msg))
	}
}

var metaKeys = map[string]string{
	"attempt":     "tripgraph.attempt",
	"model":       "tripgraph.llm.model",
	"tokens_in":   "tripgraph.llm.tokens_in",
	"tokens_out":  "tripgraph.llm.tokens_out",
	"cost_usd":    "tripgraph.llm.cost_usd",
	"duration_ms": "tripgraph.node.duration_ms",
}

func metaAttribute(key string, value interface{}) attribute.KeyValue {
	if mapped, ok := metaKeys[key]; ok {
		key = mapped
	}
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case time.Duration:
		return attribute.Int64(key, v.Milliseconds())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
