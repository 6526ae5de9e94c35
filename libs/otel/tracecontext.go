package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext is the W3C trace context of a request, flattened so it can be stored next to an
// outbox row and resumed by the publisher.
type TraceContext struct {
	Parent string
	State  string
}

func (tc TraceContext) Empty() bool { return tc.Parent == "" && tc.State == "" }

// Capture serialises the active span context with the global propagator.
func Capture(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Parent: carrier.Get("traceparent"), State: carrier.Get("tracestate")}
}

// Resume returns ctx carrying tc as its remote parent. An empty tc leaves ctx untouched.
func (tc TraceContext) Resume(ctx context.Context) context.Context {
	if tc.Empty() {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": tc.Parent}
	if tc.State != "" {
		carrier["tracestate"] = tc.State
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
