package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestInitTracer(t *testing.T) {
	ctx := context.Background()

	tp, err := InitTracer(ctx, "memory-core-test", "localhost:4318")
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}
	if tp == nil {
		t.Fatal("Expected tracer provider, got nil")
	}

	// Exporting is batched and lazy, so setup succeeds without a
	// collector; shutdown must still complete promptly.
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = Shutdown(shutdownCtx, tp)
}

func TestInitTracerSetsPropagator(t *testing.T) {
	ctx := context.Background()

	tp, err := InitTracer(ctx, "memory-core-test", "localhost:4318")
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = Shutdown(shutdownCtx, tp)
	}()

	prop := otel.GetTextMapPropagator()
	if prop == nil {
		t.Fatal("Expected global propagator to be set")
	}

	fields := prop.Fields()
	hasTraceparent := false
	for _, f := range fields {
		if f == "traceparent" {
			hasTraceparent = true
		}
	}
	if !hasTraceparent {
		t.Errorf("Expected traceparent propagation field, got %v", fields)
	}

	// Carrier round trip should not panic with an empty context
	carrier := propagation.MapCarrier{}
	prop.Inject(ctx, carrier)
	_ = prop.Extract(ctx, carrier)
}

func TestShutdownNil(t *testing.T) {
	t.Parallel()

	if err := Shutdown(context.Background(), nil); err != nil {
		t.Errorf("Shutdown(nil) = %v, want nil", err)
	}
}
