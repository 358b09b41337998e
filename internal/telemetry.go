package internal

import (
	"context"
	"sync"
	"time"

	"github.com/lychee-technology/tabula"
)

// Lightweight telemetry hook for dataset operations. Callers may register a real
// metrics emitter (or a test stub) via RegisterTelemetryEmitter; the default is a no-op.

type TelemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

var (
	teleMu   sync.Mutex
	teleImpl TelemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {}
)

// RegisterTelemetryEmitter registers a custom emitter function. nil restores the no-op.
func RegisterTelemetryEmitter(fn TelemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

func emitter() TelemetryEmitter {
	teleMu.Lock()
	defer teleMu.Unlock()
	return teleImpl
}

// EmitLatency records the latency in milliseconds of one dataset operation.
// name: "dataset_op_latency_ms" with labels {"op": "<operation>", "outcome": "<ok|error type>"}
func EmitLatency(ctx context.Context, op string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(tabula.ErrorTypeOf(err))
	}
	labels := map[string]string{"op": op, "outcome": outcome}
	emitter()(ctx, "dataset_op_latency_ms", labels, time.Since(started).Milliseconds())
}

// EmitRateLimited counts requests rejected by the rate limiter.
// name: "rate_limited_total" with label {"store": "redis"|"memory"}
func EmitRateLimited(ctx context.Context, store string) {
	emitter()(ctx, "rate_limited_total", map[string]string{"store": store}, int64(1))
}
