package hellod

import (
	"context"
	"net/http"

	"github.com/advdv/bphase"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger configured from the environment.
// Uses JSON encoding, HELLOD_LOG_LEVEL controls the level (debug, info, warn, error).
func NewLogger(env Environment) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(env.logLevel())
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logs, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return logs.With(zap.String("service", env.serviceName())), nil
}

// Span returns the current trace span from the context. Module handlers use it to annotate the server span.
func Span(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// withTraceLogger replaces the request-scoped logger with one that carries the trace and span ids, so that
// module handlers logging through [bphase.Log] are correlated too.
func withTraceLogger() bphase.Middleware {
	return func(next bphase.BareHandler) bphase.BareHandler {
		return bphase.BareHandlerFunc(func(w bphase.ResponseWriter, r *http.Request) error {
			ctx := r.Context()
			if fields := traceFields(ctx); len(fields) > 0 {
				ctx = bphase.ContextWithLogger(ctx, bphase.Log(ctx).With(fields...))
			}

			return next.ServeBareBHTTP(w, r.WithContext(ctx))
		})
	}
}

// traceFields extracts trace_id and span_id from the context for log correlation.
func traceFields(ctx context.Context) []zap.Field {
	sc := Span(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}

	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
