package bphase

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

// Middleware for cross-cutting concerns with buffered responses.
type Middleware func(BareHandler) BareHandler

// Wrap takes the inner handler h and wraps it with middleware. The order is that of the Gorilla and Chi router. That
// is: the middleware provided first is called first and is the "outer" most wrapping, the middleware provided last
// will be the "inner most" wrapping (closest to the handler).
func Wrap(h BareHandler, m ...Middleware) BareHandler {
	wrapped := h
	for i := len(m) - 1; i >= 0; i-- {
		wrapped = m[i](wrapped)
	}

	return wrapped
}

// ctxKey is the key type for context values.
type ctxKey int

const (
	ctxKeyLogger ctxKey = iota
	ctxKeyLocation
	ctxKeyFinalRequest
)

// WithRequestLogger returns middleware that makes logs available to handlers through [Log].
func WithRequestLogger(logs *zap.Logger) Middleware {
	return func(next BareHandler) BareHandler {
		return BareHandlerFunc(func(w ResponseWriter, r *http.Request) error {
			return next.ServeBareBHTTP(w, r.WithContext(ContextWithLogger(r.Context(), logs)))
		})
	}
}

// ContextWithLogger returns a copy of ctx that carries logs as the request-scoped logger.
func ContextWithLogger(ctx context.Context, logs *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logs)
}

// Log returns the request-scoped logger. Outside of a server a no-op logger is returned.
func Log(ctx context.Context) *zap.Logger {
	logs, ok := ctx.Value(ctxKeyLogger).(*zap.Logger)
	if !ok {
		return zap.NewNop()
	}

	return logs
}

func withLocation(loc *Location) Middleware {
	return func(next BareHandler) BareHandler {
		return BareHandlerFunc(func(w ResponseWriter, r *http.Request) error {
			ctx := context.WithValue(r.Context(), ctxKeyLocation, loc)
			return next.ServeBareBHTTP(w, r.WithContext(ctx))
		})
	}
}

// LocationFrom returns the location the request was routed to, or nil.
func LocationFrom(ctx context.Context) *Location {
	loc, _ := ctx.Value(ctxKeyLocation).(*Location)
	return loc
}
