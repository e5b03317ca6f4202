package hellod

import (
	"context"
	"net/http"
	"time"

	"github.com/advdv/bphase"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AccessLogName is the name of the access log module.
const AccessLogName = "access_log"

type ctxKey int

const ctxKeyStart ctxKey = iota

// AccessLog is a module that writes one log line per request from the log phase and tags the server span with
// the location. It has no directives.
type AccessLog struct {
	now func() time.Time
}

// NewAccessLog inits the access log module.
func NewAccessLog() *AccessLog {
	return &AccessLog{now: time.Now}
}

// Name implements [bphase.Module].
func (a *AccessLog) Name() string { return AccessLogName }

// Directives implements [bphase.Module].
func (a *AccessLog) Directives() []bphase.Directive { return nil }

// PostConfiguration implements [bphase.PostConfigurer].
func (a *AccessLog) PostConfiguration(cf *bphase.Conf) error {
	return cf.Phases().Append(bphase.PhaseLog, a.handler())
}

// Middleware records when the request entered the server.
func (a *AccessLog) Middleware() bphase.Middleware {
	return func(next bphase.BareHandler) bphase.BareHandler {
		return bphase.BareHandlerFunc(func(w bphase.ResponseWriter, r *http.Request) error {
			ctx := context.WithValue(r.Context(), ctxKeyStart, a.now())
			return next.ServeBareBHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *AccessLog) handler() bphase.Handler {
	return bphase.HandlerFunc(func(ctx context.Context, w bphase.ResponseWriter, r *http.Request) error {
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", bphase.ResponseStatus(w)),
			zap.String("user_agent", r.UserAgent()),
		}

		if loc := bphase.LocationFrom(ctx); loc != nil {
			fields = append(fields, zap.String("location", loc.Path()))
			Span(ctx).SetAttributes(attribute.String("hellod.location", loc.Path()))
		}

		if start, ok := ctx.Value(ctxKeyStart).(time.Time); ok {
			fields = append(fields, zap.Duration("duration", a.now().Sub(start)))
		}

		bphase.Log(ctx).Info("request", fields...)

		return nil
	})
}

var _ bphase.PostConfigurer = &AccessLog{}
