package hellod

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/advdv/bphase"
	"github.com/advdv/bphase/helloworld"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	access := NewAccessLog()
	access.now = func() time.Time {
		clock = clock.Add(25 * time.Millisecond)
		return clock
	}

	srv, err := bphase.Build(context.Background(), bphase.Block{
		Locations: []bphase.Block{{Location: "/hello", Directives: [][]string{{"hello_world"}}}},
	},
		bphase.WithModules(helloworld.New(helloworld.WithDeniedUserAgentPrefixes("curl")), access),
		bphase.WithZap(zap.New(core)),
		bphase.WithMiddleware(access.Middleware()))
	require.NoError(t, err)
	require.Equal(t, 1, srv.Phases().Len(bphase.PhaseLog))

	for _, tt := range []struct {
		path, ua string
		status   int
	}{
		{"/hello", "Mozilla/5.0", http.StatusOK},
		{"/hello", "curl/8.4.0", http.StatusForbidden},
		{"/missing", "Mozilla/5.0", http.StatusNotFound},
	} {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		req.Header.Set("User-Agent", tt.ua)
		srv.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 3)

	for i, exp := range []struct {
		path, location string
		status         int64
	}{
		{"/hello", "/hello", http.StatusOK},
		{"/hello", "/hello", http.StatusForbidden},
		{"/missing", "/", http.StatusNotFound},
	} {
		fields := entries[i].ContextMap()
		assert.Equal(t, "GET", fields["method"])
		assert.Equal(t, exp.path, fields["path"])
		assert.Equal(t, exp.location, fields["location"])
		assert.Equal(t, exp.status, fields["status"])
		assert.Equal(t, 25*time.Millisecond, fields["duration"])
	}
}

// stallModule answers every request from the content phase once the request context expired.
type stallModule struct{}

func (stallModule) Name() string                   { return "stall" }
func (stallModule) Directives() []bphase.Directive { return nil }

func (stallModule) PostConfiguration(cf *bphase.Conf) error {
	return cf.Phases().Append(bphase.PhaseContent, bphase.HandlerFunc(
		func(ctx context.Context, _ bphase.ResponseWriter, _ *http.Request) error {
			<-ctx.Done()
			return ctx.Err()
		}))
}

func TestAccessLogTimedOutRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	access := NewAccessLog()

	srv, err := bphase.Build(context.Background(), bphase.Block{},
		bphase.WithModules(access, stallModule{}),
		bphase.WithZap(zap.New(core)),
		bphase.WithMiddleware(access.Middleware(), WithRequestTimeout(10*time.Millisecond)))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(http.StatusGatewayTimeout), entries[0].ContextMap()["status"])
}

func TestAccessLogAnnotatesSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	access := NewAccessLog()

	srv, err := bphase.Build(context.Background(), bphase.Block{
		Locations: []bphase.Block{{Location: "/hello", Directives: [][]string{{"hello_world"}}}},
	}, bphase.WithModules(helloworld.New(), access))
	require.NoError(t, err)

	h := withTracing(tp, propagation.TraceContext{}, "test")(srv)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/hello/x", nil))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Attributes(), attribute.String("hellod.location", "/hello"))
}
