package hellod

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aws-observability/aws-otel-go/exporters/xrayudp"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

const exporterInitTimeout = 5 * time.Second

// Supported values of HELLOD_OTEL_EXPORTER.
const (
	ExporterStdout  = "stdout"
	ExporterXRayUDP = "xrayudp"
	ExporterNone    = "none"
)

// exporterKind describes one HELLOD_OTEL_EXPORTER value: how spans leave the process and how trace context
// travels between services.
type exporterKind struct {
	export     func(ctx context.Context) (sdktrace.SpanExporter, error)
	ids        sdktrace.IDGenerator
	propagator propagation.TextMapPropagator
}

var w3c = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})

var exporterKinds = map[string]exporterKind{
	ExporterStdout: {
		export: func(context.Context) (sdktrace.SpanExporter, error) {
			return stdouttrace.New(stdouttrace.WithPrettyPrint())
		},
		propagator: w3c,
	},
	ExporterXRayUDP: {
		export: func(ctx context.Context) (sdktrace.SpanExporter, error) {
			return xrayudp.NewSpanExporter(ctx)
		},
		ids:        xray.NewIDGenerator(),
		propagator: xray.Propagator{},
	},
	ExporterNone: {propagator: w3c},
}

func lookupExporter(name string) (exporterKind, error) {
	if name == "" {
		name = ExporterStdout
	}

	kind, ok := exporterKinds[name]
	if !ok {
		names := lo.Keys(exporterKinds)
		slices.Sort(names)

		return exporterKind{}, errors.Newf("unsupported HELLOD_OTEL_EXPORTER: %q (supported: %s)",
			name, strings.Join(names, ", "))
	}

	return kind, nil
}

// NewTracerProvider builds the tracer provider for HELLOD_OTEL_EXPORTER and flushes it when the app stops.
func NewTracerProvider(lc fx.Lifecycle, env Environment) (trace.TracerProvider, error) {
	kind, err := lookupExporter(env.otelExporter())
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(newResource(env.serviceName()))}
	if kind.ids != nil {
		opts = append(opts, sdktrace.WithIDGenerator(kind.ids))
	}

	if kind.export != nil {
		ctx, cancel := context.WithTimeout(context.Background(), exporterInitTimeout)
		defer cancel()

		exp, err := kind.export(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "create span exporter")
		}

		opts = append(opts, sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exp)))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	lc.Append(fx.StopHook(tp.Shutdown))

	return tp, nil
}

// NewPropagator returns the propagator matching HELLOD_OTEL_EXPORTER: X-Ray headers for xrayudp, W3C trace
// context and baggage otherwise.
func NewPropagator(env Environment) propagation.TextMapPropagator {
	kind, err := lookupExporter(env.otelExporter())
	if err != nil {
		return w3c
	}

	return kind.propagator
}

func newResource(serviceName string) *resource.Resource {
	return resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))
}

// withTracing starts a server span per request. The provider and propagator are passed in, the otel globals
// are left alone.
func withTracing(tp trace.TracerProvider, prop propagation.TextMapPropagator, serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithPropagators(prop),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}
