package hellod

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/advdv/bphase"
	"github.com/advdv/bphase/helloworld"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ServerConfig holds optional configuration for the HTTP server.
type ServerConfig struct {
	// Modules are built into the server after the hello_world and access log modules.
	Modules []bphase.Module
}

// PhaseServerParams holds the dependencies for building the phase server.
type PhaseServerParams struct {
	fx.In

	Env    Environment
	Site   bphase.Block
	Logger *zap.Logger
}

// NewPhaseServer builds the location tree of the site with the hello_world module and the access log.
func NewPhaseServer(ctx context.Context, params PhaseServerParams, cfg ServerConfig) (*bphase.Server, error) {
	access := NewAccessLog()
	modules := append([]bphase.Module{
		helloworld.New(helloworld.WithDeniedUserAgentPrefixes(params.Env.deniedUserAgentPrefixes()...)),
		access,
	}, cfg.Modules...)

	opts := []bphase.BuildOption{
		bphase.WithModules(modules...),
		bphase.WithZap(params.Logger),
		bphase.WithBufferLimit(params.Env.responseBufferLimit()),
		bphase.WithMiddleware(
			access.Middleware(),
			withTraceLogger(),
			WithRequestTimeout(params.Env.requestTimeout()),
		),
	}

	if n := params.Env.maxConfRecords(); n > 0 {
		opts = append(opts, bphase.WithPool(bphase.NewBoundedPool(n)))
	}

	srv, err := bphase.Build(ctx, params.Site, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "build server")
	}

	return srv, nil
}

// NewSiteHandlerFromParams serves the initial phase server and rebuilds it from the site file on reload.
func NewSiteHandlerFromParams(initial *bphase.Server, params PhaseServerParams, cfg ServerConfig) *SiteHandler {
	return NewSiteHandler(initial, func(ctx context.Context) (*bphase.Server, error) {
		site, err := ReloadSite(params.Env.siteFile())
		if err != nil {
			return nil, err
		}

		params.Site = site

		return NewPhaseServer(ctx, params, cfg)
	}, params.Logger)
}

// ServerParams holds the dependencies for creating an HTTP server.
type ServerParams struct {
	fx.In

	Env        Environment
	Handler    *SiteHandler
	TracerProv trace.TracerProvider
	Propagator propagation.TextMapPropagator
}

// NewServer creates the HTTP server that serves the current phase server with tracing.
func NewServer(params ServerParams) *http.Server {
	handler := withTracing(params.TracerProv, params.Propagator, params.Env.serviceName())(params.Handler)

	tc := TimeoutConfig{RequestTimeout: params.Env.requestTimeout()}
	readHeaderTimeout, readTimeout, writeTimeout, idleTimeout := tc.ServerTimeouts()

	return &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(params.Env.port())),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// startServerHook registers lifecycle hooks for the HTTP server. The listener is opened while starting so
// that a taken port fails the start.
func startServerHook(lc fx.Lifecycle, server *http.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", server.Addr)
			if err != nil {
				return errors.Wrapf(err, "listen on %s", server.Addr)
			}

			logger.Info("starting server", zap.String("addr", ln.Addr().String()))

			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")
			return server.Shutdown(ctx)
		},
	})
}
