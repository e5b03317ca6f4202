package hellod

import (
	"context"

	"github.com/advdv/bphase"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// App wraps an fx.App for lifecycle management.
type App struct {
	app *fx.App
}

// AppConfig holds configuration for the app.
type AppConfig struct {
	ServerConfig
	FxOptions []fx.Option
}

// Option configures the App.
type Option func(*AppConfig)

// WithFx adds fx options for dependency injection.
func WithFx(fxOpts ...fx.Option) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, fxOpts...)
	}
}

// WithModules adds modules to the phase server, after the built-in ones.
func WithModules(m ...bphase.Module) Option {
	return func(c *AppConfig) {
		c.Modules = append(c.Modules, m...)
	}
}

// FxOptions returns the fx options that make up the app's dependency graph.
func FxOptions[E Environment](opts ...Option) []fx.Option {
	var cfg AppConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	baseOpts := make([]fx.Option, 0, 14+len(cfg.FxOptions))
	baseOpts = append(baseOpts, []fx.Option{
		fx.NopLogger,
		fx.Provide(ParseEnv[E]()),
		fx.Provide(func(e E) Environment { return e }),
		fx.Provide(func(e E) (*zap.Logger, error) { return NewLogger(e) }),
		fx.Provide(func(e Environment) (bphase.Block, error) { return LoadSite(e.siteFile()) }),
		fx.Provide(NewTracerProvider),
		fx.Provide(NewPropagator),
		fx.Supply(cfg.ServerConfig),
		fx.Provide(func(p PhaseServerParams, sc ServerConfig) (*bphase.Server, error) {
			return NewPhaseServer(context.Background(), p, sc)
		}),
		fx.Provide(NewSiteHandlerFromParams),
		fx.Provide(NewServer),
		fx.Invoke(startServerHook),
		fx.Invoke(watchSiteHook),
	}...)

	return append(baseOpts, cfg.FxOptions...)
}

// NewApp creates a batteries-included app from the environment.
//
// Example:
//
//	hellod.NewApp[hellod.BaseEnvironment]().Run()
func NewApp[E Environment](opts ...Option) *App {
	return &App{
		app: fx.New(FxOptions[E](opts...)...),
	}
}

// Err returns an error when the dependency graph could not be constructed.
func (a *App) Err() error {
	return a.app.Err()
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() {
	a.app.Run()
}

// Start starts the application and blocks until ctx is done, then stops it.
func (a *App) Start(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.app.StopTimeout())
	defer cancel()

	return a.app.Stop(stopCtx)
}
