// Package hellodtest provides test helpers for hellod applications.
//
// It constructs the identical DI graph as [hellod.NewApp] but uses
// [fxtest.App] which fails the test immediately on DI errors.
//
// Example:
//
//	hellodtest.SetBaseEnv(t, 18081, sitePath)
//	app := hellodtest.New[hellod.BaseEnvironment](t)
//	app.RequireStart()
//	t.Cleanup(app.RequireStop)
package hellodtest

import (
	"testing"

	"github.com/advdv/bphase/hellod"
	"go.uber.org/fx/fxtest"
)

// App embeds *fxtest.App for testing hellod applications.
type App struct {
	*fxtest.App
}

// New creates a test app with the same DI graph as [hellod.NewApp].
func New[E hellod.Environment](t testing.TB, opts ...hellod.Option) *App {
	return &App{App: fxtest.New(t, hellod.FxOptions[E](opts...)...)}
}
