package bphase

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Module is a unit of functionality plugged into the server. It declares directives and may implement any of
// the optional hooks [LocConfCreator], [LocConfMerger] and [PostConfigurer].
type Module interface {
	Name() string
	Directives() []Directive
}

// LocConfCreator is implemented by modules that keep per-location configuration. The record must be returned
// zero-initialized: "unset" is how the merge step recognizes values to inherit.
type LocConfCreator interface {
	CreateLocConf(cf *Conf) (any, error)
}

// LocConfMerger fills the unset fields of child with the values of parent. For the root location parent is
// nil and unset fields receive their defaults.
type LocConfMerger interface {
	MergeLocConf(cf *Conf, parent, child any) error
}

// PostConfigurer is called once after every location was configured and merged. It is the place to install
// handlers into phases.
type PostConfigurer interface {
	PostConfiguration(cf *Conf) error
}

// LocConf returns the effective configuration record of module m for the location the request was routed to.
// The zero value is returned when the request was not routed by a [Server] or m keeps no such record.
func LocConf[T any](ctx context.Context, m Module) T {
	var zero T

	loc := LocationFrom(ctx)
	if loc == nil {
		return zero
	}

	conf, ok := loc.Conf(m).(T)
	if !ok {
		return zero
	}

	return conf
}

// RequestLocConf is [LocConf] for callers that only hold the request.
func RequestLocConf[T any](r *http.Request, m Module) T {
	return LocConf[T](r.Context(), m)
}

func createLocConfs(cf *Conf, modules []Module) error {
	for _, m := range modules {
		creator, ok := m.(LocConfCreator)
		if !ok {
			continue
		}

		conf, err := creator.CreateLocConf(cf)
		if err != nil {
			return &ConfError{Location: cf.loc.path, Err: errors.Wrapf(err, "create %s configuration", m.Name())}
		}

		if conf == nil {
			return &ConfError{Location: cf.loc.path, Err: errors.Newf("%s returned no configuration", m.Name())}
		}

		cf.loc.confs[m.Name()] = conf
	}

	return nil
}

func mergeLocConfs(cf *Conf, modules []Module, parent *Location) error {
	for _, m := range modules {
		merger, ok := m.(LocConfMerger)
		if !ok {
			continue
		}

		child := cf.loc.confs[m.Name()]
		if child == nil {
			continue
		}

		var prev any
		if parent != nil {
			prev = parent.confs[m.Name()]
		}

		if err := merger.MergeLocConf(cf, prev, child); err != nil {
			return &ConfError{Location: cf.loc.path, Err: errors.Wrapf(err, "merge %s configuration", m.Name())}
		}
	}

	return nil
}
