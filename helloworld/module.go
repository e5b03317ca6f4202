// Package helloworld implements the hello_world module. It declares two directives:
//
//	hello_world;             # location scope, no arguments: serve the greeting here
//	hello_world_text <text>; # location scope, one argument: what to greet, may use variables
//
// and installs a handler into the access phase that runs for every request.
package helloworld

import (
	"slices"
	"strings"

	"github.com/advdv/bphase"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Name of the module, also the key of its configuration records.
const Name = "hello_world"

// LocConf is the module's per-location configuration. A nil or empty Text is unset.
type LocConf struct {
	Text *bphase.ComplexValue
}

// Module is the hello_world module.
type Module struct {
	deniedAgents []string
}

// Option configures the module.
type Option func(*Module)

// WithDeniedUserAgentPrefixes makes the access handler reject requests whose User-Agent starts with one of
// the prefixes. Without it every request is allowed.
func WithDeniedUserAgentPrefixes(prefixes ...string) Option {
	return func(m *Module) {
		m.deniedAgents = append(m.deniedAgents, prefixes...)
	}
}

// New inits the module.
func New(opts ...Option) *Module {
	m := &Module{}
	for _, o := range opts {
		o(m)
	}

	m.deniedAgents = lo.Uniq(lo.Filter(m.deniedAgents, func(p string, _ int) bool {
		return strings.TrimSpace(p) != ""
	}))

	return m
}

// Name implements [bphase.Module].
func (m *Module) Name() string { return Name }

// DeniedUserAgentPrefixes returns the prefixes the access handler rejects.
func (m *Module) DeniedUserAgentPrefixes() []string { return slices.Clone(m.deniedAgents) }

// Directives implements [bphase.Module].
func (m *Module) Directives() []bphase.Directive {
	return []bphase.Directive{
		{
			Name:  "hello_world",
			Scope: bphase.ScopeLocation,
			Args:  bphase.NoArgs,
			Set:   m.setHandler,
		},
		{
			Name:  "hello_world_text",
			Scope: bphase.ScopeLocation,
			Args:  bphase.Take1,
			Set:   setText,
		},
	}
}

// CreateLocConf implements [bphase.LocConfCreator].
func (m *Module) CreateLocConf(cf *bphase.Conf) (any, error) {
	if err := cf.Alloc(Name); err != nil {
		return nil, err
	}

	return &LocConf{}, nil
}

// MergeLocConf implements [bphase.LocConfMerger].
func (m *Module) MergeLocConf(_ *bphase.Conf, parent, child any) error {
	conf, ok := child.(*LocConf)
	if !ok {
		return errors.Newf("unexpected configuration record %T", child)
	}

	prev, _ := parent.(*LocConf)
	conf.Merge(prev)

	return nil
}

// Merge fills an unset Text with the parent's, or the empty text when the parent has none.
func (c *LocConf) Merge(prev *LocConf) {
	if c.isSet() {
		return
	}

	if prev.isSet() {
		c.Text = prev.Text
		return
	}

	c.Text = bphase.LiteralValue("")
}

func (c *LocConf) isSet() bool {
	return c != nil && c.Text != nil && !c.Text.IsEmpty()
}

// PostConfiguration implements [bphase.PostConfigurer].
func (m *Module) PostConfiguration(cf *bphase.Conf) error {
	return cf.Phases().Append(bphase.PhaseAccess, m.AccessHandler())
}

func (m *Module) setHandler(cf *bphase.Conf, _ any, _ []string) error {
	cf.Location().SetHandler(m.ContentHandler())
	return nil
}

func setText(_ *bphase.Conf, conf any, args []string) error {
	lc, ok := conf.(*LocConf)
	if !ok {
		return errors.Newf("unexpected configuration record %T", conf)
	}

	cv, err := bphase.CompileComplexValue(args[0])
	if err != nil {
		return err
	}

	lc.Text = cv

	return nil
}

var (
	_ bphase.LocConfCreator = &Module{}
	_ bphase.LocConfMerger  = &Module{}
	_ bphase.PostConfigurer = &Module{}
)
