package bphase

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Scope tells in which blocks a directive may appear.
type Scope int

const (
	// ScopeLocation directives may appear in any block, the root block included.
	ScopeLocation Scope = iota
	// ScopeMain directives may only appear in the root block.
	ScopeMain
)

// Args tells how many arguments a directive takes.
type Args int

const (
	NoArgs Args = iota
	Take1
	TakeAny
)

func (a Args) accepts(n int) bool {
	switch a {
	case NoArgs:
		return n == 0
	case Take1:
		return n == 1
	default:
		return true
	}
}

func (a Args) String() string {
	switch a {
	case NoArgs:
		return "no arguments"
	case Take1:
		return "exactly one argument"
	default:
		return "any number of arguments"
	}
}

// SetFunc stores a directive's arguments. conf is the module's record for the location being configured, or nil
// when the module keeps no per-location configuration.
type SetFunc func(cf *Conf, conf any, args []string) error

// Directive is one entry of a module's directive table.
type Directive struct {
	Name  string
	Scope Scope
	Args  Args
	Set   SetFunc
}

type directiveEntry struct {
	module Module
	dir    Directive
}

// directiveTable maps directive names to the declaring module.
type directiveTable map[string]directiveEntry

func newDirectiveTable(modules []Module) (directiveTable, error) {
	tbl := directiveTable{}
	for _, m := range modules {
		for _, d := range m.Directives() {
			if d.Name == "" || d.Set == nil {
				return nil, errors.Newf("bphase: module %s declares an incomplete directive %q", m.Name(), d.Name)
			}

			if prev, exists := tbl[d.Name]; exists {
				return nil, errors.Newf("bphase: directive %q declared by both %s and %s",
					d.Name, prev.module.Name(), m.Name())
			}

			tbl[d.Name] = directiveEntry{m, d}
		}
	}

	return tbl, nil
}

func (tbl directiveTable) names() []string {
	names := lo.Keys(tbl)
	slices.Sort(names)

	return names
}

// apply validates and runs the directives of one block.
func (tbl directiveTable) apply(cf *Conf, stmts [][]string, isRoot bool) error {
	seen := map[string]bool{}
	for _, stmt := range stmts {
		if len(stmt) == 0 || strings.TrimSpace(stmt[0]) == "" {
			return &ConfError{Location: cf.loc.path, Err: errors.New("empty directive")}
		}

		name, args := strings.TrimSpace(stmt[0]), stmt[1:]

		ent, ok := tbl[name]
		if !ok {
			return &ConfError{Location: cf.loc.path, Directive: name, Err: errors.Newf(
				"unknown directive, known: %s", strings.Join(tbl.names(), ", "))}
		}

		if ent.dir.Scope == ScopeMain && !isRoot {
			return &ConfError{Location: cf.loc.path, Directive: name, Err: errors.New("not allowed here")}
		}

		if !ent.dir.Args.accepts(len(args)) {
			return &ConfError{Location: cf.loc.path, Directive: name, Err: errors.Newf(
				"invalid number of arguments: takes %s, got %d", ent.dir.Args, len(args))}
		}

		if seen[name] {
			return &ConfError{Location: cf.loc.path, Directive: name, Err: errors.New("is duplicate")}
		}

		seen[name] = true

		if err := ent.dir.Set(cf, cf.loc.confs[ent.module.Name()], args); err != nil {
			return &ConfError{Location: cf.loc.path, Directive: name, Err: err}
		}
	}

	return nil
}
