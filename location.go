package bphase

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Location is a built configuration scope. It is immutable once the server is built.
type Location struct {
	path     string
	parent   *Location
	children []*Location
	confs    map[string]any
	handler  Handler
}

func newLocation(path string, parent *Location) *Location {
	loc := &Location{path: path, parent: parent, confs: map[string]any{}}
	if parent != nil {
		parent.children = append(parent.children, loc)
	}

	return loc
}

// Path returns the location's path prefix.
func (l *Location) Path() string { return l.path }

// Parent returns the enclosing location, nil for the root.
func (l *Location) Parent() *Location { return l.parent }

// Children returns the nested locations.
func (l *Location) Children() []*Location { return l.children }

// Conf returns module m's record for this location.
func (l *Location) Conf(m Module) any { return l.confs[m.Name()] }

// Handler returns the content handler installed for this location, if any.
func (l *Location) Handler() Handler { return l.handler }

// SetHandler installs h as the content handler of this location. Nested locations do not inherit it.
func (l *Location) SetHandler(h Handler) { l.handler = h }

// walk visits l and its descendants depth-first, parents before children.
func (l *Location) walk(fn func(*Location) error) error {
	if err := fn(l); err != nil {
		return err
	}

	for _, c := range l.children {
		if err := c.walk(fn); err != nil {
			return err
		}
	}

	return nil
}

func validateLocationPath(path, parent string) error {
	switch {
	case !strings.HasPrefix(path, "/"):
		return errors.New("path must start with '/'")
	case strings.ContainsAny(path, "{} \t"):
		return errors.New("path must not contain braces or whitespace")
	case !strings.HasPrefix(path, parent):
		return errors.Newf("path is outside of enclosing location %q", parent)
	}

	return nil
}
