package bphase

import (
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Block is the unbuilt configuration of one location scope. The root block is the server scope and always
// covers "/".
type Block struct {
	Location   string     `yaml:"location"`
	Directives [][]string `yaml:"directives"`
	Locations  []Block    `yaml:"locations"`
}

// ErrPoolExhausted is returned by a bounded [Pool] that cannot hand out another configuration record.
var ErrPoolExhausted = errors.New("configuration pool exhausted")

// Pool accounts for the configuration records modules create while the server is built.
type Pool interface {
	Alloc(owner string) error
}

type unboundedPool struct{}

func (unboundedPool) Alloc(string) error { return nil }

// BoundedPool allows a fixed number of allocations.
type BoundedPool struct {
	limit int64
	used  atomic.Int64
}

// NewBoundedPool returns a pool that allows n allocations. A non-positive n allows none.
func NewBoundedPool(n int) *BoundedPool {
	return &BoundedPool{limit: int64(n)}
}

// Alloc implements [Pool].
func (p *BoundedPool) Alloc(owner string) error {
	if p.used.Add(1) > p.limit {
		p.used.Add(-1)
		return errors.Wrapf(ErrPoolExhausted, "allocate record for %s (limit %d)", owner, p.limit)
	}

	return nil
}

// Used returns the number of successful allocations.
func (p *BoundedPool) Used() int {
	return int(p.used.Load())
}

// Conf is handed to module hooks and directive setters while the server is built.
type Conf struct {
	loc    *Location
	pool   Pool
	logs   *zap.Logger
	phases *Phases
}

// Location returns the scope currently being configured.
func (cf *Conf) Location() *Location { return cf.loc }

// Logger returns the build logger.
func (cf *Conf) Logger() *zap.Logger { return cf.logs }

// Phases returns the phase handler arrays. Only modules' post-configuration hooks should append to them.
func (cf *Conf) Phases() *Phases { return cf.phases }

// Alloc reserves one configuration record for owner from the build's pool.
func (cf *Conf) Alloc(owner string) error {
	return cf.pool.Alloc(owner)
}

// ConfError reports an invalid directive or a failing module hook.
type ConfError struct {
	Location  string
	Directive string
	Err       error
}

func (e *ConfError) Error() string {
	if e.Directive == "" {
		return fmt.Sprintf("location %q: %s", e.Location, e.Err)
	}

	return fmt.Sprintf("location %q: directive %q: %s", e.Location, e.Directive, e.Err)
}

func (e *ConfError) Unwrap() error { return e.Err }
