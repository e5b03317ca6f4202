package bphase

import (
	"context"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Server routes requests to locations and drives them through the phases. It is built once from a [Block]
// tree and is safe for concurrent use.
type Server struct {
	root      *Location
	locations map[string]*Location
	phases    *Phases
	modules   []Module
	mux       *http.ServeMux
}

// BuildOption configures [Build].
type BuildOption func(*buildConfig)

type buildConfig struct {
	modules     []Module
	pool        Pool
	zap         *zap.Logger
	logs        Logger
	bufLimit    int
	middlewares []Middleware
}

// WithModules adds modules. Their directives, hooks and phase handlers are applied in the given order.
func WithModules(m ...Module) BuildOption {
	return func(c *buildConfig) { c.modules = append(c.modules, m...) }
}

// WithPool sets the pool configuration records are accounted against. Defaults to an unbounded pool.
func WithPool(p Pool) BuildOption {
	return func(c *buildConfig) { c.pool = p }
}

// WithZap sets the logger used while building and handed to requests through [Log].
func WithZap(l *zap.Logger) BuildOption {
	return func(c *buildConfig) { c.zap = l }
}

// WithLogger sets the receiver of serve errors. Defaults to one derived from the zap logger.
func WithLogger(l Logger) BuildOption {
	return func(c *buildConfig) { c.logs = l }
}

// WithBufferLimit limits the size of buffered response bodies. Negative means unlimited, the default.
func WithBufferLimit(n int) BuildOption {
	return func(c *buildConfig) { c.bufLimit = n }
}

// WithMiddleware wraps every location's phase chain. Middleware sees the request before the post-read
// phase and the error after the content phase. The log phase runs outside of it and reports the status the
// middleware settled on.
func WithMiddleware(mw ...Middleware) BuildOption {
	return func(c *buildConfig) { c.middlewares = append(c.middlewares, mw...) }
}

// Build creates the server for the location tree rooted at root. Configuration records are created for every
// location, the directives applied, records merged from parent to child and finally the modules'
// post-configuration hooks run.
func Build(ctx context.Context, root Block, opts ...BuildOption) (*Server, error) {
	cfg := buildConfig{pool: unboundedPool{}, zap: zap.NewNop(), bufLimit: -1}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.logs == nil {
		cfg.logs = NewZapLogger(cfg.zap)
	}

	if dup := lo.FindDuplicatesBy(cfg.modules, Module.Name); len(dup) > 0 {
		return nil, errors.Newf("bphase: module %q registered more than once", dup[0].Name())
	}

	tbl, err := newDirectiveTable(cfg.modules)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		locations: map[string]*Location{},
		phases:    &Phases{},
		modules:   cfg.modules,
		mux:       http.NewServeMux(),
	}

	if root.Location != "" && root.Location != "/" {
		return nil, &ConfError{Location: root.Location, Err: errors.New("root block must cover \"/\"")}
	}

	root.Location = "/"

	var blocks map[*Location]Block
	if srv.root, blocks, err = srv.createLocations(ctx, &cfg, root, nil); err != nil {
		return nil, err
	}

	if err := srv.configure(&cfg, tbl, blocks); err != nil {
		return nil, err
	}

	srv.phases.sealed = true
	srv.register(&cfg)

	cfg.zap.Debug("server built",
		zap.Int("locations", len(srv.locations)),
		zap.Int("access_handlers", srv.phases.Len(PhaseAccess)),
		zap.Strings("modules", lo.Map(cfg.modules, func(m Module, _ int) string { return m.Name() })))

	return srv, nil
}

// createLocations allocates the location tree and every module's zero record for each location.
func (s *Server) createLocations(
	ctx context.Context, cfg *buildConfig, b Block, parent *Location,
) (*Location, map[*Location]Block, error) {
	blocks := map[*Location]Block{}

	var create func(b Block, parent *Location) (*Location, error)
	create = func(b Block, parent *Location) (*Location, error) {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "build interrupted")
		}

		path := strings.TrimSpace(b.Location)
		if parent != nil {
			if err := validateLocationPath(path, parent.path); err != nil {
				return nil, &ConfError{Location: path, Err: err}
			}
		}

		if _, exists := s.locations[path]; exists {
			return nil, &ConfError{Location: path, Err: errors.New("duplicate location")}
		}

		loc := newLocation(path, parent)
		s.locations[path] = loc
		blocks[loc] = b

		if err := createLocConfs(s.conf(cfg, loc), cfg.modules); err != nil {
			return nil, err
		}

		for _, cb := range b.Locations {
			if _, err := create(cb, loc); err != nil {
				return nil, err
			}
		}

		return loc, nil
	}

	root, err := create(b, parent)

	return root, blocks, err
}

func (s *Server) configure(cfg *buildConfig, tbl directiveTable, blocks map[*Location]Block) error {
	if err := s.root.walk(func(loc *Location) error {
		return tbl.apply(s.conf(cfg, loc), blocks[loc].Directives, loc == s.root)
	}); err != nil {
		return err
	}

	if err := s.root.walk(func(loc *Location) error {
		return mergeLocConfs(s.conf(cfg, loc), cfg.modules, loc.parent)
	}); err != nil {
		return err
	}

	for _, m := range cfg.modules {
		pc, ok := m.(PostConfigurer)
		if !ok {
			continue
		}

		if err := pc.PostConfiguration(s.conf(cfg, s.root)); err != nil {
			return errors.Wrapf(err, "post-configuration of %s", m.Name())
		}
	}

	return nil
}

// register mounts every location on the mux. A location "/a" serves "/a" and the subtree "/a/" unless the
// latter is a location of its own.
func (s *Server) register(cfg *buildConfig) {
	_ = s.root.walk(func(loc *Location) error {
		mws := make([]Middleware, 0, 3+len(cfg.middlewares))
		mws = append(mws, withLocation(loc), WithRequestLogger(cfg.zap), s.phases.logPhase(cfg.logs))
		mws = append(mws, cfg.middlewares...)

		h := ToStd(Wrap(s.phases.chain(loc), mws...), cfg.bufLimit, cfg.logs)

		s.mux.Handle(loc.path, h)
		if !strings.HasSuffix(loc.path, "/") {
			if _, exists := s.locations[loc.path+"/"]; !exists {
				s.mux.Handle(loc.path+"/", h)
			}
		}

		return nil
	})
}

func (s *Server) conf(cfg *buildConfig, loc *Location) *Conf {
	return &Conf{loc: loc, pool: cfg.pool, logs: cfg.zap, phases: s.phases}
}

// ServeHTTP makes the server implement the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Root returns the server scope.
func (s *Server) Root() *Location { return s.root }

// Location returns the location declared with exactly path.
func (s *Server) Location(path string) (*Location, bool) {
	loc, ok := s.locations[path]
	return loc, ok
}

// Phases returns the installed phase handlers.
func (s *Server) Phases() *Phases { return s.phases }

// Modules returns the modules the server was built with.
func (s *Server) Modules() []Module { return s.modules }
