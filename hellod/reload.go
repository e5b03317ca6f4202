package hellod

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/advdv/bphase"
	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// BuildFunc builds a phase server from the current site file.
type BuildFunc func(ctx context.Context) (*bphase.Server, error)

// SiteHandler serves requests with the most recently built phase server. A reload that fails to build
// keeps the previous server in place.
type SiteHandler struct {
	current atomic.Pointer[bphase.Server]
	build   BuildFunc
	logs    *zap.Logger

	mu      sync.Mutex
	reloads int
}

// NewSiteHandler serves initial until the first successful reload.
func NewSiteHandler(initial *bphase.Server, build BuildFunc, logs *zap.Logger) *SiteHandler {
	h := &SiteHandler{build: build, logs: logs.Named("reload")}
	h.current.Store(initial)

	return h
}

// ServeHTTP implements http.Handler.
func (h *SiteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.current.Load().ServeHTTP(w, r)
}

// Current returns the server requests are routed to.
func (h *SiteHandler) Current() *bphase.Server {
	return h.current.Load()
}

// Reloads returns the number of successful reloads.
func (h *SiteHandler) Reloads() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.reloads
}

// Reload rebuilds the server. Requests in flight finish on the server they started on.
func (h *SiteHandler) Reload(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	srv, err := h.build(ctx)
	if err != nil {
		h.logs.Error("reload failed, keeping previous configuration", zap.Error(err))
		return errors.Wrap(err, "reload")
	}

	h.current.Store(srv)
	h.reloads++
	h.logs.Info("configuration reloaded", zap.Int("reloads", h.reloads))

	return nil
}

// watchDebounce is how long Watch waits for a burst of events on the site file to settle before reloading.
const watchDebounce = 100 * time.Millisecond

// Watch reloads whenever the file at path is written or replaced, until ctx is done. The directory is
// watched so that editors that save by renaming are noticed too. Events are debounced so that a truncate
// followed by a write reloads once.
func (h *SiteHandler) Watch(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()

	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "watch %s", filepath.Dir(path))
	}

	settle := time.NewTimer(watchDebounce)
	settle.Stop()

	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			settle.Reset(watchDebounce)
		case <-settle.C:
			_ = h.Reload(ctx)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			h.logs.Warn("watcher error", zap.Error(err))
		}
	}
}

// watchSiteHook starts watching the site file when HELLOD_WATCH_SITE is set.
func watchSiteHook(lc fx.Lifecycle, env Environment, h *SiteHandler, logger *zap.Logger) {
	if !env.watchSite() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)

				if err := h.Watch(ctx, env.siteFile()); err != nil {
					logger.Error("site watcher stopped", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()

			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
