package helloworld_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/advdv/bphase"
	"github.com/advdv/bphase/helloworld"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func build(t *testing.T, root bphase.Block, opts ...bphase.BuildOption) (*bphase.Server, *helloworld.Module) {
	t.Helper()

	mod := helloworld.New()
	srv, err := bphase.Build(context.Background(), root,
		append([]bphase.BuildOption{bphase.WithModules(mod), bphase.WithLogger(bphase.NewTestLogger(t))}, opts...)...)
	require.NoError(t, err)

	return srv, mod
}

func effectiveText(t *testing.T, srv *bphase.Server, mod *helloworld.Module, path string) string {
	t.Helper()

	loc, ok := srv.Location(path)
	require.True(t, ok, "location %q", path)

	lc, ok := loc.Conf(mod).(*helloworld.LocConf)
	require.True(t, ok)
	require.NotNil(t, lc.Text, "merged text must never be nil")

	return lc.Text.String()
}

func serve(srv http.Handler, method, path, ua string) *httptest.ResponseRecorder {
	rec, req := httptest.NewRecorder(), httptest.NewRequest(method, path, nil)
	req.Header.Set("User-Agent", ua)
	srv.ServeHTTP(rec, req)

	return rec
}

func TestMergeInheritsFromParent(t *testing.T) {
	srv, mod := build(t, bphase.Block{Locations: []bphase.Block{{
		Location:   "/a",
		Directives: [][]string{{"hello_world_text", "X"}},
		Locations:  []bphase.Block{{Location: "/a/b", Directives: [][]string{{"hello_world"}}}},
	}}})

	require.Equal(t, "X", effectiveText(t, srv, mod, "/a/b"))

	rec := serve(srv, http.MethodGet, "/a/b", "test")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Hello, X!\n", rec.Body.String())
}

func TestMergeChildOverrides(t *testing.T) {
	srv, mod := build(t, bphase.Block{
		Directives: [][]string{{"hello_world_text", "X"}},
		Locations: []bphase.Block{{
			Location:   "/a",
			Directives: [][]string{{"hello_world"}, {"hello_world_text", "Y"}},
		}},
	})

	require.Equal(t, "X", effectiveText(t, srv, mod, "/"))
	require.Equal(t, "Y", effectiveText(t, srv, mod, "/a"))
	require.Equal(t, "Hello, Y!\n", serve(srv, http.MethodGet, "/a", "test").Body.String())
}

func TestMergeDefaultsToEmpty(t *testing.T) {
	srv, mod := build(t, bphase.Block{Locations: []bphase.Block{{
		Location:  "/a",
		Locations: []bphase.Block{{Location: "/a/b"}},
	}}})

	for _, path := range []string{"/", "/a", "/a/b"} {
		require.Empty(t, effectiveText(t, srv, mod, path), path)
	}
}

func TestMergeEmptyTextCountsAsUnset(t *testing.T) {
	srv, mod := build(t, bphase.Block{
		Directives: [][]string{{"hello_world_text", "X"}},
		Locations:  []bphase.Block{{Location: "/a", Directives: [][]string{{"hello_world_text", ""}}}},
	})

	require.Equal(t, "X", effectiveText(t, srv, mod, "/a"))
}

func TestMergeUnit(t *testing.T) {
	parent := &helloworld.LocConf{Text: bphase.LiteralValue("X")}

	child := &helloworld.LocConf{}
	child.Merge(parent)
	assert.Equal(t, "X", child.Text.String())

	child = &helloworld.LocConf{Text: bphase.LiteralValue("Y")}
	child.Merge(parent)
	assert.Equal(t, "Y", child.Text.String())

	child = &helloworld.LocConf{}
	child.Merge(nil)
	require.NotNil(t, child.Text)
	assert.True(t, child.Text.IsEmpty())
}

func TestContentHandler(t *testing.T) {
	srv, _ := build(t, bphase.Block{Locations: []bphase.Block{
		{Location: "/hello", Directives: [][]string{{"hello_world"}, {"hello_world_text", "world"}}},
		{Location: "/agent", Directives: [][]string{{"hello_world"}}},
		{Location: "/vars", Directives: [][]string{{"hello_world"}, {"hello_world_text", "$arg_name at ${uri}"}}},
	}})

	t.Run("fixed text", func(t *testing.T) {
		rec := serve(srv, http.MethodGet, "/hello", "curl/8.0")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "Hello, world!\n", rec.Body.String())
		require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
		require.Equal(t, "14", rec.Header().Get("Content-Length"))
	})

	t.Run("subtree of the location", func(t *testing.T) {
		rec := serve(srv, http.MethodGet, "/hello/deeper", "test")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "Hello, world!\n", rec.Body.String())
	})

	t.Run("falls back to user agent", func(t *testing.T) {
		rec := serve(srv, http.MethodGet, "/agent", "Mozilla/5.0")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "Hello, Mozilla/5.0!\n", rec.Body.String())
	})

	t.Run("variables", func(t *testing.T) {
		rec := serve(srv, http.MethodGet, "/vars/x?name=bob", "test")
		require.Equal(t, "Hello, bob at /vars/x!\n", rec.Body.String())
	})

	t.Run("head has no body", func(t *testing.T) {
		rec := serve(srv, http.MethodHead, "/hello", "test")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Body.String())
		require.Equal(t, "14", rec.Header().Get("Content-Length"))
	})

	t.Run("request body is discarded", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/hello", strings.NewReader("ignored"))
		srv.ServeHTTP(rec, req)
		require.Equal(t, "Hello, world!\n", rec.Body.String())
	})

	t.Run("not installed elsewhere", func(t *testing.T) {
		rec := serve(srv, http.MethodGet, "/other", "test")
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestContentHandlerNotInherited(t *testing.T) {
	srv, _ := build(t, bphase.Block{Locations: []bphase.Block{{
		Location:   "/a",
		Directives: [][]string{{"hello_world"}},
		Locations:  []bphase.Block{{Location: "/a/b"}},
	}}})

	require.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/a", "t").Code)
	require.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/a/b", "t").Code)
}

func TestAccessHandlerAlwaysAllows(t *testing.T) {
	srv, _ := build(t, bphase.Block{Directives: [][]string{{"hello_world"}}})

	require.Equal(t, 1, srv.Phases().Len(bphase.PhaseAccess))

	for _, ua := range []string{"", "curl/8.4.0", "Mozilla/5.0", "Go-http-client/1.1"} {
		rec := serve(srv, http.MethodGet, "/anything", ua)
		require.Equal(t, http.StatusOK, rec.Code, ua)
	}

	h := helloworld.New().AccessHandler()
	w := bphase.NewResponseWriter(httptest.NewRecorder(), -1)
	defer w.Free()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, h.ServeBHTTP(req.Context(), w, req))
}

func TestAccessHandlerDeniedPrefixes(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	mod := helloworld.New(helloworld.WithDeniedUserAgentPrefixes("curl", "", "curl"))
	require.Equal(t, []string{"curl"}, mod.DeniedUserAgentPrefixes())

	srv, err := bphase.Build(context.Background(),
		bphase.Block{Directives: [][]string{{"hello_world"}}},
		bphase.WithModules(mod), bphase.WithZap(zap.New(core)))
	require.NoError(t, err)

	rec := serve(srv, http.MethodGet, "/", "curl/8.4.0")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, 1, logs.FilterMessage("request denied").Len())

	rec = serve(srv, http.MethodGet, "/", "Mozilla/5.0")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestContentHandlerDebugLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	srv, _ := build(t, bphase.Block{Directives: [][]string{{"hello_world"}}}, bphase.WithZap(zap.New(core)))
	serve(srv, http.MethodGet, "/", "test")

	require.Equal(t, 1, logs.FilterMessage("http hello_world handler").Len())
}

func TestDirectiveErrors(t *testing.T) {
	for name, root := range map[string]bphase.Block{
		"hello_world with argument":    {Directives: [][]string{{"hello_world", "x"}}},
		"hello_world_text without arg": {Directives: [][]string{{"hello_world_text"}}},
		"hello_world_text two args":    {Directives: [][]string{{"hello_world_text", "a", "b"}}},
		"unknown variable":             {Directives: [][]string{{"hello_world_text", "$nope"}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := bphase.Build(context.Background(), root, bphase.WithModules(helloworld.New()))

			var cerr *bphase.ConfError
			require.ErrorAs(t, err, &cerr)
			require.Equal(t, "/", cerr.Location)
		})
	}
}

func TestCreateLocConfExhaustion(t *testing.T) {
	pool := bphase.NewBoundedPool(2)

	var (
		srv *bphase.Server
		err error
	)

	require.NotPanics(t, func() {
		srv, err = bphase.Build(context.Background(), bphase.Block{Locations: []bphase.Block{
			{Location: "/a"}, {Location: "/b"},
		}}, bphase.WithModules(helloworld.New()), bphase.WithPool(pool))
	})

	require.Nil(t, srv)
	require.ErrorIs(t, err, bphase.ErrPoolExhausted)
	require.Contains(t, err.Error(), "/b")
	require.Equal(t, 2, pool.Used())
}
