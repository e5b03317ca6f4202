package helloworld

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/advdv/bphase"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Greeting returns the response body for text.
func Greeting(text string) string {
	return "Hello, " + text + "!\n"
}

// ContentHandler greets with the location's text, or with the client's User-Agent when the text is empty.
func (m *Module) ContentHandler() bphase.Handler {
	return bphase.HandlerFunc(func(ctx context.Context, w bphase.ResponseWriter, r *http.Request) error {
		bphase.Log(ctx).Debug("http hello_world handler", zap.String("uri", r.URL.Path))

		if _, err := io.Copy(io.Discard, r.Body); err != nil {
			return bphase.NewError(bphase.CodeInternalServerError, errors.Wrap(err, "discard request body"))
		}

		text := ""
		if lc := bphase.LocConf[*LocConf](ctx, m); lc != nil && lc.Text != nil {
			text = lc.Text.Evaluate(r)
		}

		if text == "" {
			text = r.UserAgent()
		}

		body := Greeting(text)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)

		if r.Method == http.MethodHead {
			return nil
		}

		if _, err := io.WriteString(w, body); err != nil {
			return errors.Wrap(err, "write greeting")
		}

		return nil
	})
}

// AccessHandler allows every request unless its User-Agent starts with a denied prefix.
func (m *Module) AccessHandler() bphase.Handler {
	return bphase.HandlerFunc(func(ctx context.Context, _ bphase.ResponseWriter, r *http.Request) error {
		ua := r.UserAgent()
		for _, p := range m.deniedAgents {
			if strings.HasPrefix(ua, p) {
				bphase.Log(ctx).Info("request denied", zap.String("user_agent", ua))
				return bphase.NewError(bphase.CodeForbidden, errors.Newf("user agent %q is denied", ua))
			}
		}

		return nil
	})
}
