package bphase

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Phase is a stage of per-request processing. Phases run in the order they are declared.
type Phase int

const (
	// PhasePostRead runs right after the request was routed to a location.
	PhasePostRead Phase = iota
	// PhaseAccess decides whether the request may proceed to content generation.
	PhaseAccess
	// PhaseContent produces the response when the location has no content handler of its own.
	PhaseContent
	// PhaseLog runs after the response was produced. It cannot change the response.
	PhaseLog

	numPhases
)

func (p Phase) String() string {
	switch p {
	case PhasePostRead:
		return "post-read"
	case PhaseAccess:
		return "access"
	case PhaseContent:
		return "content"
	case PhaseLog:
		return "log"
	default:
		return "phase(" + strconv.Itoa(int(p)) + ")"
	}
}

// Phases holds the handlers installed into each phase. Modules append to it while the server is built, it is
// read-only afterwards.
type Phases struct {
	handlers [numPhases][]Handler
	sealed   bool
}

// Append installs h at the end of phase p's handler list.
func (ps *Phases) Append(p Phase, h Handler) error {
	if p < 0 || p >= numPhases {
		return errors.Newf("bphase: unknown phase %d", int(p))
	}

	if ps.sealed {
		return errors.Newf("bphase: cannot append to %s phase after the server was built", p)
	}

	ps.handlers[p] = append(ps.handlers[p], h)

	return nil
}

// Handlers returns the handlers of phase p in invocation order.
func (ps *Phases) Handlers(p Phase) []Handler {
	if p < 0 || p >= numPhases {
		return nil
	}

	return ps.handlers[p]
}

// Len returns the number of handlers installed into p.
func (ps *Phases) Len(p Phase) int {
	return len(ps.Handlers(p))
}

// ResponseStatus returns the status code the buffered response will be sent with. Log phase handlers use
// it.
func ResponseStatus(w http.ResponseWriter) int {
	if sw, ok := w.(interface{ Status() int }); ok {
		return sw.Status()
	}

	return http.StatusOK
}

// runChecks runs a phase whose handlers may only allow or end the request.
func (ps *Phases) runChecks(ctx context.Context, p Phase, w ResponseWriter, r *http.Request) error {
	for _, h := range ps.handlers[p] {
		if err := h.ServeBHTTP(ctx, w, r); err != nil && !errors.Is(err, ErrDeclined) {
			return errors.Wrapf(err, "%s phase", p)
		}
	}

	return nil
}

// runContent produces the response: the location's own handler wins, otherwise the content phase handlers
// are asked in order until one accepts the request.
func (ps *Phases) runContent(ctx context.Context, loc *Location, w ResponseWriter, r *http.Request) error {
	if h := loc.Handler(); h != nil {
		return h.ServeBHTTP(ctx, w, r)
	}

	for _, h := range ps.handlers[PhaseContent] {
		err := h.ServeBHTTP(ctx, w, r)
		if errors.Is(err, ErrDeclined) {
			continue
		}

		return err
	}

	return NewError(CodeNotFound, errors.Newf("no content handler for location %q", loc.Path()))
}

// chain returns the bare handler that drives one request through the post-read, access and content phases
// for location loc.
func (ps *Phases) chain(loc *Location) BareHandler {
	return BareHandlerFunc(func(w ResponseWriter, r *http.Request) error {
		if fr, ok := r.Context().Value(ctxKeyFinalRequest).(*finalRequest); ok {
			fr.r = r
		}

		ctx := r.Context()

		err := ps.runChecks(ctx, PhasePostRead, w, r)
		if err == nil {
			err = ps.runChecks(ctx, PhaseAccess, w, r)
		}

		if err == nil {
			err = ps.runContent(ctx, loc, w, r)
		}

		return err
	})
}

// finalRequest holds the request as the phase chain received it, after every middleware had its say on the
// context.
type finalRequest struct{ r *http.Request }

// logPhase returns middleware that runs the log phase once the wrapped middleware returned, so the status
// log handlers see is derived from the error the client is answered with.
func (ps *Phases) logPhase(logs Logger) Middleware {
	return func(next BareHandler) BareHandler {
		return BareHandlerFunc(func(w ResponseWriter, r *http.Request) error {
			fr := &finalRequest{r: r}
			err := next.ServeBareBHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyFinalRequest, fr)))

			ps.runLog(context.WithoutCancel(fr.r.Context()), w, fr.r, err, logs)

			return err
		})
	}
}

// runLog never changes the outcome of the request, errors are only reported.
func (ps *Phases) runLog(ctx context.Context, w ResponseWriter, r *http.Request, reqErr error, logs Logger) {
	if len(ps.handlers[PhaseLog]) == 0 {
		return
	}

	lw := &logWriter{ResponseWriter: w, status: ResponseStatus(w)}
	if code := CodeOf(reqErr); code != CodeUnknown {
		lw.status = int(code)
	} else if reqErr != nil {
		lw.status = http.StatusInternalServerError
	}

	for _, h := range ps.handlers[PhaseLog] {
		if err := h.ServeBHTTP(ctx, lw, r); err != nil && !errors.Is(err, ErrDeclined) {
			logs.LogPhaseError(PhaseLog, err)
		}
	}
}

// logWriter reports the final status to log handlers, including the status of an error that is yet to be
// rendered.
type logWriter struct {
	ResponseWriter
	status int
}

func (w *logWriter) Status() int { return w.status }
