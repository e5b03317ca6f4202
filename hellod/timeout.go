package hellod

import (
	"context"
	"net/http"
	"time"

	"github.com/advdv/bphase"
	"github.com/cockroachdb/errors"
)

// DefaultRequestTimeout applies when HELLOD_REQUEST_TIMEOUT is not positive.
const DefaultRequestTimeout = 30 * time.Second

// TimeoutConfig holds timeout configuration for the HTTP server.
type TimeoutConfig struct {
	// RequestTimeout bounds the time a single request may take.
	RequestTimeout time.Duration
}

// ServerTimeouts returns the http.Server timeout values for the request timeout. The server-level write
// timeout leaves one second over the per-request deadline so that the error response can still be written.
func (tc TimeoutConfig) ServerTimeouts() (readHeaderTimeout, readTimeout, writeTimeout, idleTimeout time.Duration) {
	timeout := tc.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	readHeaderTimeout = min(timeout, 5*time.Second)
	readTimeout = timeout
	writeTimeout = timeout + time.Second
	idleTimeout = 2 * timeout

	return
}

// WithRequestTimeout returns middleware that bounds the request context by d. A request whose context
// expired ends with 504.
func WithRequestTimeout(d time.Duration) bphase.Middleware {
	if d <= 0 {
		d = DefaultRequestTimeout
	}

	return func(next bphase.BareHandler) bphase.BareHandler {
		return bphase.BareHandlerFunc(func(w bphase.ResponseWriter, r *http.Request) error {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			err := next.ServeBareBHTTP(w, r.WithContext(ctx))
			if err != nil && bphase.CodeOf(err) == bphase.CodeUnknown && errors.Is(err, context.DeadlineExceeded) {
				return bphase.NewError(bphase.CodeGatewayTimeout, err)
			}

			return err
		})
	}
}

// RequestRemainingTime returns the duration until the request context deadline.
// Returns 0 if no deadline is set or if the deadline has passed.
func RequestRemainingTime(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}

	return max(time.Until(deadline), 0)
}
