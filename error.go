package bphase

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Code is an error code that mirrors the http status codes. Handlers return errors carrying a code to end the
// request with that status.
type Code int

const (
	CodeUnknown               Code = 0
	CodeBadRequest            Code = http.StatusBadRequest            // RFC 9110, 15.5.1
	CodeUnauthorized          Code = http.StatusUnauthorized          // RFC 9110, 15.5.2
	CodeForbidden             Code = http.StatusForbidden             // RFC 9110, 15.5.4
	CodeNotFound              Code = http.StatusNotFound              // RFC 9110, 15.5.5
	CodeMethodNotAllowed      Code = http.StatusMethodNotAllowed      // RFC 9110, 15.5.6
	CodeRequestTimeout        Code = http.StatusRequestTimeout        // RFC 9110, 15.5.9
	CodeRequestEntityTooLarge Code = http.StatusRequestEntityTooLarge // RFC 9110, 15.5.14
	CodeTooManyRequests       Code = http.StatusTooManyRequests       // RFC 6585, 4

	CodeInternalServerError Code = http.StatusInternalServerError // RFC 9110, 15.6.1
	CodeNotImplemented      Code = http.StatusNotImplemented      // RFC 9110, 15.6.2
	CodeServiceUnavailable  Code = http.StatusServiceUnavailable  // RFC 9110, 15.6.4
	CodeGatewayTimeout      Code = http.StatusGatewayTimeout      // RFC 9110, 15.6.5
)

// ErrDeclined is returned by a phase handler that has nothing to say about the request. The next handler in
// the phase runs.
var ErrDeclined = errors.New("declined")

// Error describes an http error.
type Error struct {
	code Code
	err  error
}

// NewError inits a new error given the error code.
func NewError(c Code, underlying error) *Error {
	return &Error{c, underlying}
}

func (e *Error) Code() Code    { return e.code }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Error() string {
	status := http.StatusText(int(e.Code()))
	if status == "" {
		status = "Unknown"
	}

	return fmt.Sprintf("%s: %s", status, e.err.Error())
}

// CodeOf returns the error's status code if it is or wraps an [*Error] and
// [CodeUnknown] otherwise.
func CodeOf(err error) Code {
	var herr *Error
	if errors.As(err, &herr) {
		return herr.Code()
	}

	return CodeUnknown
}
