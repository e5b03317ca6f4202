package bphase

import (
	"bytes"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrBufferFull is returned when a write would grow the response buffer past its limit.
var ErrBufferFull = errors.New("buffer is full")

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// ResponseBuffer is the buffered [ResponseWriter]. Status, headers and body are held in memory until the
// buffer is flushed, either explicitly through http.ResponseController or implicitly once the request has
// been served.
type ResponseBuffer struct {
	resp  http.ResponseWriter
	buf   *bytes.Buffer
	limit int

	header     http.Header
	snapshot   http.Header
	status     int
	headerSent bool
	flushed    bool
}

// NewResponseWriter wraps resp in a response buffer. A negative limit disables the size limit.
func NewResponseWriter(resp http.ResponseWriter, limit int) *ResponseBuffer {
	return newBufferResponse(resp, limit)
}

func newBufferResponse(resp http.ResponseWriter, limit int) *ResponseBuffer {
	buf, _ := bufPool.Get().(*bytes.Buffer)
	buf.Reset()

	return &ResponseBuffer{
		resp:   resp,
		buf:    buf,
		limit:  limit,
		header: make(http.Header),
	}
}

// Header returns the header map that will be sent on flush.
func (w *ResponseBuffer) Header() http.Header {
	return w.header
}

// WriteHeader records the status code. Like the standard library, only the first call has effect and the
// headers are captured at that moment.
func (w *ResponseBuffer) WriteHeader(statusCode int) {
	if w.snapshot != nil {
		return
	}

	w.status = statusCode
	w.snapshot = w.header.Clone()
}

// Write appends to the buffer.
func (w *ResponseBuffer) Write(p []byte) (int, error) {
	if w.limit >= 0 && w.buf.Len()+len(p) > w.limit {
		return 0, errors.Wrapf(ErrBufferFull, "write of %d bytes exceeds limit of %d", len(p), w.limit)
	}

	if w.snapshot == nil {
		w.WriteHeader(http.StatusOK)
	}

	return w.buf.Write(p)
}

// Status returns the status code the response will be sent with.
func (w *ResponseBuffer) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}

	return w.status
}

// Flushed reports whether any part of the response was written to the underlying writer through an
// explicit flush.
func (w *ResponseBuffer) Flushed() bool {
	return w.flushed
}

// Reset discards the buffered status, headers and body.
func (w *ResponseBuffer) Reset() {
	if w.flushed {
		panic("bphase: cannot reset, response already flushed")
	}

	w.buf.Reset()
	w.header = make(http.Header)
	w.snapshot = nil
	w.status = 0
}

// FlushError writes the buffer to the underlying writer and flushes that writer when it supports it. It is
// used by http.ResponseController.
func (w *ResponseBuffer) FlushError() error {
	if err := w.writeOut(); err != nil {
		return err
	}

	w.flushed = true

	return http.NewResponseController(w.resp).Flush()
}

// Flush implements http.Flusher.
func (w *ResponseBuffer) Flush() {
	_ = w.FlushError()
}

// FlushBuffer writes everything buffered so far to the underlying writer.
func (w *ResponseBuffer) FlushBuffer() error {
	return w.writeOut()
}

// Unwrap returns the underlying writer, for http.ResponseController.
func (w *ResponseBuffer) Unwrap() http.ResponseWriter {
	return w.resp
}

// Free returns the buffer to the pool. The writer must not be used afterwards.
func (w *ResponseBuffer) Free() {
	if w.buf == nil {
		return
	}

	bufPool.Put(w.buf)
	w.buf = nil
}

func (w *ResponseBuffer) writeOut() error {
	if !w.headerSent {
		hdr := w.snapshot
		if hdr == nil {
			hdr = w.header
		}

		dst := w.resp.Header()
		for k, v := range hdr {
			dst[k] = v
		}

		w.resp.WriteHeader(w.Status())
		w.headerSent = true
	}

	if w.buf.Len() == 0 {
		return nil
	}

	if _, err := w.buf.WriteTo(w.resp); err != nil {
		return errors.Wrap(err, "write buffered response")
	}

	return nil
}
