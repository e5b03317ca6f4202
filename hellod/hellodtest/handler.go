package hellodtest

import (
	"net/http"
	"net/http/httptest"

	"github.com/advdv/bphase"
)

// CallHandler invokes a [bphase.Handler] with a buffered response writer and
// returns the recorded response together with the handler's error. The buffer
// is flushed only when the handler succeeded.
func CallHandler(handler bphase.Handler, req *http.Request) (*httptest.ResponseRecorder, error) {
	rec := httptest.NewRecorder()
	w := bphase.NewResponseWriter(rec, -1)
	defer w.Free()

	if err := handler.ServeBHTTP(req.Context(), w, req); err != nil {
		return rec, err
	}

	if err := w.FlushBuffer(); err != nil {
		panic("hellodtest: FlushBuffer failed: " + err.Error())
	}

	return rec, nil
}
