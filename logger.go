package bphase

import (
	"log"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

// Logger can be implemented to get informed about important states.
type Logger interface {
	LogUnhandledServeError(err error)
	LogImplicitFlushError(err error)
	LogPhaseError(phase Phase, err error)
}

type stdLogger struct{ *log.Logger }

func (l stdLogger) LogUnhandledServeError(err error) {
	l.Logger.Printf("bphase: unhandled server error: %s", err)
}

func (l stdLogger) LogImplicitFlushError(err error) {
	l.Logger.Printf("bphase: error while flushing implicitly: %s", err)
}

func (l stdLogger) LogPhaseError(phase Phase, err error) {
	l.Logger.Printf("bphase: %s phase error: %s", phase, err)
}

// NewStdLogger adapts a standard library logger.
func NewStdLogger(l *log.Logger) Logger {
	return stdLogger{l}
}

type zapLogger struct{ *zap.Logger }

func (l zapLogger) LogUnhandledServeError(err error) {
	l.Logger.Error("unhandled server error", zap.Error(err))
}

func (l zapLogger) LogImplicitFlushError(err error) {
	l.Logger.Error("error while flushing implicitly", zap.Error(err))
}

func (l zapLogger) LogPhaseError(phase Phase, err error) {
	l.Logger.Warn("phase handler error", zap.Stringer("phase", phase), zap.Error(err))
}

// NewZapLogger adapts a zap logger.
func NewZapLogger(l *zap.Logger) Logger {
	return zapLogger{l.Named("bphase")}
}

type TestLogger struct {
	tb testing.TB

	NumLogUnhandledServeError int64
	NumLogImplicitFlushError  int64
	NumLogPhaseError          int64
}

func NewTestLogger(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) LogUnhandledServeError(err error) {
	atomic.AddInt64(&l.NumLogUnhandledServeError, 1)
	l.tb.Logf("bphase: unhandled server error: %s", err)
}

func (l *TestLogger) LogImplicitFlushError(err error) {
	atomic.AddInt64(&l.NumLogImplicitFlushError, 1)
	l.tb.Logf("bphase: error while flushing implicitly: %s", err)
}

func (l *TestLogger) LogPhaseError(phase Phase, err error) {
	atomic.AddInt64(&l.NumLogPhaseError, 1)
	l.tb.Logf("bphase: %s phase error: %s", phase, err)
}

var (
	_ Logger = &TestLogger{}
	_ Logger = zapLogger{}
)
