package service

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Middleware describes a service (as opposed to endpoint) middleware.
type Middleware func(Service) Service

// LoggingMiddleware takes a logger as a dependency and returns a service
// Middleware. Client faults are logged at debug, server faults at error.
func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) Health(ctx context.Context) (err error) {
	defer func() {
		level.Debug(mw.logger).Log("method", "health", "err", err)
	}()
	return mw.next.Health(ctx)
}

func (mw loggingMiddleware) Execute(ctx context.Context, op Operation) (v interface{}, err error) {
	defer func(begin time.Time) {
		logger := level.Info(mw.logger)
		if err != nil {
			if KindOf(err).ClientFault() {
				logger = level.Debug(mw.logger)
			} else {
				logger = level.Error(mw.logger)
			}
		}
		keyvals := []interface{}{"method", "execute", "operation", op.Name(), "took", time.Since(begin)}
		if err != nil {
			keyvals = append(keyvals, "kind", KindOf(err), "err", err)
			if cause := errorCause(err); cause != nil {
				keyvals = append(keyvals, "cause", cause)
			}
		}
		logger.Log(keyvals...)
	}(time.Now())
	return mw.next.Execute(ctx, op)
}

// InstrumentingMiddleware counts every executed operation by name and
// outcome, where outcome is "success" or the error kind.
func InstrumentingMiddleware(operations metrics.Counter) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{operations: operations, next: next}
	}
}

type instrumentingMiddleware struct {
	operations metrics.Counter
	next       Service
}

func (mw instrumentingMiddleware) Health(ctx context.Context) error {
	return mw.next.Health(ctx)
}

func (mw instrumentingMiddleware) Execute(ctx context.Context, op Operation) (interface{}, error) {
	v, err := mw.next.Execute(ctx, op)
	outcome := "success"
	if err != nil {
		outcome = KindOf(err).String()
	}
	mw.operations.With("operation", op.Name(), "outcome", outcome).Add(1)
	return v, err
}

func errorCause(err error) error {
	if e, ok := err.(*Error); ok {
		return e.Err
	}
	return nil
}
