package bfhlendpoint

import (
	"context"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/log"

	"github.com/bfhl/bfhlsvc/pkg/service"
)

// Set collects all of the endpoints that compose the bfhl service. It's meant
// to be used as a helper struct, to collect all of the endpoints into a
// single parameter.
type Set struct {
	HealthEndpoint  endpoint.Endpoint
	ExecuteEndpoint endpoint.Endpoint
}

// New returns a Set that wraps the provided service, and wires in all of the
// expected endpoint middlewares.
func New(svc service.Service, logger log.Logger, duration metrics.Histogram) Set {
	var healthEndpoint endpoint.Endpoint
	{
		healthEndpoint = MakeHealthEndpoint(svc)
		healthEndpoint = LoggingMiddleware(log.With(logger, "method", "health"))(healthEndpoint)
		healthEndpoint = InstrumentingMiddleware(duration.With("method", "health"))(healthEndpoint)
	}
	var executeEndpoint endpoint.Endpoint
	{
		executeEndpoint = MakeExecuteEndpoint(svc)
		executeEndpoint = LoggingMiddleware(log.With(logger, "method", "execute"))(executeEndpoint)
		executeEndpoint = InstrumentingMiddleware(duration.With("method", "execute"))(executeEndpoint)
	}
	return Set{
		HealthEndpoint:  healthEndpoint,
		ExecuteEndpoint: executeEndpoint,
	}
}

// MakeHealthEndpoint constructs a Health endpoint wrapping the service.
func MakeHealthEndpoint(s service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		err = s.Health(ctx)
		return HealthResponse{Err: err}, nil
	}
}

// MakeExecuteEndpoint constructs an Execute endpoint wrapping the service.
func MakeExecuteEndpoint(s service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(ExecuteRequest)
		v, err := s.Execute(ctx, req.Op)
		return ExecuteResponse{Data: v, Err: err}, nil
	}
}

// compile time assertions for our response types implementing endpoint.Failer.
var (
	_ endpoint.Failer = HealthResponse{}
	_ endpoint.Failer = ExecuteResponse{}
)

// HealthRequest collects the request parameters for the Health method.
type HealthRequest struct{}

// HealthResponse collects the response values for the Health method.
type HealthResponse struct {
	Err error
}

// Failed implements endpoint.Failer.
func (r HealthResponse) Failed() error { return r.Err }

// ExecuteRequest carries a validated operation.
type ExecuteRequest struct {
	Op service.Operation
}

// ExecuteResponse collects the response values for the Execute method.
type ExecuteResponse struct {
	Data interface{}
	Err  error // should be intercepted by Failed/errorEncoder
}

// Failed implements endpoint.Failer.
func (r ExecuteResponse) Failed() error { return r.Err }
