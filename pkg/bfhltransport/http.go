package bfhltransport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-kit/kit/endpoint"
	kitzipkin "github.com/go-kit/kit/tracing/zipkin"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	stdzipkin "github.com/openzipkin/zipkin-go"
	"github.com/pkg/errors"

	"github.com/bfhl/bfhlsvc/pkg/bfhlendpoint"
	"github.com/bfhl/bfhlsvc/pkg/service"
)

// DefaultMaxBodyBytes caps the size of a request body.
const DefaultMaxBodyBytes = 100 << 10

// Options configures the HTTP handler.
type Options struct {
	Email        string
	Validator    service.Validator
	MaxBodyBytes int64
	CORSOrigin   string            // empty disables CORS headers
	Tracer       *stdzipkin.Tracer // nil disables tracing
}

// NewHTTPHandler returns an HTTP handler that makes a set of endpoints
// available on predefined paths.
//
//	GET  /health  always succeeds
//	POST /bfhl    runs the operation named by the body's sole key
func NewHTTPHandler(endpoints bfhlendpoint.Set, opts Options, logger log.Logger) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	f := Formatter{Email: opts.Email}

	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(f.encodeError),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(level.Debug(logger))),
		httptransport.ServerFinalizer(accessLog(logger)),
	}
	traced := func(name string) []httptransport.ServerOption {
		if opts.Tracer == nil {
			return options
		}
		return append(options[:len(options):len(options)], kitzipkin.HTTPServerTrace(opts.Tracer, kitzipkin.Name(name)))
	}

	r := mux.NewRouter()
	r.Methods(http.MethodGet).Path("/health").Handler(httptransport.NewServer(
		endpoints.HealthEndpoint,
		decodeHTTPHealthRequest,
		f.encodeHTTPHealthResponse,
		traced("health")...,
	))
	r.Methods(http.MethodPost).Path("/bfhl").Handler(httptransport.NewServer(
		endpoints.ExecuteEndpoint,
		decodeHTTPExecuteRequest(opts.Validator, opts.MaxBodyBytes),
		f.encodeHTTPExecuteResponse,
		traced("execute")...,
	))
	r.NotFoundHandler = f.statusHandler(http.StatusNotFound, "route not found")
	r.MethodNotAllowedHandler = f.statusHandler(http.StatusMethodNotAllowed, "method not allowed")
	var h http.Handler = requestID(r)
	if opts.CORSOrigin != "" {
		h = accessControl(opts.CORSOrigin, h)
	}
	return h
}

func decodeHTTPHealthRequest(_ context.Context, _ *http.Request) (interface{}, error) {
	return bfhlendpoint.HealthRequest{}, nil
}

// decodeHTTPExecuteRequest returns a transport/http.DecodeRequestFunc that
// reads at most maxBytes of JSON and validates it into an operation.
func decodeHTTPExecuteRequest(v service.Validator, maxBytes int64) httptransport.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (interface{}, error) {
		body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, service.ErrMalformedRequest(fmt.Sprintf("request body exceeds %d bytes", maxBytes))
			}
			return nil, service.ErrMalformedRequest("request body could not be read")
		}
		op, err := v.Parse(body)
		if err != nil {
			return nil, err
		}
		return bfhlendpoint.ExecuteRequest{Op: op}, nil
	}
}

func (f Formatter) encodeHTTPHealthResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if fl, ok := response.(endpoint.Failer); ok && fl.Failed() != nil {
		f.encodeError(ctx, fl.Failed(), w)
		return nil
	}
	return writeJSON(w, http.StatusOK, f.Health())
}

func (f Formatter) encodeHTTPExecuteResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if fl, ok := response.(endpoint.Failer); ok && fl.Failed() != nil {
		f.encodeError(ctx, fl.Failed(), w)
		return nil
	}
	resp, ok := response.(bfhlendpoint.ExecuteResponse)
	if !ok {
		f.encodeError(ctx, service.ErrInternal(errors.Errorf("unexpected response type %T", response)), w)
		return nil
	}
	return writeJSON(w, http.StatusOK, f.Success(resp.Data))
}

// encodeError is a transport/http.ErrorEncoder. Every failure, whether from
// decoding or from the service, leaves through here.
func (f Formatter) encodeError(_ context.Context, err error, w http.ResponseWriter) {
	code, env := f.Failure(err)
	writeJSON(w, code, env)
}

// statusHandler answers requests the router cannot match.
func (f Formatter) statusHandler(code int, msg string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, code, Envelope{OfficialEmail: f.Email, Error: msg})
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

func accessLog(logger log.Logger) httptransport.ServerFinalizerFunc {
	return func(ctx context.Context, code int, r *http.Request) {
		logger.Log(
			"transport", "HTTP",
			"request_id", RequestID(ctx),
			"method", r.Method,
			"path", r.URL.Path,
			"code", code,
			"size", ctx.Value(httptransport.ContextKeyResponseSize),
		)
	}
}
