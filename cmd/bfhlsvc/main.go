package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"syscall"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	stdzipkin "github.com/openzipkin/zipkin-go"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bfhl/bfhlsvc/pkg/ai"
	"github.com/bfhl/bfhlsvc/pkg/bfhlendpoint"
	"github.com/bfhl/bfhlsvc/pkg/bfhltransport"
	"github.com/bfhl/bfhlsvc/pkg/config"
	"github.com/bfhl/bfhlsvc/pkg/service"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bfhlsvc: %v\n", err)
		os.Exit(2)
	}

	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		logger = level.NewFilter(logger, allowLevel(cfg.LogLevel))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	var tracer *stdzipkin.Tracer
	if cfg.ZipkinURL != "" {
		level.Info(logger).Log("tracer", "Zipkin", "URL", cfg.ZipkinURL)
		reporter := zipkinhttp.NewReporter(cfg.ZipkinURL)
		defer reporter.Close()
		zEP, _ := stdzipkin.NewEndpoint("bfhlsvc", cfg.HTTPAddr)
		tracer, err = stdzipkin.NewTracer(reporter, stdzipkin.WithLocalEndpoint(zEP))
		if err != nil {
			level.Error(logger).Log("during", "NewTracer", "err", err)
			os.Exit(1)
		}
	}

	// Business-level metrics.
	var operations metrics.Counter
	{
		operations = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: "bfhl",
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Operations executed, by operation and outcome.",
		}, []string{"operation", "outcome"})
	}
	// Endpoint-level metrics.
	var duration metrics.Histogram
	{
		duration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "bfhl",
			Subsystem: "service",
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{"method", "success"})
	}

	answerer, err := newAnswerer(context.Background(), cfg, log.With(logger, "component", "ai"))
	if err != nil {
		level.Error(logger).Log("component", "ai", "during", "NewGemini", "err", err)
		os.Exit(1)
	}

	var (
		svc = service.New(answerer, cfg.AITimeout,
			service.LoggingMiddleware(log.With(logger, "component", "service")),
			service.InstrumentingMiddleware(operations),
		)
		endpoints   = bfhlendpoint.New(svc, logger, duration)
		httpHandler = bfhltransport.NewHTTPHandler(endpoints, bfhltransport.Options{
			Email:        cfg.OfficialEmail,
			Validator:    service.Validator{MaxFibonacci: cfg.MaxFibonacci},
			MaxBodyBytes: cfg.MaxBodyBytes,
			CORSOrigin:   cfg.CORSOrigin,
			Tracer:       tracer,
		}, logger)
	)

	var g run.Group
	{
		debugListener, err := net.Listen("tcp", cfg.DebugAddr)
		if err != nil {
			level.Error(logger).Log("transport", "debug/HTTP", "during", "Listen", "err", err)
			os.Exit(1)
		}
		m := http.NewServeMux()
		m.Handle("/metrics", promhttp.Handler())
		m.HandleFunc("/debug/pprof/", pprof.Index)
		m.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		m.HandleFunc("/debug/pprof/profile", pprof.Profile)
		m.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		m.HandleFunc("/debug/pprof/trace", pprof.Trace)
		g.Add(func() error {
			level.Info(logger).Log("transport", "debug/HTTP", "addr", cfg.DebugAddr)
			return http.Serve(debugListener, m)
		}, func(error) {
			debugListener.Close()
		})
	}
	{
		httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			level.Error(logger).Log("transport", "HTTP", "during", "Listen", "err", err)
			os.Exit(1)
		}
		srv := &http.Server{
			Handler:           httpHandler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      cfg.AITimeout + 5*time.Second,
			IdleTimeout:       60 * time.Second,
		}
		g.Add(func() error {
			level.Info(logger).Log("transport", "HTTP", "addr", cfg.HTTPAddr)
			if err := srv.Serve(httpListener); err != http.ErrServerClosed {
				return err
			}
			return nil
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				level.Warn(logger).Log("transport", "HTTP", "during", "Shutdown", "err", err)
			}
		})
	}
	{
		g.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))
	}
	level.Info(logger).Log("exit", g.Run())
}

// newAnswerer builds the Gemini client described by cfg, or ai.Unconfigured
// when no key is set, and decorates it with logging and the optional breaker.
func newAnswerer(ctx context.Context, cfg config.Config, logger log.Logger) (ai.Answerer, error) {
	var answerer ai.Answerer = ai.Unconfigured
	if cfg.GeminiAPIKey == "" {
		level.Warn(logger).Log("msg", "no Gemini API key; AI requests will fail")
	} else {
		gemini, err := ai.NewGemini(ctx, ai.GeminiConfig{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.GeminiModel,
			BaseURL:    cfg.GeminiBaseURL,
			APIVersion: cfg.GeminiAPIVersion,
			HTTPClient: &http.Client{Timeout: cfg.AITimeout},
		})
		if err != nil {
			return nil, err
		}
		answerer = gemini
	}
	answerer = ai.LoggingMiddleware(logger)(answerer)
	if cfg.BreakerFailures > 0 {
		answerer = ai.CircuitBreaker(ai.NewBreaker(uint32(cfg.BreakerFailures), cfg.BreakerCooldown))(answerer)
	}
	return answerer, nil
}

func allowLevel(name string) level.Option {
	switch name {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
