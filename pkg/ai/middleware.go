package ai

import (
	"context"
	"time"

	"github.com/go-kit/kit/circuitbreaker"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
)

// NewBreaker returns a circuit breaker that opens after failures consecutive
// upstream failures and stays open for cooldown.
func NewBreaker(failures uint32, cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "gemini",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	})
}

// CircuitBreaker guards an Answerer with cb. While the breaker is open calls
// fail immediately with gobreaker.ErrOpenState. Calls are never retried.
func CircuitBreaker(cb *gobreaker.CircuitBreaker) Middleware {
	return endpointMiddleware(circuitbreaker.Gobreaker(cb))
}

func endpointMiddleware(m endpoint.Middleware) Middleware {
	return func(next Answerer) Answerer {
		return endpointAnswerer{e: m(MakeAnswerEndpoint(next))}
	}
}

// LoggingMiddleware logs every answer with its latency. Failures carry the
// full cause, which is never shown to callers.
func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Answerer) Answerer {
		return AnswererFunc(func(ctx context.Context, question string) (answer string, err error) {
			defer func(begin time.Time) {
				logger.Log(
					"method", "answer",
					"question_len", len(question),
					"answer", answer,
					"took", time.Since(begin),
					"err", err,
				)
			}(time.Now())
			return next.Answer(ctx, question)
		})
	}
}

type answerRequest struct {
	Question string
}

type answerResponse struct {
	Answer string
}

// MakeAnswerEndpoint adapts an Answerer to a go-kit endpoint so endpoint
// middleware can wrap it.
func MakeAnswerEndpoint(a Answerer) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(answerRequest)
		v, err := a.Answer(ctx, req.Question)
		if err != nil {
			return nil, err
		}
		return answerResponse{Answer: v}, nil
	}
}

// endpointAnswerer forwards Answer calls through an endpoint built by
// MakeAnswerEndpoint.
type endpointAnswerer struct {
	e endpoint.Endpoint
}

func (a endpointAnswerer) Answer(ctx context.Context, question string) (string, error) {
	response, err := a.e(ctx, answerRequest{Question: question})
	if err != nil {
		return "", err
	}
	resp, ok := response.(answerResponse)
	if !ok {
		return "", errors.Errorf("unexpected response type %T", response)
	}
	return resp.Answer, nil
}
