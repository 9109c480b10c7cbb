// Package service implements the bfhl operations: request validation,
// dispatch to the arithmetic engine or the answering service, and the error
// taxonomy every failure is reported in.
package service

import (
	"context"
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/bfhl/bfhlsvc/pkg/ai"
	"github.com/bfhl/bfhlsvc/pkg/arith"
)

// DefaultAITimeout bounds a single call to the answering service.
const DefaultAITimeout = 15 * time.Second

// Service describes the bfhl service.
type Service interface {
	// Health always succeeds while the process is able to serve.
	Health(ctx context.Context) error

	// Execute runs a validated operation. The result is a []*big.Int for
	// Fibonacci and Prime, an int64 for HCF and LCM, and a string for AI.
	Execute(ctx context.Context, op Operation) (interface{}, error)
}

// New returns a basic Service wrapped with all of the expected middlewares.
func New(answerer ai.Answerer, aiTimeout time.Duration, mw ...Middleware) Service {
	var svc Service = NewBasicService(answerer, aiTimeout)
	for _, m := range mw {
		svc = m(svc)
	}
	return svc
}

// NewBasicService returns a naive, stateless implementation of Service.
func NewBasicService(answerer ai.Answerer, aiTimeout time.Duration) Service {
	if answerer == nil {
		answerer = ai.Unconfigured
	}
	if aiTimeout <= 0 {
		aiTimeout = DefaultAITimeout
	}
	return basicService{answerer: answerer, aiTimeout: aiTimeout}
}

type basicService struct {
	answerer  ai.Answerer
	aiTimeout time.Duration
}

func (basicService) Health(context.Context) error {
	return nil
}

func (s basicService) Execute(ctx context.Context, op Operation) (interface{}, error) {
	switch op := op.(type) {
	case Fibonacci:
		return arith.Fibonacci(op.N), nil

	case Prime:
		primes := make([]*big.Int, 0, len(op.Values))
		for _, c := range op.Values {
			if c.Value != nil && arith.IsPrimeBig(c.Value) {
				primes = append(primes, c.Value)
			}
		}
		return primes, nil

	case HCF:
		v, err := arith.ReduceGCD(op.Values)
		if err != nil {
			return nil, ErrInvalidInput("hcf: " + err.Error())
		}
		return v, nil

	case LCM:
		v, err := arith.ReduceLCM(op.Values)
		if err != nil {
			return nil, ErrInvalidInput("lcm: " + err.Error())
		}
		return v, nil

	case AI:
		return s.ask(ctx, op.Question)

	default:
		return nil, ErrInternal(errors.Errorf("unhandled operation %T", op))
	}
}

type answer struct {
	text string
	err  error
}

// ask runs the upstream call as its own task bounded by aiTimeout. If the
// deadline passes or the caller goes away first, the result is abandoned;
// the buffered channel lets the task finish without a reader.
func (s basicService) ask(ctx context.Context, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()

	done := make(chan answer, 1)
	go func() {
		text, err := s.answerer.Answer(ctx, question)
		done <- answer{text: text, err: err}
	}()

	select {
	case a := <-done:
		if a.err != nil {
			return "", ErrAIService(a.err)
		}
		if a.text == "" {
			return "", ErrAIService(ai.ErrNoAnswer)
		}
		return a.text, nil
	case <-ctx.Done():
		return "", ErrAIService(errors.Wrap(ctx.Err(), "waiting for answer"))
	}
}
