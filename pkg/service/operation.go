package service

import "math/big"

// Operation keys accepted in a request body.
const (
	KeyFibonacci = "fibonacci"
	KeyPrime     = "prime"
	KeyHCF       = "hcf"
	KeyLCM       = "lcm"
	KeyAI        = "AI"
)

// Operation is a validated request. The set of implementations is closed:
// Fibonacci, Prime, HCF, LCM and AI.
type Operation interface {
	// Name returns the request key the operation was decoded from.
	Name() string
	operation()
}

// Fibonacci asks for the first N Fibonacci numbers.
type Fibonacci struct {
	N int
}

// Prime asks for the primes among Values, in order.
type Prime struct {
	Values []Candidate
}

// Candidate is one element of a prime request. Value is nil for a number
// with a fractional part, which is never prime. Whole numbers of any size
// are kept exactly.
type Candidate struct {
	Value *big.Int
}

// HCF asks for the greatest common divisor of Values.
type HCF struct {
	Values []int64
}

// LCM asks for the least common multiple of Values.
type LCM struct {
	Values []int64
}

// AI asks the answering service a question.
type AI struct {
	Question string
}

func (Fibonacci) Name() string { return KeyFibonacci }
func (Prime) Name() string     { return KeyPrime }
func (HCF) Name() string       { return KeyHCF }
func (LCM) Name() string       { return KeyLCM }
func (AI) Name() string        { return KeyAI }

func (Fibonacci) operation() {}
func (Prime) operation()     {}
func (HCF) operation()       {}
func (LCM) operation()       {}
func (AI) operation()        {}
