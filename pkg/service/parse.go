package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"strings"
)

// DefaultMaxFibonacci bounds the length of a requested Fibonacci sequence.
const DefaultMaxFibonacci = 10000

// Validator turns a raw request body into an Operation.
type Validator struct {
	// MaxFibonacci is the largest accepted fibonacci count. Zero means
	// DefaultMaxFibonacci.
	MaxFibonacci int
}

// Parse decodes body as a JSON object and validates it.
func (v Validator) Parse(body []byte) (Operation, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, ErrMalformedRequest("request body must be a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrMalformedRequest("request body must contain a single JSON object")
	}
	return v.Validate(fields)
}

// Validate checks that fields holds exactly one recognized key whose value
// has the shape that key requires.
func (v Validator) Validate(fields map[string]json.RawMessage) (Operation, error) {
	if len(fields) != 1 {
		return nil, ErrMalformedRequest("request must contain exactly one key")
	}
	var (
		key string
		raw json.RawMessage
	)
	for k, r := range fields {
		key, raw = k, r
	}

	switch key {
	case KeyFibonacci:
		return v.fibonacci(raw)
	case KeyPrime:
		return prime(raw)
	case KeyHCF:
		values, err := integers(KeyHCF, raw)
		if err != nil {
			return nil, err
		}
		return HCF{Values: values}, nil
	case KeyLCM:
		values, err := integers(KeyLCM, raw)
		if err != nil {
			return nil, err
		}
		return LCM{Values: values}, nil
	case KeyAI:
		return question(raw)
	default:
		return nil, ErrUnknownOperation(key)
	}
}

func (v Validator) fibonacci(raw json.RawMessage) (Operation, error) {
	limit := v.MaxFibonacci
	if limit <= 0 {
		limit = DefaultMaxFibonacci
	}
	n, ok := number(raw)
	if !ok {
		return nil, ErrInvalidInput("fibonacci value must be a non-negative integer")
	}
	i, ok := toInt64(n)
	if !ok || i < 0 {
		return nil, ErrInvalidInput("fibonacci value must be a non-negative integer")
	}
	if i > int64(limit) {
		return nil, ErrInvalidInput(fmt.Sprintf("fibonacci value must not exceed %d", limit))
	}
	return Fibonacci{N: int(i)}, nil
}

func prime(raw json.RawMessage) (Operation, error) {
	ns, ok := numbers(raw)
	if !ok {
		return nil, ErrInvalidInput("prime input must be an array of numbers")
	}
	values := make([]Candidate, len(ns))
	for i, n := range ns {
		values[i] = Candidate{Value: toBigInt(n)}
	}
	return Prime{Values: values}, nil
}

func integers(key string, raw json.RawMessage) ([]int64, error) {
	ns, ok := numbers(raw)
	if !ok || len(ns) == 0 {
		return nil, ErrInvalidInput(key + " input must be a non-empty array of numbers")
	}
	values := make([]int64, len(ns))
	for i, n := range ns {
		v, ok := toInt64(n)
		if !ok {
			return nil, ErrInvalidInput(key + " values must be integers that fit in 64 bits")
		}
		values[i] = v
	}
	return values, nil
}

func question(raw json.RawMessage) (Operation, error) {
	var q *string
	if err := json.Unmarshal(raw, &q); err != nil || q == nil {
		return nil, ErrInvalidInput("AI input must be a string")
	}
	if strings.TrimSpace(*q) == "" {
		return nil, ErrInvalidInput("AI input must not be empty")
	}
	return AI{Question: *q}, nil
}

// number decodes raw as a single JSON number. Quoted numbers are rejected.
func number(raw json.RawMessage) (json.Number, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	n, ok := v.(json.Number)
	return n, ok
}

// numbers decodes raw as a JSON array whose elements are all numbers.
func numbers(raw json.RawMessage) ([]json.Number, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var vs []interface{}
	if err := dec.Decode(&vs); err != nil || vs == nil {
		return nil, false
	}
	ns := make([]json.Number, len(vs))
	for i, v := range vs {
		n, ok := v.(json.Number)
		if !ok {
			return nil, false
		}
		ns[i] = n
	}
	return ns, true
}

// toBigInt returns n as an exact integer, or nil when n has a fractional
// part or lies beyond the float64 range.
func toBigInt(n json.Number) *big.Int {
	if i, err := n.Int64(); err == nil {
		return big.NewInt(i)
	}
	if f, err := n.Float64(); err != nil || math.IsInf(f, 0) {
		return nil
	}
	r, ok := new(big.Rat).SetString(n.String())
	if !ok || !r.IsInt() {
		return nil
	}
	return new(big.Int).Set(r.Num())
}

// toInt64 converts n to an int64 when it is integral and in range. Integral
// values written with a fraction or exponent, like 5.0 or 1e3, are accepted.
func toInt64(n json.Number) (int64, bool) {
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
