// Package arith implements the textbook arithmetic behind the bfhl
// operations. Every function is pure and safe for concurrent use.
package arith

import (
	"errors"
	"math"
	"math/big"
	"math/bits"
)

var (
	// ErrEmpty is returned when a reduction is asked to fold no values.
	ErrEmpty = errors.New("at least one value is required")

	// ErrUndefined is returned by LCM when both operands are zero.
	ErrUndefined = errors.New("lcm of zero and zero is undefined")

	// ErrOverflow is returned when a value or result does not fit in an int64.
	ErrOverflow = errors.New("result does not fit in a 64-bit integer")
)

// Fibonacci returns the first n Fibonacci numbers, seeded 0, 1. The result has
// length exactly n and is never nil.
func Fibonacci(n int) []*big.Int {
	if n < 0 {
		n = 0
	}
	seq := make([]*big.Int, 0, n)
	a, b := big.NewInt(0), big.NewInt(1)
	for i := 0; i < n; i++ {
		seq = append(seq, new(big.Int).Set(a))
		a.Add(a, b)
		a, b = b, a
	}
	return seq
}

// IsPrime reports whether k is an integer of at least 2 with no divisor in
// [2, √k].
func IsPrime(k int64) bool {
	switch {
	case k < 2:
		return false
	case k < 4:
		return true
	case k%2 == 0 || k%3 == 0:
		return false
	case k > math.MaxUint32:
		// Trial division gets slow up here; ProbablyPrime is exact below 2^64.
		return big.NewInt(k).ProbablyPrime(0)
	}
	for i := int64(5); i <= k/i; i += 6 {
		if k%i == 0 || k%(i+2) == 0 {
			return false
		}
	}
	return true
}

// IsPrimeBig is IsPrime for integers of any size. Above 2^64 it relies on
// the Baillie-PSW test, which has no known counterexample.
func IsPrimeBig(k *big.Int) bool {
	if k.IsInt64() {
		return IsPrime(k.Int64())
	}
	return k.Sign() > 0 && k.ProbablyPrime(0)
}

// FilterPrimes returns the primes of seq in their original order. The result
// is never nil.
func FilterPrimes(seq []int64) []int64 {
	primes := make([]int64, 0, len(seq))
	for _, k := range seq {
		if IsPrime(k) {
			primes = append(primes, k)
		}
	}
	return primes
}

// GCD returns the greatest common divisor of |a| and |b|. GCD(a, 0) is |a|.
func GCD(a, b int64) int64 {
	x, y := abs(a), abs(b)
	for y != 0 {
		x, y = y, x%y
	}
	return int64(x)
}

// ReduceGCD folds GCD over seq from the left, starting from seq[0]. A single
// value is returned unchanged, sign included.
func ReduceGCD(seq []int64) (int64, error) {
	if err := checkReducible(seq); err != nil {
		return 0, err
	}
	acc := seq[0]
	for _, v := range seq[1:] {
		acc = GCD(acc, v)
	}
	return acc, nil
}

// LCM returns the least common multiple of |a| and |b|.
func LCM(a, b int64) (int64, error) {
	g := GCD(a, b)
	if g == 0 {
		return 0, ErrUndefined
	}
	hi, lo := bits.Mul64(abs(a)/uint64(g), abs(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(lo), nil
}

// ReduceLCM folds LCM over seq from the left, starting from seq[0]. A single
// value is returned unchanged, sign included.
func ReduceLCM(seq []int64) (int64, error) {
	if err := checkReducible(seq); err != nil {
		return 0, err
	}
	acc := seq[0]
	for _, v := range seq[1:] {
		var err error
		if acc, err = LCM(acc, v); err != nil {
			return 0, err
		}
	}
	return acc, nil
}

// checkReducible rejects empty input and math.MinInt64, whose magnitude has no
// int64 representation.
func checkReducible(seq []int64) error {
	if len(seq) == 0 {
		return ErrEmpty
	}
	for _, v := range seq {
		if v == math.MinInt64 {
			return ErrOverflow
		}
	}
	return nil
}

func abs(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}
