// Package random wraps an explicitly seeded *rand.Rand with the sampling
// helpers the evolutionary loop and its operators need. There is no package
// level generator: every caller owns its handle.
package random

import (
	"math"
	"math/rand"
)

// Source draws integers uniformly from an inclusive range.
type Source interface {
	IntRange(low, high int) int
}

// Rand is a seeded random handle satisfying Source.
type Rand struct {
	rng *rand.Rand
}

// New returns a handle seeded with seed. Equal seeds yield equal streams.
func New(seed int64) *Rand {
	return &Rand{rng: rand.New(rand.NewSource(seed))}
}

// IntRange returns an integer in [low, high]; both ends are inclusive.
// A reversed range is swapped.
func (r *Rand) IntRange(low, high int) int {
	if high < low {
		low, high = high, low
	}
	return low + r.rng.Intn(high-low+1)
}

// Uniform returns a real in [low, high).
func (r *Rand) Uniform(low, high float64) float64 {
	if high < low {
		low, high = high, low
	}
	return low + r.rng.Float64()*(high-low)
}

// Normal samples N(mu, sigma2). sigma2 is the variance, not the deviation.
func (r *Rand) Normal(mu, sigma2 float64) float64 {
	if sigma2 <= 0 {
		return mu
	}
	return mu + r.rng.NormFloat64()*math.Sqrt(sigma2)
}

// Exponential samples an exponential distribution with rate lambda.
func (r *Rand) Exponential(lambda float64) float64 {
	if lambda <= 0 {
		return math.Inf(1)
	}
	return r.rng.ExpFloat64() / lambda
}

// Bool returns true with probability p.
func (r *Rand) Bool(p float64) bool {
	return r.rng.Float64() < p
}

// Int63 exposes the raw stream. Callers derive child seeds from it.
func (r *Rand) Int63() int64 {
	return r.rng.Int63()
}
