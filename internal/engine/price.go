// Package engine implements the price generation policy: a small uniform
// random walk with rare multiplicative jumps. NextPrice is a pure mapping
// from inputs to output — no storage, no transport, no clock — so results
// are exactly reproducible under a seeded random source.
package engine

import "math"

// Rand is the randomness seam. *math/rand.Rand satisfies it; tests supply
// a scripted sequence.
type Rand interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
}

// Params are the per-stock simulation parameters consumed by NextPrice.
type Params struct {
	JumpProbability   float64 // [0, 1]
	JumpMultiplierMin float64 // (0, 1)
	JumpMultiplierMax float64 // > 1, and > min
}

const (
	// floorPrice is the hard lower bound on any generated price.
	floorPrice = 0.01

	// driftRangePct bounds the normal fluctuation: ±3% per tick.
	driftRangePct = 3.0
)

// NextPrice computes the next price from the previous one.
//
// One uniform draw decides the branch: with probability p.JumpProbability
// the price jumps by a multiplier drawn uniformly in
// [JumpMultiplierMin, JumpMultiplierMax); otherwise it drifts by a
// percentage drawn uniformly in [-3%, +3%]. The result is clamped to a
// 0.01 floor and rounded half-up to cents.
func NextPrice(previous float64, p Params, rng Rand) float64 {
	var next float64

	if rng.Float64() < p.JumpProbability {
		m := p.JumpMultiplierMin + rng.Float64()*(p.JumpMultiplierMax-p.JumpMultiplierMin)
		next = previous * m
	} else {
		pct := rng.Float64()*driftRangePct*2 - driftRangePct
		next = previous * (1 + pct/100)
	}

	if next < floorPrice {
		next = floorPrice
	}
	return RoundCents(next)
}

// RoundCents rounds a price half-up to two decimal places.
func RoundCents(price float64) float64 {
	return math.Round(price*100) / 100
}
