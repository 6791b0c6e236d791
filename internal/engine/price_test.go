package engine

import (
	"math"
	"math/rand"
	"testing"
)

// seqRand replays a scripted sequence of draws, cycling if exhausted.
type seqRand struct {
	vals []float64
	i    int
}

func (r *seqRand) Float64() float64 {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

func defaultParams() Params {
	return Params{
		JumpProbability:   0.05,
		JumpMultiplierMin: 0.7,
		JumpMultiplierMax: 1.5,
	}
}

func TestNextPrice_Deterministic(t *testing.T) {
	p := defaultParams()

	a := NextPrice(100, p, rand.New(rand.NewSource(42)))
	b := NextPrice(100, p, rand.New(rand.NewSource(42)))
	if a != b {
		t.Fatalf("same seed produced different prices: %v vs %v", a, b)
	}
}

func TestNextPrice_DriftBranch(t *testing.T) {
	// jumpProbability 0 forces the drift branch. A drift draw of d maps to
	// pct = d*6 - 3, so d = (pct+3)/6.
	tests := []struct {
		name string
		prev float64
		pct  float64
		want float64
	}{
		{"plus one percent", 100.00, 1, 101.00},
		{"plus one percent again", 101.00, 1, 102.01},
		{"minus two percent", 102.01, -2, 99.97},
		{"zero drift", 50.00, 0, 50.00},
		{"max drift", 100.00, 3, 103.00},
	}

	p := Params{JumpProbability: 0, JumpMultiplierMin: 0.7, JumpMultiplierMax: 1.5}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := &seqRand{vals: []float64{0.5, (tt.pct + driftRangePct) / (driftRangePct * 2)}}
			got := NextPrice(tt.prev, p, rng)
			if got != tt.want {
				t.Errorf("NextPrice(%v, pct=%v) = %v, want %v", tt.prev, tt.pct, got, tt.want)
			}
		})
	}
}

func TestNextPrice_JumpBranch(t *testing.T) {
	p := Params{JumpProbability: 1, JumpMultiplierMin: 0.5, JumpMultiplierMax: 1.5}

	// Second draw 0.5 → multiplier = 0.5 + 0.5*(1.5-0.5) = 1.0
	rng := &seqRand{vals: []float64{0.0, 0.5}}
	if got := NextPrice(200, p, rng); got != 200 {
		t.Errorf("midpoint jump: got %v, want 200", got)
	}

	// Second draw 0 → multiplier = min
	rng = &seqRand{vals: []float64{0.0, 0.0}}
	if got := NextPrice(200, p, rng); got != 100 {
		t.Errorf("min jump: got %v, want 100", got)
	}
}

func TestNextPrice_FloorClamp(t *testing.T) {
	// A hard downward jump from an already tiny price must clamp at 0.01.
	p := Params{JumpProbability: 1, JumpMultiplierMin: 0.0001, JumpMultiplierMax: 1.5}
	rng := &seqRand{vals: []float64{0.0, 0.0}}
	if got := NextPrice(0.02, p, rng); got != 0.01 {
		t.Errorf("got %v, want floor 0.01", got)
	}
}

func TestNextPrice_AlwaysValid(t *testing.T) {
	p := defaultParams()
	rng := rand.New(rand.NewSource(7))

	price := 150.0
	for i := 0; i < 10000; i++ {
		price = NextPrice(price, p, rng)
		if price < 0.01 {
			t.Fatalf("iteration %d: price %v below floor", i, price)
		}
		cents := price * 100
		if math.Abs(cents-math.Round(cents)) > 1e-6 {
			t.Fatalf("iteration %d: price %v has sub-cent precision", i, price)
		}
	}
}

func TestRoundCents(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0.125, 0.13}, // exact half rounds up
		{2.375, 2.38},
		{99.974, 99.97},
		{0.014, 0.01},
		{2, 2},
	}
	for _, tt := range tests {
		if got := RoundCents(tt.in); got != tt.want {
			t.Errorf("RoundCents(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
