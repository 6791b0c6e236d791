package model

import (
	"encoding/json"
	"regexp"
	"time"
)

// symbolRe matches valid ticker symbols: 1-5 uppercase letters.
var symbolRe = regexp.MustCompile(`^[A-Z]{1,5}$`)

// Stock holds the full mutable state of one simulated instrument.
// All price fields are in currency units rounded to cents.
// Mutation goes exclusively through the market registry, which serializes
// scheduler ticks and control-plane commands per stock.
type Stock struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	MarketCap float64 `json:"market_cap"`

	CurrentPrice  float64 `json:"current_price"`
	PreviousPrice float64 `json:"previous_price"`
	DayOpen       float64 `json:"day_open"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`

	// Volume is a tick-count proxy, not a real traded quantity.
	Volume int64 `json:"volume"`

	JumpProbability    float64 `json:"jump_probability"`
	JumpMultiplierMin  float64 `json:"jump_multiplier_min"`
	JumpMultiplierMax  float64 `json:"jump_multiplier_max"`
	RandomUpdateActive bool    `json:"random_update_active"`

	UpdatedAt time.Time `json:"updated_at"`
}

// ValidSymbol reports whether s is a well-formed ticker symbol.
func ValidSymbol(s string) bool {
	return symbolRe.MatchString(s)
}

// JSON returns the JSON-encoded stock snapshot (ignoring errors for hot-path usage).
func (s *Stock) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// Settings is a partial update to a stock's simulation parameters.
// Nil fields are left untouched.
type Settings struct {
	JumpProbability   *float64 `json:"jump_probability,omitempty"`
	JumpMultiplierMin *float64 `json:"jump_multiplier_min,omitempty"`
	JumpMultiplierMax *float64 `json:"jump_multiplier_max,omitempty"`
}

// StockSpec describes a stock to be created.
type StockSpec struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	SeedPrice float64 `json:"seed_price"`
	MarketCap float64 `json:"market_cap"`
}
