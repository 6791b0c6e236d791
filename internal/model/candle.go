package model

import (
	"encoding/json"
	"time"
)

// Timeframe selects the calendar granularity for candlestick aggregation.
type Timeframe string

const (
	TimeframeDaily   Timeframe = "daily"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeMonthly Timeframe = "monthly"
)

// Valid reports whether tf is a known timeframe.
func (tf Timeframe) Valid() bool {
	switch tf {
	case TimeframeDaily, TimeframeWeekly, TimeframeMonthly:
		return true
	}
	return false
}

// Candle is one OHLCV bucket derived from a stock's tick history.
// Candles are recomputed on every aggregation call and never stored.
type Candle struct {
	Start  time.Time `json:"start"` // bucket start (UTC, calendar-aligned)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"` // tick count within the bucket
}

// JSON returns the JSON-encoded candle.
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
