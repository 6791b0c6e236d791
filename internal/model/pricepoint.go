package model

import "time"

// PricePoint is one appended entry in a stock's tick history.
// Immutable once written; purged only as part of a cascade delete.
type PricePoint struct {
	StockID   string    `json:"stock_id"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"` // UTC, non-decreasing per stock
}
