// Package candle renders a stock's irregular tick history into
// fixed-size calendar buckets (daily, weekly, monthly) for charting.
// Aggregation is a pure read-side computation: it never touches stock
// state and is safe to run concurrently with the write path.
package candle

import (
	"context"
	"fmt"
	"sort"
	"time"

	"marketsimv1/internal/model"
	"marketsimv1/internal/store"
)

// DefaultLimit is used when a caller passes limit <= 0.
const DefaultLimit = 30

// Aggregate groups price points into calendar buckets and summarizes
// each as one OHLCV candle. Points must be in ascending timestamp order,
// which is what the store's tick listing guarantees. Output is ordered
// by bucket start ascending; if limit > 0 only the most recent limit
// buckets are kept. Empty input yields an empty result, not an error.
func Aggregate(points []model.PricePoint, tf model.Timeframe, limit int) []model.Candle {
	if len(points) == 0 {
		return []model.Candle{}
	}

	buckets := make(map[time.Time]*model.Candle, 16)
	for _, p := range points {
		start := BucketStart(p.Timestamp, tf)
		c, ok := buckets[start]
		if !ok {
			buckets[start] = &model.Candle{
				Start:  start,
				Open:   p.Price,
				High:   p.Price,
				Low:    p.Price,
				Close:  p.Price,
				Volume: 1,
			}
			continue
		}
		if p.Price > c.High {
			c.High = p.Price
		}
		if p.Price < c.Low {
			c.Low = p.Price
		}
		c.Close = p.Price
		c.Volume++
	}

	candles := make([]model.Candle, 0, len(buckets))
	for _, c := range buckets {
		candles = append(candles, *c)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Start.Before(candles[j].Start) })

	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles
}

// BucketStart returns the start of the calendar period containing t at
// the given granularity. All bucketing is done in UTC; weeks start on
// Monday.
func BucketStart(t time.Time, tf model.Timeframe) time.Time {
	switch tf {
	case model.TimeframeWeekly:
		return StartOfWeek(t)
	case model.TimeframeMonthly:
		return StartOfMonth(t)
	default:
		return StartOfDay(t)
	}
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfWeek truncates t to Monday 00:00 UTC.
func StartOfWeek(t time.Time) time.Time {
	d := StartOfDay(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// StartOfMonth truncates t to the first of the month, 00:00 UTC.
func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Service serves candle queries over a store's tick history.
type Service struct {
	store store.Store
}

// NewService creates a candle Service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Candles fetches a stock's history and aggregates it at the requested
// granularity. limit <= 0 falls back to DefaultLimit.
func (s *Service) Candles(ctx context.Context, stockID string, tf model.Timeframe, limit int) ([]model.Candle, error) {
	if !tf.Valid() {
		ve := &model.ValidationError{}
		ve.Addf("timeframe", "unknown timeframe %q", string(tf))
		return nil, ve
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	points, err := s.store.ListTicks(ctx, stockID)
	if err != nil {
		return nil, fmt.Errorf("list ticks for %s: %w", stockID, err)
	}
	return Aggregate(points, tf, limit), nil
}
