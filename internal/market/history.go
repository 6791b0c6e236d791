package market

import (
	"context"
	"time"

	"marketsimv1/internal/candle"
	"marketsimv1/internal/model"
)

// TimeRange selects how far back a history query reaches.
type TimeRange string

const (
	RangeDay   TimeRange = "day"
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
	RangeYear  TimeRange = "year"
	RangeAll   TimeRange = "all"
)

// History returns a stock's price points from the start of the requested
// range, ascending. If limit > 0 only the most recent limit points are
// kept, still in chronological order. Pure read path: no stock locks.
func (m *Market) History(ctx context.Context, id string, r TimeRange, limit int) ([]model.PricePoint, error) {
	if _, ok := m.slot(id); !ok {
		return nil, model.ErrNotFound
	}

	now := m.Now()
	var since time.Time
	switch r {
	case RangeDay:
		since = candle.StartOfDay(now)
	case RangeWeek:
		since = candle.StartOfWeek(now)
	case RangeMonth:
		since = candle.StartOfMonth(now)
	case RangeYear:
		since = time.Date(now.UTC().Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case RangeAll:
		// zero time: everything
	default:
		ve := &model.ValidationError{}
		ve.Addf("range", "unknown time range %q", string(r))
		return nil, ve
	}

	points, err := m.store.ListTicksSince(ctx, id, since)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	return points, nil
}
