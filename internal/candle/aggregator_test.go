package candle

import (
	"testing"
	"time"

	"marketsimv1/internal/model"
)

func pt(ts time.Time, price float64) model.PricePoint {
	return model.PricePoint{StockID: "stk_1", Price: price, Timestamp: ts}
}

func day(yy int, mm time.Month, dd, hh int) time.Time {
	return time.Date(yy, mm, dd, hh, 0, 0, 0, time.UTC)
}

func TestAggregate_SingleDailyBucket(t *testing.T) {
	base := day(2024, time.March, 5, 9)
	prices := []float64{10, 12, 9, 11, 10}

	var points []model.PricePoint
	for i, p := range prices {
		points = append(points, pt(base.Add(time.Duration(i)*time.Hour), p))
	}

	candles := Aggregate(points, model.TimeframeDaily, 0)
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}

	c := candles[0]
	if !c.Start.Equal(day(2024, time.March, 5, 0)) {
		t.Errorf("bucket start = %v, want 2024-03-05T00:00Z", c.Start)
	}
	if c.Open != 10 || c.High != 12 || c.Low != 9 || c.Close != 10 {
		t.Errorf("OHLC = %v/%v/%v/%v, want 10/12/9/10", c.Open, c.High, c.Low, c.Close)
	}
	if c.Volume != 5 {
		t.Errorf("volume = %d, want 5", c.Volume)
	}
}

func TestAggregate_Empty(t *testing.T) {
	candles := Aggregate(nil, model.TimeframeDaily, 0)
	if candles == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(candles) != 0 {
		t.Fatalf("expected 0 candles, got %d", len(candles))
	}
}

func TestAggregate_SinglePointBucket(t *testing.T) {
	candles := Aggregate([]model.PricePoint{pt(day(2024, time.March, 5, 12), 42.5)}, model.TimeframeDaily, 0)
	if len(candles) != 1 {
		t.Fatalf("expected 1 candle, got %d", len(candles))
	}
	c := candles[0]
	if c.Open != 42.5 || c.High != 42.5 || c.Low != 42.5 || c.Close != 42.5 {
		t.Errorf("single-point candle OHLC mismatch: %+v", c)
	}
	if c.Volume != 1 {
		t.Errorf("volume = %d, want 1", c.Volume)
	}
}

func TestAggregate_VolumeConservation(t *testing.T) {
	// Ticks scattered over three months; sum of candle volumes must equal
	// the tick count exactly, at every granularity.
	var points []model.PricePoint
	ts := day(2024, time.January, 2, 10)
	for i := 0; i < 217; i++ {
		points = append(points, pt(ts, 100+float64(i%7)))
		ts = ts.Add(9 * time.Hour)
	}

	for _, tf := range []model.Timeframe{model.TimeframeDaily, model.TimeframeWeekly, model.TimeframeMonthly} {
		var total int64
		for _, c := range Aggregate(points, tf, 0) {
			total += c.Volume
		}
		if total != int64(len(points)) {
			t.Errorf("%s: volume sum = %d, want %d", tf, total, len(points))
		}
	}
}

func TestAggregate_OHLCInvariants(t *testing.T) {
	var points []model.PricePoint
	ts := day(2024, time.May, 1, 0)
	prices := []float64{50, 48.2, 51.7, 49, 55.5, 47.1, 52, 53.3}
	for i := 0; i < 100; i++ {
		points = append(points, pt(ts, prices[i%len(prices)]))
		ts = ts.Add(5 * time.Hour)
	}

	for _, c := range Aggregate(points, model.TimeframeWeekly, 0) {
		if c.Low > c.Open || c.Open > c.High {
			t.Errorf("candle %v: open %v outside [%v, %v]", c.Start, c.Open, c.Low, c.High)
		}
		if c.Low > c.Close || c.Close > c.High {
			t.Errorf("candle %v: close %v outside [%v, %v]", c.Start, c.Close, c.Low, c.High)
		}
	}
}

func TestAggregate_DailyBoundary(t *testing.T) {
	points := []model.PricePoint{
		pt(day(2024, time.March, 5, 23).Add(59*time.Minute), 10),
		pt(day(2024, time.March, 6, 0), 20),
	}
	candles := Aggregate(points, model.TimeframeDaily, 0)
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles across midnight, got %d", len(candles))
	}
	if candles[0].Close != 10 || candles[1].Open != 20 {
		t.Errorf("boundary split wrong: %+v", candles)
	}
}

func TestAggregate_WeeklyBuckets(t *testing.T) {
	// 2024-03-04 is a Monday; the previous Sunday belongs to the prior week.
	points := []model.PricePoint{
		pt(day(2024, time.March, 3, 12), 10), // Sunday
		pt(day(2024, time.March, 4, 9), 20),  // Monday
		pt(day(2024, time.March, 10, 9), 30), // Sunday, same week as the 4th
	}
	candles := Aggregate(points, model.TimeframeWeekly, 0)
	if len(candles) != 2 {
		t.Fatalf("expected 2 weekly candles, got %d", len(candles))
	}
	if !candles[0].Start.Equal(day(2024, time.February, 26, 0)) {
		t.Errorf("first week start = %v, want Mon 2024-02-26", candles[0].Start)
	}
	if !candles[1].Start.Equal(day(2024, time.March, 4, 0)) {
		t.Errorf("second week start = %v, want Mon 2024-03-04", candles[1].Start)
	}
	if candles[1].Open != 20 || candles[1].Close != 30 || candles[1].Volume != 2 {
		t.Errorf("second week candle wrong: %+v", candles[1])
	}
}

func TestAggregate_MonthlyBuckets(t *testing.T) {
	points := []model.PricePoint{
		pt(day(2024, time.January, 31, 23), 10),
		pt(day(2024, time.February, 1, 0), 20),
		pt(day(2024, time.February, 29, 12), 15),
	}
	candles := Aggregate(points, model.TimeframeMonthly, 0)
	if len(candles) != 2 {
		t.Fatalf("expected 2 monthly candles, got %d", len(candles))
	}
	if !candles[1].Start.Equal(day(2024, time.February, 1, 0)) {
		t.Errorf("second month start = %v, want 2024-02-01", candles[1].Start)
	}
	if candles[1].High != 20 || candles[1].Close != 15 {
		t.Errorf("february candle wrong: %+v", candles[1])
	}
}

func TestAggregate_LimitKeepsMostRecent(t *testing.T) {
	var points []model.PricePoint
	for i := 0; i < 10; i++ {
		points = append(points, pt(day(2024, time.March, 1+i, 12), float64(100+i)))
	}

	candles := Aggregate(points, model.TimeframeDaily, 3)
	if len(candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(candles))
	}
	// Most recent three days, still chronological.
	if !candles[0].Start.Equal(day(2024, time.March, 8, 0)) {
		t.Errorf("first kept candle = %v, want 2024-03-08", candles[0].Start)
	}
	if !candles[2].Start.Equal(day(2024, time.March, 10, 0)) {
		t.Errorf("last kept candle = %v, want 2024-03-10", candles[2].Start)
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i-1].Start.Before(candles[i].Start) {
			t.Errorf("candles out of order at %d", i)
		}
	}
}

func TestBucketStart_WeekConvention(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{day(2024, time.March, 4, 0), day(2024, time.March, 4, 0)},   // Monday maps to itself
		{day(2024, time.March, 7, 15), day(2024, time.March, 4, 0)},  // Thursday
		{day(2024, time.March, 10, 23), day(2024, time.March, 4, 0)}, // Sunday closes the week
	}
	for _, tt := range tests {
		if got := StartOfWeek(tt.in); !got.Equal(tt.want) {
			t.Errorf("StartOfWeek(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
