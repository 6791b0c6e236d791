package candle

import (
	"context"
	"testing"
	"time"

	"marketsimv1/internal/model"
	"marketsimv1/internal/store"
	"marketsimv1/internal/store/memory"
)

func seedTicks(t *testing.T, st *memory.Store, id string, n int) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	stock := model.Stock{ID: id, Symbol: "TEST", CurrentPrice: 100}
	if err := st.CreateStock(ctx, stock, model.PricePoint{StockID: id, Price: 100, Timestamp: base}); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 1; i < n; i++ {
		ts := base.AddDate(0, 0, i)
		upd := store.PriceUpdate{CurrentPrice: 100, PreviousPrice: 100, DayHigh: 100, DayLow: 100, Volume: int64(i + 1), UpdatedAt: ts}
		if err := st.ApplyPrice(ctx, id, upd, model.PricePoint{StockID: id, Price: 100, Timestamp: ts}); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
}

func TestServiceCandles(t *testing.T) {
	st := memory.New()
	seedTicks(t, st, "stk_1", 10)
	svc := NewService(st)

	candles, err := svc.Candles(context.Background(), "stk_1", model.TimeframeDaily, 0)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	// One tick per day, ten days, default limit 30 keeps them all.
	if len(candles) != 10 {
		t.Fatalf("got %d candles, want 10", len(candles))
	}
}

func TestServiceCandles_DefaultLimit(t *testing.T) {
	st := memory.New()
	seedTicks(t, st, "stk_1", 45)
	svc := NewService(st)

	candles, err := svc.Candles(context.Background(), "stk_1", model.TimeframeDaily, 0)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if len(candles) != DefaultLimit {
		t.Fatalf("got %d candles, want default limit %d", len(candles), DefaultLimit)
	}
}

func TestServiceCandles_InvalidTimeframe(t *testing.T) {
	svc := NewService(memory.New())
	if _, err := svc.Candles(context.Background(), "stk_1", "hourly", 0); !model.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceCandles_UnknownStock(t *testing.T) {
	svc := NewService(memory.New())
	candles, err := svc.Candles(context.Background(), "missing", model.TimeframeDaily, 0)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if len(candles) != 0 {
		t.Fatalf("unknown stock produced %d candles", len(candles))
	}
}
