// cmd/seed — One-shot database seeder.
// Inserts a demo stock universe so marketd has something to simulate.
//
// Config (env vars):
//
//	SQLITE_PATH  — database file (default "data/marketsim.db")
//	SEED_STOCKS  — comma-separated SYMBOL:NAME:PRICE:MARKETCAP entries;
//	               empty = built-in demo set (AAPL, GOOGL, TSLA, AMZN)
package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"marketsimv1/internal/broadcast"
	"marketsimv1/internal/market"
	"marketsimv1/internal/model"
	sqlitestore "marketsimv1/internal/store/sqlite"
)

type seedStock struct {
	Symbol    string
	Name      string
	Price     float64
	MarketCap float64
}

var defaultStocks = []seedStock{
	{"AAPL", "Apple Inc.", 175.50, 2.8e12},
	{"GOOGL", "Alphabet Inc.", 135.70, 1.8e12},
	{"TSLA", "Tesla Inc.", 215.30, 800e9},
	{"AMZN", "Amazon Inc.", 145.20, 1.5e12},
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	dbPath := envOrDefault("SQLITE_PATH", "data/marketsim.db")
	os.MkdirAll(filepath.Dir(dbPath), 0o755)

	st, err := sqlitestore.New(sqlitestore.Config{DBPath: dbPath})
	if err != nil {
		log.Fatalf("[seed] sqlite open failed: %v", err)
	}
	defer st.Close()

	stocks := defaultStocks
	if spec := os.Getenv("SEED_STOCKS"); spec != "" {
		stocks = parseSeedStocks(spec)
	}
	if len(stocks) == 0 {
		log.Fatal("[seed] no stocks to seed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mkt := market.New(st, broadcast.Nop{})
	if err := mkt.Load(ctx); err != nil {
		log.Fatalf("[seed] load existing stocks: %v", err)
	}

	created := 0
	for _, s := range stocks {
		stk, err := mkt.CreateStock(ctx, model.StockSpec{
			Symbol:    s.Symbol,
			Name:      s.Name,
			SeedPrice: s.Price,
			MarketCap: s.MarketCap,
		})
		if err != nil {
			// Upsert semantics: an existing symbol is fine, anything else is not.
			if model.IsValidation(err) {
				log.Printf("[seed] skipping %s: %v", s.Symbol, err)
				continue
			}
			log.Fatalf("[seed] create %s failed: %v", s.Symbol, err)
		}
		created++
		log.Printf("[seed] created %-5s %q @ %.2f (id=%s)", stk.Symbol, stk.Name, stk.CurrentPrice, stk.ID)
	}

	log.Printf("[seed] ✅ done — %d created, %d skipped", created, len(stocks)-created)
}

// parseSeedStocks parses SYMBOL:NAME:PRICE:MARKETCAP entries.
// Example: "AAPL:Apple Inc.:175.50:2800000000000,MSFT:Microsoft:410.00:3e12"
func parseSeedStocks(spec string) []seedStock {
	var result []seedStock
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		seg := strings.SplitN(part, ":", 4)
		if len(seg) < 3 {
			log.Printf("[seed] skipping invalid stock spec: %q", part)
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(seg[2]), 64)
		if err != nil || price <= 0 {
			log.Printf("[seed] skipping %q: bad price", part)
			continue
		}
		var mcap float64
		if len(seg) == 4 {
			mcap, _ = strconv.ParseFloat(strings.TrimSpace(seg[3]), 64)
		}
		result = append(result, seedStock{
			Symbol:    strings.ToUpper(strings.TrimSpace(seg[0])),
			Name:      strings.TrimSpace(seg[1]),
			Price:     price,
			MarketCap: mcap,
		})
	}
	return result
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
