// Package sqlite implements the durable store.Store on SQLite with WAL
// mode and a single-writer connection pool.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"marketsimv1/internal/model"
	"marketsimv1/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/marketsim.db"
}

// Store is a SQLite-backed store.Store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database, enables WAL mode, and creates the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer keeps stock-row updates and history appends serialized
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stocks (
			id                   TEXT PRIMARY KEY,
			symbol               TEXT NOT NULL UNIQUE,
			name                 TEXT NOT NULL,
			market_cap           REAL NOT NULL DEFAULT 0,
			current_price        REAL NOT NULL,
			previous_price       REAL NOT NULL,
			day_open             REAL NOT NULL,
			day_high             REAL NOT NULL,
			day_low              REAL NOT NULL,
			volume               INTEGER NOT NULL DEFAULT 0,
			jump_probability     REAL NOT NULL,
			jump_multiplier_min  REAL NOT NULL,
			jump_multiplier_max  REAL NOT NULL,
			random_update_active INTEGER NOT NULL DEFAULT 1,
			updated_at           INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS price_points (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			stock_id TEXT    NOT NULL,
			price    REAL    NOT NULL,
			ts       INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_price_points_stock_ts
			ON price_points (stock_id, ts);
	`)
	return err
}

// LoadStocks returns all stocks for registry initialization.
func (s *Store) LoadStocks(ctx context.Context) ([]model.Stock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, name, market_cap,
		       current_price, previous_price, day_open, day_high, day_low,
		       volume, jump_probability, jump_multiplier_min, jump_multiplier_max,
		       random_update_active, updated_at
		FROM stocks ORDER BY symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite load stocks: %w", err)
	}
	defer rows.Close()

	var stocks []model.Stock
	for rows.Next() {
		var st model.Stock
		var active int
		var updated int64
		if err := rows.Scan(&st.ID, &st.Symbol, &st.Name, &st.MarketCap,
			&st.CurrentPrice, &st.PreviousPrice, &st.DayOpen, &st.DayHigh, &st.DayLow,
			&st.Volume, &st.JumpProbability, &st.JumpMultiplierMin, &st.JumpMultiplierMax,
			&active, &updated); err != nil {
			return nil, fmt.Errorf("sqlite scan stock: %w", err)
		}
		st.RandomUpdateActive = active != 0
		st.UpdatedAt = time.Unix(updated, 0).UTC()
		stocks = append(stocks, st)
	}
	return stocks, rows.Err()
}

// CreateStock inserts the stock row and its seed PricePoint in one transaction.
func (s *Store) CreateStock(ctx context.Context, st model.Stock, seed model.PricePoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stocks (id, symbol, name, market_cap,
			current_price, previous_price, day_open, day_high, day_low,
			volume, jump_probability, jump_multiplier_min, jump_multiplier_max,
			random_update_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, st.ID, st.Symbol, st.Name, st.MarketCap,
		st.CurrentPrice, st.PreviousPrice, st.DayOpen, st.DayHigh, st.DayLow,
		st.Volume, st.JumpProbability, st.JumpMultiplierMin, st.JumpMultiplierMax,
		boolToInt(st.RandomUpdateActive), st.UpdatedAt.Unix())
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite insert stock: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO price_points (stock_id, price, ts) VALUES (?, ?, ?)`,
		seed.StockID, seed.Price, seed.Timestamp.UnixNano()); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite insert seed point: %w", err)
	}

	return tx.Commit()
}

// ApplyPrice updates the stock row and appends the PricePoint atomically.
func (s *Store) ApplyPrice(ctx context.Context, id string, upd store.PriceUpdate, tick model.PricePoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE stocks SET current_price = ?, previous_price = ?,
			day_high = ?, day_low = ?, volume = ?, updated_at = ?
		WHERE id = ?
	`, upd.CurrentPrice, upd.PreviousPrice, upd.DayHigh, upd.DayLow,
		upd.Volume, upd.UpdatedAt.Unix(), id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite update stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return model.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO price_points (stock_id, price, ts) VALUES (?, ?, ?)`,
		tick.StockID, tick.Price, tick.Timestamp.UnixNano()); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite append point: %w", err)
	}

	return tx.Commit()
}

// UpdateSettings persists new simulation parameters.
func (s *Store) UpdateSettings(ctx context.Context, id string, jumpProbability, jumpMin, jumpMax float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE stocks SET jump_probability = ?, jump_multiplier_min = ?, jump_multiplier_max = ?
		WHERE id = ?
	`, jumpProbability, jumpMin, jumpMax, id)
	if err != nil {
		return fmt.Errorf("sqlite update settings: %w", err)
	}
	return requireRow(res)
}

// UpdateActive persists the random-update flag.
func (s *Store) UpdateActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stocks SET random_update_active = ? WHERE id = ?`,
		boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("sqlite update active: %w", err)
	}
	return requireRow(res)
}

// ListTicks returns the full history ascending.
func (s *Store) ListTicks(ctx context.Context, id string) ([]model.PricePoint, error) {
	return s.listTicks(ctx, id, time.Time{})
}

// ListTicksSince returns history at or after since, ascending.
func (s *Store) ListTicksSince(ctx context.Context, id string, since time.Time) ([]model.PricePoint, error) {
	return s.listTicks(ctx, id, since)
}

func (s *Store) listTicks(ctx context.Context, id string, since time.Time) ([]model.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stock_id, price, ts FROM price_points
		WHERE stock_id = ? AND ts >= ?
		ORDER BY ts ASC, id ASC
	`, id, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("sqlite list ticks: %w", err)
	}
	defer rows.Close()

	var points []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		var ts int64
		if err := rows.Scan(&p.StockID, &p.Price, &ts); err != nil {
			return nil, fmt.Errorf("sqlite scan point: %w", err)
		}
		p.Timestamp = time.Unix(0, ts).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// DeleteStockCascade removes the stock and all its history in one transaction.
func (s *Store) DeleteStockCascade(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM price_points WHERE stock_id = ?`, id); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite delete points: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM stocks WHERE id = ?`, id)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite delete stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return model.ErrNotFound
	}

	return tx.Commit()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
