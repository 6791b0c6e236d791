// cmd/marketd — Stock market simulation service.
//
// Drives the random-walk price scheduler over all registered stocks,
// persists every tick, and exposes:
//
//	/ws       — WebSocket: stock-update events out, admin commands in
//	/healthz  — health status (on METRICS_ADDR)
//	/metrics  — Prometheus metrics (on METRICS_ADDR)
//
// Config (env vars):
//
//	LISTEN_ADDR          — gateway listen address        (default ":8080")
//	METRICS_ADDR         — metrics/health address        (default ":9090")
//	SQLITE_PATH          — database file; "" = in-memory (default "data/marketsim.db")
//	REDIS_ADDR           — Redis relay; "" = disabled    (default "")
//	UPDATE_FREQUENCY_MS  — tick interval                 (default "5000")
//	AUTO_START           — start scheduler on boot       (default "true")
//	ADMIN_TOTP_SECRET    — TOTP guard for admin commands (default "", disabled)
package main

import (
	"context"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"marketsimv1/config"
	"marketsimv1/internal/auth"
	"marketsimv1/internal/broadcast"
	"marketsimv1/internal/candle"
	"marketsimv1/internal/gateway"
	"marketsimv1/internal/logger"
	"marketsimv1/internal/market"
	"marketsimv1/internal/metrics"
	"marketsimv1/internal/scheduler"
	"marketsimv1/internal/store"
	memstore "marketsimv1/internal/store/memory"
	redisrelay "marketsimv1/internal/store/redis"
	sqlitestore "marketsimv1/internal/store/sqlite"
)

func main() {
	logger.Init("marketd", slog.LevelInfo)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[marketd] starting...")

	cfg := config.Load()

	// ---- Metrics & health ----
	prom := metrics.New()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Store ----
	var st store.Store
	if cfg.SQLitePath != "" {
		os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
		sqlStore, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
		if err != nil {
			log.Fatalf("[marketd] sqlite init failed: %v", err)
		}
		defer sqlStore.Close()
		st = sqlStore
		health.SetSQLiteOK(true)
		health.StartLivenessChecker(ctx, nil, sqlStore.DB(), 10*time.Second)
		log.Println("[marketd] sqlite store ready")
	} else {
		st = memstore.New()
		health.SetSQLiteOK(true)
		log.Println("[marketd] *** in-memory store — nothing survives a restart ***")
	}

	// ---- Redis relay (optional) ----
	var relay *redisrelay.Relay
	if cfg.RedisAddr != "" {
		var err error
		relay, err = redisrelay.New(redisrelay.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[marketd] WARNING: redis init failed: %v (continuing without relay)", err)
			health.SetRedisConnected(false)
		} else {
			defer relay.Close()
			relay.OnError = func() { prom.RedisErrors.Inc() }
			health.SetRedisConnected(true)
			log.Println("[marketd] redis relay ready")
		}
	}

	// ---- Market registry + control plane ----
	mkt := market.New(st, nil) // publisher wired below, after the hub exists
	mkt.OnStoreError = func() { prom.StoreErrors.Inc() }
	mkt.OnManualOverride = func() { prom.ManualOverrides.Inc() }

	// ---- Scheduler ----
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	interval := time.Duration(cfg.UpdateFrequencyMs) * time.Millisecond
	sched := scheduler.New(mkt, interval, rng)
	sched.OnCycle = func(dur time.Duration, updated, skipped int) {
		prom.TickCycleDur.Observe(dur.Seconds())
		prom.TicksTotal.Add(float64(updated))
		prom.ActiveStocks.Set(float64(updated))
		health.SetLastCycleTime(time.Now())
	}

	// ---- Gateway hub ----
	candles := candle.NewService(st)
	guard := auth.New(cfg.AdminTOTPSecret)
	if guard.Enabled() {
		log.Println("[marketd] admin TOTP guard enabled")
	}
	hub := gateway.NewHub(mkt, sched, candles, guard)
	hub.OnEvent = func(event string) { prom.EventsTotal.WithLabelValues(event).Inc() }
	hub.OnDrop = func() { prom.BroadcastDrops.Inc() }

	// ---- Publisher: WS fan-out + optional Redis mirror ----
	pubs := broadcast.Multi{hub}
	if relay != nil {
		pubs = append(pubs, relay)
	}
	mkt.SetPublisher(pubs)

	// ---- Load stocks and start the simulation ----
	if err := mkt.Load(ctx); err != nil {
		log.Fatalf("[marketd] load stocks failed: %v", err)
	}
	stocks := mkt.Snapshots()
	health.SetStockCount(len(stocks))
	log.Printf("[marketd] loaded %d stocks", len(stocks))
	for _, s := range stocks {
		slog.Info("stock registered",
			append(logger.Stock(s.ID, s.Symbol),
				slog.Float64("price", s.CurrentPrice),
				slog.Bool("active", s.RandomUpdateActive))...)
	}

	if cfg.AutoStart {
		sched.Start(ctx)
		health.SetSchedulerRunning(true)
	} else {
		log.Println("[marketd] AUTO_START=false — waiting for start-simulation command")
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prom.WSClients.Set(float64(hub.ClientCount()))
				health.SetSchedulerRunning(sched.Running())
				health.SetStockCount(len(mkt.IDs()))
			}
		}
	}()

	// ---- Gateway HTTP server ----
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"status":"ok","service":"marketd"}`))
	})
	gwSrv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Printf("[marketd] ✅ gateway listening on %s (WebSocket: ws://localhost%s/ws)", cfg.ListenAddr, cfg.ListenAddr)
		if err := gwSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[marketd] gateway server error: %v", err)
		}
	}()

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[marketd] shutdown signal received...")

	sched.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	gwSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	log.Println("[marketd] bye")
}
