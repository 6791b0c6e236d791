package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the simulation engine.
type Metrics struct {
	TicksTotal      prometheus.Counter
	ManualOverrides prometheus.Counter
	StoreErrors     prometheus.Counter
	TickCycleDur    prometheus.Histogram
	ActiveStocks    prometheus.Gauge

	// Broadcast path
	EventsTotal    *prometheus.CounterVec // labels: event
	BroadcastDrops prometheus.Counter
	RedisErrors    prometheus.Counter
	WSClients      prometheus.Gauge
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_ticks_total",
			Help: "Total simulated price updates applied",
		}),
		ManualOverrides: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_manual_overrides_total",
			Help: "Total manual price overrides applied",
		}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_store_errors_total",
			Help: "Store failures (tick skipped, retried next cycle)",
		}),
		TickCycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketsim_tick_cycle_duration_seconds",
			Help:    "Duration of one full scheduler cycle across all stocks",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveStocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketsim_active_stocks",
			Help: "Stocks updated in the most recent cycle",
		}),

		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsim_events_total",
			Help: "Events published to subscribers (by event name)",
		}, []string{"event"}),
		BroadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_broadcast_drops_total",
			Help: "Events dropped for slow WebSocket clients",
		}),
		RedisErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_redis_errors_total",
			Help: "Swallowed Redis relay delivery failures",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketsim_ws_clients",
			Help: "Currently connected WebSocket clients",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.ManualOverrides,
		m.StoreErrors,
		m.TickCycleDur,
		m.ActiveStocks,
		m.EventsTotal,
		m.BroadcastDrops,
		m.RedisErrors,
		m.WSClients,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	SchedulerRunning bool      `json:"scheduler_running"`
	LastCycleTime    time.Time `json:"last_cycle_time"`
	RedisConnected   bool      `json:"redis_connected"`
	SQLiteOK         bool      `json:"sqlite_ok"`
	StockCount       int       `json:"stock_count"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetSchedulerRunning(v bool) {
	h.mu.Lock()
	h.SchedulerRunning = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCycleTime(t time.Time) {
	h.mu.Lock()
	h.LastCycleTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetStockCount(n int) {
	h.mu.Lock()
	h.StockCount = n
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial probe and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.SQLiteOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	} else if !h.SchedulerRunning {
		overallStatus = "degraded"
	}

	cycleAge := ""
	if !h.LastCycleTime.IsZero() {
		cycleAge = time.Since(h.LastCycleTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status           string  `json:"status"`
		Uptime           string  `json:"uptime"`
		SchedulerRunning bool    `json:"scheduler_running"`
		LastCycleTime    string  `json:"last_cycle_time"`
		CycleAge         string  `json:"cycle_age"`
		RedisConnected   bool    `json:"redis_connected"`
		RedisLatencyMs   float64 `json:"redis_latency_ms"`
		SQLiteOK         bool    `json:"sqlite_ok"`
		SQLiteLatencyMs  float64 `json:"sqlite_latency_ms"`
		StockCount       int     `json:"stock_count"`
		LastCheckAt      string  `json:"last_check_at"`
	}{
		Status:           overallStatus,
		Uptime:           time.Since(h.StartedAt).Round(time.Second).String(),
		SchedulerRunning: h.SchedulerRunning,
		LastCycleTime:    h.LastCycleTime.Format(time.RFC3339),
		CycleAge:         cycleAge,
		RedisConnected:   h.RedisConnected,
		RedisLatencyMs:   h.RedisLatencyMs,
		SQLiteOK:         h.SQLiteOK,
		SQLiteLatencyMs:  h.SQLiteLatencyMs,
		StockCount:       h.StockCount,
		LastCheckAt:      h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
