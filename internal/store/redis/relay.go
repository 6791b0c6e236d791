// Package redis relays published simulation events to Redis: the latest
// stock snapshot is cached under a key and every event is mirrored onto
// a pubsub channel so other processes (dashboards, bots) can follow the
// feed without a WebSocket connection. Delivery failures are swallowed —
// observability data, not a write-path failure.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"marketsimv1/internal/broadcast"
	"marketsimv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultLatestTTL = 30 * time.Minute
	publishTimeout   = 2 * time.Second
)

// Config configures the Redis relay.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Relay is a broadcast.Publisher backed by Redis.
type Relay struct {
	client *goredis.Client

	// OnError counts swallowed delivery failures. Metrics hook, optional.
	OnError func()
}

var _ broadcast.Publisher = (*Relay)(nil)

// Client returns the underlying Redis client for health checks.
func (r *Relay) Client() *goredis.Client { return r.client }

// New creates a Relay and pings the server.
func New(cfg Config) (*Relay, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Relay{client: client}, nil
}

// Publish mirrors one event to Redis. Best-effort: errors are logged and
// swallowed so a Redis outage never blocks or fails the tick path.
func (r *Relay) Publish(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	pipe := r.client.Pipeline()
	if event == broadcast.EventStockUpdate || event == broadcast.EventStockCreated {
		if st, ok := payload.(model.Stock); ok {
			pipe.Set(ctx, "stock:latest:"+st.ID, data, defaultLatestTTL)
		}
	}
	pipe.Publish(ctx, "pub:stock:"+event, data)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] publish %s failed: %v", event, err)
		if r.OnError != nil {
			r.OnError()
		}
	}
}

// Close closes the client.
func (r *Relay) Close() error {
	return r.client.Close()
}
