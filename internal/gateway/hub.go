// Package gateway exposes the simulation over WebSocket: outbound event
// fan-out to all connected clients and inbound admin/query commands
// dispatched to the control plane.
package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"marketsimv1/internal/auth"
	"marketsimv1/internal/candle"
	"marketsimv1/internal/market"
	"marketsimv1/internal/scheduler"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Hub manages WebSocket clients and implements broadcast.Publisher.
// Delivery is best-effort: a slow client's queue overflows and the
// event is dropped for that client only.
type Hub struct {
	market  *market.Market
	sched   *scheduler.Scheduler
	candles *candle.Service
	guard   *auth.Guard

	// Metrics hooks (optional, set externally)
	OnEvent func(event string)
	OnDrop  func()

	mu      sync.RWMutex
	clients map[*Client]bool
}

// envelope is the outbound wire format.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	TS    time.Time       `json:"ts"`
}

// NewHub creates a Hub wired to the control plane and read services.
func NewHub(m *market.Market, sched *scheduler.Scheduler, candles *candle.Service, guard *auth.Guard) *Hub {
	return &Hub{
		market:  m,
		sched:   sched,
		candles: candles,
		guard:   guard,
		clients: make(map[*Client]bool),
	}
}

// Publish fans an event out to every connected client. Never blocks.
func (h *Hub) Publish(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[gateway] marshal %s payload: %v", event, err)
		return
	}
	msg, err := json.Marshal(envelope{Event: event, Data: data, TS: time.Now().UTC()})
	if err != nil {
		return
	}

	if h.OnEvent != nil {
		h.OnEvent(event)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default: // slow client — drop event
			if h.OnDrop != nil {
				h.OnDrop()
			}
		}
	}
}

// HandleWS upgrades the connection and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] upgrade error: %v", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[gateway] client connected: %s (%d total)", r.RemoteAddr, count)

	client.sendInitialState()
	go client.writePump()
	go client.readPump()
}

// removeClient unregisters a client and closes its queue.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[gateway] client disconnected (%d total)", count)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
