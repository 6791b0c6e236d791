// Package broadcast defines the narrow publish port between the
// simulation engine and its transports. The engine never sees a socket:
// it calls Publish and the injected implementations (WS hub, Redis
// relay) fan the event out best-effort.
package broadcast

import "log"

// Event names emitted by the engine.
const (
	EventStockUpdate          = "stock-update"
	EventStockUpdateStatus    = "stock-update-status"
	EventStockSettingsUpdated = "stock-settings-updated"
	EventStockCreated         = "stock-created"
	EventStockDeleted         = "stock-deleted"
)

// Publisher delivers one event to all current subscribers. Delivery is
// at-most-once and must never block the caller; a slow or failed
// subscriber is the publisher's problem, not the tick's.
type Publisher interface {
	Publish(event string, payload any)
}

// Multi fans one Publish call out to several publishers.
type Multi []Publisher

func (m Multi) Publish(event string, payload any) {
	for _, p := range m {
		p.Publish(event, payload)
	}
}

// Nop discards all events.
type Nop struct{}

func (Nop) Publish(string, any) {}

// Logged wraps a publisher and logs each event. Debug aid for local runs.
type Logged struct {
	Next Publisher
}

func (l Logged) Publish(event string, payload any) {
	log.Printf("[broadcast] %s", event)
	if l.Next != nil {
		l.Next.Publish(event, payload)
	}
}
