package broadcast

import "sync"

// Captured is one recorded Publish call.
type Captured struct {
	Event   string
	Payload any
}

// Capture records every published event. Test double.
type Capture struct {
	mu     sync.Mutex
	events []Captured
}

func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) Publish(event string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, Captured{Event: event, Payload: payload})
}

// Events returns a copy of everything recorded so far.
func (c *Capture) Events() []Captured {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Captured, len(c.events))
	copy(out, c.events)
	return out
}

// Last returns the most recent event with the given name, or false.
func (c *Capture) Last(event string) (Captured, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Event == event {
			return c.events[i], true
		}
	}
	return Captured{}, false
}

// Count returns how many events with the given name were recorded.
func (c *Capture) Count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Event == event {
			n++
		}
	}
	return n
}
