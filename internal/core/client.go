package core

import (
	"sync"
	"time"
)

// rateState is the per-connection sliding rate-limit window.
type rateState struct {
	count      int
	windowEnd  time.Time
	mutedUntil time.Time
}

// Client is a live realtime connection as seen by the core layer. All fields
// except Events are owned by the hub goroutine after Join.
type Client struct {
	ID           string
	Username     string
	Color        string
	Room         string
	JoinedAt     time.Time
	LastActivity time.Time
	Events       chan *Event

	rl        rateState
	closeOnce sync.Once
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string) *Client {
	return &Client{
		ID:     id,
		Events: make(chan *Event, 32),
	}
}

// send delivers an event without blocking the hub. Slow consumers drop
// events rather than stall everyone else.
func (c *Client) send(ev *Event) {
	defer func() {
		// Sending on a closed channel panics; a client evicted between
		// lookup and send is treated as a drop.
		_ = recover()
	}()
	select {
	case c.Events <- ev:
	default:
	}
}

// Close closes the event channel exactly once, ending the write loop.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Events)
	})
}
