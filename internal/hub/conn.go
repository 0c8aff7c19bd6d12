package hub

import (
	"sync"

	"github.com/google/uuid"

	"github.com/JakeConal/smart-restaurant/internal/order"
)

// Conn is one logical hub session. The transport layer owns exactly one of
// these per open connection and drains Events into its socket.
type Conn struct {
	id   string
	hub  *Hub
	send chan order.Event

	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
}

func (h *Hub) NewConn() *Conn {
	c := &Conn{
		id:   uuid.NewString(),
		hub:  h,
		send: make(chan order.Event, h.bufSize),
		subs: make(map[string]*Subscription),
	}
	h.conns.Add(1)
	return c
}

func (c *Conn) ID() string {
	return c.id
}

// Events is the outbound stream. It is closed by Close.
func (c *Conn) Events() <-chan order.Event {
	return c.send
}

// Subscription returns the live handle for orderID, or nil.
func (c *Conn) Subscription(orderID string) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[orderID]
}

// Close tears down every subscription of the connection atomically from the
// hub's point of view, then closes the outbound channel. Safe to call twice.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = map[string]*Subscription{}
	c.mu.Unlock()

	// Bucket removal takes each bucket's write lock, so any publish already
	// holding a read lock finishes its sends first; closing the channel
	// afterwards cannot race a send.
	for orderID := range subs {
		c.hub.removeFromBucket(c, orderID)
		c.hub.subs.Add(-1)
	}
	close(c.send)
	c.hub.conns.Add(-1)
}
