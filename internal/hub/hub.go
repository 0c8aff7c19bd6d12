// Package hub is the single-process notification fan-out: it maps live
// connections to the order ids they are subscribed to and pushes
// state-change events to every subscriber of an order. Delivery is
// best-effort; a client that misses an event recovers by direct fetch.
package hub

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/JakeConal/smart-restaurant/internal/order"
)

const numBuckets = 32

// bucket guards one stripe of the subscriber registry so subscribe and
// publish traffic on unrelated orders never contend on a single lock.
type bucket struct {
	mu   sync.RWMutex
	subs map[string]map[*Conn]*Subscription
}

type Subscription struct {
	OrderID string
	conn    *Conn
}

type Hub struct {
	buckets [numBuckets]bucket
	bufSize int

	conns atomic.Int64
	subs  atomic.Int64
}

func New(bufSize int) *Hub {
	h := &Hub{bufSize: bufSize}
	for i := range h.buckets {
		h.buckets[i].subs = make(map[string]map[*Conn]*Subscription)
	}
	return h
}

func (h *Hub) bucketFor(orderID string) *bucket {
	f := fnv.New32a()
	f.Write([]byte(orderID))
	return &h.buckets[f.Sum32()%numBuckets]
}

// Subscribe registers interest of conn in orderID. Idempotent: a second call
// for the same pair returns the existing handle.
func (h *Hub) Subscribe(c *Conn, orderID string) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if sub, ok := c.subs[orderID]; ok {
		return sub
	}

	sub := &Subscription{OrderID: orderID, conn: c}
	c.subs[orderID] = sub

	b := h.bucketFor(orderID)
	b.mu.Lock()
	set, ok := b.subs[orderID]
	if !ok {
		set = make(map[*Conn]*Subscription)
		b.subs[orderID] = set
	}
	set[c] = sub
	b.mu.Unlock()

	h.subs.Add(1)
	return sub
}

// Unsubscribe removes a subscription. Unknown or already-removed handles are
// a no-op so duplicate teardown from reconnect races stays harmless.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	c := sub.conn

	c.mu.Lock()
	current, ok := c.subs[sub.OrderID]
	if !ok || current != sub {
		c.mu.Unlock()
		return
	}
	delete(c.subs, sub.OrderID)
	c.mu.Unlock()

	h.removeFromBucket(c, sub.OrderID)
	h.subs.Add(-1)
}

func (h *Hub) removeFromBucket(c *Conn, orderID string) {
	b := h.bucketFor(orderID)
	b.mu.Lock()
	if set, ok := b.subs[orderID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(b.subs, orderID)
		}
	}
	b.mu.Unlock()
}

// Publish delivers ev to every connection subscribed to orderID. It never
// blocks: a consumer whose outbound buffer is full loses this event, other
// subscribers are unaffected.
func (h *Hub) Publish(orderID string, ev order.Event) {
	b := h.bucketFor(orderID)
	b.mu.RLock()
	defer b.mu.RUnlock()

	for c := range b.subs[orderID] {
		select {
		case c.send <- ev:
		default:
			log.Warn().Str("order_id", orderID).Str("conn_id", c.id).Str("type", string(ev.Type)).
				Msg("delivery dropped: slow consumer")
		}
	}
}

func (h *Hub) ConnCount() int64 {
	return h.conns.Load()
}

func (h *Hub) SubscriptionCount() int64 {
	return h.subs.Load()
}
