package hub

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeConal/smart-restaurant/internal/order"
)

func progressEvent(orderID string, seq int64, status order.Status) order.Event {
	return order.Event{
		Type:       order.EventProgress,
		OrderID:    orderID,
		Seq:        seq,
		NewStatus:  status,
		OccurredAt: time.Now().UTC(),
	}
}

func recv(t *testing.T, c *Conn) order.Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return order.Event{}
	}
}

func assertNoEvent(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		if ok {
			t.Fatalf("unexpected event %v", ev)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishFansOutToSubscribers(t *testing.T) {
	h := New(8)
	c1 := h.NewConn()
	c2 := h.NewConn()
	other := h.NewConn()

	h.Subscribe(c1, "order-x")
	h.Subscribe(c2, "order-x")
	h.Subscribe(other, "order-y")

	h.Publish("order-x", progressEvent("order-x", 1, order.StatusPreparing))

	assert.Equal(t, order.StatusPreparing, recv(t, c1).NewStatus)
	assert.Equal(t, order.StatusPreparing, recv(t, c2).NewStatus)
	assertNoEvent(t, other)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	h := New(8)
	c := h.NewConn()

	first := h.Subscribe(c, "order-x")
	second := h.Subscribe(c, "order-x")
	assert.Same(t, first, second)
	assert.Equal(t, int64(1), h.SubscriptionCount())

	// One subscription means one delivery.
	h.Publish("order-x", progressEvent("order-x", 1, order.StatusReady))
	recv(t, c)
	assertNoEvent(t, c)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := New(8)
	c := h.NewConn()

	sub := h.Subscribe(c, "order-x")
	h.Unsubscribe(sub)

	h.Publish("order-x", progressEvent("order-x", 1, order.StatusReady))
	assertNoEvent(t, c)
}

func TestUnsubscribeUnknownHandleIsNoOp(t *testing.T) {
	h := New(8)
	c := h.NewConn()
	sub := h.Subscribe(c, "order-x")

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	h.Unsubscribe(nil)
	assert.Equal(t, int64(0), h.SubscriptionCount())
}

func TestReconnectRequiresResubscribe(t *testing.T) {
	h := New(8)
	c := h.NewConn()
	h.Subscribe(c, "order-x")

	h.Publish("order-x", progressEvent("order-x", 1, order.StatusPreparing))
	assert.Equal(t, order.StatusPreparing, recv(t, c).NewStatus)

	// Disconnect, reconnect without re-subscribing: the hub holds no
	// cross-connection subscription memory.
	c.Close()
	c2 := h.NewConn()

	h.Publish("order-x", progressEvent("order-x", 2, order.StatusReady))
	assertNoEvent(t, c2)

	h.Subscribe(c2, "order-x")
	h.Publish("order-x", progressEvent("order-x", 3, order.StatusCompleted))
	assert.Equal(t, order.StatusCompleted, recv(t, c2).NewStatus)
}

func TestCloseRemovesAllSubscriptions(t *testing.T) {
	h := New(8)
	c := h.NewConn()
	h.Subscribe(c, "order-x")
	h.Subscribe(c, "order-y")
	require.Equal(t, int64(1), h.ConnCount())
	require.Equal(t, int64(2), h.SubscriptionCount())

	c.Close()
	c.Close() // second close is harmless

	assert.Equal(t, int64(0), h.ConnCount())
	assert.Equal(t, int64(0), h.SubscriptionCount())
}

func TestSlowConsumerDropsWithoutBlockingOthers(t *testing.T) {
	h := New(1)
	slow := h.NewConn()
	fast := h.NewConn()
	h.Subscribe(slow, "order-x")
	h.Subscribe(fast, "order-x")

	// Fill the slow consumer's buffer, then keep publishing; the fast
	// consumer must see every event and publish must never block.
	done := make(chan struct{})
	go func() {
		for i := int64(1); i <= 3; i++ {
			h.Publish("order-x", progressEvent("order-x", i, order.StatusPreparing))
			recv(t, fast)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow consumer")
	}

	// The slow consumer got only what fit in its buffer.
	assert.Equal(t, int64(1), recv(t, slow).Seq)
	assertNoEvent(t, slow)
}

func TestPerOrderFIFOPerConnection(t *testing.T) {
	h := New(64)
	c := h.NewConn()
	h.Subscribe(c, "order-x")

	for i := int64(1); i <= 20; i++ {
		h.Publish("order-x", progressEvent("order-x", i, order.StatusPreparing))
	}
	for i := int64(1); i <= 20; i++ {
		assert.Equal(t, i, recv(t, c).Seq)
	}
}

func TestSubscribeManyOrdersAcrossBuckets(t *testing.T) {
	h := New(8)
	c := h.NewConn()
	for i := 0; i < 100; i++ {
		h.Subscribe(c, fmt.Sprintf("order-%d", i))
	}
	assert.Equal(t, int64(100), h.SubscriptionCount())

	c.Close()
	assert.Equal(t, int64(0), h.SubscriptionCount())
}
