package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/JakeConal/smart-restaurant/internal/order"
)

const (
	reconnectBase = time.Second
	reconnectMax  = 30 * time.Second
)

// Tracker keeps the session cache in sync with the server. The hub holds no
// cross-connection memory, so after every (re)connect the tracker
// re-subscribes to each tracked order and reconciles it by direct fetch —
// the push channel is a latency optimization, never the system of record.
type Tracker struct {
	cache  *Cache
	wsURL  string
	apiURL string
	dialer *websocket.Dialer
	client *http.Client

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewTracker(cache *Cache, wsURL, apiURL string) *Tracker {
	return &Tracker{
		cache:  cache,
		wsURL:  wsURL,
		apiURL: apiURL,
		dialer: websocket.DefaultDialer,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Run connects and consumes events until ctx is cancelled, reconnecting with
// backoff on any transport failure.
func (t *Tracker) Run(ctx context.Context) {
	backoff := reconnectBase
	for {
		if err := t.runOnce(ctx); err != nil {
			log.Warn().Err(err).Msg("tracker connection lost")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (t *Tracker) runOnce(ctx context.Context) error {
	conn, _, err := t.dialer.DialContext(ctx, t.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
	}()

	if err := t.resync(ctx); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var ev order.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		if _, err := t.cache.Merge(ev.OrderID, ev); err != nil {
			log.Error().Err(err).Str("order_id", ev.OrderID).Msg("failed to merge pushed event")
		}
	}
}

// resync re-subscribes every tracked order and refreshes it from the store,
// covering any events missed while disconnected.
func (t *Tracker) resync(ctx context.Context) error {
	ids, err := t.cache.TrackedIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := t.subscribe(id); err != nil {
			return err
		}
		if err := t.refresh(ctx, id); err != nil {
			log.Warn().Err(err).Str("order_id", id).Msg("failed to refresh order on reconnect")
		}
	}
	return nil
}

// Track starts following an order: persists it and subscribes the live
// connection, if one is up. An already-tracked order keeps its cached entry,
// so re-tracking cannot regress state the cache has accumulated.
func (t *Tracker) Track(o *order.Order) error {
	existing, err := t.cache.Load(o.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		if err := t.cache.Save(Project(o)); err != nil {
			return err
		}
	}
	t.mu.Lock()
	connected := t.conn != nil
	t.mu.Unlock()
	if !connected {
		return nil
	}
	return t.subscribe(o.ID)
}

// Untrack removes the cache entry and unsubscribes.
func (t *Tracker) Untrack(orderID string) error {
	if err := t.cache.Remove(orderID); err != nil {
		return err
	}
	return t.writeFrame("unsubscribe", orderID, true)
}

func (t *Tracker) subscribe(orderID string) error {
	return t.writeFrame("subscribe", orderID, false)
}

// writeFrame serializes control writes; gorilla permits one writer at a time.
func (t *Tracker) writeFrame(action, orderID string, okOffline bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		if okOffline {
			return nil
		}
		return fmt.Errorf("not connected")
	}
	return t.conn.WriteJSON(map[string]string{"action": action, "order_id": orderID})
}

func (t *Tracker) refresh(ctx context.Context, orderID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.apiURL+"/api/orders/"+orderID, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return t.cache.Remove(orderID)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var o order.Order
	if err := json.NewDecoder(resp.Body).Decode(&o); err != nil {
		return err
	}
	return t.cache.Save(Project(&o))
}
