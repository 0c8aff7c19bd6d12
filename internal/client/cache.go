// Package client is the guest-side half of order tracking: a durable
// per-session order cache with push-merge rules, and a tracker that keeps it
// in sync with the notification hub.
package client

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/JakeConal/smart-restaurant/internal/order"
)

const (
	entryKeyPrefix = "order-"
	indexKey       = "order-index"
)

// CachedItem is the minimal line-item projection needed to render tracking
// and payment UI. It is a point-in-time snapshot: later menu edits must not
// change what the guest ordered.
type CachedItem struct {
	Name      string               `json:"name"`
	Quantity  int                  `json:"quantity"`
	UnitPrice float64              `json:"unit_price"`
	Modifiers []order.ItemModifier `json:"modifiers,omitempty"`
	LineTotal float64              `json:"line_total"`
}

type CachedOrder struct {
	ID              string       `json:"id"`
	Number          string       `json:"number"`
	TableID         string       `json:"table_id"`
	GuestName       string       `json:"guest_name"`
	Items           []CachedItem `json:"items"`
	Status          order.Status `json:"status"`
	StatusSeq       int64        `json:"status_seq"`
	Subtotal        float64      `json:"subtotal"`
	TaxAmount       float64      `json:"tax_amount"`
	Total           float64      `json:"total"`
	IsPaid          bool         `json:"is_paid"`
	DiscountAmount  float64      `json:"discount_amount"`
	FinalTotal      float64      `json:"final_total"`
	BillRequestedAt *time.Time   `json:"bill_requested_at,omitempty"`
	PaidAt          *time.Time   `json:"paid_at,omitempty"`

	AcceptedAt        *time.Time `json:"accepted_at,omitempty"`
	KitchenReceivedAt *time.Time `json:"kitchen_received_at,omitempty"`
	PreparingAt       *time.Time `json:"preparing_at,omitempty"`
	ReadyAt           *time.Time `json:"ready_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`

	// BillRequestPending marks an optimistic local bill request until the
	// confirming snapshot event arrives.
	BillRequestPending bool `json:"bill_request_pending,omitempty"`
}

// Project reduces a full order to its cached form.
func Project(o *order.Order) CachedOrder {
	c := CachedOrder{
		ID:                o.ID,
		Number:            o.Number,
		TableID:           o.TableID,
		GuestName:         o.GuestName,
		Status:            o.Status,
		StatusSeq:         o.StatusSeq,
		Subtotal:          o.Subtotal,
		TaxAmount:         o.TaxAmount,
		Total:             o.Total,
		IsPaid:            o.IsPaid,
		DiscountAmount:    o.DiscountAmount,
		FinalTotal:        o.FinalTotal,
		BillRequestedAt:   o.BillRequestedAt,
		PaidAt:            o.PaidAt,
		AcceptedAt:        o.AcceptedAt,
		KitchenReceivedAt: o.KitchenReceivedAt,
		PreparingAt:       o.PreparingAt,
		ReadyAt:           o.ReadyAt,
		CompletedAt:       o.CompletedAt,
	}
	for _, it := range o.Items {
		c.Items = append(c.Items, CachedItem{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Modifiers: it.Modifiers,
			LineTotal: it.LineTotal,
		})
	}
	return c
}

// Cache stores one entry per tracked order plus an explicit index of tracked
// ids; nothing ever scans the whole key space.
type Cache struct {
	store Store
}

func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

// Load reads one entry; nil when the order is not tracked.
func (c *Cache) Load(orderID string) (*CachedOrder, error) {
	raw, err := c.store.Get(entryKeyPrefix + orderID)
	if err != nil || raw == nil {
		return nil, err
	}
	entry := &CachedOrder{}
	if err := json.Unmarshal(raw, entry); err != nil {
		return nil, fmt.Errorf("corrupt cache entry for %s: %w", orderID, err)
	}
	return entry, nil
}

// LoadAllUnpaid reconstructs what the guest is currently tracking. Paid and
// missing entries are evicted from the index on the way through.
func (c *Cache) LoadAllUnpaid() ([]CachedOrder, error) {
	ids, err := c.index()
	if err != nil {
		return nil, err
	}

	var unpaid []CachedOrder
	var keep []string
	for _, id := range ids {
		entry, err := c.Load(id)
		if err != nil {
			return nil, err
		}
		if entry == nil || entry.IsPaid {
			if err := c.store.Delete(entryKeyPrefix + id); err != nil {
				return nil, err
			}
			continue
		}
		keep = append(keep, id)
		unpaid = append(unpaid, *entry)
	}

	if len(keep) != len(ids) {
		if err := c.writeIndex(keep); err != nil {
			return nil, err
		}
	}
	return unpaid, nil
}

// TrackedIDs lists every order id in the index, including paid ones not yet
// evicted.
func (c *Cache) TrackedIDs() ([]string, error) {
	return c.index()
}

// Save upserts an entry and registers its id in the index.
func (c *Cache) Save(entry CachedOrder) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := c.store.Put(entryKeyPrefix+entry.ID, raw); err != nil {
		return err
	}
	return c.addToIndex(entry.ID)
}

// Remove drops an entry once no further tracking is needed.
func (c *Cache) Remove(orderID string) error {
	if err := c.store.Delete(entryKeyPrefix + orderID); err != nil {
		return err
	}
	ids, err := c.index()
	if err != nil {
		return err
	}
	keep := ids[:0]
	for _, id := range ids {
		if id != orderID {
			keep = append(keep, id)
		}
	}
	return c.writeIndex(keep)
}

// Merge applies a pushed event to the local entry. A full snapshot always
// wins; a partial event only advances the status and is dropped when the
// local state is already at or past the incoming one, so out-of-order
// delivery can never regress the view.
func (c *Cache) Merge(orderID string, ev order.Event) (*CachedOrder, error) {
	entry, err := c.Load(orderID)
	if err != nil {
		return nil, err
	}

	if ev.Type == order.EventUpdated {
		if ev.Order == nil {
			return entry, nil
		}
		updated := Project(ev.Order)
		if entry != nil && updated.BillRequestedAt == nil {
			updated.BillRequestPending = entry.BillRequestPending
		}
		if err := c.Save(updated); err != nil {
			return nil, err
		}
		return &updated, nil
	}

	if entry == nil {
		// Partial event for an untracked order: nothing to merge onto.
		return nil, nil
	}
	if order.ProgressRank(ev.NewStatus) <= order.ProgressRank(entry.Status) {
		return entry, nil
	}

	entry.Status = ev.NewStatus
	entry.StatusSeq = ev.Seq
	stampCached(entry, ev.NewStatus, ev.OccurredAt)
	if err := c.Save(*entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// MarkBillRequested sets the optimistic dirty marker for a bill request the
// server has not confirmed yet.
func (c *Cache) MarkBillRequested(orderID string) error {
	entry, err := c.Load(orderID)
	if err != nil {
		return err
	}
	if entry == nil || entry.BillRequestedAt != nil {
		return nil
	}
	entry.BillRequestPending = true
	return c.Save(*entry)
}

func stampCached(entry *CachedOrder, s order.Status, at time.Time) {
	switch s {
	case order.StatusAccepted:
		if entry.AcceptedAt == nil {
			entry.AcceptedAt = &at
		}
	case order.StatusReceived:
		if entry.KitchenReceivedAt == nil {
			entry.KitchenReceivedAt = &at
		}
	case order.StatusPreparing:
		if entry.PreparingAt == nil {
			entry.PreparingAt = &at
		}
	case order.StatusReady:
		if entry.ReadyAt == nil {
			entry.ReadyAt = &at
		}
	case order.StatusCompleted:
		if entry.CompletedAt == nil {
			entry.CompletedAt = &at
		}
	}
}

func (c *Cache) index() ([]string, error) {
	raw, err := c.store.Get(indexKey)
	if err != nil || raw == nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("corrupt cache index: %w", err)
	}
	return ids, nil
}

func (c *Cache) addToIndex(orderID string) error {
	ids, err := c.index()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == orderID {
			return nil
		}
	}
	ids = append(ids, orderID)
	sort.Strings(ids)
	return c.writeIndex(ids)
}

func (c *Cache) writeIndex(ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return c.store.Put(indexKey, raw)
}
