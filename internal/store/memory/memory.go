// Package memory implements the order repository and checkout store on
// mutex-guarded maps. It backs the package tests and is usable as an
// ephemeral store for local development.
package memory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/JakeConal/smart-restaurant/internal/order"
	"github.com/JakeConal/smart-restaurant/internal/payment"
)

type Store struct {
	mu        sync.RWMutex
	orders    map[string]*order.Order
	checkouts map[string]*payment.Checkout
	created   int
}

func New() *Store {
	return &Store{
		orders:    make(map[string]*order.Order),
		checkouts: make(map[string]*payment.Checkout),
	}
}

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	s.created++
	o.Number = fmt.Sprintf("ORD_%s_%03d", o.CreatedAt.Format("20060102"), s.created)
	cp := clone(o)
	s.orders[o.ID] = &cp
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := clone(o)
	return &cp, nil
}

func (s *Store) Transition(ctx context.Context, id string, to order.Status, changedBy string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if !order.CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", order.ErrInvalidTransition, o.Status, to)
	}

	now := time.Now().UTC()
	o.Status = to
	o.StatusSeq++
	o.StampMilestone(to, now)
	o.UpdatedAt = now

	cp := clone(o)
	return &cp, nil
}

func (s *Store) MarkPaid(ctx context.Context, id string, meta order.PaymentMeta) (*order.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, false, order.ErrNotFound
	}
	if o.IsPaid {
		cp := clone(o)
		return &cp, false, nil
	}

	now := time.Now().UTC()
	o.IsPaid = true
	o.PaidAt = &now
	o.PaymentMethod = meta.Method
	o.TransactionNo = meta.TransactionNo
	o.DiscountAmount = round2(o.Total * meta.DiscountPercent / 100)
	o.FinalTotal = round2(o.Total - o.DiscountAmount)
	o.StatusSeq++
	o.UpdatedAt = now

	cp := clone(o)
	return &cp, true, nil
}

func (s *Store) RequestBill(ctx context.Context, id string) (*order.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, false, order.ErrNotFound
	}
	if o.BillRequestedAt != nil {
		cp := clone(o)
		return &cp, false, nil
	}

	now := time.Now().UTC()
	o.BillRequestedAt = &now
	o.StatusSeq++
	o.UpdatedAt = now

	cp := clone(o)
	return &cp, true, nil
}

func (s *Store) SaveCheckout(ctx context.Context, c *payment.Checkout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	cp.OrderIDs = append([]string(nil), c.OrderIDs...)
	s.checkouts[c.Key] = &cp
	return nil
}

func (s *Store) ClaimCheckout(ctx context.Context, key string) (*payment.Checkout, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.checkouts[key]
	if !ok {
		return nil, false, payment.ErrUnknownReconciliationKey
	}
	claimed := false
	if c.ReconciledAt == nil {
		now := time.Now().UTC()
		c.ReconciledAt = &now
		claimed = true
	}
	cp := *c
	cp.OrderIDs = append([]string(nil), c.OrderIDs...)
	return &cp, claimed, nil
}

func (s *Store) StoreResult(ctx context.Context, key string, res payment.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.checkouts[key]
	if !ok {
		return payment.ErrUnknownReconciliationKey
	}
	c.Result = &res
	return nil
}

func clone(o *order.Order) order.Order {
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	for i := range cp.Items {
		cp.Items[i].Modifiers = append([]order.ItemModifier(nil), cp.Items[i].Modifiers...)
	}
	return cp
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
