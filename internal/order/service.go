package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrFieldIsEmpty      = errors.New("required field is empty")
)

const (
	minGuestNameLen = 1
	maxGuestNameLen = 100
	minItems        = 1
	maxItems        = 20
	minItemQuantity = 1
	maxItemQuantity = 20
	maxItemPrice    = 999.99

	allowedNameCharacters = " -_'"
)

// Repository is the authoritative order store. Implementations enforce the
// transition table and the once-only flips inside their own transaction
// boundary so concurrent callers cannot race past them.
type Repository interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	Transition(ctx context.Context, id string, to Status, changedBy string) (*Order, error)
	// MarkPaid flips isPaid exactly once. The bool reports whether this call
	// applied the flip; a repeat call returns the stored order unchanged.
	MarkPaid(ctx context.Context, id string, meta PaymentMeta) (*Order, bool, error)
	// RequestBill stamps billRequestedAt at most once, same contract.
	RequestBill(ctx context.Context, id string) (*Order, bool, error)
}

// EventPublisher pushes state-change events toward the notification hub.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Service struct {
	repo    Repository
	events  EventPublisher
	taxRate float64
}

func NewService(repo Repository, events EventPublisher, taxRate float64) *Service {
	return &Service{repo: repo, events: events, taxRate: taxRate}
}

func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	o := &Order{
		ID:              uuid.NewString(),
		TableID:         req.TableID,
		GuestName:       req.GuestName,
		SpecialRequests: req.SpecialRequests,
		Status:          StatusPendingAcceptance,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	subtotal := 0.0
	for _, it := range req.Items {
		perUnit := it.UnitPrice
		for _, m := range it.Modifiers {
			perUnit += m.Price
		}
		lineTotal := round2(perUnit * float64(it.Quantity))
		subtotal += lineTotal
		o.Items = append(o.Items, Item{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			Modifiers:  it.Modifiers,
			LineTotal:  lineTotal,
		})
	}
	o.Subtotal = round2(subtotal)
	o.TaxAmount = round2(subtotal * s.taxRate)
	o.Total = round2(o.Subtotal + o.TaxAmount)

	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("cannot save order: %w", err)
	}

	log.Info().Str("order_id", o.ID).Str("number", o.Number).Float64("total", o.Total).Msg("order created")
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// Transition applies one edge of the state machine. Every applied transition
// produces exactly one event; a rejected request produces none.
func (s *Service) Transition(ctx context.Context, id string, to Status, changedBy string) (*Order, error) {
	if !ValidStatus(to) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}

	o, err := s.repo.Transition(ctx, id, to, changedBy)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, TransitionEvent(o, time.Now().UTC()))
	log.Info().Str("order_id", o.ID).Str("status", string(o.Status)).Int64("seq", o.StatusSeq).Msg("order transitioned")
	return o, nil
}

// RequestBill stamps billRequestedAt once. Repeat calls keep the first
// timestamp and emit nothing.
func (s *Service) RequestBill(ctx context.Context, id string) (*Order, error) {
	o, applied, err := s.repo.RequestBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if applied {
		s.publish(ctx, SnapshotEvent(o, time.Now().UTC()))
	}
	return o, nil
}

// MarkPaid flips isPaid exactly once and stamps the payment metadata and the
// order's discount share. Calling it on an already-paid order returns the
// stored result.
func (s *Service) MarkPaid(ctx context.Context, id string, meta PaymentMeta) (*Order, error) {
	if !meta.Method.Valid() {
		return nil, fmt.Errorf("unknown payment method %q", meta.Method)
	}

	o, applied, err := s.repo.MarkPaid(ctx, id, meta)
	if err != nil {
		return nil, err
	}
	if applied {
		s.publish(ctx, SnapshotEvent(o, time.Now().UTC()))
		log.Info().Str("order_id", o.ID).Str("method", string(meta.Method)).Float64("final_total", o.FinalTotal).Msg("order paid")
	}
	return o, nil
}

// publish is best-effort: the transition is committed before the event goes
// out, and a missed event is recoverable by a direct read on reconnect.
func (s *Service) publish(ctx context.Context, ev Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Error().Err(err).Str("order_id", ev.OrderID).Str("type", string(ev.Type)).Msg("failed to publish order event")
	}
}

func (s *Service) validate(req CreateOrderRequest) error {
	if err := s.validateGuestName(req.GuestName); err != nil {
		return fmt.Errorf("invalid guest name: %w", err)
	}
	if req.TableID == "" {
		return fmt.Errorf("invalid table id: %w", ErrFieldIsEmpty)
	}
	if err := s.validateItems(req.Items); err != nil {
		return fmt.Errorf("invalid order items: %w", err)
	}
	return nil
}

func (s *Service) validateGuestName(name string) error {
	if name == "" {
		return ErrFieldIsEmpty
	}
	if len(name) < minGuestNameLen || len(name) > maxGuestNameLen {
		return fmt.Errorf("length must be in range [%d, %d]", minGuestNameLen, maxGuestNameLen)
	}
	for _, r := range name {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || strings.ContainsRune(allowedNameCharacters, r) {
			continue
		}
		return fmt.Errorf("must not contain special characters other than `%s`", allowedNameCharacters)
	}
	return nil
}

func (s *Service) validateItems(items []CreateItemRequest) error {
	if len(items) == 0 {
		return ErrFieldIsEmpty
	}
	if len(items) < minItems || len(items) > maxItems {
		return fmt.Errorf("amount of items: %d, must be in range [%d, %d]", len(items), minItems, maxItems)
	}
	for i, item := range items {
		if item.Name == "" {
			return fmt.Errorf("item %d: %w", i+1, ErrFieldIsEmpty)
		}
		if item.Quantity < minItemQuantity || item.Quantity > maxItemQuantity {
			return fmt.Errorf("item %d: quantity: %d, must be in range [%d, %d]", i+1, item.Quantity, minItemQuantity, maxItemQuantity)
		}
		if item.UnitPrice <= 0 || item.UnitPrice > maxItemPrice {
			return fmt.Errorf("item %d: unit price: %.2f, must be in range (0, %.2f]", i+1, item.UnitPrice, maxItemPrice)
		}
		for _, m := range item.Modifiers {
			if m.Price < 0 {
				return fmt.Errorf("item %d: modifier %q: price must not be negative", i+1, m.Name)
			}
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
