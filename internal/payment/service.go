package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/JakeConal/smart-restaurant/internal/order"
)

var (
	ErrUnknownReconciliationKey = errors.New("unknown reconciliation key")
	ErrEmptyCheckout            = errors.New("checkout has no orders")
)

// CheckoutStore persists pending checkouts keyed by reconciliation key and
// provides the atomic check-and-mark needed for idempotent reconciliation.
type CheckoutStore interface {
	SaveCheckout(ctx context.Context, c *Checkout) error
	// ClaimCheckout marks the checkout reconciled if it was not already.
	// The bool reports whether this call won the claim; either way the
	// stored checkout (including any stored result) is returned.
	ClaimCheckout(ctx context.Context, key string) (*Checkout, bool, error)
	StoreResult(ctx context.Context, key string, res Result) error
}

// OrderSettler is the slice of the order service the protocol needs.
type OrderSettler interface {
	MarkPaid(ctx context.Context, id string, meta order.PaymentMeta) (*order.Order, error)
}

type Service struct {
	orders    OrderSettler
	checkouts CheckoutStore
	gateway   *Gateway
}

func NewService(orders OrderSettler, checkouts CheckoutStore, gateway *Gateway) *Service {
	return &Service{orders: orders, checkouts: checkouts, gateway: gateway}
}

// Begin converts a computed checkout into a gateway redirect. The order-id
// set is persisted under a fresh reconciliation key before the URL is
// returned, so the return callback can recover it without trusting the
// gateway's reference field for anything beyond the key itself.
func (s *Service) Begin(ctx context.Context, checkout Checkout, returnURL string) (string, error) {
	if len(checkout.OrderIDs) == 0 {
		return "", ErrEmptyCheckout
	}

	checkout.Key = uuid.NewString()
	checkout.CreatedAt = time.Now().UTC()
	if err := s.checkouts.SaveCheckout(ctx, &checkout); err != nil {
		return "", fmt.Errorf("cannot persist checkout: %w", err)
	}

	info := fmt.Sprintf("Payment for %d order(s)", len(checkout.OrderIDs))
	redirect := s.gateway.BuildPaymentURL(checkout.Key, checkout.FinalTotal, info, returnURL, checkout.CreatedAt)

	log.Info().Str("reconciliation_key", checkout.Key).Int("orders", len(checkout.OrderIDs)).
		Float64("final_total", checkout.FinalTotal).Msg("external payment started")
	return redirect, nil
}

// VerifyReturn validates the gateway callback and applies the paid state to
// every order in the checkout exactly once, no matter how many times the
// callback fires. Duplicate calls replay the stored result.
func (s *Service) VerifyReturn(ctx context.Context, params url.Values) (Result, error) {
	key, txnNo, success, err := s.gateway.VerifyCallback(params)
	if err != nil {
		return Result{Success: false, Message: "payment verification failed"}, err
	}

	checkout, claimed, err := s.checkouts.ClaimCheckout(ctx, key)
	if err != nil {
		if errors.Is(err, ErrUnknownReconciliationKey) {
			return Result{Success: false, Message: "payment verification failed"}, err
		}
		return Result{}, err
	}
	if !claimed && checkout.Result != nil {
		return *checkout.Result, nil
	}
	// A claim with no stored result means an earlier attempt stopped between
	// claiming and storing. markPaid is idempotent, so re-applying is safe.

	res := Result{OrderIDs: checkout.OrderIDs, TransactionNo: txnNo}
	if !success {
		res.Message = "payment was not completed"
		if err := s.checkouts.StoreResult(ctx, key, res); err != nil {
			return Result{}, err
		}
		return res, nil
	}

	meta := order.PaymentMeta{
		Method:          order.MethodVNPay,
		TransactionNo:   txnNo,
		DiscountPercent: checkout.DiscountPercent,
	}
	for _, id := range checkout.OrderIDs {
		if _, err := s.orders.MarkPaid(ctx, id, meta); err != nil {
			return Result{}, fmt.Errorf("cannot mark order %s paid: %w", id, err)
		}
	}

	res.Success = true
	res.Message = "payment applied"
	if err := s.checkouts.StoreResult(ctx, key, res); err != nil {
		return Result{}, err
	}

	log.Info().Str("reconciliation_key", key).Int("orders", len(checkout.OrderIDs)).Msg("payment reconciled")
	return res, nil
}

// SettleOnSite applies a card or cash payment taken by staff. On-site
// settlement covers a single order, so no aggregate discount applies.
func (s *Service) SettleOnSite(ctx context.Context, orderID string, method order.PaymentMethod) (*order.Order, error) {
	switch method {
	case order.MethodCard, order.MethodCash:
		return s.orders.MarkPaid(ctx, orderID, order.PaymentMeta{Method: method})
	case order.MethodVNPay:
		return nil, fmt.Errorf("method %s settles through the gateway round-trip", method)
	default:
		return nil, fmt.Errorf("unknown payment method %q", method)
	}
}
