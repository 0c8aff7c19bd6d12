package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeConal/smart-restaurant/internal/payment"
)

func (s *Store) SaveCheckout(ctx context.Context, c *payment.Checkout) error {
	orderIDs, err := json.Marshal(c.OrderIDs)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO checkouts (key, order_ids, base_total, discount_percent, discount_amount, final_total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.Key, orderIDs, c.BaseTotal, c.DiscountPercent, c.DiscountAmount, c.FinalTotal, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert checkout: %w", err)
	}
	return nil
}

// ClaimCheckout is the conditional write giving verifyReturn its
// check-and-apply atomicity: only one caller observes claimed=true.
func (s *Store) ClaimCheckout(ctx context.Context, key string) (*payment.Checkout, bool, error) {
	now := time.Now().UTC()
	c, err := s.scanCheckout(s.pool.QueryRow(ctx, `
		UPDATE checkouts SET reconciled_at = $2
		WHERE key = $1 AND reconciled_at IS NULL
		RETURNING key, order_ids, base_total, discount_percent, discount_amount, final_total, created_at, reconciled_at, result`,
		key, now))
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	c, err = s.scanCheckout(s.pool.QueryRow(ctx, `
		SELECT key, order_ids, base_total, discount_percent, discount_amount, final_total, created_at, reconciled_at, result
		FROM checkouts WHERE key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, payment.ErrUnknownReconciliationKey
	}
	if err != nil {
		return nil, false, err
	}
	return c, false, nil
}

func (s *Store) StoreResult(ctx context.Context, key string, res payment.Result) error {
	result, err := json.Marshal(res)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE checkouts SET result = $2 WHERE key = $1`, key, result)
	if err != nil {
		return fmt.Errorf("failed to store reconciliation result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrUnknownReconciliationKey
	}
	return nil
}

func (s *Store) scanCheckout(row pgx.Row) (*payment.Checkout, error) {
	c := &payment.Checkout{}
	var orderIDs, result []byte
	err := row.Scan(&c.Key, &orderIDs, &c.BaseTotal, &c.DiscountPercent, &c.DiscountAmount,
		&c.FinalTotal, &c.CreatedAt, &c.ReconciledAt, &result)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(orderIDs, &c.OrderIDs); err != nil {
		return nil, err
	}
	if result != nil {
		c.Result = &payment.Result{}
		if err := json.Unmarshal(result, c.Result); err != nil {
			return nil, err
		}
	}
	return c, nil
}
