package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeConal/smart-restaurant/internal/order"
)

func milestoneColumn(s order.Status) string {
	switch s {
	case order.StatusAccepted:
		return "accepted_at"
	case order.StatusReceived:
		return "kitchen_received_at"
	case order.StatusPreparing:
		return "preparing_at"
	case order.StatusReady:
		return "ready_at"
	case order.StatusCompleted:
		return "completed_at"
	}
	return ""
}

const orderColumns = `id, number, table_id, guest_name, special_requests, status, status_seq,
	subtotal, tax_amount, total, is_paid, payment_method, transaction_no,
	discount_amount, final_total, bill_requested_at, paid_at, accepted_at,
	kitchen_received_at, preparing_at, ready_at, completed_at, created_at, updated_at`

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Order numbers restart daily: ORD_YYYYMMDD_NNN.
	currentDate := o.CreatedAt.UTC().Format("20060102")
	var orderCount int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE created_at::DATE = $1::DATE`,
		o.CreatedAt.UTC()).Scan(&orderCount)
	if err != nil {
		return fmt.Errorf("failed to count today's orders: %w", err)
	}
	o.Number = fmt.Sprintf("ORD_%s_%03d", currentDate, orderCount+1)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, number, table_id, guest_name, special_requests, status, status_seq,
			subtotal, tax_amount, total, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10, $10)`,
		o.ID, o.Number, o.TableID, o.GuestName, o.SpecialRequests, o.Status,
		o.Subtotal, o.TaxAmount, o.Total, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range o.Items {
		modifiers, err := json.Marshal(item.Modifiers)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, menu_item_id, name, quantity, unit_price, line_total, modifiers)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, item.MenuItemID, item.Name, item.Quantity, item.UnitPrice, item.LineTotal, modifiers)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, seq, status, changed_by, changed_at)
		VALUES ($1, 0, $2, 'guest', $3)`,
		o.ID, o.Status, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert status log: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	o, err := s.scanOrder(ctx, s.pool, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) Transition(ctx context.Context, id string, to order.Status, changedBy string) (*order.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current order.Status
	var seq int64
	err = tx.QueryRow(ctx,
		`SELECT status, status_seq FROM orders WHERE id = $1 FOR UPDATE`, id).
		Scan(&current, &seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if !order.CanTransition(current, to) {
		return nil, fmt.Errorf("%w: %s -> %s", order.ErrInvalidTransition, current, to)
	}

	now := time.Now().UTC()
	seq++

	q := `UPDATE orders SET status = $2, status_seq = $3, updated_at = $4 WHERE id = $1`
	if col := milestoneColumn(to); col != "" {
		// First arrival only: COALESCE keeps an already-set milestone.
		q = fmt.Sprintf(
			`UPDATE orders SET status = $2, status_seq = $3, updated_at = $4, %s = COALESCE(%s, $4) WHERE id = $1`,
			col, col)
	}
	if _, err := tx.Exec(ctx, q, id, to, seq, now); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, seq, status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		id, seq, to, changedBy, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert status log: %w", err)
	}

	o, err := s.scanOrder(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) MarkPaid(ctx context.Context, id string, meta order.PaymentMeta) (*order.Order, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var total float64
	var isPaid bool
	err = tx.QueryRow(ctx,
		`SELECT total, is_paid FROM orders WHERE id = $1 FOR UPDATE`, id).
		Scan(&total, &isPaid)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, order.ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}

	if isPaid {
		o, err := s.scanOrder(ctx, tx, id)
		if err != nil {
			return nil, false, err
		}
		return o, false, tx.Commit(ctx)
	}

	now := time.Now().UTC()
	discount := math.Round(total*meta.DiscountPercent) / 100
	_, err = tx.Exec(ctx, `
		UPDATE orders SET
			is_paid = TRUE, paid_at = $2, payment_method = $3, transaction_no = $4,
			discount_amount = $5, final_total = $6,
			status_seq = status_seq + 1, updated_at = $2
		WHERE id = $1`,
		id, now, meta.Method, meta.TransactionNo, discount, round2(total-discount))
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark order paid: %w", err)
	}

	o, err := s.scanOrder(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}
	return o, true, tx.Commit(ctx)
}

func (s *Store) RequestBill(ctx context.Context, id string) (*order.Order, bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET bill_requested_at = $2, status_seq = status_seq + 1, updated_at = $2
		WHERE id = $1 AND bill_requested_at IS NULL`,
		id, time.Now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("failed to request bill: %w", err)
	}

	o, err := s.scanOrder(ctx, s.pool, id)
	if err != nil {
		return nil, false, err
	}
	return o, tag.RowsAffected() == 1, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) scanOrder(ctx context.Context, q querier, id string) (*order.Order, error) {
	o := &order.Order{}
	err := q.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id).Scan(
		&o.ID, &o.Number, &o.TableID, &o.GuestName, &o.SpecialRequests, &o.Status, &o.StatusSeq,
		&o.Subtotal, &o.TaxAmount, &o.Total, &o.IsPaid, &o.PaymentMethod, &o.TransactionNo,
		&o.DiscountAmount, &o.FinalTotal, &o.BillRequestedAt, &o.PaidAt, &o.AcceptedAt,
		&o.KitchenReceivedAt, &o.PreparingAt, &o.ReadyAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT menu_item_id, name, quantity, unit_price, line_total, modifiers
		FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item order.Item
		var modifiers []byte
		if err := rows.Scan(&item.MenuItemID, &item.Name, &item.Quantity, &item.UnitPrice, &item.LineTotal, &modifiers); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(modifiers, &item.Modifiers); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
