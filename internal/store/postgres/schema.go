package postgres

import (
	"context"
	"fmt"
)

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			number TEXT UNIQUE NOT NULL,
			table_id TEXT NOT NULL,
			guest_name TEXT NOT NULL,
			special_requests TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			status_seq BIGINT NOT NULL DEFAULT 0,
			subtotal DOUBLE PRECISION NOT NULL,
			tax_amount DOUBLE PRECISION NOT NULL,
			total DOUBLE PRECISION NOT NULL,
			is_paid BOOLEAN NOT NULL DEFAULT FALSE,
			payment_method TEXT NOT NULL DEFAULT '',
			transaction_no TEXT NOT NULL DEFAULT '',
			discount_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			final_total DOUBLE PRECISION NOT NULL DEFAULT 0,
			bill_requested_at TIMESTAMPTZ,
			paid_at TIMESTAMPTZ,
			accepted_at TIMESTAMPTZ,
			kitchen_received_at TIMESTAMPTZ,
			preparing_at TIMESTAMPTZ,
			ready_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id BIGSERIAL PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			menu_item_id TEXT NOT NULL,
			name TEXT NOT NULL,
			quantity INT NOT NULL,
			unit_price DOUBLE PRECISION NOT NULL,
			line_total DOUBLE PRECISION NOT NULL,
			modifiers JSONB NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS order_status_log (
			id BIGSERIAL PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			seq BIGINT NOT NULL,
			status TEXT NOT NULL,
			changed_by TEXT NOT NULL,
			changed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS checkouts (
			key TEXT PRIMARY KEY,
			order_ids JSONB NOT NULL,
			base_total DOUBLE PRECISION NOT NULL,
			discount_percent DOUBLE PRECISION NOT NULL,
			discount_amount DOUBLE PRECISION NOT NULL,
			final_total DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			reconciled_at TIMESTAMPTZ,
			result JSONB
		)`,
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
