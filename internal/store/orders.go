package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"autoparts-service/internal/apperr"
	"autoparts-service/internal/models"
)

// OrderNumber formats the human-readable order number for a year and
// per-year sequence, e.g. ORD-2024-003.
func OrderNumber(year, seq int) string {
	return fmt.Sprintf("ORD-%d-%03d", year, seq)
}

// CreateOrderTx runs the commit phase of checkout as one transaction:
// order-number allocation, order insert, item snapshots, conditional
// stock decrements, and cart clearing. Any failure rolls the whole
// unit back, so no partial effect is ever visible.
//
// The stock decrement is guarded (stock_quantity >= quantity) and the
// affected-row count checked; a shortage discovered here, after the
// service pre-check passed, is the authoritative one.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem, now time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int
	err = tx.GetContext(ctx, &seq, `
		INSERT INTO order_counters (year, seq) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET seq = order_counters.seq + 1
		RETURNING seq`, now.Year())
	if err != nil {
		return fmt.Errorf("failed to allocate order number: %w", err)
	}
	order.OrderNumber = OrderNumber(now.Year(), seq)

	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (
			user_id, user_email, order_number, subtotal, tax_amount, shipping_cost,
			total_amount, status, payment_status, payment_method, shipping_address,
			billing_address, notes, idempotency_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING *`,
		order.UserID, order.UserEmail, order.OrderNumber, order.Subtotal,
		order.TaxAmount, order.ShippingCost, order.TotalAmount, order.Status,
		order.PaymentStatus, order.PaymentMethod, order.ShippingAddress,
		order.BillingAddress, order.Notes, order.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		item := &items[i]
		item.OrderID = order.ID

		res, err := tx.ExecContext(ctx, `
			UPDATE spare_parts
			SET stock_quantity = stock_quantity - $1, updated_at = NOW()
			WHERE id = $2 AND stock_quantity >= $1`,
			item.Quantity, item.SparePartID)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			var available int
			if err := tx.GetContext(ctx, &available,
				"SELECT stock_quantity FROM spare_parts WHERE id = $1", *item.SparePartID); err != nil {
				return fmt.Errorf("failed to read stock after rejected decrement: %w", err)
			}
			return &apperr.InsufficientStockError{
				SparePartID: *item.SparePartID,
				PartName:    item.PartName,
				Available:   available,
				Requested:   item.Quantity,
			}
		}

		err = tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, spare_part_id, quantity, unit_price, total_price, part_name, part_number)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			item.OrderID, item.SparePartID, item.Quantity, item.UnitPrice,
			item.TotalPrice, item.PartName, item.PartNumber)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", order.UserID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return tx.Commit()
}

// CancelOrderTx flips an order to cancelled and restores stock for
// every item snapshot, atomically. The status flip is conditional on
// the order still being cancellable, so two racing cancellations
// cannot restore stock twice.
func (s *Store) CancelOrderTx(ctx context.Context, orderID, auditNote string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
		    notes = COALESCE(notes, '') || $3,
		    updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $5, $6)`,
		orderID, models.OrderStatusCancelled, auditNote,
		models.OrderStatusPending, models.OrderStatusConfirmed, models.OrderStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var status string
		err := tx.GetContext(ctx, &status, "SELECT status FROM orders WHERE id = $1", orderID)
		if err == sql.ErrNoRows {
			return &apperr.NotFoundError{Entity: "order", ID: orderID}
		}
		if err != nil {
			return err
		}
		return &apperr.InvalidStateTransitionError{From: status, To: models.OrderStatusCancelled}
	}

	items := []models.OrderItem{}
	if err := tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID); err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}

	for _, item := range items {
		if item.SparePartID == nil {
			// part deleted since purchase, nothing to restore
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE spare_parts
			SET stock_quantity = stock_quantity + $1, updated_at = NOW()
			WHERE id = $2`,
			item.Quantity, *item.SparePartID); err != nil {
			return fmt.Errorf("failed to restore stock: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &apperr.NotFoundError{Entity: "order", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderWithItems retrieves an order together with its item
// snapshots. Checkout responses use this re-read so the payload
// reflects persisted state, not the insert inputs.
func (s *Store) GetOrderWithItems(ctx context.Context, id string) (*models.Order, []models.OrderItem, error) {
	order, err := s.GetOrderByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	items := []models.OrderItem{}
	err = s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", id)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key, or
// nil when no order carries the key.
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves a user's orders, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// ListOrders retrieves orders for the admin view, optionally filtered
// by status, with limit/offset pagination.
func (s *Store) ListOrders(ctx context.Context, status string, limit, offset int) ([]models.Order, int, error) {
	countQuery := "SELECT COUNT(*) FROM orders"
	listQuery := "SELECT * FROM orders"
	args := []interface{}{}

	if status != "" {
		args = append(args, status)
		countQuery += " WHERE status = $1"
		listQuery += " WHERE status = $1"
	}

	var total int
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	listQuery += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, listQuery, args...); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateOrderStatus updates an order's status and, when provided, its
// tracking number and notes.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string, trackingNumber, notes *string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders
		SET status = $2,
		    tracking_number = COALESCE($3, tracking_number),
		    notes = COALESCE($4, notes),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING *`, orderID, status, trackingNumber, notes)
	if err == sql.ErrNoRows {
		return nil, &apperr.NotFoundError{Entity: "order", ID: orderID}
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
