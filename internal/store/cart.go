package store

import (
	"context"
	"database/sql"

	"autoparts-service/internal/apperr"
	"autoparts-service/internal/models"
)

// GetCartWithDetails retrieves a user's cart lines joined with the
// live catalog record each line references.
func (s *Store) GetCartWithDetails(ctx context.Context, userID string) ([]models.CartLine, error) {
	lines := []models.CartLine{}
	err := s.db.SelectContext(ctx, &lines, `
		SELECT
			ci.id, ci.user_id, ci.user_email, ci.spare_part_id, ci.quantity, ci.added_at,
			sp.name, sp.part_number, sp.price, sp.original_price, sp.discount_percentage,
			sp.is_on_sale, sp.sale_start_date, sp.sale_end_date, sp.stock_quantity, sp.is_active
		FROM cart_items ci
		JOIN spare_parts sp ON ci.spare_part_id = sp.id
		WHERE ci.user_id = $1
		ORDER BY ci.added_at DESC`, userID)
	return lines, err
}

// GetCartItem retrieves a single cart item by ID
func (s *Store) GetCartItem(ctx context.Context, id string) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item, "SELECT * FROM cart_items WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &apperr.NotFoundError{Entity: "cart item", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetCartItemByPart retrieves the user's cart line for a part, or nil
// when the part is not in the cart yet.
func (s *Store) GetCartItemByPart(ctx context.Context, userID, sparePartID string) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item,
		"SELECT * FROM cart_items WHERE user_id = $1 AND spare_part_id = $2", userID, sparePartID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// InsertCartItem creates a new cart line
func (s *Store) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	return s.db.GetContext(ctx, item, `
		INSERT INTO cart_items (user_id, user_email, spare_part_id, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING id, added_at`,
		item.UserID, item.UserEmail, item.SparePartID, item.Quantity)
}

// UpdateCartItemQuantity sets the quantity of an existing cart line
func (s *Store) UpdateCartItemQuantity(ctx context.Context, id string, quantity int) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.GetContext(ctx, &item, `
		UPDATE cart_items SET quantity = $2 WHERE id = $1
		RETURNING *`, id, quantity)
	if err == sql.ErrNoRows {
		return nil, &apperr.NotFoundError{Entity: "cart item", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteCartItem removes a cart line
func (s *Store) DeleteCartItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &apperr.NotFoundError{Entity: "cart item", ID: id}
	}
	return nil
}

// ClearCart removes every cart line belonging to a user
func (s *Store) ClearCart(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	return err
}

// CountCartItems returns the number of cart lines and the summed
// quantity across them.
func (s *Store) CountCartItems(ctx context.Context, userID string) (lines int, totalQuantity int, err error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(quantity), 0) FROM cart_items WHERE user_id = $1", userID)
	err = row.Scan(&lines, &totalQuantity)
	return lines, totalQuantity, err
}
