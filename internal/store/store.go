package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"autoparts-service/internal/apperr"
	"autoparts-service/internal/models"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetPartByID retrieves a spare part by ID
func (s *Store) GetPartByID(ctx context.Context, id string) (*models.SparePart, error) {
	var part models.SparePart
	err := s.db.GetContext(ctx, &part, "SELECT * FROM spare_parts WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &apperr.NotFoundError{Entity: "spare part", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &part, nil
}

// GetPartByNumber retrieves a spare part by its unique part number
func (s *Store) GetPartByNumber(ctx context.Context, partNumber string) (*models.SparePart, error) {
	var part models.SparePart
	err := s.db.GetContext(ctx, &part, "SELECT * FROM spare_parts WHERE part_number = $1", partNumber)
	if err == sql.ErrNoRows {
		return nil, &apperr.NotFoundError{Entity: "spare part", ID: partNumber}
	}
	if err != nil {
		return nil, err
	}
	return &part, nil
}

// ListActiveParts retrieves active catalog parts, optionally filtered
// by category and a name/part-number search term.
func (s *Store) ListActiveParts(ctx context.Context, category, search string) ([]models.SparePart, error) {
	query := "SELECT * FROM spare_parts WHERE is_active = true"
	args := []interface{}{}

	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d OR part_number ILIKE $%d)",
			len(args), len(args), len(args))
	}
	query += " ORDER BY name ASC"

	parts := []models.SparePart{}
	err := s.db.SelectContext(ctx, &parts, query, args...)
	return parts, err
}

// GetLowStockParts retrieves active parts below the stock threshold
func (s *Store) GetLowStockParts(ctx context.Context, threshold int) ([]models.SparePart, error) {
	parts := []models.SparePart{}
	err := s.db.SelectContext(ctx, &parts,
		"SELECT * FROM spare_parts WHERE stock_quantity < $1 AND is_active = true ORDER BY stock_quantity ASC",
		threshold)
	return parts, err
}

// AdjustStock atomically applies stock_quantity += delta as a single
// read-modify-write statement. A delta that would drive stock negative
// is rejected rather than clamped.
func (s *Store) AdjustStock(ctx context.Context, partID string, delta int) (*models.SparePart, error) {
	var part models.SparePart
	err := s.db.GetContext(ctx, &part, `
		UPDATE spare_parts
		SET stock_quantity = stock_quantity + $2, updated_at = NOW()
		WHERE id = $1 AND stock_quantity + $2 >= 0
		RETURNING *`, partID, delta)
	if err == sql.ErrNoRows {
		current, getErr := s.GetPartByID(ctx, partID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &apperr.InsufficientStockError{
			SparePartID: partID,
			PartName:    current.Name,
			Available:   current.StockQuantity,
			Requested:   -delta,
		}
	}
	if err != nil {
		return nil, err
	}
	return &part, nil
}

// GetSettings retrieves the app settings singleton. Returns nil when
// no row exists; callers fall back to configured defaults.
func (s *Store) GetSettings(ctx context.Context) (*models.AppSettings, error) {
	var settings models.AppSettings
	err := s.db.GetContext(ctx, &settings, "SELECT * FROM app_settings LIMIT 1")
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
