package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/medequip/compliance/internal/models"
)

// InventoryRepository reads and maintains items and lots. The compliance
// workflow only reads from it; writes exist for intake tooling and tests.
type InventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository creates a new inventory repository.
func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// ============================================================================
// ITEMS
// ============================================================================

// CreateItem inserts a new inventory item.
func (r *InventoryRepository) CreateItem(ctx context.Context, tx *sql.Tx, item *models.InventoryItem) error {
	query := `
		INSERT INTO inventory_items (
			id, item_code, name, unit_of_measure, unit_cost, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := getExecer(r.db, tx).ExecContext(ctx, query,
		item.ID,
		item.ItemCode,
		item.Name,
		item.UnitOfMeasure,
		item.UnitCost.String(),
		formatTime(item.CreatedAt),
		formatTime(item.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

// GetItem retrieves an item by ID.
func (r *InventoryRepository) GetItem(ctx context.Context, tx *sql.Tx, id string) (*models.InventoryItem, error) {
	query := `
		SELECT id, item_code, name, unit_of_measure, unit_cost, created_at, updated_at
		FROM inventory_items
		WHERE id = ?`

	var item models.InventoryItem
	var unitCost, createdStr, updatedStr string
	err := getQuerier(r.db, tx).QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.ItemCode, &item.Name, &item.UnitOfMeasure,
		&unitCost, &createdStr, &updatedStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "item", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning item: %w", err)
	}

	dec := columnDecoder{table: "item", id: item.ID}
	item.UnitCost = dec.amount("unit_cost", unitCost)
	item.CreatedAt = dec.timestamp("created_at", createdStr)
	item.UpdatedAt = dec.timestamp("updated_at", updatedStr)
	if dec.err != nil {
		return nil, dec.err
	}
	return &item, nil
}

// UpdateItemUnitCost changes the current unit cost of an item. Existing
// discard records keep the cost frozen at their creation.
func (r *InventoryRepository) UpdateItemUnitCost(ctx context.Context, tx *sql.Tx, id string, cost decimal.Decimal) error {
	result, err := getExecer(r.db, tx).ExecContext(ctx,
		`UPDATE inventory_items SET unit_cost = ?, updated_at = ? WHERE id = ?`,
		cost.String(), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating unit cost: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &models.NotFoundError{Entity: "item", ID: id}
	}
	return nil
}

// ============================================================================
// LOTS
// ============================================================================

// CreateLot inserts a new lot.
func (r *InventoryRepository) CreateLot(ctx context.Context, tx *sql.Tx, lot *models.InventoryLot) error {
	query := `
		INSERT INTO inventory_lots (
			id, item_id, lot_number, quantity, storage_location,
			received_date, expiration_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	lot.CreatedAt = now
	lot.UpdatedAt = now
	if lot.ReceivedDate.IsZero() {
		lot.ReceivedDate = now
	}

	_, err := getExecer(r.db, tx).ExecContext(ctx, query,
		lot.ID,
		lot.ItemID,
		lot.LotNumber,
		lot.Quantity,
		lot.StorageLocation,
		formatTime(lot.ReceivedDate),
		nullableString(lot.Expiration),
		formatTime(lot.CreatedAt),
		formatTime(lot.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting lot: %w", err)
	}
	return nil
}

// UpdateLot updates the mutable fields of a lot.
func (r *InventoryRepository) UpdateLot(ctx context.Context, tx *sql.Tx, lot *models.InventoryLot) error {
	lot.UpdatedAt = time.Now().UTC()

	result, err := getExecer(r.db, tx).ExecContext(ctx, `
		UPDATE inventory_lots SET
			quantity = ?, storage_location = ?, expiration_date = ?, updated_at = ?
		WHERE id = ?`,
		lot.Quantity,
		lot.StorageLocation,
		nullableString(lot.Expiration),
		formatTime(lot.UpdatedAt),
		lot.ID,
	)
	if err != nil {
		return fmt.Errorf("updating lot: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &models.NotFoundError{Entity: "lot", ID: lot.ID}
	}
	return nil
}

const lotColumns = `
		l.id, l.item_id, l.lot_number, l.quantity, l.storage_location,
		l.received_date, l.expiration_date, l.created_at, l.updated_at,
		i.id, i.item_code, i.name, i.unit_of_measure, i.unit_cost`

// GetLot retrieves a lot with its item.
func (r *InventoryRepository) GetLot(ctx context.Context, id string) (*models.InventoryLot, error) {
	query := `SELECT ` + lotColumns + `
		FROM inventory_lots l
		JOIN inventory_items i ON l.item_id = i.id
		WHERE l.id = ?`

	lot, err := scanLot(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "lot", ID: id}
	}
	return lot, err
}

// ListLots retrieves lots matching the filter, soonest expiry first.
func (r *InventoryRepository) ListLots(ctx context.Context, filter models.LotFilter) ([]*models.InventoryLot, error) {
	var conditions []string
	var args []any

	if filter.ItemID != "" {
		conditions = append(conditions, "l.item_id = ?")
		args = append(args, filter.ItemID)
	}
	if filter.StorageLocation != "" {
		conditions = append(conditions, "l.storage_location = ?")
		args = append(args, filter.StorageLocation)
	}
	if filter.HasExpiration != nil {
		if *filter.HasExpiration {
			conditions = append(conditions, "l.expiration_date IS NOT NULL AND l.expiration_date != ''")
		} else {
			conditions = append(conditions, "(l.expiration_date IS NULL OR l.expiration_date = '')")
		}
	}

	query := fmt.Sprintf(`SELECT %s
		FROM inventory_lots l
		JOIN inventory_items i ON l.item_id = i.id
		%s
		ORDER BY l.expiration_date ASC NULLS LAST, l.received_date ASC`,
		lotColumns, whereClause(conditions))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying lots: %w", err)
	}
	defer rows.Close()

	var lots []*models.InventoryLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning lot row: %w", err)
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// ListLotsWithExpiration returns every lot that carries an expiration
// value. The value is returned unparsed; callers decide how to treat
// malformed dates.
func (r *InventoryRepository) ListLotsWithExpiration(ctx context.Context) ([]*models.InventoryLot, error) {
	has := true
	return r.ListLots(ctx, models.LotFilter{HasExpiration: &has})
}

func scanLot(row rowScanner) (*models.InventoryLot, error) {
	var lot models.InventoryLot
	var item models.InventoryItem
	var lotNum, expiration sql.NullString
	var receivedStr, createdStr, updatedStr, unitCost string

	err := row.Scan(
		&lot.ID, &lot.ItemID, &lotNum, &lot.Quantity, &lot.StorageLocation,
		&receivedStr, &expiration, &createdStr, &updatedStr,
		&item.ID, &item.ItemCode, &item.Name, &item.UnitOfMeasure, &unitCost,
	)
	if err != nil {
		return nil, err
	}

	lot.LotNumber = stringPtr(lotNum)
	if expiration.Valid {
		lot.Expiration = expiration.String
	}
	dec := columnDecoder{table: "lot", id: lot.ID}
	lot.ReceivedDate = dec.timestamp("received_date", receivedStr)
	lot.CreatedAt = dec.timestamp("created_at", createdStr)
	lot.UpdatedAt = dec.timestamp("updated_at", updatedStr)
	item.UnitCost = dec.amount("unit_cost", unitCost)
	if dec.err != nil {
		return nil, dec.err
	}
	lot.Item = &item

	return &lot, nil
}
