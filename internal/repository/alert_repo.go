package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/medequip/compliance/internal/models"
)

// AlertRepository handles expiration alert persistence.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository creates a new alert repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `
		id, item_id, lot_id, lot_number, item_name, item_code, quantity,
		expiration_date, alert_type, days_until_expiry,
		acknowledged, acknowledged_by_id, acknowledged_by, acknowledged_at,
		resolved, resolution_type, resolution_notes, resolved_by_id, resolved_by, resolved_at,
		linked_discard_id, version, created_at, updated_at`

// Create inserts a new alert. A second unresolved alert for the same
// natural key violates the partial unique index and is reported as a
// concurrency conflict.
func (r *AlertRepository) Create(ctx context.Context, tx *sql.Tx, a *models.ExpirationAlert) error {
	query := `
		INSERT INTO expiration_alerts (
			id, item_id, lot_id, lot_key, lot_number, item_name, item_code, quantity,
			expiration_date, alert_type, days_until_expiry,
			acknowledged, acknowledged_by_id, acknowledged_by, acknowledged_at,
			resolved, resolution_type, resolution_notes, resolved_by_id, resolved_by, resolved_at,
			linked_discard_id, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if a.Version == 0 {
		a.Version = 1
	}

	_, err := getExecer(r.db, tx).ExecContext(ctx, query,
		a.ID,
		a.ItemID,
		a.LotID,
		a.LotKey(),
		a.LotNumber,
		a.ItemName,
		a.ItemCode,
		a.Quantity,
		formatTime(a.ExpirationDate),
		a.AlertType,
		a.DaysUntilExpiry,
		boolToInt(a.Acknowledged),
		nullableString(a.AcknowledgedByID),
		nullableString(a.AcknowledgedBy),
		nullableTime(a.AcknowledgedAt),
		boolToInt(a.Resolved),
		a.ResolutionType,
		nullableString(a.ResolutionNotes),
		nullableString(a.ResolvedByID),
		nullableString(a.ResolvedBy),
		nullableTime(a.ResolvedAt),
		a.LinkedDiscardID,
		a.Version,
		formatTime(a.CreatedAt),
		formatTime(a.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return &models.ConcurrencyConflictError{Entity: "alert", ID: a.ItemID + "/" + a.LotKey()}
	}
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// Get retrieves an alert by ID.
func (r *AlertRepository) Get(ctx context.Context, tx *sql.Tx, id models.AlertID) (*models.ExpirationAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM expiration_alerts WHERE id = ?`

	a, err := scanAlert(getQuerier(r.db, tx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "alert", ID: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning alert: %w", err)
	}
	return a, nil
}

// FindOpenByKey returns the unresolved alert for the natural key, or nil.
func (r *AlertRepository) FindOpenByKey(ctx context.Context, tx *sql.Tx, itemID, lotKey string) (*models.ExpirationAlert, error) {
	query := `SELECT ` + alertColumns + `
		FROM expiration_alerts
		WHERE item_id = ? AND lot_key = ? AND resolved = 0`

	a, err := scanAlert(getQuerier(r.db, tx).QueryRowContext(ctx, query, itemID, lotKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning open alert: %w", err)
	}
	return a, nil
}

// FindLatestResolvedByKey returns the most recently resolved alert for the
// natural key, or nil.
func (r *AlertRepository) FindLatestResolvedByKey(ctx context.Context, tx *sql.Tx, itemID, lotKey string) (*models.ExpirationAlert, error) {
	query := `SELECT ` + alertColumns + `
		FROM expiration_alerts
		WHERE item_id = ? AND lot_key = ? AND resolved = 1
		ORDER BY resolved_at DESC, created_at DESC
		LIMIT 1`

	a, err := scanAlert(getQuerier(r.db, tx).QueryRowContext(ctx, query, itemID, lotKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning resolved alert: %w", err)
	}
	return a, nil
}

// Update writes the alert if its stored version still equals a.Version,
// then increments a.Version.
func (r *AlertRepository) Update(ctx context.Context, tx *sql.Tx, a *models.ExpirationAlert) error {
	query := `
		UPDATE expiration_alerts SET
			lot_id = ?, quantity = ?, expiration_date = ?, alert_type = ?, days_until_expiry = ?,
			acknowledged = ?, acknowledged_by_id = ?, acknowledged_by = ?, acknowledged_at = ?,
			resolved = ?, resolution_type = ?, resolution_notes = ?,
			resolved_by_id = ?, resolved_by = ?, resolved_at = ?,
			linked_discard_id = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	result, err := getExecer(r.db, tx).ExecContext(ctx, query,
		a.LotID,
		a.Quantity,
		formatTime(a.ExpirationDate),
		a.AlertType,
		a.DaysUntilExpiry,
		boolToInt(a.Acknowledged),
		nullableString(a.AcknowledgedByID),
		nullableString(a.AcknowledgedBy),
		nullableTime(a.AcknowledgedAt),
		boolToInt(a.Resolved),
		a.ResolutionType,
		nullableString(a.ResolutionNotes),
		nullableString(a.ResolvedByID),
		nullableString(a.ResolvedBy),
		nullableTime(a.ResolvedAt),
		a.LinkedDiscardID,
		formatTime(a.UpdatedAt),
		a.ID,
		a.Version,
	)
	if err != nil {
		return fmt.Errorf("updating alert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return &models.ConcurrencyConflictError{Entity: "alert", ID: string(a.ID), Version: a.Version}
	}

	a.Version++
	return nil
}

// List retrieves alerts matching the filter, most urgent first.
func (r *AlertRepository) List(ctx context.Context, filter models.AlertFilter, page models.Pagination) (*models.AlertList, error) {
	var conditions []string
	var args []any

	if filter.ItemID != "" {
		conditions = append(conditions, "item_id = ?")
		args = append(args, filter.ItemID)
	}
	if filter.AlertType != nil {
		cond, condArgs := alertTypeCondition(*filter.AlertType, filter.AsOf)
		conditions = append(conditions, cond)
		args = append(args, condArgs...)
	}
	if filter.Acknowledged != nil {
		conditions = append(conditions, "acknowledged = ?")
		args = append(args, boolToInt(*filter.Acknowledged))
	}
	if filter.Resolved != nil {
		conditions = append(conditions, "resolved = ?")
		args = append(args, boolToInt(*filter.Resolved))
	}
	if filter.ExpiringBefore != nil {
		conditions = append(conditions, "expiration_date < ?")
		args = append(args, formatTime(*filter.ExpiringBefore))
	}

	where := whereClause(conditions)

	var total int
	countQuery := "SELECT COUNT(*) FROM expiration_alerts " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting alerts: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s
		FROM expiration_alerts
		%s
		ORDER BY expiration_date ASC, item_name ASC
		LIMIT ? OFFSET ?`, alertColumns, where)

	rows, err := r.db.QueryContext(ctx, query, append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.ExpirationAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert row: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}

	return &models.AlertList{
		Alerts:     alerts,
		Total:      total,
		Page:       page.Page,
		TotalPages: page.TotalPages(total),
	}, nil
}

// alertTypeCondition matches open alerts on the type their expiration
// implies at asOf, so a filter agrees with Refresh between scans.
func alertTypeCondition(t models.AlertType, asOf time.Time) (string, []any) {
	if asOf.IsZero() {
		return "alert_type = ?", []any{t}
	}
	op := ">"
	if t == models.AlertTypeExpired {
		op = "<="
	}
	cond := fmt.Sprintf("((resolved = 1 AND alert_type = ?) OR (resolved = 0 AND expiration_date %s ?))", op)
	return cond, []any{t, formatTime(models.ExpiredCutoff(asOf))}
}

func scanAlert(row rowScanner) (*models.ExpirationAlert, error) {
	var a models.ExpirationAlert
	var (
		lotNumber, ackByID, ackBy, ackAt       sql.NullString
		resType, resNotes, resByID, resBy, rAt sql.NullString
		linked                                 sql.NullString
		expStr, createdStr, updatedStr         string
		acknowledged, resolved                 int
	)

	err := row.Scan(
		&a.ID, &a.ItemID, &a.LotID, &lotNumber, &a.ItemName, &a.ItemCode, &a.Quantity,
		&expStr, &a.AlertType, &a.DaysUntilExpiry,
		&acknowledged, &ackByID, &ackBy, &ackAt,
		&resolved, &resType, &resNotes, &resByID, &resBy, &rAt,
		&linked, &a.Version, &createdStr, &updatedStr,
	)
	if err != nil {
		return nil, err
	}

	dec := columnDecoder{table: "alert", id: string(a.ID)}
	a.LotNumber = stringPtr(lotNumber)
	a.ExpirationDate = dec.timestamp("expiration_date", expStr)
	a.Acknowledged = acknowledged == 1
	a.AcknowledgedByID = ackByID.String
	a.AcknowledgedBy = ackBy.String
	a.AcknowledgedAt = dec.optionalTimestamp("acknowledged_at", ackAt)
	a.Resolved = resolved == 1
	if resType.Valid {
		rt := models.ResolutionType(resType.String)
		a.ResolutionType = &rt
	}
	a.ResolutionNotes = resNotes.String
	a.ResolvedByID = resByID.String
	a.ResolvedBy = resBy.String
	a.ResolvedAt = dec.optionalTimestamp("resolved_at", rAt)
	if linked.Valid {
		id := models.DiscardID(linked.String)
		a.LinkedDiscardID = &id
	}
	a.CreatedAt = dec.timestamp("created_at", createdStr)
	a.UpdatedAt = dec.timestamp("updated_at", updatedStr)
	if dec.err != nil {
		return nil, dec.err
	}

	return &a, nil
}
