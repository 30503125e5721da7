package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/medequip/compliance/internal/models"
)

// DiscardRepository handles discard record persistence.
type DiscardRepository struct {
	db *sql.DB
}

// NewDiscardRepository creates a new discard repository.
func NewDiscardRepository(db *sql.DB) *DiscardRepository {
	return &DiscardRepository{db: db}
}

const discardColumns = `
		id, discard_number, sequence, item_id, item_name, item_code, lot_number,
		expiration_date, quantity, unit_cost, total_cost,
		reason_code, reason_notes, disposal_method, disposal_location, status,
		requires_approval, requires_witness,
		approved_by_id, approved_by, approved_at, approval_notes,
		witnessed_by_id, witnessed_by, witnessed_at, witness_notes,
		created_by_id, created_by, created_at,
		completed_at, completed_by_id,
		cancelled_at, cancelled_by_id, cancellation_reason,
		source_alert_id, version, updated_at`

// NextSequence returns the next discard sequence number. It must be called
// inside the transaction that inserts the record so the number is not
// handed out twice.
func (r *DiscardRepository) NextSequence(ctx context.Context, tx *sql.Tx) (int, error) {
	var seq int
	err := getQuerier(r.db, tx).QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sequence), 0) + 1 FROM discard_records",
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("reading discard sequence: %w", err)
	}
	return seq, nil
}

// Create inserts a new discard record.
func (r *DiscardRepository) Create(ctx context.Context, tx *sql.Tx, d *models.DiscardRecord) error {
	query := `
		INSERT INTO discard_records (` + discardColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if d.Version == 0 {
		d.Version = 1
	}

	args := append([]any{d.ID, d.DiscardNumber, d.Sequence}, discardValues(d)...)
	args = append(args, d.SourceAlertID, d.Version, formatTime(d.UpdatedAt))

	_, err := getExecer(r.db, tx).ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return &models.ConcurrencyConflictError{Entity: "discard", ID: d.DiscardNumber}
	}
	if err != nil {
		return fmt.Errorf("inserting discard: %w", err)
	}
	return nil
}

// discardValues returns the columns from item_id through
// cancellation_reason in discardColumns order.
func discardValues(d *models.DiscardRecord) []any {
	vals := []any{
		d.ItemID,
		d.ItemName,
		d.ItemCode,
		d.LotNumber,
		nullableTime(d.ExpirationDate),
		d.Quantity,
		d.UnitCost.String(),
		d.TotalCost.String(),
		d.ReasonCode,
		nullableString(d.ReasonNotes),
		d.DisposalMethod,
		nullableString(d.DisposalLocation),
		d.Status,
		boolToInt(d.RequiresApproval),
		boolToInt(d.RequiresWitness),
	}
	vals = append(vals, attestationValues(d.Approval)...)
	vals = append(vals, attestationValues(d.Witness)...)
	vals = append(vals, d.CreatedByID, nullableString(d.CreatedByName), formatTime(d.CreatedAt))
	return append(vals, closureValues(d)...)
}

func attestationValues(a *models.Attestation) []any {
	if a == nil {
		return []any{nil, nil, nil, nil}
	}
	return []any{
		nullableString(a.ActorID),
		nullableString(a.ActorName),
		nullableTime(&a.At),
		nullableString(a.Notes),
	}
}

func closureValues(d *models.DiscardRecord) []any {
	return []any{
		nullableTime(d.CompletedAt),
		nullableString(d.CompletedByID),
		nullableTime(d.CancelledAt),
		nullableString(d.CancelledByID),
		d.CancellationReason,
	}
}

// Get retrieves a discard record by ID.
func (r *DiscardRepository) Get(ctx context.Context, tx *sql.Tx, id models.DiscardID) (*models.DiscardRecord, error) {
	query := `SELECT ` + discardColumns + ` FROM discard_records WHERE id = ?`

	d, err := scanDiscard(getQuerier(r.db, tx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "discard", ID: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning discard: %w", err)
	}
	return d, nil
}

// GetByNumber retrieves a discard record by its human-readable number.
func (r *DiscardRepository) GetByNumber(ctx context.Context, number string) (*models.DiscardRecord, error) {
	query := `SELECT ` + discardColumns + ` FROM discard_records WHERE discard_number = ?`

	d, err := scanDiscard(r.db.QueryRowContext(ctx, query, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "discard", ID: number}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning discard: %w", err)
	}
	return d, nil
}

// Update writes the record if its stored version still equals d.Version,
// then increments d.Version. Identity, sequence, cost and source alert
// are never rewritten.
func (r *DiscardRepository) Update(ctx context.Context, tx *sql.Tx, d *models.DiscardRecord) error {
	query := `
		UPDATE discard_records SET
			status = ?,
			approved_by_id = ?, approved_by = ?, approved_at = ?, approval_notes = ?,
			witnessed_by_id = ?, witnessed_by = ?, witnessed_at = ?, witness_notes = ?,
			completed_at = ?, completed_by_id = ?,
			cancelled_at = ?, cancelled_by_id = ?, cancellation_reason = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	args := []any{d.Status}
	args = append(args, attestationValues(d.Approval)...)
	args = append(args, attestationValues(d.Witness)...)
	args = append(args, closureValues(d)...)
	args = append(args, formatTime(d.UpdatedAt), d.ID, d.Version)

	result, err := getExecer(r.db, tx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating discard: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return &models.ConcurrencyConflictError{Entity: "discard", ID: string(d.ID), Version: d.Version}
	}

	d.Version++
	return nil
}

// List retrieves discard records matching the filter, newest first.
func (r *DiscardRepository) List(ctx context.Context, filter models.DiscardFilter, page models.Pagination) (*models.DiscardList, error) {
	var conditions []string
	var args []any

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.ReasonCode != nil {
		conditions = append(conditions, "reason_code = ?")
		args = append(args, *filter.ReasonCode)
	}
	if filter.ItemID != "" {
		conditions = append(conditions, "item_id = ?")
		args = append(args, filter.ItemID)
	}
	if filter.CreatedFrom != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, formatTime(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		conditions = append(conditions, "created_at < ?")
		args = append(args, formatTime(*filter.CreatedTo))
	}
	if filter.CompletedFrom != nil {
		conditions = append(conditions, "completed_at >= ?")
		args = append(args, formatTime(*filter.CompletedFrom))
	}
	if filter.CompletedTo != nil {
		conditions = append(conditions, "completed_at < ?")
		args = append(args, formatTime(*filter.CompletedTo))
	}

	where := whereClause(conditions)

	var total int
	countQuery := "SELECT COUNT(*) FROM discard_records " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting discards: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s
		FROM discard_records
		%s
		ORDER BY sequence DESC
		LIMIT ? OFFSET ?`, discardColumns, where)

	rows, err := r.db.QueryContext(ctx, query, append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("querying discards: %w", err)
	}
	defer rows.Close()

	var discards []*models.DiscardRecord
	for rows.Next() {
		d, err := scanDiscard(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning discard row: %w", err)
		}
		discards = append(discards, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating discards: %w", err)
	}

	return &models.DiscardList{
		Discards:   discards,
		Total:      total,
		Page:       page.Page,
		TotalPages: page.TotalPages(total),
	}, nil
}

func scanDiscard(row rowScanner) (*models.DiscardRecord, error) {
	var d models.DiscardRecord
	var (
		lotNumber, expiration, reasonNotes, location sql.NullString
		apByID, apBy, apAt, apNotes                  sql.NullString
		wiByID, wiBy, wiAt, wiNotes                  sql.NullString
		createdBy                                    sql.NullString
		completedAt, completedByID                   sql.NullString
		cancelledAt, cancelledByID, cancelReason     sql.NullString
		sourceAlert                                  sql.NullString
		unitCost, totalCost                          string
		createdStr, updatedStr                       string
		requiresApproval, requiresWitness            int
	)

	err := row.Scan(
		&d.ID, &d.DiscardNumber, &d.Sequence, &d.ItemID, &d.ItemName, &d.ItemCode, &lotNumber,
		&expiration, &d.Quantity, &unitCost, &totalCost,
		&d.ReasonCode, &reasonNotes, &d.DisposalMethod, &location, &d.Status,
		&requiresApproval, &requiresWitness,
		&apByID, &apBy, &apAt, &apNotes,
		&wiByID, &wiBy, &wiAt, &wiNotes,
		&d.CreatedByID, &createdBy, &createdStr,
		&completedAt, &completedByID,
		&cancelledAt, &cancelledByID, &cancelReason,
		&sourceAlert, &d.Version, &updatedStr,
	)
	if err != nil {
		return nil, err
	}

	dec := columnDecoder{table: "discard", id: string(d.ID)}
	d.LotNumber = stringPtr(lotNumber)
	d.ExpirationDate = dec.optionalTimestamp("expiration_date", expiration)
	d.UnitCost = dec.amount("unit_cost", unitCost)
	d.TotalCost = dec.amount("total_cost", totalCost)
	d.ReasonNotes = reasonNotes.String
	d.DisposalLocation = location.String
	d.RequiresApproval = requiresApproval == 1
	d.RequiresWitness = requiresWitness == 1

	if at := dec.optionalTimestamp("approved_at", apAt); at != nil {
		d.Approval = &models.Attestation{ActorID: apByID.String, ActorName: apBy.String, At: *at, Notes: apNotes.String}
	}
	if at := dec.optionalTimestamp("witnessed_at", wiAt); at != nil {
		d.Witness = &models.Attestation{ActorID: wiByID.String, ActorName: wiBy.String, At: *at, Notes: wiNotes.String}
	}

	d.CreatedByName = createdBy.String
	d.CreatedAt = dec.timestamp("created_at", createdStr)
	d.CompletedAt = dec.optionalTimestamp("completed_at", completedAt)
	d.CompletedByID = completedByID.String
	d.CancelledAt = dec.optionalTimestamp("cancelled_at", cancelledAt)
	d.CancelledByID = cancelledByID.String
	d.CancellationReason = stringPtr(cancelReason)
	if sourceAlert.Valid {
		id := models.AlertID(sourceAlert.String)
		d.SourceAlertID = &id
	}
	d.UpdatedAt = dec.timestamp("updated_at", updatedStr)
	if dec.err != nil {
		return nil, dec.err
	}

	return &d, nil
}
