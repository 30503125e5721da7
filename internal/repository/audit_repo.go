package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/medequip/compliance/internal/models"
)

// AuditRepository appends to and reads the compliance audit trail.
// Entries are never updated or deleted.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append records one audit entry.
func (r *AuditRepository) Append(ctx context.Context, tx *sql.Tx, e *models.AuditEntry) error {
	_, err := getExecer(r.db, tx).ExecContext(ctx, `
		INSERT INTO compliance_audit_log (
			id, entity_type, entity_id, action, actor_id, actor_name, detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.EntityType,
		e.EntityID,
		e.Action,
		nullableString(e.ActorID),
		nullableString(e.ActorName),
		nullableString(e.Detail),
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// ListForEntity returns the trail for one alert or discard, oldest first.
func (r *AuditRepository) ListForEntity(ctx context.Context, entityType models.AuditEntityType, entityID string) ([]*models.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, action, actor_id, actor_name, detail, created_at
		FROM compliance_audit_log
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at ASC, rowid ASC`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var actorID, actorName, detail sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action,
			&actorID, &actorName, &detail, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		e.ActorID = actorID.String
		e.ActorName = actorName.String
		e.Detail = detail.String
		dec := columnDecoder{table: "audit entry", id: e.ID}
		e.CreatedAt = dec.timestamp("created_at", createdStr)
		if dec.err != nil {
			return nil, dec.err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
