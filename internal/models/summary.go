package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ComplianceSummary is derived from the alert and discard collections on
// every read. It is never stored.
type ComplianceSummary struct {
	PendingDiscards         int
	PendingApprovals        int
	CompletedThisMonth      int
	TotalWasteCostThisMonth decimal.Decimal
	ExpiredAlerts           int
	ExpiringAlerts          int
	GeneratedAt             time.Time
}

// AuditAction names a recorded workflow action.
type AuditAction string

const (
	AuditAlertCreated      AuditAction = "ALERT_CREATED"
	AuditAlertRefreshed    AuditAction = "ALERT_REFRESHED"
	AuditAlertAcknowledged AuditAction = "ALERT_ACKNOWLEDGED"
	AuditAlertResolved     AuditAction = "ALERT_RESOLVED"
	AuditDiscardCreated    AuditAction = "DISCARD_CREATED"
	AuditDiscardApproved   AuditAction = "DISCARD_APPROVED"
	AuditDiscardWitnessed  AuditAction = "DISCARD_WITNESSED"
	AuditDiscardCompleted  AuditAction = "DISCARD_COMPLETED"
	AuditDiscardCancelled  AuditAction = "DISCARD_CANCELLED"
)

// AuditEntityType names the entity an audit entry refers to.
type AuditEntityType string

const (
	AuditEntityAlert   AuditEntityType = "ALERT"
	AuditEntityDiscard AuditEntityType = "DISCARD"
)

// AuditEntry is one row of the compliance audit trail.
type AuditEntry struct {
	ID         string
	EntityType AuditEntityType
	EntityID   string
	Action     AuditAction
	ActorID    string
	ActorName  string
	Detail     string
	CreatedAt  time.Time
}
