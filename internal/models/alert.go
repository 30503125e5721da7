package models

import (
	"errors"
	"math"
	"time"
)

// AlertID identifies an expiration alert.
type AlertID string

// AlertType is derived from the days remaining until expiry.
type AlertType string

const (
	AlertTypeExpired      AlertType = "EXPIRED"
	AlertTypeExpiringSoon AlertType = "EXPIRING_SOON"
)

// AllAlertTypes lists every alert type.
func AllAlertTypes() []AlertType {
	return []AlertType{AlertTypeExpired, AlertTypeExpiringSoon}
}

// Valid returns true if the alert type is known.
func (t AlertType) Valid() bool {
	return t == AlertTypeExpired || t == AlertTypeExpiringSoon
}

func (t AlertType) String() string {
	return string(t)
}

// ResolutionType records how an alert was closed.
type ResolutionType string

const (
	ResolutionUsed      ResolutionType = "USED"
	ResolutionDiscarded ResolutionType = "DISCARDED"
	// ResolutionCleared is set by the scanner when the key no longer
	// needs attention: the stock is gone, lost its expiration, or now
	// expires beyond every horizon.
	ResolutionCleared ResolutionType = "CLEARED"
)

// Valid returns true if the resolution type is known.
func (r ResolutionType) Valid() bool {
	return r == ResolutionUsed || r == ResolutionDiscarded || r == ResolutionCleared
}

// AlertStage is the lifecycle position of an alert.
type AlertStage string

const (
	AlertStageNew          AlertStage = "NEW"
	AlertStageAcknowledged AlertStage = "ACKNOWLEDGED"
	AlertStageResolved     AlertStage = "RESOLVED"
)

// AllAlertStages lists every alert stage.
func AllAlertStages() []AlertStage {
	return []AlertStage{AlertStageNew, AlertStageAcknowledged, AlertStageResolved}
}

// Severity is the display and priority bucket for a day count.
type Severity string

const (
	SeverityExpired  Severity = "EXPIRED"
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityOK       Severity = "OK"
)

// AllSeverities lists severities from most to least urgent.
func AllSeverities() []Severity {
	return []Severity{SeverityExpired, SeverityCritical, SeverityWarning, SeverityOK}
}

// Rank orders severities; lower is more urgent.
func (s Severity) Rank() int {
	for i, v := range AllSeverities() {
		if v == s {
			return i
		}
	}
	return len(AllSeverities())
}

// ActorRef is the identity tuple supplied by the caller for an action.
type ActorRef struct {
	ID   string
	Name string
}

// ExpirationAlert tracks an at-risk or expired lot until it is resolved.
// Natural key: (ItemID, LotKey()).
type ExpirationAlert struct {
	ID        AlertID
	ItemID    string
	LotID     string
	ItemName  string
	ItemCode  string
	LotNumber *string
	Quantity  float64

	ExpirationDate  time.Time
	AlertType       AlertType
	DaysUntilExpiry int

	Acknowledged     bool
	AcknowledgedByID string
	AcknowledgedBy   string
	AcknowledgedAt   *time.Time

	Resolved        bool
	ResolutionType  *ResolutionType
	ResolutionNotes string
	ResolvedByID    string
	ResolvedBy      string
	ResolvedAt      *time.Time

	// LinkedDiscardID is set iff ResolutionType is DISCARDED.
	LinkedDiscardID *DiscardID

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LotKey returns the lot half of the natural key.
func (a *ExpirationAlert) LotKey() string {
	return LotKey(a.LotNumber)
}

// Stage returns the lifecycle stage.
func (a *ExpirationAlert) Stage() AlertStage {
	switch {
	case a.Resolved:
		return AlertStageResolved
	case a.Acknowledged:
		return AlertStageAcknowledged
	default:
		return AlertStageNew
	}
}

// Refresh recomputes the day count and alert type relative to now.
// Resolved alerts keep their type; only the day count moves.
func (a *ExpirationAlert) Refresh(now time.Time) {
	a.DaysUntilExpiry = DaysUntil(a.ExpirationDate, now)
	if a.Resolved {
		return
	}
	if a.DaysUntilExpiry < 0 {
		a.AlertType = AlertTypeExpired
	} else {
		a.AlertType = AlertTypeExpiringSoon
	}
}

// Validate checks the cross-field invariants of an alert.
func (a *ExpirationAlert) Validate() error {
	var errs []error
	if !a.AlertType.Valid() {
		errs = append(errs, errors.New("invalid alert type"))
	}
	if a.Resolved && !a.Acknowledged {
		errs = append(errs, errors.New("resolved alert must be acknowledged"))
	}
	if a.Resolved != (a.ResolutionType != nil) {
		errs = append(errs, errors.New("resolution type must be set iff resolved"))
	}
	discarded := a.ResolutionType != nil && *a.ResolutionType == ResolutionDiscarded
	if discarded != (a.LinkedDiscardID != nil) {
		errs = append(errs, errors.New("linked discard must be set iff resolved by discard"))
	}
	return errors.Join(errs...)
}

// DaysUntil returns ceil((exp - now) / 24h). Negative means expired.
func DaysUntil(exp, now time.Time) int {
	days := math.Ceil(exp.Sub(now).Hours() / 24)
	if days == 0 {
		return 0
	}
	return int(days)
}

// AlertFilter defines filters for querying alerts.
type AlertFilter struct {
	ItemID         string
	AlertType      *AlertType
	Acknowledged   *bool
	Resolved       *bool
	ExpiringBefore *time.Time

	// AsOf, when set, makes AlertType match unresolved alerts by their
	// expiration relative to AsOf rather than the type stored at the last
	// scan. Resolved alerts always match on the stored type.
	AsOf time.Time
}

// ExpiredCutoff returns the latest expiration instant that counts as
// EXPIRED at now. DaysUntil is negative exactly when exp <= now-24h.
func ExpiredCutoff(now time.Time) time.Time {
	return now.Add(-24 * time.Hour)
}

// AlertList is a paginated list of alerts.
type AlertList struct {
	Alerts     []*ExpirationAlert
	Total      int
	Page       int
	TotalPages int
}
