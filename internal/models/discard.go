package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DiscardID identifies a discard record.
type DiscardID string

// DiscardStatus is the workflow status of a discard record.
type DiscardStatus string

const (
	DiscardStatusPending   DiscardStatus = "PENDING"
	DiscardStatusApproved  DiscardStatus = "APPROVED"
	DiscardStatusCompleted DiscardStatus = "COMPLETED"
	DiscardStatusCancelled DiscardStatus = "CANCELLED"
)

// AllDiscardStatuses lists every discard status in workflow order.
func AllDiscardStatuses() []DiscardStatus {
	return []DiscardStatus{
		DiscardStatusPending,
		DiscardStatusApproved,
		DiscardStatusCompleted,
		DiscardStatusCancelled,
	}
}

// Valid returns true if the status is known.
func (s DiscardStatus) Valid() bool {
	switch s {
	case DiscardStatusPending, DiscardStatusApproved, DiscardStatusCompleted, DiscardStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is permitted.
func (s DiscardStatus) IsTerminal() bool {
	return s == DiscardStatusCompleted || s == DiscardStatusCancelled
}

// IsOpen reports whether the record is still in progress.
func (s DiscardStatus) IsOpen() bool {
	return s == DiscardStatusPending || s == DiscardStatusApproved
}

func (s DiscardStatus) String() string {
	return string(s)
}

// ReasonCode is why stock is being discarded.
type ReasonCode string

const (
	ReasonExpired         ReasonCode = "EXPIRED"
	ReasonDamaged         ReasonCode = "DAMAGED"
	ReasonContaminated    ReasonCode = "CONTAMINATED"
	ReasonRecalled        ReasonCode = "RECALLED"
	ReasonQualityIssue    ReasonCode = "QUALITY_ISSUE"
	ReasonOpenedUnused    ReasonCode = "OPENED_UNUSED"
	ReasonControlledWaste ReasonCode = "CONTROLLED_WASTE"
)

// AllReasonCodes lists every reason code.
func AllReasonCodes() []ReasonCode {
	return []ReasonCode{
		ReasonExpired,
		ReasonDamaged,
		ReasonContaminated,
		ReasonRecalled,
		ReasonQualityIssue,
		ReasonOpenedUnused,
		ReasonControlledWaste,
	}
}

// Valid returns true if the reason code is known.
func (r ReasonCode) Valid() bool {
	for _, v := range AllReasonCodes() {
		if v == r {
			return true
		}
	}
	return false
}

// ParseReasonCode converts a string into a ReasonCode.
func ParseReasonCode(s string) (ReasonCode, error) {
	r := ReasonCode(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown reason code %q", s)
	}
	return r, nil
}

// DisposalMethod is how the discarded stock is physically disposed of.
type DisposalMethod string

const (
	DisposalGeneral        DisposalMethod = "GENERAL"
	DisposalBiohazard      DisposalMethod = "BIOHAZARD"
	DisposalSharps         DisposalMethod = "SHARPS"
	DisposalPharmaceutical DisposalMethod = "PHARMACEUTICAL"
	DisposalControlled     DisposalMethod = "CONTROLLED"
	DisposalChemical       DisposalMethod = "CHEMICAL"
	DisposalRecyclable     DisposalMethod = "RECYCLABLE"
)

// AllDisposalMethods lists every disposal method.
func AllDisposalMethods() []DisposalMethod {
	return []DisposalMethod{
		DisposalGeneral,
		DisposalBiohazard,
		DisposalSharps,
		DisposalPharmaceutical,
		DisposalControlled,
		DisposalChemical,
		DisposalRecyclable,
	}
}

// Valid returns true if the disposal method is known.
func (m DisposalMethod) Valid() bool {
	for _, v := range AllDisposalMethods() {
		if v == m {
			return true
		}
	}
	return false
}

// ParseDisposalMethod converts a string into a DisposalMethod.
func ParseDisposalMethod(s string) (DisposalMethod, error) {
	m := DisposalMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown disposal method %q", s)
	}
	return m, nil
}

// Attestation is a recorded human confirmation (approval or witness).
type Attestation struct {
	ActorID   string
	ActorName string
	At        time.Time
	Notes     string
}

// Control names a dual-control requirement.
type Control string

const (
	ControlApproval Control = "approval"
	ControlWitness  Control = "witness"
)

// DiscardRecord carries a disposal through approval and witness to completion.
type DiscardRecord struct {
	ID            DiscardID
	DiscardNumber string
	Sequence      int

	ItemID         string
	ItemName       string
	ItemCode       string
	LotNumber      *string
	ExpirationDate *time.Time
	Quantity       float64
	UnitCost       decimal.Decimal
	TotalCost      decimal.Decimal // frozen at creation

	ReasonCode       ReasonCode
	ReasonNotes      string
	DisposalMethod   DisposalMethod
	DisposalLocation string

	Status DiscardStatus

	// Fixed at creation.
	RequiresApproval bool
	RequiresWitness  bool

	Approval *Attestation
	Witness  *Attestation

	CreatedByID   string
	CreatedByName string
	CreatedAt     time.Time

	CompletedAt   *time.Time
	CompletedByID string

	CancelledAt        *time.Time
	CancelledByID      string
	CancellationReason *string

	SourceAlertID *AlertID

	Version   int
	UpdatedAt time.Time
}

// ApprovalSatisfied reports whether the approval control is met.
func (d *DiscardRecord) ApprovalSatisfied() bool {
	return !d.RequiresApproval || d.Approval != nil
}

// WitnessSatisfied reports whether the witness control is met.
func (d *DiscardRecord) WitnessSatisfied() bool {
	return !d.RequiresWitness || d.Witness != nil
}

// OutstandingControls lists the required controls not yet satisfied.
func (d *DiscardRecord) OutstandingControls() []Control {
	var out []Control
	if !d.ApprovalSatisfied() {
		out = append(out, ControlApproval)
	}
	if !d.WitnessSatisfied() {
		out = append(out, ControlWitness)
	}
	return out
}

// AwaitingApproval reports a pending record whose required approval is missing.
func (d *DiscardRecord) AwaitingApproval() bool {
	return d.Status == DiscardStatusPending && d.RequiresApproval && d.Approval == nil
}

// DiscardFilter defines filters for querying discard records.
type DiscardFilter struct {
	Status        *DiscardStatus
	ReasonCode    *ReasonCode
	ItemID        string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	CompletedFrom *time.Time
	CompletedTo   *time.Time
}

// DiscardList is a paginated list of discard records.
type DiscardList struct {
	Discards   []*DiscardRecord
	Total      int
	Page       int
	TotalPages int
}
