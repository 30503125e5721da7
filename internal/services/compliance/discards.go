package compliance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/medequip/compliance/internal/lock"
	"github.com/medequip/compliance/internal/models"
	"github.com/medequip/compliance/internal/util"
)

// CreateDiscard creates a PENDING discard record. The required controls
// are fixed from the policy and the total cost is frozen at
// quantity × unit cost, rounded to cents.
func (s *Service) CreateDiscard(ctx context.Context, input CreateDiscardInput) (*models.DiscardRecord, error) {
	if err := validateQuantity(input.Quantity); err != nil {
		return nil, err
	}
	if err := validateDisposal(input.ReasonCode, input.DisposalMethod, input.CreatedBy); err != nil {
		return nil, err
	}
	if input.UnitCost != nil && input.UnitCost.IsNegative() {
		return nil, &models.ValidationError{Field: "unit_cost", Message: "must not be negative"}
	}
	if input.ItemID == "" && (input.UnitCost == nil || strings.TrimSpace(input.ItemName) == "") {
		return nil, &models.ValidationError{Field: "item_id", Message: "item id is required when name or unit cost is not given"}
	}

	var d *models.DiscardRecord
	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		d = &models.DiscardRecord{
			ItemID:           input.ItemID,
			ItemName:         strings.TrimSpace(input.ItemName),
			ItemCode:         input.ItemCode,
			LotNumber:        input.LotNumber,
			ExpirationDate:   input.ExpirationDate,
			Quantity:         input.Quantity,
			ReasonCode:       input.ReasonCode,
			ReasonNotes:      strings.TrimSpace(input.ReasonNotes),
			DisposalMethod:   input.DisposalMethod,
			DisposalLocation: input.DisposalLocation,
		}

		if input.ItemID != "" && (input.UnitCost == nil || d.ItemName == "") {
			item, err := s.inventory.GetItem(ctx, tx, input.ItemID)
			if err != nil {
				return err
			}
			if d.ItemName == "" {
				d.ItemName = item.Name
			}
			if d.ItemCode == "" {
				d.ItemCode = item.ItemCode
			}
			d.UnitCost = item.UnitCost
		}
		if input.UnitCost != nil {
			d.UnitCost = *input.UnitCost
		}

		return s.insertDiscard(ctx, tx, d, input.CreatedBy)
	})
	if err != nil {
		return nil, s.observe(err)
	}

	s.discardCreated(d)
	return d, nil
}

// CreateDiscardFromAlert creates a discard for the stock behind an alert
// and resolves the alert as DISCARDED in the same transaction. Either
// both happen or neither does.
func (s *Service) CreateDiscardFromAlert(ctx context.Context, input CreateFromAlertInput) (*models.DiscardRecord, error) {
	if input.ReasonCode == "" {
		input.ReasonCode = models.ReasonExpired
	}
	if input.Quantity != nil {
		if err := validateQuantity(*input.Quantity); err != nil {
			return nil, err
		}
	}
	if err := validateDisposal(input.ReasonCode, input.DisposalMethod, input.CreatedBy); err != nil {
		return nil, err
	}

	current, err := s.alerts.Get(ctx, nil, input.AlertID)
	if err != nil {
		return nil, err
	}
	if current.Resolved {
		return nil, alertStateError(current, "discard", "alert is already resolved as "+resolutionName(current))
	}

	var d *models.DiscardRecord
	err = s.withLock(ctx, lock.AlertKey(current.ItemID, current.LotKey()), func() error {
		return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
			alert, err := s.alerts.Get(ctx, tx, input.AlertID)
			if err != nil {
				return err
			}
			if alert.Resolved {
				return alertStateError(alert, "discard", "alert is already resolved as "+resolutionName(alert))
			}

			qty := alert.Quantity
			if input.Quantity != nil {
				qty = *input.Quantity
			}
			if err := validateQuantity(qty); err != nil {
				return err
			}

			item, err := s.inventory.GetItem(ctx, tx, alert.ItemID)
			if err != nil {
				return err
			}

			exp := alert.ExpirationDate
			alertID := alert.ID
			d = &models.DiscardRecord{
				ItemID:           alert.ItemID,
				ItemName:         alert.ItemName,
				ItemCode:         alert.ItemCode,
				LotNumber:        alert.LotNumber,
				ExpirationDate:   &exp,
				Quantity:         qty,
				UnitCost:         item.UnitCost,
				ReasonCode:       input.ReasonCode,
				ReasonNotes:      strings.TrimSpace(input.ReasonNotes),
				DisposalMethod:   input.DisposalMethod,
				DisposalLocation: input.DisposalLocation,
				SourceAlertID:    &alertID,
			}
			if d.ItemName == "" {
				d.ItemName = item.Name
			}

			if err := s.insertDiscard(ctx, tx, d, input.CreatedBy); err != nil {
				return err
			}
			return s.resolveViaDiscard(ctx, tx, alert, d.ID, input.CreatedBy, d.CreatedAt)
		})
	})
	if err != nil {
		return nil, s.observe(err)
	}

	s.discardCreated(d)
	s.metrics.AlertResolved(models.ResolutionDiscarded)
	return d, nil
}

// insertDiscard fills identity, controls and cost, then writes the record
// and its audit entry inside tx.
func (s *Service) insertDiscard(ctx context.Context, tx *sql.Tx, d *models.DiscardRecord, creator models.ActorRef) error {
	if d.ItemName == "" {
		return &models.ValidationError{Field: "item_name", Message: "item name is required"}
	}

	seq, err := s.discards.NextSequence(ctx, tx)
	if err != nil {
		return err
	}

	now := s.now()
	d.ID = models.DiscardID(util.NewID())
	d.Sequence = seq
	d.DiscardNumber = util.FormatDiscardNumber(s.prefix, seq)
	d.Status = models.DiscardStatusPending
	d.RequiresApproval, d.RequiresWitness = s.policy.Controls(d.ReasonCode, d.DisposalMethod)
	d.TotalCost = TotalCost(d.Quantity, d.UnitCost)
	d.CreatedByID = creator.ID
	d.CreatedByName = creator.Name
	d.CreatedAt = now
	d.UpdatedAt = now
	d.Version = 1

	if err := s.discards.Create(ctx, tx, d); err != nil {
		return err
	}
	return s.record(ctx, tx, models.AuditEntityDiscard, string(d.ID), models.AuditDiscardCreated, creator,
		fmt.Sprintf("%s %s, %g × %s = %s", d.DiscardNumber, d.ReasonCode, d.Quantity, d.UnitCost, d.TotalCost.StringFixed(2)))
}

func (s *Service) discardCreated(d *models.DiscardRecord) {
	s.metrics.DiscardCreated(d.ReasonCode)
	s.log.Info("discard created",
		"discard_id", d.ID,
		"number", d.DiscardNumber,
		"reason", d.ReasonCode,
		"requires_approval", d.RequiresApproval,
		"requires_witness", d.RequiresWitness,
		"total_cost", d.TotalCost.StringFixed(2),
		"actor", d.CreatedByID)
}

// TotalCost returns quantity × unit cost rounded to cents.
func TotalCost(quantity float64, unitCost decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(quantity).Mul(unitCost).Round(2)
}

// Approve records the approval control. It is valid only while the record
// is PENDING and not yet approved.
func (s *Service) Approve(ctx context.Context, id models.DiscardID, actor models.ActorRef, notes string) (*models.DiscardRecord, error) {
	if err := requireActor(actor, "approved_by"); err != nil {
		return nil, err
	}

	return s.mutateDiscard(ctx, id, models.AuditDiscardApproved, actor, func(d *models.DiscardRecord, now time.Time) error {
		if d.Status != models.DiscardStatusPending {
			return discardStateError(d, "approve", "approval is only recorded while pending")
		}
		if d.Approval != nil {
			return discardStateError(d, "approve", "already approved by "+d.Approval.ActorID)
		}

		d.Approval = &models.Attestation{ActorID: actor.ID, ActorName: actor.Name, At: now, Notes: strings.TrimSpace(notes)}
		advanceIfReady(d)
		return nil
	})
}

// Witness records the witness control. It is valid while the record is
// PENDING or APPROVED and not yet witnessed.
func (s *Service) Witness(ctx context.Context, id models.DiscardID, actor models.ActorRef, notes string) (*models.DiscardRecord, error) {
	if err := requireActor(actor, "witnessed_by"); err != nil {
		return nil, err
	}

	return s.mutateDiscard(ctx, id, models.AuditDiscardWitnessed, actor, func(d *models.DiscardRecord, now time.Time) error {
		if !d.Status.IsOpen() {
			return discardStateError(d, "witness", "record is closed")
		}
		if d.Witness != nil {
			return discardStateError(d, "witness", "already witnessed by "+d.Witness.ActorID)
		}

		d.Witness = &models.Attestation{ActorID: actor.ID, ActorName: actor.Name, At: now, Notes: strings.TrimSpace(notes)}
		advanceIfReady(d)
		return nil
	})
}

// Complete finalizes the disposal once every required control is met.
func (s *Service) Complete(ctx context.Context, id models.DiscardID, actor models.ActorRef) (*models.DiscardRecord, error) {
	if err := requireActor(actor, "completed_by"); err != nil {
		return nil, err
	}

	return s.mutateDiscard(ctx, id, models.AuditDiscardCompleted, actor, func(d *models.DiscardRecord, now time.Time) error {
		if !d.Status.IsOpen() {
			return discardStateError(d, "complete", "record is closed")
		}
		if !d.DisposalMethod.Valid() {
			return &models.ValidationError{Field: "disposal_method", Message: "a valid disposal method is required before completion"}
		}
		if missing := d.OutstandingControls(); len(missing) > 0 {
			return &models.ComplianceGateError{ID: d.ID, Missing: missing}
		}

		d.Status = models.DiscardStatusCompleted
		d.CompletedAt = &now
		d.CompletedByID = actor.ID
		return nil
	})
}

// Cancel closes an open record without disposal. A linked alert stays
// resolved.
func (s *Service) Cancel(ctx context.Context, id models.DiscardID, actor models.ActorRef, reason string) (*models.DiscardRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &models.ValidationError{Field: "cancellation_reason", Message: "a reason is required to cancel"}
	}
	if err := requireActor(actor, "cancelled_by"); err != nil {
		return nil, err
	}

	return s.mutateDiscard(ctx, id, models.AuditDiscardCancelled, actor, func(d *models.DiscardRecord, now time.Time) error {
		if !d.Status.IsOpen() {
			return discardStateError(d, "cancel", "record is closed")
		}

		d.Status = models.DiscardStatusCancelled
		d.CancelledAt = &now
		d.CancelledByID = actor.ID
		d.CancellationReason = &reason
		return nil
	})
}

// GetDiscard retrieves a discard record by ID.
func (s *Service) GetDiscard(ctx context.Context, id models.DiscardID) (*models.DiscardRecord, error) {
	return s.discards.Get(ctx, nil, id)
}

// GetDiscardByNumber retrieves a discard record by its number.
func (s *Service) GetDiscardByNumber(ctx context.Context, number string) (*models.DiscardRecord, error) {
	if _, _, err := util.ParseDiscardNumber(number); err != nil {
		return nil, &models.ValidationError{Field: "discard_number", Message: err.Error()}
	}
	return s.discards.GetByNumber(ctx, number)
}

// ListDiscards returns discard records matching filter, newest first.
func (s *Service) ListDiscards(ctx context.Context, filter models.DiscardFilter, page models.Pagination) (*models.DiscardList, error) {
	return s.discards.List(ctx, filter, page)
}

// mutateDiscard serializes one workflow action on a record. fn checks the
// current state and mutates the record; nothing is written if it fails.
func (s *Service) mutateDiscard(ctx context.Context, id models.DiscardID, action models.AuditAction, actor models.ActorRef, fn func(*models.DiscardRecord, time.Time) error) (*models.DiscardRecord, error) {
	var d *models.DiscardRecord
	err := s.withLock(ctx, lock.DiscardKey(string(id)), func() error {
		return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
			var err error
			d, err = s.discards.Get(ctx, tx, id)
			if err != nil {
				return err
			}

			now := s.now()
			if err := fn(d, now); err != nil {
				return err
			}
			d.UpdatedAt = now

			if err := s.discards.Update(ctx, tx, d); err != nil {
				return err
			}
			return s.record(ctx, tx, models.AuditEntityDiscard, string(d.ID), action, actor, string(d.Status))
		})
	})
	if err != nil {
		s.log.Warn("discard action rejected",
			"discard_id", id, "action", action, "actor", actor.ID, "error", err)
		return nil, s.observe(err)
	}

	s.metrics.DiscardAction(action)
	s.log.Info("discard action recorded",
		"discard_id", d.ID, "action", action, "actor", actor.ID, "status", d.Status)
	return d, nil
}

// advanceIfReady moves a pending, approved record with no outstanding
// controls to APPROVED.
func advanceIfReady(d *models.DiscardRecord) {
	if d.Status == models.DiscardStatusPending && d.Approval != nil && len(d.OutstandingControls()) == 0 {
		d.Status = models.DiscardStatusApproved
	}
}

func validateQuantity(quantity float64) error {
	if quantity <= 0 {
		return &models.ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	return nil
}

func validateDisposal(reason models.ReasonCode, method models.DisposalMethod, creator models.ActorRef) error {
	if !reason.Valid() {
		return &models.ValidationError{Field: "reason_code", Message: fmt.Sprintf("unknown reason code %q", reason)}
	}
	if !method.Valid() {
		return &models.ValidationError{Field: "disposal_method", Message: fmt.Sprintf("unknown disposal method %q", method)}
	}
	return requireActor(creator, "created_by")
}

func discardStateError(d *models.DiscardRecord, op, reason string) error {
	return &models.InvalidStateError{
		Entity: "discard",
		ID:     string(d.ID),
		Op:     op,
		State:  string(d.Status),
		Reason: reason,
	}
}
