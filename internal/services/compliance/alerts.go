package compliance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/medequip/compliance/internal/lock"
	"github.com/medequip/compliance/internal/models"
)

// GetAlert returns an alert with its day count and type recomputed for
// the current date.
func (s *Service) GetAlert(ctx context.Context, id models.AlertID) (*models.ExpirationAlert, error) {
	a, err := s.alerts.Get(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	a.Refresh(s.now())
	return a, nil
}

// ListAlerts returns alerts matching filter, refreshed for the current date.
func (s *Service) ListAlerts(ctx context.Context, filter models.AlertFilter, page models.Pagination) (*models.AlertList, error) {
	now := s.now()
	if filter.AsOf.IsZero() {
		filter.AsOf = now
	}
	list, err := s.alerts.List(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	for _, a := range list.Alerts {
		a.Refresh(now)
	}
	return list, nil
}

// ListOpenAlerts returns every unresolved alert, most urgent first.
func (s *Service) ListOpenAlerts(ctx context.Context) ([]*models.ExpirationAlert, error) {
	resolved := false
	list, err := s.ListAlerts(ctx, models.AlertFilter{Resolved: &resolved}, models.AllPages())
	if err != nil {
		return nil, err
	}
	return list.Alerts, nil
}

// Acknowledge marks an unresolved alert as seen by actor. Acknowledging
// an already acknowledged alert is a no-op that keeps the first
// acknowledger.
func (s *Service) Acknowledge(ctx context.Context, id models.AlertID, actor models.ActorRef) (*models.ExpirationAlert, error) {
	if err := requireActor(actor, "acknowledged_by"); err != nil {
		return nil, err
	}

	return s.mutateAlert(ctx, id, func(tx *sql.Tx, a *models.ExpirationAlert, now time.Time) (bool, error) {
		if a.Resolved {
			return false, alertStateError(a, "acknowledge", "alert is already resolved")
		}
		if a.Acknowledged {
			return false, nil
		}

		acknowledge(a, actor, now)
		if err := s.alerts.Update(ctx, tx, a); err != nil {
			return false, err
		}
		return true, s.record(ctx, tx, models.AuditEntityAlert, string(a.ID), models.AuditAlertAcknowledged, actor, "")
	})
}

// ResolveAsUsed closes an alert because the stock was consumed. It
// acknowledges the alert first when needed.
func (s *Service) ResolveAsUsed(ctx context.Context, id models.AlertID, actor models.ActorRef, notes string) (*models.ExpirationAlert, error) {
	if err := requireActor(actor, "resolved_by"); err != nil {
		return nil, err
	}

	a, err := s.mutateAlert(ctx, id, func(tx *sql.Tx, a *models.ExpirationAlert, now time.Time) (bool, error) {
		if a.Resolved {
			return false, alertStateError(a, "resolve", "alert is already resolved as "+resolutionName(a))
		}

		resolve(a, models.ResolutionUsed, actor, strings.TrimSpace(notes), now)
		if err := s.alerts.Update(ctx, tx, a); err != nil {
			return false, err
		}
		return true, s.record(ctx, tx, models.AuditEntityAlert, string(a.ID), models.AuditAlertResolved, actor, string(models.ResolutionUsed))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AlertResolved(models.ResolutionUsed)
	return a, nil
}

// resolveViaDiscard closes a loaded alert on behalf of a discard record
// being created in the same transaction.
func (s *Service) resolveViaDiscard(ctx context.Context, tx *sql.Tx, a *models.ExpirationAlert, discardID models.DiscardID, actor models.ActorRef, now time.Time) error {
	if a.Resolved {
		return alertStateError(a, "resolve", "alert is already resolved as "+resolutionName(a))
	}

	resolve(a, models.ResolutionDiscarded, actor, "", now)
	a.LinkedDiscardID = &discardID
	if err := a.Validate(); err != nil {
		return fmt.Errorf("resolving alert %s: %w", a.ID, err)
	}

	if err := s.alerts.Update(ctx, tx, a); err != nil {
		return err
	}
	return s.record(ctx, tx, models.AuditEntityAlert, string(a.ID), models.AuditAlertResolved, actor,
		fmt.Sprintf("%s by discard %s", models.ResolutionDiscarded, discardID))
}

// mutateAlert loads an alert, locks its natural key, re-reads it inside a
// transaction and applies fn. fn reports whether it changed anything.
func (s *Service) mutateAlert(ctx context.Context, id models.AlertID, fn func(*sql.Tx, *models.ExpirationAlert, time.Time) (bool, error)) (*models.ExpirationAlert, error) {
	current, err := s.alerts.Get(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	var result *models.ExpirationAlert
	var changed bool
	err = s.withLock(ctx, lock.AlertKey(current.ItemID, current.LotKey()), func() error {
		return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
			a, err := s.alerts.Get(ctx, tx, id)
			if err != nil {
				return err
			}
			now := s.now()
			a.UpdatedAt = now
			changed, err = fn(tx, a, now)
			result = a
			return err
		})
	})
	if err != nil {
		return nil, s.observe(err)
	}

	if changed {
		s.log.Info("alert updated", "alert_id", result.ID, "stage", result.Stage())
	}
	result.Refresh(s.now())
	return result, nil
}

func acknowledge(a *models.ExpirationAlert, actor models.ActorRef, now time.Time) {
	a.Acknowledged = true
	a.AcknowledgedByID = actor.ID
	a.AcknowledgedBy = actor.Name
	a.AcknowledgedAt = &now
}

func resolve(a *models.ExpirationAlert, how models.ResolutionType, actor models.ActorRef, notes string, now time.Time) {
	if !a.Acknowledged {
		acknowledge(a, actor, now)
	}
	a.Resolved = true
	a.ResolutionType = &how
	a.ResolutionNotes = notes
	a.ResolvedByID = actor.ID
	a.ResolvedBy = actor.Name
	a.ResolvedAt = &now
	a.UpdatedAt = now
}

func resolutionName(a *models.ExpirationAlert) string {
	if a.ResolutionType == nil {
		return "unknown"
	}
	return string(*a.ResolutionType)
}

func alertStateError(a *models.ExpirationAlert, op, reason string) error {
	return &models.InvalidStateError{
		Entity: "alert",
		ID:     string(a.ID),
		Op:     op,
		State:  string(a.Stage()),
		Reason: reason,
	}
}
