package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/medequip/compliance/internal/models"
	"github.com/medequip/compliance/internal/util"
)

// Summarize derives the compliance roll-up from discard records and
// alerts. The month window is the calendar month of now, in now's
// location, up to and including now.
func Summarize(discards []*models.DiscardRecord, alerts []*models.ExpirationAlert, now time.Time) models.ComplianceSummary {
	monthStart := util.StartOfMonth(now)
	summary := models.ComplianceSummary{
		TotalWasteCostThisMonth: decimal.Zero,
		GeneratedAt:             now,
	}

	for _, d := range discards {
		switch d.Status {
		case models.DiscardStatusPending:
			summary.PendingDiscards++
			if d.AwaitingApproval() {
				summary.PendingApprovals++
			}
		case models.DiscardStatusCompleted:
			if d.CompletedAt == nil || d.CompletedAt.Before(monthStart) || d.CompletedAt.After(now) {
				continue
			}
			summary.CompletedThisMonth++
			summary.TotalWasteCostThisMonth = summary.TotalWasteCostThisMonth.Add(d.TotalCost)
		case models.DiscardStatusApproved, models.DiscardStatusCancelled:
		}
	}

	for _, a := range alerts {
		if a.Resolved {
			continue
		}
		switch a.AlertType {
		case models.AlertTypeExpired:
			summary.ExpiredAlerts++
		case models.AlertTypeExpiringSoon:
			summary.ExpiringAlerts++
		}
	}

	return summary
}

// Summary computes the current compliance summary from storage and
// publishes it to the metrics gauges.
func (s *Service) Summary(ctx context.Context) (models.ComplianceSummary, error) {
	now := s.now()
	monthStart := util.StartOfMonth(now)
	// Completion times are stored at microsecond precision.
	through := now.Add(time.Microsecond)

	pending := models.DiscardStatusPending
	open, err := s.discards.List(ctx, models.DiscardFilter{Status: &pending}, models.AllPages())
	if err != nil {
		return models.ComplianceSummary{}, fmt.Errorf("listing pending discards: %w", err)
	}

	completed := models.DiscardStatusCompleted
	done, err := s.discards.List(ctx, models.DiscardFilter{
		Status:        &completed,
		CompletedFrom: &monthStart,
		CompletedTo:   &through,
	}, models.AllPages())
	if err != nil {
		return models.ComplianceSummary{}, fmt.Errorf("listing completed discards: %w", err)
	}

	alerts, err := s.ListOpenAlerts(ctx)
	if err != nil {
		return models.ComplianceSummary{}, fmt.Errorf("listing open alerts: %w", err)
	}

	summary := Summarize(append(open.Discards, done.Discards...), alerts, now)
	s.metrics.SetSummary(summary)
	return summary, nil
}
