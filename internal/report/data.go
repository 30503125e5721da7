package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/medequip/compliance/internal/models"
	"github.com/medequip/compliance/internal/util"
)

// Source is the read side of the compliance service used for reports.
type Source interface {
	Summary(ctx context.Context) (models.ComplianceSummary, error)
	ListOpenAlerts(ctx context.Context) ([]*models.ExpirationAlert, error)
	ListDiscards(ctx context.Context, filter models.DiscardFilter, page models.Pagination) (*models.DiscardList, error)
}

// Data is everything a report shows, captured at one instant.
type Data struct {
	Facility string
	Summary  models.ComplianceSummary
	Alerts   []*models.ExpirationAlert
	Discards []*models.DiscardRecord
}

// GeneratedAt is when the summary was computed.
func (d *Data) GeneratedAt() time.Time {
	return d.Summary.GeneratedAt
}

// Collect gathers the summary, every open alert, every open discard and
// the discards created since the start of the summary month.
func Collect(ctx context.Context, src Source, facility string) (*Data, error) {
	summary, err := src.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing summary: %w", err)
	}

	alerts, err := src.ListOpenAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}

	discards, err := monthDiscards(ctx, src, util.StartOfMonth(summary.GeneratedAt))
	if err != nil {
		return nil, err
	}

	return &Data{
		Facility: facility,
		Summary:  summary,
		Alerts:   alerts,
		Discards: discards,
	}, nil
}

// monthDiscards merges open records with those created since monthStart,
// newest first.
func monthDiscards(ctx context.Context, src Source, monthStart time.Time) ([]*models.DiscardRecord, error) {
	pending, approved := models.DiscardStatusPending, models.DiscardStatusApproved
	filters := []models.DiscardFilter{
		{CreatedFrom: &monthStart},
		{Status: &pending},
		{Status: &approved},
	}

	seen := make(map[models.DiscardID]bool)
	var out []*models.DiscardRecord
	for _, f := range filters {
		list, err := src.ListDiscards(ctx, f, models.AllPages())
		if err != nil {
			return nil, fmt.Errorf("listing discards: %w", err)
		}
		for _, d := range list.Discards {
			if !seen[d.ID] {
				seen[d.ID] = true
				out = append(out, d)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Sequence > out[j].Sequence })
	return out, nil
}
