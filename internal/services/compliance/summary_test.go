package compliance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/medequip/compliance/internal/models"
	"github.com/medequip/compliance/internal/testutil"
)

func TestSummarize(t *testing.T) {
	at := func(d time.Time) *time.Time { return &d }

	discards := []*models.DiscardRecord{
		testutil.FixtureDiscard(1),
		testutil.FixtureDiscard(2, func(d *models.DiscardRecord) {
			d.Approval = &models.Attestation{ActorID: "mgr", At: testNow}
		}),
		testutil.FixtureDiscard(3, func(d *models.DiscardRecord) {
			d.RequiresApproval = false
		}),
		testutil.FixtureDiscard(4, func(d *models.DiscardRecord) {
			d.Status = models.DiscardStatusCompleted
			d.CompletedAt = at(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
			d.TotalCost = decimal.RequireFromString("120.00")
		}),
		testutil.FixtureDiscard(5, func(d *models.DiscardRecord) {
			d.Status = models.DiscardStatusCompleted
			d.CompletedAt = at(testNow)
			d.TotalCost = decimal.RequireFromString("60.00")
		}),
		// Last month.
		testutil.FixtureDiscard(6, func(d *models.DiscardRecord) {
			d.Status = models.DiscardStatusCompleted
			d.CompletedAt = at(time.Date(2026, 4, 30, 23, 59, 59, 0, time.UTC))
			d.TotalCost = decimal.RequireFromString("999.00")
		}),
		testutil.FixtureDiscard(7, func(d *models.DiscardRecord) {
			d.Status = models.DiscardStatusApproved
		}),
		testutil.FixtureDiscard(8, func(d *models.DiscardRecord) {
			d.Status = models.DiscardStatusCancelled
		}),
	}

	alerts := []*models.ExpirationAlert{
		testutil.FixtureAlert("i1", func(a *models.ExpirationAlert) { a.AlertType = models.AlertTypeExpired }),
		testutil.FixtureAlert("i2", func(a *models.ExpirationAlert) { a.AlertType = models.AlertTypeExpired }),
		testutil.FixtureAlert("i3"),
		testutil.FixtureAlert("i4", func(a *models.ExpirationAlert) {
			a.AlertType = models.AlertTypeExpired
			a.Resolved = true
		}),
	}

	got := Summarize(discards, alerts, testNow)
	require.Equal(t, 3, got.PendingDiscards)
	require.Equal(t, 1, got.PendingApprovals)
	require.Equal(t, 2, got.CompletedThisMonth)
	require.True(t, decimal.RequireFromString("180.00").Equal(got.TotalWasteCostThisMonth), "got %s", got.TotalWasteCostThisMonth)
	require.Equal(t, 2, got.ExpiredAlerts)
	require.Equal(t, 1, got.ExpiringAlerts)
	require.Equal(t, testNow, got.GeneratedAt)
}

func TestSummarizeEmpty(t *testing.T) {
	got := Summarize(nil, nil, testNow)
	require.Zero(t, got.PendingDiscards)
	require.Zero(t, got.CompletedThisMonth)
	require.True(t, got.TotalWasteCostThisMonth.IsZero())
}

func TestSummarizeUsesLocalMonth(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	// 2026-05-01 02:00 UTC is still April in Chicago.
	completed := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	d := testutil.FixtureDiscard(1, func(d *models.DiscardRecord) {
		d.Status = models.DiscardStatusCompleted
		d.CompletedAt = &completed
	})

	got := Summarize([]*models.DiscardRecord{d}, nil, testNow.In(loc))
	require.Zero(t, got.CompletedThisMonth)

	got = Summarize([]*models.DiscardRecord{d}, nil, testNow)
	require.Equal(t, 1, got.CompletedThisMonth)
}

func TestServiceSummary(t *testing.T) {
	f := newFixture(t)
	morphine := f.item(t, "Morphine 10mg/mL", "40.00")
	insulin := f.item(t, "Insulin Pen", "12.00")

	f.lot(t, insulin.ID, "IP-1", "2026-05-10", 2)
	f.lot(t, insulin.ID, "IP-2", "2026-05-30", 2)
	f.lot(t, morphine.ID, "MS-1", "2026-05-05", 1)
	f.scan(t, 30)

	controlled := f.discard(t, morphine, 3, models.ReasonControlledWaste, models.DisposalPharmaceutical)
	_, err := f.svc.Witness(f.ctx, controlled.ID, pharmacist, "")
	require.NoError(t, err)
	_, err = f.svc.Approve(f.ctx, controlled.ID, manager, "")
	require.NoError(t, err)
	_, err = f.svc.Complete(f.ctx, controlled.ID, nurse)
	require.NoError(t, err)

	f.discard(t, insulin, 5, models.ReasonOpenedUnused, models.DisposalPharmaceutical)

	cancelled := f.discard(t, insulin, 1, models.ReasonDamaged, models.DisposalGeneral)
	_, err = f.svc.Cancel(f.ctx, cancelled.ID, manager, "miscount")
	require.NoError(t, err)

	got, err := f.svc.Summary(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, got.PendingDiscards)
	require.Equal(t, 1, got.PendingApprovals)
	require.Equal(t, 1, got.CompletedThisMonth)
	require.True(t, decimal.RequireFromString("120.00").Equal(got.TotalWasteCostThisMonth))
	require.Equal(t, 2, got.ExpiredAlerts)
	require.Equal(t, 1, got.ExpiringAlerts)

	// Next month starts from zero.
	f.clock.Set(time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC))
	got, err = f.svc.Summary(f.ctx)
	require.NoError(t, err)
	require.Zero(t, got.CompletedThisMonth)
	require.True(t, got.TotalWasteCostThisMonth.IsZero())
	require.Equal(t, 3, got.ExpiredAlerts)
	require.Zero(t, got.ExpiringAlerts)
}
