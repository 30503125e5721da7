package compliance

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medequip/compliance/internal/models"
)

// scannedAlert creates one lot expiring on exp and returns its alert.
func (f *fixture) scannedAlert(t *testing.T, name, exp string, qty float64) (*models.InventoryItem, *models.ExpirationAlert) {
	t.Helper()
	item := f.item(t, name, "2.50")
	f.lot(t, item.ID, "L-"+name, exp, qty)
	f.scan(t, 30)

	for _, a := range f.openAlerts(t) {
		if a.ItemID == item.ID {
			return item, a
		}
	}
	t.Fatalf("no alert for %s", name)
	return nil, nil
}

func TestAcknowledge(t *testing.T) {
	f := newFixture(t)
	_, alert := f.scannedAlert(t, "Catheter", "2026-05-21", 2)

	got, err := f.svc.Acknowledge(f.ctx, alert.ID, nurse)
	require.NoError(t, err)
	require.Equal(t, models.AlertStageAcknowledged, got.Stage())
	require.Equal(t, nurse.ID, got.AcknowledgedByID)
	require.Equal(t, nurse.Name, got.AcknowledgedBy)
	require.NotNil(t, got.AcknowledgedAt)
	require.True(t, got.AcknowledgedAt.Equal(testNow))

	// A second acknowledgement keeps the first actor and writes nothing.
	f.clock.Set(testNow.Add(time.Hour))
	again, err := f.svc.Acknowledge(f.ctx, alert.ID, manager)
	require.NoError(t, err)
	require.Equal(t, nurse.ID, again.AcknowledgedByID)
	require.Equal(t, got.Version, again.Version)

	history, err := f.svc.History(f.ctx, models.AuditEntityAlert, string(alert.ID))
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestAcknowledgeValidation(t *testing.T) {
	f := newFixture(t)
	_, alert := f.scannedAlert(t, "Mask", "2026-05-21", 2)

	_, err := f.svc.Acknowledge(f.ctx, alert.ID, models.ActorRef{Name: "no id"})
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "acknowledged_by", verr.Field)

	_, err = f.svc.Acknowledge(f.ctx, "missing", nurse)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestResolveAsUsed(t *testing.T) {
	f := newFixture(t)
	_, alert := f.scannedAlert(t, "Bandage", "2026-05-18", 30)

	got, err := f.svc.ResolveAsUsed(f.ctx, alert.ID, nurse, "  used in clinic  ")
	require.NoError(t, err)
	require.True(t, got.Resolved)
	require.Equal(t, models.AlertStageResolved, got.Stage())
	require.Equal(t, models.ResolutionUsed, *got.ResolutionType)
	require.Equal(t, "used in clinic", got.ResolutionNotes)
	require.Nil(t, got.LinkedDiscardID)

	// Resolving acknowledges implicitly.
	require.True(t, got.Acknowledged)
	require.Equal(t, nurse.ID, got.AcknowledgedByID)
	require.NoError(t, got.Validate())

	require.Empty(t, f.openAlerts(t))
}

func TestResolvedAlertIsFinal(t *testing.T) {
	f := newFixture(t)
	_, alert := f.scannedAlert(t, "Thermometer Cover", "2026-05-18", 30)

	_, err := f.svc.ResolveAsUsed(f.ctx, alert.ID, nurse, "")
	require.NoError(t, err)

	_, err = f.svc.ResolveAsUsed(f.ctx, alert.ID, manager, "")
	require.ErrorIs(t, err, models.ErrInvalidState)

	_, err = f.svc.Acknowledge(f.ctx, alert.ID, manager)
	require.ErrorIs(t, err, models.ErrInvalidState)

	_, err = f.svc.CreateDiscardFromAlert(f.ctx, CreateFromAlertInput{
		AlertID:        alert.ID,
		DisposalMethod: models.DisposalGeneral,
		CreatedBy:      manager,
	})
	require.ErrorIs(t, err, models.ErrInvalidState)

	got, err := f.svc.GetAlert(f.ctx, alert.ID)
	require.NoError(t, err)
	require.Equal(t, models.ResolutionUsed, *got.ResolutionType)
	require.Equal(t, nurse.ID, got.ResolvedByID)
	f.db.AssertRowCount(t, "discard_records", 0)
}

func TestConcurrentResolutionsPickOneWinner(t *testing.T) {
	f := newFixture(t)
	_, alert := f.scannedAlert(t, "Oxygen Tubing", "2026-05-18", 8)

	var wg sync.WaitGroup
	var usedErr, discardErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, usedErr = f.svc.ResolveAsUsed(f.ctx, alert.ID, nurse, "")
	}()
	go func() {
		defer wg.Done()
		_, discardErr = f.svc.CreateDiscardFromAlert(f.ctx, CreateFromAlertInput{
			AlertID:        alert.ID,
			DisposalMethod: models.DisposalGeneral,
			CreatedBy:      manager,
		})
	}()
	wg.Wait()

	// Exactly one path wins; the loser sees an invalid state.
	require.True(t, (usedErr == nil) != (discardErr == nil), "used=%v discard=%v", usedErr, discardErr)
	loser := usedErr
	if loser == nil {
		loser = discardErr
	}
	require.True(t, errors.Is(loser, models.ErrInvalidState), "unexpected error: %v", loser)

	got, err := f.svc.GetAlert(f.ctx, alert.ID)
	require.NoError(t, err)
	require.True(t, got.Resolved)
	require.NoError(t, got.Validate())
	if *got.ResolutionType == models.ResolutionUsed {
		f.db.AssertRowCount(t, "discard_records", 0)
	} else {
		f.db.AssertRowCount(t, "discard_records", 1)
	}
}

func TestAlertsRefreshAtReadTime(t *testing.T) {
	f := newFixture(t)
	_, alert := f.scannedAlert(t, "Epinephrine", "2026-05-20", 1)
	require.Equal(t, 5, alert.DaysUntilExpiry)
	require.Equal(t, models.AlertTypeExpiringSoon, alert.AlertType)

	f.clock.Set(testNow.AddDate(0, 0, 7))

	got, err := f.svc.GetAlert(f.ctx, alert.ID)
	require.NoError(t, err)
	require.Equal(t, -2, got.DaysUntilExpiry)
	require.Equal(t, models.AlertTypeExpired, got.AlertType)
}

func TestListAlertsFilters(t *testing.T) {
	f := newFixture(t)
	_, expired := f.scannedAlert(t, "Old Stock", "2026-05-01", 1)
	_, soon := f.scannedAlert(t, "New Stock", "2026-05-25", 1)

	_, err := f.svc.Acknowledge(f.ctx, soon.ID, nurse)
	require.NoError(t, err)

	typ := models.AlertTypeExpired
	list, err := f.svc.ListAlerts(f.ctx, models.AlertFilter{AlertType: &typ}, models.DefaultPagination())
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	require.Equal(t, expired.ID, list.Alerts[0].ID)

	acked := true
	list, err = f.svc.ListAlerts(f.ctx, models.AlertFilter{Acknowledged: &acked}, models.DefaultPagination())
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	require.Equal(t, soon.ID, list.Alerts[0].ID)
}

func TestListAlertsTypeFilterBetweenScans(t *testing.T) {
	f := newFixture(t)
	_, alert := f.scannedAlert(t, "Epinephrine", "2026-05-20", 1)
	expired := models.AlertTypeExpired
	soon := models.AlertTypeExpiringSoon

	// Half a day past the date is still day zero.
	f.clock.Set(time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC))
	list, err := f.svc.ListAlerts(f.ctx, models.AlertFilter{AlertType: &soon}, models.AllPages())
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	require.Equal(t, alert.ID, list.Alerts[0].ID)
	require.Equal(t, 0, list.Alerts[0].DaysUntilExpiry)

	f.clock.Set(testNow.AddDate(0, 0, 7))

	list, err = f.svc.ListAlerts(f.ctx, models.AlertFilter{AlertType: &expired}, models.AllPages())
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	require.Equal(t, alert.ID, list.Alerts[0].ID)
	require.Equal(t, models.AlertTypeExpired, list.Alerts[0].AlertType)
	require.Equal(t, -2, list.Alerts[0].DaysUntilExpiry)

	list, err = f.svc.ListAlerts(f.ctx, models.AlertFilter{AlertType: &soon}, models.AllPages())
	require.NoError(t, err)
	require.Zero(t, list.Total)
	require.Empty(t, list.Alerts)

	summary, err := f.svc.Summary(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.ExpiredAlerts)
	require.Zero(t, summary.ExpiringAlerts)
}
