package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/medequip/compliance/internal/models"
	"github.com/medequip/compliance/internal/testutil"
)

func TestAlertRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db.DB.DB)
	ctx := context.Background()

	t.Run("Create and get alert", func(t *testing.T) {
		alert := testutil.FixtureAlert("item-1")
		if err := repo.Create(ctx, nil, alert); err != nil {
			t.Fatalf("failed to create alert: %v", err)
		}

		found, err := repo.Get(ctx, nil, alert.ID)
		if err != nil {
			t.Fatalf("failed to get alert: %v", err)
		}
		if found.AlertType != models.AlertTypeExpiringSoon {
			t.Errorf("expected EXPIRING_SOON, got %s", found.AlertType)
		}
		if found.LotKey() != alert.LotKey() {
			t.Errorf("expected lot key %s, got %s", alert.LotKey(), found.LotKey())
		}
		if !found.ExpirationDate.Equal(alert.ExpirationDate.Truncate(time.Microsecond)) {
			t.Errorf("expected expiration %v, got %v", alert.ExpirationDate, found.ExpirationDate)
		}
		if found.Stage() != models.AlertStageNew {
			t.Errorf("expected NEW stage, got %s", found.Stage())
		}
	})

	t.Run("Second open alert for same key conflicts", func(t *testing.T) {
		first := testutil.FixtureAlert("item-2")
		if err := repo.Create(ctx, nil, first); err != nil {
			t.Fatalf("failed to create alert: %v", err)
		}

		second := testutil.FixtureAlert("item-2", func(a *models.ExpirationAlert) {
			a.LotNumber = first.LotNumber
		})
		err := repo.Create(ctx, nil, second)
		if !errors.Is(err, models.ErrConcurrencyConflict) {
			t.Errorf("expected ErrConcurrencyConflict, got %v", err)
		}
	})

	t.Run("Missing alert returns NotFoundError", func(t *testing.T) {
		_, err := repo.Get(ctx, nil, "missing")
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAlertRepository_FindByKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db.DB.DB)
	ctx := context.Background()

	alert := testutil.FixtureAlert("item-1")
	if err := repo.Create(ctx, nil, alert); err != nil {
		t.Fatalf("failed to create alert: %v", err)
	}

	open, err := repo.FindOpenByKey(ctx, nil, "item-1", alert.LotKey())
	if err != nil {
		t.Fatalf("failed to find open alert: %v", err)
	}
	if open == nil || open.ID != alert.ID {
		t.Fatalf("expected open alert %s, got %+v", alert.ID, open)
	}

	resolved, err := repo.FindLatestResolvedByKey(ctx, nil, "item-1", alert.LotKey())
	if err != nil {
		t.Fatalf("failed to find resolved alert: %v", err)
	}
	if resolved != nil {
		t.Errorf("expected no resolved alert, got %s", resolved.ID)
	}

	now := time.Now().UTC()
	used := models.ResolutionUsed
	open.Acknowledged = true
	open.AcknowledgedAt = &now
	open.Resolved = true
	open.ResolutionType = &used
	open.ResolvedAt = &now
	if err := repo.Update(ctx, nil, open); err != nil {
		t.Fatalf("failed to resolve alert: %v", err)
	}

	open, _ = repo.FindOpenByKey(ctx, nil, "item-1", alert.LotKey())
	if open != nil {
		t.Errorf("expected no open alert after resolution, got %s", open.ID)
	}

	resolved, _ = repo.FindLatestResolvedByKey(ctx, nil, "item-1", alert.LotKey())
	if resolved == nil || resolved.ID != alert.ID {
		t.Fatalf("expected resolved alert %s", alert.ID)
	}
	if resolved.Stage() != models.AlertStageResolved {
		t.Errorf("expected RESOLVED stage, got %s", resolved.Stage())
	}

	// A new open alert for the same key is allowed once the old one is resolved.
	again := testutil.FixtureAlert("item-1", func(a *models.ExpirationAlert) {
		a.LotNumber = alert.LotNumber
	})
	if err := repo.Create(ctx, nil, again); err != nil {
		t.Errorf("expected new alert after resolution, got %v", err)
	}
}

func TestAlertRepository_UpdateVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db.DB.DB)
	ctx := context.Background()

	alert := testutil.FixtureAlert("item-1")
	if err := repo.Create(ctx, nil, alert); err != nil {
		t.Fatalf("failed to create alert: %v", err)
	}

	stale, _ := repo.Get(ctx, nil, alert.ID)

	alert.Acknowledged = true
	if err := repo.Update(ctx, nil, alert); err != nil {
		t.Fatalf("failed to update alert: %v", err)
	}
	if alert.Version != 2 {
		t.Errorf("expected version 2, got %d", alert.Version)
	}

	stale.Quantity = 3
	err := repo.Update(ctx, nil, stale)
	var conflict *models.ConcurrencyConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConcurrencyConflictError, got %v", err)
	}
	if conflict.Version != 1 {
		t.Errorf("expected conflict at version 1, got %d", conflict.Version)
	}
}

func TestAlertRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db.DB.DB)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, days := range []int{-3, 2, 10} {
		alert := testutil.FixtureAlert("item-list", func(a *models.ExpirationAlert) {
			a.ExpirationDate = now.AddDate(0, 0, days)
			a.DaysUntilExpiry = days
			if days < 0 {
				a.AlertType = models.AlertTypeExpired
			}
		})
		if err := repo.Create(ctx, nil, alert); err != nil {
			t.Fatalf("failed to create alert %d: %v", i, err)
		}
	}

	t.Run("All alerts sorted by expiration", func(t *testing.T) {
		list, err := repo.List(ctx, models.AlertFilter{}, models.AllPages())
		if err != nil {
			t.Fatalf("failed to list alerts: %v", err)
		}
		if list.Total != 3 || len(list.Alerts) != 3 {
			t.Fatalf("expected 3 alerts, got %d", list.Total)
		}
		if list.Alerts[0].AlertType != models.AlertTypeExpired {
			t.Errorf("expected expired alert first, got %s", list.Alerts[0].AlertType)
		}
	})

	t.Run("Filter by type", func(t *testing.T) {
		expired := models.AlertTypeExpired
		list, err := repo.List(ctx, models.AlertFilter{AlertType: &expired}, models.DefaultPagination())
		if err != nil {
			t.Fatalf("failed to list alerts: %v", err)
		}
		if list.Total != 1 {
			t.Errorf("expected 1 expired alert, got %d", list.Total)
		}
	})

	t.Run("Filter by type follows the clock between scans", func(t *testing.T) {
		expired := models.AlertTypeExpired
		soon := models.AlertTypeExpiringSoon
		later := now.AddDate(0, 0, 7)

		list, err := repo.List(ctx, models.AlertFilter{AlertType: &expired, AsOf: later}, models.AllPages())
		if err != nil {
			t.Fatalf("failed to list alerts: %v", err)
		}
		if list.Total != 2 {
			t.Errorf("expected 2 expired alerts a week later, got %d", list.Total)
		}

		list, err = repo.List(ctx, models.AlertFilter{AlertType: &soon, AsOf: later}, models.AllPages())
		if err != nil {
			t.Fatalf("failed to list alerts: %v", err)
		}
		if list.Total != 1 || list.Alerts[0].AlertType != models.AlertTypeExpiringSoon {
			t.Errorf("expected only the 10-day alert to still be expiring, got %d", list.Total)
		}
	})

	t.Run("Filter by type half a day past expiration", func(t *testing.T) {
		soon := models.AlertTypeExpiringSoon
		expired := models.AlertTypeExpired
		halfDay := now.AddDate(0, 0, 2).Add(12 * time.Hour)

		list, err := repo.List(ctx, models.AlertFilter{AlertType: &soon, AsOf: halfDay}, models.AllPages())
		if err != nil {
			t.Fatalf("failed to list alerts: %v", err)
		}
		if list.Total != 2 {
			t.Errorf("expected the 2-day alert to still be expiring, got %d", list.Total)
		}
		for _, a := range list.Alerts {
			if models.DaysUntil(a.ExpirationDate, halfDay) < 0 {
				t.Errorf("alert with %d days listed as expiring", models.DaysUntil(a.ExpirationDate, halfDay))
			}
		}

		list, err = repo.List(ctx, models.AlertFilter{AlertType: &expired, AsOf: halfDay}, models.AllPages())
		if err != nil {
			t.Fatalf("failed to list alerts: %v", err)
		}
		if list.Total != 1 {
			t.Errorf("expected 1 expired alert, got %d", list.Total)
		}
	})

	t.Run("Filter by expiring before", func(t *testing.T) {
		cutoff := now.AddDate(0, 0, 5)
		list, err := repo.List(ctx, models.AlertFilter{ExpiringBefore: &cutoff}, models.DefaultPagination())
		if err != nil {
			t.Fatalf("failed to list alerts: %v", err)
		}
		if list.Total != 2 {
			t.Errorf("expected 2 alerts before cutoff, got %d", list.Total)
		}
	})

	t.Run("Pagination", func(t *testing.T) {
		list, err := repo.List(ctx, models.AlertFilter{}, models.Pagination{Page: 2, PageSize: 2})
		if err != nil {
			t.Fatalf("failed to list alerts: %v", err)
		}
		if len(list.Alerts) != 1 || list.TotalPages != 2 {
			t.Errorf("expected 1 alert on page 2 of 2, got %d of %d", len(list.Alerts), list.TotalPages)
		}
	})
}

func TestAlertRepository_UpdateDriverError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer sqlDB.Close()

	repo := NewAlertRepository(sqlDB)
	alert := testutil.FixtureAlert("item-1")

	mock.ExpectExec("UPDATE expiration_alerts SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Update(context.Background(), nil, alert)
	if !errors.Is(err, models.ErrConcurrencyConflict) {
		t.Errorf("expected ErrConcurrencyConflict for zero rows, got %v", err)
	}
	if alert.Version != 1 {
		t.Errorf("version must not advance on conflict, got %d", alert.Version)
	}

	mock.ExpectExec("INSERT INTO expiration_alerts").
		WillReturnError(errors.New("UNIQUE constraint failed: expiration_alerts.item_id, expiration_alerts.lot_key"))

	err = repo.Create(context.Background(), nil, alert)
	if !errors.Is(err, models.ErrConcurrencyConflict) {
		t.Errorf("expected ErrConcurrencyConflict for unique violation, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAlertRepository_CorruptColumn(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAlertRepository(db.DB.DB)
	ctx := context.Background()

	alert := testutil.FixtureAlert("item-corrupt")
	if err := repo.Create(ctx, nil, alert); err != nil {
		t.Fatalf("failed to create alert: %v", err)
	}
	if _, err := db.Exec("UPDATE expiration_alerts SET expiration_date = 'soonish' WHERE id = ?", alert.ID); err != nil {
		t.Fatalf("failed to corrupt alert: %v", err)
	}

	_, err := repo.Get(ctx, nil, alert.ID)
	if err == nil || !strings.Contains(err.Error(), "expiration_date") {
		t.Errorf("expected error naming expiration_date, got %v", err)
	}

	_, err = repo.List(ctx, models.AlertFilter{}, models.AllPages())
	if err == nil || !strings.Contains(err.Error(), "soonish") {
		t.Errorf("expected list to report the corrupt value, got %v", err)
	}
}
