package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/medequip/compliance/internal/models"
	"github.com/medequip/compliance/internal/testutil"
)

func setupTestDB(t *testing.T) *testutil.TestDB {
	t.Helper()
	return testutil.NewTestDB(t)
}

func createItem(t *testing.T, repo *InventoryRepository, overrides ...func(*models.InventoryItem)) *models.InventoryItem {
	t.Helper()
	item := testutil.FixtureItem(overrides...)
	if err := repo.CreateItem(context.Background(), nil, item); err != nil {
		t.Fatalf("failed to create item: %v", err)
	}
	return item
}

func TestInventoryRepository_Items(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInventoryRepository(db.DB.DB)
	ctx := context.Background()

	t.Run("Create and get item", func(t *testing.T) {
		item := createItem(t, repo)

		found, err := repo.GetItem(ctx, nil, item.ID)
		if err != nil {
			t.Fatalf("failed to get item: %v", err)
		}
		if found.ItemCode != item.ItemCode {
			t.Errorf("expected code %s, got %s", item.ItemCode, found.ItemCode)
		}
		if !found.UnitCost.Equal(item.UnitCost) {
			t.Errorf("expected unit cost %s, got %s", item.UnitCost, found.UnitCost)
		}
	})

	t.Run("Duplicate item code returns error", func(t *testing.T) {
		item := createItem(t, repo)
		dup := testutil.FixtureItem(func(i *models.InventoryItem) { i.ItemCode = item.ItemCode })
		if err := repo.CreateItem(ctx, nil, dup); err == nil {
			t.Error("expected error for duplicate item code, got nil")
		}
	})

	t.Run("Missing item returns NotFoundError", func(t *testing.T) {
		_, err := repo.GetItem(ctx, nil, "missing")
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Update unit cost", func(t *testing.T) {
		item := createItem(t, repo)
		if err := repo.UpdateItemUnitCost(ctx, nil, item.ID, decimal.RequireFromString("9.99")); err != nil {
			t.Fatalf("failed to update cost: %v", err)
		}
		found, _ := repo.GetItem(ctx, nil, item.ID)
		if found.UnitCost.String() != "9.99" {
			t.Errorf("expected 9.99, got %s", found.UnitCost)
		}
	})
}

func TestInventoryRepository_Lots(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInventoryRepository(db.DB.DB)
	ctx := context.Background()

	item := createItem(t, repo)

	soon := testutil.FixtureLot(item.ID, "2026-03-01")
	later := testutil.FixtureLot(item.ID, "2026-09-01")
	none := testutil.FixtureLot(item.ID, "")
	bad := testutil.FixtureLot(item.ID, "not-a-date")
	for _, lot := range []*models.InventoryLot{later, soon, none, bad} {
		if err := repo.CreateLot(ctx, nil, lot); err != nil {
			t.Fatalf("failed to create lot: %v", err)
		}
	}

	t.Run("Get lot joins item", func(t *testing.T) {
		found, err := repo.GetLot(ctx, soon.ID)
		if err != nil {
			t.Fatalf("failed to get lot: %v", err)
		}
		if found.Item == nil || found.Item.Name != item.Name {
			t.Errorf("expected joined item %s, got %+v", item.Name, found.Item)
		}
		if found.Expiration != "2026-03-01" {
			t.Errorf("expected expiration 2026-03-01, got %q", found.Expiration)
		}
	})

	t.Run("Lots with expiration keep raw values", func(t *testing.T) {
		lots, err := repo.ListLotsWithExpiration(ctx)
		if err != nil {
			t.Fatalf("failed to list lots: %v", err)
		}
		if len(lots) != 3 {
			t.Fatalf("expected 3 lots with expiration, got %d", len(lots))
		}
		if lots[0].ID != soon.ID {
			t.Errorf("expected soonest lot first, got %s", lots[0].Expiration)
		}
	})

	t.Run("Filter lots without expiration", func(t *testing.T) {
		has := false
		lots, err := repo.ListLots(ctx, models.LotFilter{HasExpiration: &has})
		if err != nil {
			t.Fatalf("failed to list lots: %v", err)
		}
		if len(lots) != 1 || lots[0].ID != none.ID {
			t.Errorf("expected only the non-expiring lot, got %d lots", len(lots))
		}
	})

	t.Run("Update lot", func(t *testing.T) {
		soon.Quantity = 0
		if err := repo.UpdateLot(ctx, nil, soon); err != nil {
			t.Fatalf("failed to update lot: %v", err)
		}
		found, _ := repo.GetLot(ctx, soon.ID)
		if found.Quantity != 0 {
			t.Errorf("expected quantity 0, got %v", found.Quantity)
		}
	})
}

func TestInventoryRepository_CorruptColumns(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInventoryRepository(db.DB.DB)
	ctx := context.Background()

	item := createItem(t, repo)
	lot := testutil.FixtureLot(item.ID, "2026-05-20")
	if err := repo.CreateLot(ctx, nil, lot); err != nil {
		t.Fatalf("failed to create lot: %v", err)
	}

	if _, err := db.Exec("UPDATE inventory_lots SET received_date = 'last spring' WHERE id = ?", lot.ID); err != nil {
		t.Fatalf("failed to corrupt lot: %v", err)
	}
	if _, err := repo.ListLotsWithExpiration(ctx); err == nil || !strings.Contains(err.Error(), "received_date") {
		t.Errorf("expected error naming received_date, got %v", err)
	}

	if _, err := db.Exec("UPDATE inventory_items SET unit_cost = 'two fifty' WHERE id = ?", item.ID); err != nil {
		t.Fatalf("failed to corrupt item: %v", err)
	}
	if _, err := repo.GetItem(ctx, nil, item.ID); err == nil || !strings.Contains(err.Error(), "unit_cost") {
		t.Errorf("expected error naming unit_cost, got %v", err)
	}
}
