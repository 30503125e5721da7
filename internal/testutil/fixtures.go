package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medequip/compliance/internal/models"
	"github.com/medequip/compliance/internal/util"
)

// FixtureItem creates a test inventory item with sensible defaults.
func FixtureItem(overrides ...func(*models.InventoryItem)) *models.InventoryItem {
	id := uuid.New().String()
	now := time.Now().UTC()

	item := &models.InventoryItem{
		ID:            id,
		ItemCode:      "SYR-" + id[:8],
		Name:          "Syringe 10ml Luer Lock",
		UnitOfMeasure: "each",
		UnitCost:      decimal.RequireFromString("0.45"),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, override := range overrides {
		override(item)
	}

	return item
}

// FixtureControlledItem creates a controlled-substance item.
func FixtureControlledItem(overrides ...func(*models.InventoryItem)) *models.InventoryItem {
	return FixtureItem(append([]func(*models.InventoryItem){
		func(i *models.InventoryItem) {
			i.Name = "Morphine 10mg/ml"
			i.UnitOfMeasure = "vial"
			i.UnitCost = decimal.RequireFromString("12.50")
		},
	}, overrides...)...)
}

// FixtureLot creates a lot of itemID expiring on the given date
// ("2006-01-02" or RFC3339; empty for no expiration).
func FixtureLot(itemID, expiration string, overrides ...func(*models.InventoryLot)) *models.InventoryLot {
	id := uuid.New().String()
	now := time.Now().UTC()
	lotNumber := "LOT-" + id[:6]

	lot := &models.InventoryLot{
		ID:              id,
		ItemID:          itemID,
		LotNumber:       &lotNumber,
		Quantity:        10,
		StorageLocation: "PHARM-A1",
		ReceivedDate:    now.AddDate(0, -3, 0),
		Expiration:      expiration,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, override := range overrides {
		override(lot)
	}

	return lot
}

// FixtureAlert creates an unacknowledged expiring-soon alert.
func FixtureAlert(itemID string, overrides ...func(*models.ExpirationAlert)) *models.ExpirationAlert {
	id := uuid.New().String()
	now := time.Now().UTC()
	lotNumber := "LOT-" + id[:6]

	alert := &models.ExpirationAlert{
		ID:              models.AlertID(id),
		ItemID:          itemID,
		LotID:           uuid.New().String(),
		ItemName:        "Syringe 10ml Luer Lock",
		ItemCode:        "SYR-10ML-LL",
		LotNumber:       &lotNumber,
		Quantity:        10,
		ExpirationDate:  now.AddDate(0, 0, 5),
		AlertType:       models.AlertTypeExpiringSoon,
		DaysUntilExpiry: 5,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, override := range overrides {
		override(alert)
	}

	return alert
}

// FixtureDiscard creates a pending discard record that requires approval.
func FixtureDiscard(seq int, overrides ...func(*models.DiscardRecord)) *models.DiscardRecord {
	id := uuid.New().String()
	now := time.Now().UTC()

	d := &models.DiscardRecord{
		ID:               models.DiscardID(id),
		DiscardNumber:    util.FormatDiscardNumber(util.DefaultDiscardPrefix, seq),
		Sequence:         seq,
		ItemID:           uuid.New().String(),
		ItemName:         "Saline 0.9% 500ml",
		ItemCode:         "NS-500",
		Quantity:         4,
		UnitCost:         decimal.RequireFromString("2.10"),
		TotalCost:        decimal.RequireFromString("8.40"),
		ReasonCode:       models.ReasonDamaged,
		DisposalMethod:   models.DisposalGeneral,
		Status:           models.DiscardStatusPending,
		RequiresApproval: true,
		CreatedByID:      "u-100",
		CreatedByName:    "Pat Nurse",
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	for _, override := range overrides {
		override(d)
	}

	return d
}
