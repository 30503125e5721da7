package compliance

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/medequip/compliance/internal/models"
	"github.com/medequip/compliance/internal/util"
)

// CreateItem registers an inventory item.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, &models.ValidationError{Field: "name", Message: "item name is required"}
	}
	if strings.TrimSpace(input.ItemCode) == "" {
		return nil, &models.ValidationError{Field: "item_code", Message: "item code is required"}
	}
	if input.UnitCost.IsNegative() {
		return nil, &models.ValidationError{Field: "unit_cost", Message: "must not be negative"}
	}

	item := &models.InventoryItem{
		ID:            util.NewID(),
		ItemCode:      input.ItemCode,
		Name:          input.Name,
		UnitOfMeasure: input.UnitOfMeasure,
		UnitCost:      input.UnitCost,
	}
	if item.UnitOfMeasure == "" {
		item.UnitOfMeasure = "each"
	}

	if err := s.inventory.CreateItem(ctx, nil, item); err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	return item, nil
}

// CreateLot receives a lot of an existing item.
func (s *Service) CreateLot(ctx context.Context, input CreateLotInput) (*models.InventoryLot, error) {
	if input.Quantity < 0 {
		return nil, &models.ValidationError{Field: "quantity", Message: "must not be negative"}
	}
	if input.Expiration != "" {
		if _, err := models.ParseExpiration(input.Expiration, s.loc); err != nil {
			return nil, &models.ValidationError{Field: "expiration", Message: err.Error()}
		}
	}
	if _, err := s.inventory.GetItem(ctx, nil, input.ItemID); err != nil {
		return nil, err
	}

	lot := &models.InventoryLot{
		ID:              util.NewID(),
		ItemID:          input.ItemID,
		LotNumber:       input.LotNumber,
		Quantity:        input.Quantity,
		StorageLocation: input.StorageLocation,
		ReceivedDate:    input.ReceivedDate,
		Expiration:      strings.TrimSpace(input.Expiration),
	}

	if err := s.inventory.CreateLot(ctx, nil, lot); err != nil {
		return nil, fmt.Errorf("creating lot: %w", err)
	}
	return lot, nil
}

// UpdateUnitCost changes an item's current cost. Discard records already
// created keep the cost they were created with.
func (s *Service) UpdateUnitCost(ctx context.Context, itemID string, cost decimal.Decimal) error {
	if cost.IsNegative() {
		return &models.ValidationError{Field: "unit_cost", Message: "must not be negative"}
	}
	return s.inventory.UpdateItemUnitCost(ctx, nil, itemID, cost)
}
