package compliance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/medequip/compliance/internal/models"
)

// CreateDiscardInput contains data for creating a discard record directly.
type CreateDiscardInput struct {
	ItemID         string
	ItemName       string
	ItemCode       string
	LotNumber      *string
	ExpirationDate *time.Time
	Quantity       float64
	// UnitCost overrides the inventory item's current cost. When nil the
	// cost is read from the item identified by ItemID.
	UnitCost *decimal.Decimal

	ReasonCode       models.ReasonCode
	ReasonNotes      string
	DisposalMethod   models.DisposalMethod
	DisposalLocation string

	CreatedBy models.ActorRef
}

// CreateFromAlertInput contains data for discarding the stock behind an
// expiration alert. Item, lot, quantity and expiration come from the alert.
type CreateFromAlertInput struct {
	AlertID models.AlertID
	// ReasonCode defaults to EXPIRED.
	ReasonCode       models.ReasonCode
	ReasonNotes      string
	DisposalMethod   models.DisposalMethod
	DisposalLocation string
	// Quantity overrides the alert quantity when set.
	Quantity *float64

	CreatedBy models.ActorRef
}

// CreateItemInput contains data for registering an inventory item.
type CreateItemInput struct {
	ItemCode      string
	Name          string
	UnitOfMeasure string
	UnitCost      decimal.Decimal
}

// CreateLotInput contains data for receiving a lot.
type CreateLotInput struct {
	ItemID          string
	LotNumber       *string
	Quantity        float64
	StorageLocation string
	ReceivedDate    time.Time
	// Expiration is "2006-01-02" or RFC3339; empty for no expiration.
	Expiration string
}
