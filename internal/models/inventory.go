package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Expiration layouts accepted when reading a stored lot expiration.
const (
	ExpirationDateLayout     = "2006-01-02"
	ExpirationDateTimeLayout = time.RFC3339
)

// InventoryItem is a stocked item definition owned by the inventory subsystem.
type InventoryItem struct {
	ID            string
	ItemCode      string // SKU, e.g. "SYR-10ML-LL"
	Name          string
	UnitOfMeasure string
	UnitCost      decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InventoryLot is a physical batch of an item. The compliance core only
// reads lots during scans.
type InventoryLot struct {
	ID              string
	ItemID          string
	LotNumber       *string
	Quantity        float64
	StorageLocation string
	ReceivedDate    time.Time

	// Expiration is the stored expiration value, empty when the lot does
	// not expire. It is parsed with ParseExpiration.
	Expiration string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Joined fields
	Item *InventoryItem
}

// LotKey returns the lot half of the alert natural key.
func (l *InventoryLot) LotKey() string {
	return LotKey(l.LotNumber)
}

// ExpiresAt parses the lot's expiration in the given location.
func (l *InventoryLot) ExpiresAt(loc *time.Location) (time.Time, error) {
	if l.Expiration == "" {
		return time.Time{}, ErrNoExpiration
	}
	return ParseExpiration(l.Expiration, loc)
}

// ErrNoExpiration is returned for lots without an expiration date.
var ErrNoExpiration = errors.New("lot has no expiration date")

// ParseExpiration parses a stored expiration. Date-only values are taken
// as the start of that day in loc.
func ParseExpiration(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(ExpirationDateLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(ExpirationDateTimeLayout, s); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, fmt.Errorf("invalid expiration date %q", s)
}

// LotKey normalizes an optional lot number into a comparable key.
func LotKey(lotNumber *string) string {
	if lotNumber == nil {
		return ""
	}
	return strings.TrimSpace(*lotNumber)
}

// LotFilter defines filters for querying lots.
type LotFilter struct {
	ItemID          string
	StorageLocation string
	HasExpiration   *bool
}
