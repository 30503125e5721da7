package compliance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/medequip/compliance/internal/lock"
	"github.com/medequip/compliance/internal/metrics"
	"github.com/medequip/compliance/internal/models"
	"github.com/medequip/compliance/internal/util"
)

// ScanResult summarizes one scan. Expired and ExpiringSoon count alertable
// natural keys; Created, Updated and Suppressed say what happened to them.
type ScanResult struct {
	Expired      int
	ExpiringSoon int
	Created      int
	Updated      int
	// Suppressed keys matched a resolved alert with the same expiration.
	Suppressed int
	// Cleared open alerts had no stock left to act on. See clearStale.
	Cleared int
	// Skipped lots had a malformed expiration or a negative quantity.
	Skipped int
	// Failed keys hit a storage error; the scan went on without them.
	Failed   int
	Duration time.Duration
}

// lotGroup is every lot sharing one alert natural key. The alert tracks
// the earliest expiration and the combined quantity.
type lotGroup struct {
	itemID   string
	lotKey   string
	lot      *models.InventoryLot
	expires  time.Time
	quantity float64
}

func (g *lotGroup) key() string {
	return groupKey(g.itemID, g.lotKey)
}

func groupKey(itemID, lotKey string) string {
	return itemID + "\x00" + lotKey
}

// scanSystemActor is recorded on alerts the scanner creates or clears.
var scanSystemActor = models.ActorRef{ID: "system:scanner", Name: "Expiration scanner"}

const clearedNote = "no stock within the scan horizon remains for this lot"

// Scan walks every lot with an expiration date and creates or refreshes
// expiration alerts for those within horizonDays. A non-positive horizon
// uses the configured default. Each natural key is upserted in its own
// transaction under its own lock, so a cancelled scan leaves every key it
// touched consistent and returns the partial result with ctx's error.
//
// Keys beyond horizonDays but within the configured horizon only have an
// existing open alert refreshed. Open alerts whose key has no stock left
// within either horizon are cleared once every key has been visited.
func (s *Service) Scan(ctx context.Context, horizonDays int) (*ScanResult, error) {
	if horizonDays <= 0 {
		horizonDays = s.horizon
	}
	watchDays := max(horizonDays, s.horizon)

	start := time.Now()
	now := s.now()
	result := &ScanResult{}

	lots, err := s.inventory.ListLotsWithExpiration(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing lots: %w", err)
	}

	groups, unreadable := s.groupLots(lots, result)
	live := make(map[string]bool, len(groups))

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			s.finishScan(start, result)
			return result, err
		}
		if g.quantity == 0 {
			continue
		}

		create := true
		alertType, days, ok := Classify(g.expires, now, horizonDays)
		if !ok {
			create = false
			alertType, days, ok = Classify(g.expires, now, watchDays)
			if !ok {
				continue
			}
		}
		live[g.key()] = true

		if create {
			if alertType == models.AlertTypeExpired {
				result.Expired++
			} else {
				result.ExpiringSoon++
			}
		}

		err := s.withLock(ctx, lock.AlertKey(g.itemID, g.lotKey), func() error {
			return s.upsertAlert(ctx, g, alertType, days, create, now, result)
		})
		if err != nil {
			s.keyFailed(err, g.itemID, g.lotKey, result)
		}
	}

	err = s.clearStale(ctx, live, unreadable, now, result)
	s.finishScan(start, result)
	return result, err
}

// clearStale resolves open alerts whose key no longer has stock the scan
// would alert on: every lot is gone, has lost its expiration, sums to zero,
// or expires beyond the watched horizon. Keys with an unreadable lot keep
// their alert.
func (s *Service) clearStale(ctx context.Context, live, unreadable map[string]bool, now time.Time, result *ScanResult) error {
	unresolved := false
	open, err := s.alerts.List(ctx, models.AlertFilter{Resolved: &unresolved}, models.AllPages())
	if err != nil {
		return fmt.Errorf("listing open alerts: %w", err)
	}

	for _, a := range open.Alerts {
		if err := ctx.Err(); err != nil {
			return err
		}
		lotKey := a.LotKey()
		key := groupKey(a.ItemID, lotKey)
		if live[key] || unreadable[key] {
			continue
		}

		id := a.ID
		err := s.withLock(ctx, lock.AlertKey(a.ItemID, lotKey), func() error {
			return s.clearAlert(ctx, id, a.ItemID, lotKey, now, result)
		})
		if err != nil {
			s.keyFailed(err, a.ItemID, lotKey, result)
		}
	}
	return nil
}

func (s *Service) clearAlert(ctx context.Context, id models.AlertID, itemID, lotKey string, now time.Time, result *ScanResult) error {
	var outcome func()

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		a, err := s.alerts.FindOpenByKey(ctx, tx, itemID, lotKey)
		if err != nil {
			return err
		}
		// Resolved or replaced since the listing.
		if a == nil || a.ID != id {
			return nil
		}

		a.Refresh(now)
		resolve(a, models.ResolutionCleared, scanSystemActor, clearedNote, now)
		if err := s.alerts.Update(ctx, tx, a); err != nil {
			return err
		}
		outcome = func() {
			result.Cleared++
			s.metrics.AlertResolved(models.ResolutionCleared)
			s.log.Info("expiration alert cleared",
				"alert_id", a.ID, "item_id", itemID, "lot", lotKey)
		}
		return s.record(ctx, tx, models.AuditEntityAlert, string(a.ID), models.AuditAlertResolved,
			scanSystemActor, string(models.ResolutionCleared))
	})
	if err != nil {
		return err
	}

	if outcome != nil {
		outcome()
	}
	return nil
}

func (s *Service) keyFailed(err error, itemID, lotKey string, result *ScanResult) {
	result.Failed++
	s.observe(err)
	s.log.Error("alert key failed during scan",
		"item_id", itemID, "lot", lotKey, "error", err)
}

// groupLots parses expirations and merges lots by natural key, in the
// order the lots were listed. Zero-quantity lots are grouped so a key
// whose stock is used up still shows as present with nothing to act on.
// The keys of skipped lots are returned as unreadable.
func (s *Service) groupLots(lots []*models.InventoryLot, result *ScanResult) ([]*lotGroup, map[string]bool) {
	byKey := make(map[string]*lotGroup)
	unreadable := make(map[string]bool)
	var groups []*lotGroup

	for _, lot := range lots {
		key := groupKey(lot.ItemID, lot.LotKey())

		if lot.Quantity < 0 {
			result.Skipped++
			unreadable[key] = true
			s.log.Warn("skipping lot with negative quantity", "lot_id", lot.ID, "quantity", lot.Quantity)
			continue
		}

		exp, err := lot.ExpiresAt(s.loc)
		if err != nil {
			result.Skipped++
			unreadable[key] = true
			s.log.Warn("skipping lot with unreadable expiration", "lot_id", lot.ID, "error", err)
			continue
		}

		g, ok := byKey[key]
		if !ok {
			g = &lotGroup{itemID: lot.ItemID, lotKey: lot.LotKey(), lot: lot, expires: exp}
			byKey[key] = g
			groups = append(groups, g)
		} else if exp.Before(g.expires) {
			g.lot = lot
			g.expires = exp
		}
		g.quantity += lot.Quantity
	}

	return groups, unreadable
}

// upsertAlert refreshes the open alert for g's key, or creates one when
// create is set and no resolved alert covers the same expiration.
func (s *Service) upsertAlert(ctx context.Context, g *lotGroup, alertType models.AlertType, days int, create bool, now time.Time, result *ScanResult) error {
	var outcome func()

	err := s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		open, err := s.alerts.FindOpenByKey(ctx, tx, g.itemID, g.lotKey)
		if err != nil {
			return err
		}

		if open != nil {
			if !refreshAlert(open, g, alertType, days) {
				outcome = func() { result.Updated++ }
				return nil
			}
			open.UpdatedAt = now
			if err := s.alerts.Update(ctx, tx, open); err != nil {
				return err
			}
			outcome = func() { result.Updated++ }
			return s.record(ctx, tx, models.AuditEntityAlert, string(open.ID), models.AuditAlertRefreshed,
				scanSystemActor, fmt.Sprintf("%s, %d days, quantity %g", open.AlertType, open.DaysUntilExpiry, open.Quantity))
		}

		if !create {
			return nil
		}

		resolved, err := s.alerts.FindLatestResolvedByKey(ctx, tx, g.itemID, g.lotKey)
		if err != nil {
			return err
		}
		if suppresses(resolved, g) {
			outcome = func() { result.Suppressed++ }
			return nil
		}

		alert := newAlert(g, alertType, days, now)
		if err := s.alerts.Create(ctx, tx, alert); err != nil {
			return err
		}
		outcome = func() {
			result.Created++
			s.metrics.AlertCreated(alert.AlertType)
			s.log.Info("expiration alert created",
				"alert_id", alert.ID, "item_id", alert.ItemID, "lot", g.lotKey,
				"type", alert.AlertType, "days", alert.DaysUntilExpiry)
		}
		return s.record(ctx, tx, models.AuditEntityAlert, string(alert.ID), models.AuditAlertCreated,
			scanSystemActor, fmt.Sprintf("%s, %d days", alert.AlertType, alert.DaysUntilExpiry))
	})
	if err != nil {
		return err
	}

	// Counted only after commit so a rolled back key is reported as failed.
	if outcome != nil {
		outcome()
	}
	return nil
}

// suppresses reports whether a resolved alert already covers g. A cleared
// alert never does: stock coming back is a new condition.
func suppresses(resolved *models.ExpirationAlert, g *lotGroup) bool {
	if resolved == nil || !resolved.ExpirationDate.Equal(g.expires) {
		return false
	}
	return resolved.ResolutionType == nil || *resolved.ResolutionType != models.ResolutionCleared
}

func newAlert(g *lotGroup, alertType models.AlertType, days int, now time.Time) *models.ExpirationAlert {
	a := &models.ExpirationAlert{
		ID:              models.AlertID(util.NewID()),
		ItemID:          g.itemID,
		LotID:           g.lot.ID,
		LotNumber:       g.lot.LotNumber,
		Quantity:        g.quantity,
		ExpirationDate:  g.expires,
		AlertType:       alertType,
		DaysUntilExpiry: days,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if g.lot.Item != nil {
		a.ItemName = g.lot.Item.Name
		a.ItemCode = g.lot.Item.ItemCode
	}
	return a
}

// refreshAlert copies the current lot state onto an open alert and
// reports whether anything changed.
func refreshAlert(a *models.ExpirationAlert, g *lotGroup, alertType models.AlertType, days int) bool {
	changed := a.LotID != g.lot.ID ||
		a.Quantity != g.quantity ||
		!a.ExpirationDate.Equal(g.expires) ||
		a.AlertType != alertType ||
		a.DaysUntilExpiry != days

	a.LotID = g.lot.ID
	a.Quantity = g.quantity
	a.ExpirationDate = g.expires
	a.AlertType = alertType
	a.DaysUntilExpiry = days
	return changed
}

func (s *Service) finishScan(start time.Time, result *ScanResult) {
	result.Duration = time.Since(start)
	s.metrics.ObserveScan(result.Duration, metrics.ScanOutcome{
		Created:    result.Created,
		Updated:    result.Updated,
		Skipped:    result.Skipped,
		Suppressed: result.Suppressed,
		Cleared:    result.Cleared,
	})
	s.log.Info("expiration scan finished",
		"expired", result.Expired,
		"expiring_soon", result.ExpiringSoon,
		"created", result.Created,
		"updated", result.Updated,
		"suppressed", result.Suppressed,
		"cleared", result.Cleared,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", result.Duration)
}
