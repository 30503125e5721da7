// Package compliance implements the expiration and disposal workflow:
// classifying lots, scanning inventory into expiration alerts, the alert
// lifecycle, the dual-control discard workflow and the compliance summary.
package compliance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/medequip/compliance/internal/config"
	"github.com/medequip/compliance/internal/database"
	"github.com/medequip/compliance/internal/lock"
	"github.com/medequip/compliance/internal/metrics"
	"github.com/medequip/compliance/internal/models"
	"github.com/medequip/compliance/internal/repository"
	"github.com/medequip/compliance/internal/util"
)

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Clock         util.Clock
	Location      *time.Location
	Locker        lock.Locker
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	Policy        *Policy
	Thresholds    Thresholds
	HorizonDays   int
	DiscardPrefix string
	LockWait      time.Duration
}

// OptionsFromConfig builds options from the loaded configuration. The
// locker, metrics and logger are supplied by the caller.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := util.LoadLocation(cfg.Facility.Timezone)
	if err != nil {
		return Options{}, err
	}

	policy, err := NewPolicy(cfg.Compliance.Policy)
	if err != nil {
		return Options{}, fmt.Errorf("compliance policy: %w", err)
	}

	return Options{
		Clock:         util.NewSystemClock(loc),
		Location:      loc,
		Policy:        policy,
		Thresholds:    Thresholds{Critical: cfg.Compliance.CriticalDays, Warning: cfg.Compliance.WarningDays},
		HorizonDays:   cfg.Compliance.HorizonDays,
		DiscardPrefix: cfg.Facility.DiscardNumberPrefix,
	}, nil
}

// Service provides the compliance workflow operations.
type Service struct {
	db        *database.DB
	inventory *repository.InventoryRepository
	alerts    *repository.AlertRepository
	discards  *repository.DiscardRepository
	audit     *repository.AuditRepository

	clock      util.Clock
	loc        *time.Location
	locker     lock.Locker
	metrics    *metrics.Metrics
	log        *slog.Logger
	policy     *Policy
	thresholds Thresholds
	horizon    int
	prefix     string
	lockWait   time.Duration
}

// NewService creates a new compliance service.
func NewService(db *database.DB, opts Options) *Service {
	s := &Service{
		db:         db,
		inventory:  repository.NewInventoryRepository(db.DB),
		alerts:     repository.NewAlertRepository(db.DB),
		discards:   repository.NewDiscardRepository(db.DB),
		audit:      repository.NewAuditRepository(db.DB),
		clock:      opts.Clock,
		loc:        opts.Location,
		locker:     opts.Locker,
		metrics:    opts.Metrics,
		log:        opts.Logger,
		policy:     opts.Policy,
		thresholds: opts.Thresholds,
		horizon:    opts.HorizonDays,
		prefix:     opts.DiscardPrefix,
		lockWait:   opts.LockWait,
	}

	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.clock == nil {
		s.clock = util.NewSystemClock(s.loc)
	}
	if s.locker == nil {
		s.locker = lock.NewLocalLocker()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.policy == nil {
		s.policy = DefaultPolicy()
	}
	if s.thresholds == (Thresholds{}) {
		s.thresholds = DefaultThresholds()
	}
	if s.horizon <= 0 {
		s.horizon = DefaultHorizonDays
	}
	if s.prefix == "" {
		s.prefix = util.DefaultDiscardPrefix
	}
	if s.lockWait <= 0 {
		s.lockWait = 10 * time.Second
	}

	return s
}

// Horizon returns the configured default scan horizon in days.
func (s *Service) Horizon() int {
	return s.horizon
}

// Thresholds returns the severity thresholds in use.
func (s *Service) Thresholds() Thresholds {
	return s.thresholds
}

// now reads the injected clock in the facility location.
func (s *Service) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// withLock runs fn while holding key.
func (s *Service) withLock(ctx context.Context, key string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	release, err := s.locker.Acquire(lockCtx, key)
	if err != nil {
		return fmt.Errorf("locking %s: %w", key, err)
	}
	defer release()

	return fn()
}

// record appends an audit entry inside tx.
func (s *Service) record(ctx context.Context, tx *sql.Tx, entity models.AuditEntityType, id string, action models.AuditAction, actor models.ActorRef, detail string) error {
	return s.audit.Append(ctx, tx, &models.AuditEntry{
		ID:         util.NewID(),
		EntityType: entity,
		EntityID:   id,
		Action:     action,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Detail:     detail,
		CreatedAt:  s.now(),
	})
}

// observe counts concurrency conflicts before handing err back.
func (s *Service) observe(err error) error {
	var conflict *models.ConcurrencyConflictError
	if errors.As(err, &conflict) {
		s.metrics.Conflict(conflict.Entity)
	}
	return err
}

// History returns the audit trail of an alert or discard, oldest first.
func (s *Service) History(ctx context.Context, entity models.AuditEntityType, id string) ([]*models.AuditEntry, error) {
	return s.audit.ListForEntity(ctx, entity, id)
}

func requireActor(actor models.ActorRef, field string) error {
	if actor.ID == "" {
		return &models.ValidationError{Field: field, Message: "actor id is required"}
	}
	return nil
}
