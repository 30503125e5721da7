// Package config provides configuration management for the compliance service.
// Configurations are loaded from TOML files with XDG-compliant paths.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/medequip/compliance/internal/models"
)

// Config holds the complete application configuration.
type Config struct {
	Facility   FacilityConfig   `toml:"facility"`
	Compliance ComplianceConfig `toml:"compliance"`
	Display    DisplayConfig    `toml:"display"`
	Logging    LoggingConfig    `toml:"logging"`
	Database   DatabaseConfig   `toml:"database"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Locking    LockingConfig    `toml:"locking"`
}

// FacilityConfig identifies the site whose inventory is tracked.
type FacilityConfig struct {
	Name                string `toml:"name"`
	Code                string `toml:"code"`
	Timezone            string `toml:"timezone"`
	DiscardNumberPrefix string `toml:"discard_number_prefix"`
}

// ComplianceConfig controls expiration scanning and disposal policy.
type ComplianceConfig struct {
	HorizonDays         int          `toml:"horizon_days"`
	CriticalDays        int          `toml:"critical_days"`
	WarningDays         int          `toml:"warning_days"`
	ScanIntervalMinutes int          `toml:"scan_interval_minutes"`
	Policy              PolicyConfig `toml:"policy"`
}

// PolicyConfig extends the mandatory dual-control rules. Controlled waste
// and controlled disposal always require a witness regardless of these lists.
type PolicyConfig struct {
	WitnessReasons        []string `toml:"witness_reasons"`
	WitnessMethods        []string `toml:"witness_methods"`
	ApprovalExemptReasons []string `toml:"approval_exempt_reasons"`
}

// DisplayConfig controls terminal report appearance.
type DisplayConfig struct {
	ColorScheme ColorScheme `toml:"color_scheme"`
	DateFormat  string      `toml:"date_format"`
}

// ColorScheme defines the terminal color palette.
type ColorScheme string

const (
	ColorSchemeDefault    ColorScheme = "default"
	ColorSchemeMonochrome ColorScheme = "monochrome"
)

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level LogLevel `toml:"level"`
	File  string   `toml:"file"`
}

// LogLevel defines logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// DatabaseConfig controls SQLite database settings.
type DatabaseConfig struct {
	Path                string `toml:"path"`
	BackupIntervalHours int    `toml:"backup_interval_hours"`
	BackupRetentionDays int    `toml:"backup_retention_days"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// LockBackend selects the per-key lock implementation.
type LockBackend string

const (
	LockBackendLocal LockBackend = "local"
	LockBackendRedis LockBackend = "redis"
)

// LockingConfig controls per-record and per-natural-key serialization.
type LockingConfig struct {
	Backend    LockBackend `toml:"backend"`
	RedisAddr  string      `toml:"redis_addr"`
	RedisPass  string      `toml:"redis_password"`
	RedisDB    int         `toml:"redis_db"`
	TTLSeconds int         `toml:"ttl_seconds"`
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Facility.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("facility: %w", err))
	}

	if err := c.Compliance.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("compliance: %w", err))
	}

	if err := c.Display.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("display: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}

	if err := c.Locking.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("locking: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks that the facility configuration is valid.
func (f *FacilityConfig) Validate() error {
	var errs []error

	if f.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}

	if f.Timezone != "" {
		if _, err := time.LoadLocation(f.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("invalid timezone: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Validate checks that the compliance configuration is valid.
func (c *ComplianceConfig) Validate() error {
	var errs []error

	if c.HorizonDays < 0 {
		errs = append(errs, errors.New("horizon_days must be non-negative"))
	}

	if c.CriticalDays < 0 || c.WarningDays < 0 {
		errs = append(errs, errors.New("critical_days and warning_days must be non-negative"))
	}

	if c.CriticalDays > c.WarningDays {
		errs = append(errs, errors.New("critical_days must not exceed warning_days"))
	}

	if c.ScanIntervalMinutes < 0 {
		errs = append(errs, errors.New("scan_interval_minutes must be non-negative"))
	}

	for _, r := range append(append([]string{}, c.Policy.WitnessReasons...), c.Policy.ApprovalExemptReasons...) {
		if _, err := models.ParseReasonCode(r); err != nil {
			errs = append(errs, fmt.Errorf("policy: %w", err))
		}
	}

	for _, m := range c.Policy.WitnessMethods {
		if _, err := models.ParseDisposalMethod(m); err != nil {
			errs = append(errs, fmt.Errorf("policy: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Validate checks that the display configuration is valid.
func (d *DisplayConfig) Validate() error {
	if d.ColorScheme != "" && d.ColorScheme != ColorSchemeDefault && d.ColorScheme != ColorSchemeMonochrome {
		return fmt.Errorf("invalid color_scheme: %s", d.ColorScheme)
	}
	return nil
}

// Validate checks that the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	validLevels := map[LogLevel]bool{
		LogLevelDebug: true,
		LogLevelInfo:  true,
		LogLevelWarn:  true,
		LogLevelError: true,
	}

	if !validLevels[l.Level] && l.Level != "" {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	return nil
}

// Validate checks that the database configuration is valid.
func (d *DatabaseConfig) Validate() error {
	var errs []error

	if d.Path == "" {
		errs = append(errs, errors.New("path is required"))
	}

	if d.BackupIntervalHours < 0 {
		errs = append(errs, errors.New("backup_interval_hours must be non-negative"))
	}

	if d.BackupRetentionDays < 0 {
		errs = append(errs, errors.New("backup_retention_days must be non-negative"))
	}

	return errors.Join(errs...)
}

// Validate checks that the metrics configuration is valid.
func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Addr == "" {
		return errors.New("addr is required when metrics are enabled")
	}
	return nil
}

// Validate checks that the locking configuration is valid.
func (l *LockingConfig) Validate() error {
	var errs []error

	switch l.Backend {
	case "", LockBackendLocal:
	case LockBackendRedis:
		if l.RedisAddr == "" {
			errs = append(errs, errors.New("redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid backend: %s", l.Backend))
	}

	if l.TTLSeconds < 0 {
		errs = append(errs, errors.New("ttl_seconds must be non-negative"))
	}

	return errors.Join(errs...)
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		Facility: FacilityConfig{
			Name:                "Main Campus",
			Code:                "MAIN",
			Timezone:            "UTC",
			DiscardNumberPrefix: "DSP",
		},
		Compliance: ComplianceConfig{
			HorizonDays:         30,
			CriticalDays:        7,
			WarningDays:         30,
			ScanIntervalMinutes: 60,
			Policy: PolicyConfig{
				WitnessReasons:        []string{string(models.ReasonControlledWaste)},
				WitnessMethods:        []string{string(models.DisposalControlled)},
				ApprovalExemptReasons: []string{},
			},
		},
		Display: DisplayConfig{
			ColorScheme: ColorSchemeDefault,
			DateFormat:  "2006-01-02",
		},
		Logging: LoggingConfig{
			Level: LogLevelInfo,
			File:  "logs/compliance.log",
		},
		Database: DatabaseConfig{
			Path:                "compliance.db",
			BackupIntervalHours: 24,
			BackupRetentionDays: 30,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Locking: LockingConfig{
			Backend:    LockBackendLocal,
			TTLSeconds: 30,
		},
	}
}

// LockTTL returns the lock lease duration.
func (l *LockingConfig) LockTTL() time.Duration {
	if l.TTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(l.TTLSeconds) * time.Second
}

// ScanInterval returns the scheduled scan interval, zero when disabled.
func (c *ComplianceConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMinutes) * time.Minute
}
