package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30, cfg.Compliance.HorizonDays)
	assert.Equal(t, LockBackendLocal, cfg.Locking.Backend)
	assert.Equal(t, time.Hour, cfg.Compliance.ScanInterval())
	assert.Equal(t, 30*time.Second, cfg.Locking.LockTTL())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing facility name", func(c *Config) { c.Facility.Name = "" }, "name is required"},
		{"bad timezone", func(c *Config) { c.Facility.Timezone = "Mars/Olympus" }, "invalid timezone"},
		{"negative horizon", func(c *Config) { c.Compliance.HorizonDays = -1 }, "horizon_days"},
		{"critical above warning", func(c *Config) { c.Compliance.CriticalDays = 40 }, "critical_days must not exceed"},
		{"unknown witness reason", func(c *Config) { c.Compliance.Policy.WitnessReasons = []string{"LOST"} }, `"LOST"`},
		{"unknown witness method", func(c *Config) { c.Compliance.Policy.WitnessMethods = []string{"BURN"} }, `"BURN"`},
		{"bad color scheme", func(c *Config) { c.Display.ColorScheme = "neon" }, "color_scheme"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, "path is required"},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, "addr is required"},
		{"redis without addr", func(c *Config) { c.Locking.Backend = LockBackendRedis }, "redis_addr"},
		{"unknown lock backend", func(c *Config) { c.Locking.Backend = "etcd" }, "invalid backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
[facility]
name = "North Clinic"
timezone = "America/Chicago"
discard_number_prefix = "NC"

[compliance]
horizon_days = 45
critical_days = 5
warning_days = 20

[compliance.policy]
witness_methods = ["CONTROLLED", "CHEMICAL"]
approval_exempt_reasons = ["OPENED_UNUSED"]

[locking]
backend = "redis"
redis_addr = "localhost:6379"
`))
	require.NoError(t, err)

	assert.Equal(t, "North Clinic", cfg.Facility.Name)
	assert.Equal(t, "NC", cfg.Facility.DiscardNumberPrefix)
	assert.Equal(t, 45, cfg.Compliance.HorizonDays)
	assert.Equal(t, []string{"CONTROLLED", "CHEMICAL"}, cfg.Compliance.Policy.WitnessMethods)
	assert.Equal(t, LockBackendRedis, cfg.Locking.Backend)

	// Unset sections keep their defaults.
	assert.Equal(t, "compliance.db", cfg.Database.Path)
	assert.Equal(t, 60, cfg.Compliance.ScanIntervalMinutes)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("[facility]\nname = \"X\"\nbed_count = 40\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bed_count")
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv(EnvPrefix+"DATABASE_PATH", "/var/lib/medcompliance/prod.db")
	t.Setenv(EnvPrefix+"HORIZON_DAYS", "14")
	t.Setenv(EnvPrefix+"LOCK_BACKEND", "redis")
	t.Setenv(EnvPrefix+"REDIS_ADDR", "cache:6379")

	cfg, err := Parse([]byte("[facility]\nname = \"X\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/medcompliance/prod.db", cfg.Database.Path)
	assert.Equal(t, 14, cfg.Compliance.HorizonDays)
	assert.Equal(t, LockBackendRedis, cfg.Locking.Backend)
	assert.Equal(t, "cache:6379", cfg.Locking.RedisAddr)

	t.Setenv(EnvPrefix+"HORIZON_DAYS", "soon")
	_, err = Parse([]byte("[facility]\nname = \"X\"\n"))
	require.Error(t, err)
}

func TestLoadExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.toml")
	require.NoError(t, os.WriteFile(path, []byte("[facility]\nname = \"Explicit\"\n"), 0o600))

	cfg, got, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, "Explicit", cfg.Facility.Name)

	_, _, err = Load(filepath.Join(dir, "missing.toml"), true)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoadCreatesDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Chdir(t.TempDir())

	_, _, err := Load("", false)
	require.True(t, errors.Is(err, ErrNoConfig))

	cfg, path, err := Load("", true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, AppDir, DefaultConfigFileName), path)
	assert.Equal(t, Default().Facility.Name, cfg.Facility.Name)

	// The written file round-trips through Load.
	again, againPath, err := Load("", false)
	require.NoError(t, err)
	assert.Equal(t, path, againPath)
	assert.Equal(t, cfg.Compliance.HorizonDays, again.Compliance.HorizonDays)
	assert.Equal(t, cfg.Compliance.Policy.WitnessReasons, again.Compliance.Policy.WitnessReasons)
	assert.Equal(t, path, ConfigPath(""))
}

func TestEnsureDataDir(t *testing.T) {
	data := t.TempDir()
	t.Setenv("XDG_DATA_HOME", data)

	cfg := Default()
	path, err := EnsureDataDir(cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(data, AppDir, "compliance.db"), path)

	backups, err := BackupDir(cfg)
	require.NoError(t, err)
	assert.DirExists(t, backups)
	assert.Equal(t, filepath.Join(data, AppDir, "backups"), backups)
}
