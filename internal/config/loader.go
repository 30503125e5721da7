package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultConfigFileName is the configuration file searched for.
	DefaultConfigFileName = "compliance.toml"

	// AppDir names the application directory under the XDG config and
	// data homes.
	AppDir = "medcompliance"

	// EnvPrefix prefixes environment overrides, e.g. MEDCOMPLIANCE_DATABASE_PATH.
	EnvPrefix = "MEDCOMPLIANCE_"
)

// ErrNoConfig is returned by Load when no file exists and defaults were
// not requested.
var ErrNoConfig = errors.New("no configuration file found")

// LoadError wraps a failure to read or validate a specific file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading config from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads the configuration. An explicit path is used alone; otherwise
// the XDG location and then the working directory are searched. When
// nothing is found and createDefault is set, the defaults are written to
// the first writable candidate and returned. Environment overrides are
// applied last in every case.
//
// The returned path is empty when the defaults could not be persisted.
func Load(explicitPath string, createDefault bool) (*Config, string, error) {
	candidates := searchPaths(explicitPath)

	for _, path := range candidates {
		if explicitPath == "" && !fileExists(path) {
			continue
		}
		cfg, err := loadFromFile(path)
		if err != nil {
			return nil, "", &LoadError{Path: path, Err: err}
		}
		return cfg, path, nil
	}

	if !createDefault {
		return nil, "", fmt.Errorf("%w; searched %v", ErrNoConfig, candidates)
	}

	cfg := Default()
	if err := applyEnv(cfg); err != nil {
		return nil, "", err
	}
	for _, path := range candidates {
		if err := Save(cfg, path); err == nil {
			return cfg, path, nil
		}
	}
	return cfg, "", nil
}

// searchPaths lists the files Load considers, in precedence order.
func searchPaths(explicitPath string) []string {
	if explicitPath != "" {
		return []string{explicitPath}
	}
	var paths []string
	if dir := configHome(); dir != "" {
		paths = append(paths, filepath.Join(dir, AppDir, DefaultConfigFileName))
	}
	return append(paths, filepath.Join(".", DefaultConfigFileName))
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML over the defaults, applies environment overrides and
// validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys: %v", undecoded)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides deployment-specific settings from the environment.
func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"DATABASE_PATH":  &cfg.Database.Path,
		"FACILITY_TZ":    &cfg.Facility.Timezone,
		"LOCK_BACKEND":   (*string)(&cfg.Locking.Backend),
		"REDIS_ADDR":     &cfg.Locking.RedisAddr,
		"REDIS_PASSWORD": &cfg.Locking.RedisPass,
		"METRICS_ADDR":   &cfg.Metrics.Addr,
		"LOG_LEVEL":      (*string)(&cfg.Logging.Level),
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "HORIZON_DAYS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sHORIZON_DAYS: %w", EnvPrefix, err)
		}
		cfg.Compliance.HorizonDays = n
	}
	return nil
}

// Save writes cfg as TOML with a short explanatory header.
func Save(cfg *Config, path string) error {
	if err := ensureParent(path); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	const header = "# Medical inventory disposal & expiration compliance\n" +
		"#\n" +
		"# Controlled waste and controlled disposal always require a witness;\n" +
		"# [compliance.policy] can only add further controls.\n\n"
	if _, err := f.WriteString(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding TOML: %w", err)
	}
	return nil
}

// ConfigPath returns the file Load would read, or the preferred location
// for a new one.
func ConfigPath(explicitPath string) string {
	candidates := searchPaths(explicitPath)
	for _, path := range candidates {
		if fileExists(path) {
			return path
		}
	}
	return candidates[0]
}

// EnsureDataDir resolves the database path and creates its directory.
// Relative paths live under the XDG data home when one is available.
func EnsureDataDir(cfg *Config) (string, error) {
	path := cfg.Database.Path
	if !filepath.IsAbs(path) {
		if dir := dataHome(); dir != "" {
			path = filepath.Join(dir, AppDir, path)
		}
	}
	if err := ensureParent(path); err != nil {
		if filepath.IsAbs(cfg.Database.Path) {
			return "", fmt.Errorf("creating database directory: %w", err)
		}
		return cfg.Database.Path, nil
	}
	return path, nil
}

// EnsureLogDir creates the log file's directory. It returns an empty path
// when file logging is disabled.
func EnsureLogDir(cfg *Config) (string, error) {
	if cfg.Logging.File == "" {
		return "", nil
	}
	if err := ensureParent(cfg.Logging.File); err != nil {
		return "", fmt.Errorf("creating log directory: %w", err)
	}
	return cfg.Logging.File, nil
}

// BackupDir returns, creating it if needed, the directory that receives
// database backups. It sits beside the resolved database file.
func BackupDir(cfg *Config) (string, error) {
	dbPath, err := EnsureDataDir(cfg)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(filepath.Dir(dbPath), "backups")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	return dir, nil
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config")
	}
	return ""
}

func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return ""
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0750)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
