package startup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"media-index/internal/extractor"
	"media-index/internal/geocode"
	"media-index/internal/indexer"
	"media-index/internal/logging"
	"media-index/internal/mediatypes"

	"github.com/spf13/viper"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// ErrRootNotFound is returned when the configured media root does not exist.
var ErrRootNotFound = errors.New("media root not found")

// EnvPrefix prefixes every environment override, e.g. MEDIA_INDEX_ROOT_DIR.
const EnvPrefix = "MEDIA_INDEX"

// ConfigFileEnv names an explicit config file, bypassing the search path.
const ConfigFileEnv = "MEDIA_INDEX_CONFIG"

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	RootDir    string   `mapstructure:"root_dir"`
	DBPath     string   `mapstructure:"db_path"`
	BatchSize  int      `mapstructure:"batch_size"`
	Extensions []string `mapstructure:"extensions"`
	SkipHidden bool     `mapstructure:"skip_hidden"`

	Prune     PruneConfig     `mapstructure:"prune"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `mapstructure:"-"`
}

// PruneConfig controls removal of rows for deleted files.
type PruneConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	SkipWhenScanEmpty bool `mapstructure:"skip_when_scan_empty"`
	Vacuum            bool `mapstructure:"vacuum"`
}

// ExtractorConfig selects the metadata backend.
type ExtractorConfig struct {
	Backend string        `mapstructure:"backend"`
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GeocoderConfig controls reverse geocoding.
type GeocoderConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Dataset   string `mapstructure:"dataset"`
	CacheSize int    `mapstructure:"cache_size"`

	// MaxDistanceKm limits the nearest-city search; 0 means unlimited.
	MaxDistanceKm float64 `mapstructure:"max_distance_km"`
}

// LogConfig controls log level and the optional rotated log file.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig controls the status server and Pushgateway export.
type MetricsConfig struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
}

// LoggingOptions converts the log section for logging.Configure.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		FilePath:   c.Log.FilePath,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

// IndexerConfig converts the configuration for indexer.New.
func (c *Config) IndexerConfig() indexer.Config {
	return indexer.Config{
		Root:                   c.RootDir,
		BatchSize:              c.BatchSize,
		Extensions:             c.Extensions,
		SkipHidden:             c.SkipHidden,
		Prune:                  c.Prune.Enabled,
		SkipPruneWhenScanEmpty: c.Prune.SkipWhenScanEmpty,
		VacuumAfterPrune:       c.Prune.Vacuum,
	}
}

// ExtractorOptions converts the extractor section for extractor.New.
func (c *Config) ExtractorOptions() extractor.Config {
	return extractor.Config{
		Backend:      c.Extractor.Backend,
		ExifToolPath: c.Extractor.Path,
		Timeout:      c.Extractor.Timeout,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root_dir", "/media")
	v.SetDefault("db_path", "/database/media_index.sqlite")
	v.SetDefault("batch_size", indexer.DefaultBatchSize)
	v.SetDefault("extensions", mediatypes.DefaultExtensions)
	v.SetDefault("skip_hidden", true)

	v.SetDefault("prune.enabled", true)
	v.SetDefault("prune.skip_when_scan_empty", true)
	v.SetDefault("prune.vacuum", false)

	v.SetDefault("extractor.backend", extractor.BackendAuto)
	v.SetDefault("extractor.path", "exiftool")
	v.SetDefault("extractor.timeout", extractor.DefaultTimeout)

	v.SetDefault("geocoder.enabled", true)
	v.SetDefault("geocoder.dataset", geocode.DatasetCities)
	v.SetDefault("geocoder.cache_size", geocode.DefaultCacheSize)
	v.SetDefault("geocoder.max_distance_km", geocode.DefaultMaxDistanceKm)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("metrics.pushgateway_url", "")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if file := os.Getenv(ConfigFileEnv); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("media-index")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "media-index"))
		}
		v.AddConfigPath("/etc/media-index")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from the config file and MEDIA_INDEX_*
// environment variables, then validates it. A missing config file is not an
// error; a missing media root is.
func LoadConfig() (*Config, error) {
	return load(newViper())
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("invalid batch_size %d: must be positive", c.BatchSize)
	}
	if c.Geocoder.CacheSize <= 0 {
		return fmt.Errorf("invalid geocoder.cache_size %d: must be positive", c.Geocoder.CacheSize)
	}
	if c.Geocoder.MaxDistanceKm < 0 {
		return fmt.Errorf("invalid geocoder.max_distance_km %v: must not be negative", c.Geocoder.MaxDistanceKm)
	}
	if c.Extractor.Timeout <= 0 {
		return fmt.Errorf("invalid extractor.timeout %v: must be positive", c.Extractor.Timeout)
	}
	if len(mediatypes.NewAllowList(c.Extensions)) == 0 {
		return errors.New("extensions must list at least one file extension")
	}

	switch c.Extractor.Backend {
	case extractor.BackendAuto, extractor.BackendExifTool, extractor.BackendNative:
	default:
		return fmt.Errorf("invalid extractor.backend %q", c.Extractor.Backend)
	}

	switch c.Geocoder.Dataset {
	case geocode.DatasetCountries, geocode.DatasetProvinces, geocode.DatasetCities:
	default:
		return fmt.Errorf("invalid geocoder.dataset %q", c.Geocoder.Dataset)
	}

	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}

	root, err := filepath.Abs(c.RootDir)
	if err != nil {
		return fmt.Errorf("failed to resolve media root path: %w", err)
	}
	c.RootDir = root

	info, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}
	if err != nil {
		return fmt.Errorf("failed to stat media root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root %s is not a directory", root)
	}

	dbPath, err := filepath.Abs(c.DBPath)
	if err != nil {
		return fmt.Errorf("failed to resolve database path: %w", err)
	}
	c.DBPath = dbPath

	dbDir := filepath.Dir(dbPath)
	if err := ensureDirectory(dbDir, "database"); err != nil {
		return fmt.Errorf("database directory error: %w", err)
	}
	if err := testWriteAccess(dbDir); err != nil {
		return fmt.Errorf("database directory is not writable: %w", err)
	}

	return nil
}

// LogConfiguration prints the banner, system information and the
// effective configuration.
func LogConfiguration(c *Config) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if c.ConfigFile != "" {
		logging.Info("  Config file:          %s", c.ConfigFile)
	} else {
		logging.Info("  Config file:          (none, using defaults and environment)")
	}
	logging.Info("  root_dir:             %s", c.RootDir)
	logging.Info("  db_path:              %s", c.DBPath)
	logging.Info("  batch_size:           %d", c.BatchSize)
	logging.Info("  extensions:           %s", strings.Join(mediatypes.NewAllowList(c.Extensions).Sorted(), " "))
	logging.Info("  skip_hidden:          %v", c.SkipHidden)
	logging.Info("  prune:                %s", enabledString(c.Prune.Enabled))
	logging.Info("  prune guard:          %s", enabledString(c.Prune.SkipWhenScanEmpty))
	logging.Info("  vacuum after prune:   %s", enabledString(c.Prune.Vacuum))
	logging.Info("  extractor:            %s (timeout %v)", c.Extractor.Backend, c.Extractor.Timeout)
	if c.Geocoder.Enabled {
		logging.Info("  geocoder:             %s (cache %d, nearest city within %v km)", c.Geocoder.Dataset, c.Geocoder.CacheSize, c.Geocoder.MaxDistanceKm)
	} else {
		logging.Info("  geocoder:             DISABLED")
	}
	logging.Info("  log level:            %s", logging.GetLevel())
	if c.Log.FilePath != "" {
		logging.Info("  log file:             %s", c.Log.FilePath)
	}
	if c.Metrics.ListenAddr != "" {
		logging.Info("  status server:        %s", c.Metrics.ListenAddr)
	}
	if c.Metrics.PushgatewayURL != "" {
		logging.Info("  pushgateway:          %s", c.Metrics.PushgatewayURL)
	}
	logging.Info("")
}

// LogExtractorInit logs the chosen extractor backend and checks exiftool
// when it is the one in use.
func LogExtractorInit(name string, c *Config) {
	logging.Info("------------------------------------------------------------")
	logging.Info("EXTRACTOR INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if name != extractor.BackendExifTool {
		logging.Info("  [OK] Using %s metadata backend", name)
		return
	}

	if err := checkExifTool(c.Extractor.Path); err != nil {
		logging.Warn("  exiftool check failed: %v", err)
		logging.Warn("  Metadata extraction may not work correctly")
	} else {
		logging.Info("  [OK] exiftool is available")
	}
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
                    _ _             _           _
  _ __ ___   ___  __| (_) __ _      (_)_ __   __| | _____  __
 | '_ ' _ \ / _ \/ _' | |/ _' |_____| | '_ \ / _' |/ _ \ \/ /
 | | | | | |  __/ (_| | | (_| |_____| | | | | (_| |  __/>  <
 |_| |_| |_|\___|\__,_|_|\__,_|     |_|_| |_|\__,_|\___/_/\_\

------------------------------------------------------------`
	fmt.Fprintln(os.Stderr, banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkExifTool(bin string) error {
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", bin)
	}
	logging.Debug("  exiftool path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-ver").Output()
	if err != nil {
		return fmt.Errorf("failed to get exiftool version: %w", err)
	}

	logging.Info("  exiftool version: %s", strings.TrimSpace(string(output)))
	return nil
}
