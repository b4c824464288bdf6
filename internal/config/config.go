package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"engagecal/internal/fsutil"
	"engagecal/internal/ics"
	"engagecal/internal/scheduler"
)

// ErrMissingAPIURL is returned when no Engage endpoint is configured.
var ErrMissingAPIURL = errors.New("ENGAGE_API_URL is not set")

// S3Config tunes s3:// destinations. Credentials come from the default AWS
// chain (env, shared config, instance role).
type S3Config struct {
	Region string `yaml:"region" json:"region"`
	// Endpoint overrides the S3 endpoint (MinIO, LocalStack).
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// MetricsConfig controls run metrics.
type MetricsConfig struct {
	// Pushgateway, if set, receives the metrics of every run.
	Pushgateway string `yaml:"pushgateway" json:"pushgateway"`
	// Listen, if set, serves /metrics while running on a schedule.
	Listen string `yaml:"listen" json:"listen"`
	Job    string `yaml:"job" json:"job"`
}

// Config is the top-level application configuration.
type Config struct {
	// OutputPath is a local path, gs://bucket/object or s3://bucket/key.
	OutputPath string `yaml:"output_path" json:"output_path"`

	// APIURL is the Engage events list endpoint. Required.
	APIURL       string `yaml:"api_url" json:"api_url"`
	APIKey       string `yaml:"api_key" json:"-"`
	APIKeyHeader string `yaml:"api_key_header" json:"api_key_header"`

	PageSize          int           `yaml:"page_size" json:"page_size"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`

	// TimezoneHint only shows up in the final status message.
	TimezoneHint string `yaml:"timezone_hint" json:"timezone_hint"`

	// UIDDomain is appended to event ids to form UIDs ("42@<domain>").
	UIDDomain string `yaml:"uid_domain" json:"uid_domain"`
	ProdID    string `yaml:"prodid" json:"prodid"`

	// ASCIIOnly strips non-ASCII characters from descriptions.
	ASCIIOnly bool `yaml:"ascii_only" json:"ascii_only"`

	// Schedule is a cron expression; empty means run once and exit.
	Schedule string `yaml:"schedule" json:"schedule"`

	// Fields overrides individual paths of the Engage field map.
	Fields ics.FieldMap `yaml:"fields" json:"fields"`

	S3      S3Config      `yaml:"s3" json:"s3"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		OutputPath:   "docs/calendar.ics",
		APIKeyHeader: "X-Engage-Api-Key",
		PageSize:     100,
		Timeout:      30 * time.Second,
		TimezoneHint: "UTC",
		UIDDomain:    "fairmontstate.edu",
		ProdID:       ics.DefaultProdID,
		ASCIIOnly:    true,
		Fields:       ics.EngageV3,
		Metrics:      MetricsConfig{Job: "engagecal"},
		LogLevel:     "info",
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if strings.TrimSpace(c.OutputPath) == "" {
		c.OutputPath = def.OutputPath
	}
	c.APIURL = strings.TrimSpace(c.APIURL)
	if c.APIKeyHeader == "" {
		c.APIKeyHeader = def.APIKeyHeader
	}
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.RequestsPerSecond < 0 {
		c.RequestsPerSecond = 0
	}
	if c.TimezoneHint == "" {
		c.TimezoneHint = def.TimezoneHint
	}
	if c.UIDDomain == "" {
		c.UIDDomain = def.UIDDomain
	}
	if c.ProdID == "" {
		c.ProdID = def.ProdID
	}
	c.Fields = c.Fields.Merge(ics.EngageV3)
	if c.Metrics.Job == "" {
		c.Metrics.Job = def.Metrics.Job
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Validate reports configuration errors that must stop the program before
// any network activity.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return ErrMissingAPIURL
	}
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid ENGAGE_API_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid ENGAGE_API_URL: scheme %q is not http(s)", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("invalid ENGAGE_API_URL: missing host")
	}
	if c.Schedule != "" {
		if err := scheduler.Validate(c.Schedule); err != nil {
			return err
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - An empty path yields DefaultConfig.
//   - If the file does not exist, a default config is written there (0600)
//     and returned.
//   - Otherwise the YAML is read over the defaults and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := cfg.Save(path); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg as YAML to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data, 0o600, 0o700)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables on c. Only non-empty variables
// override; malformed numeric/bool values are errors.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("OUTPUT_PATH", &c.OutputPath)
	str("ENGAGE_API_URL", &c.APIURL)
	str("ENGAGE_API_KEY", &c.APIKey)
	str("ENGAGE_API_KEY_HEADER", &c.APIKeyHeader)
	str("TIMEZONE_HINT", &c.TimezoneHint)
	str("UID_DOMAIN", &c.UIDDomain)
	str("ICAL_PRODID", &c.ProdID)
	str("SCHEDULE", &c.Schedule)
	str("PUSHGATEWAY_URL", &c.Metrics.Pushgateway)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("ENGAGE_PAGE_SIZE"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid ENGAGE_PAGE_SIZE %q", v)
		}
		c.PageSize = n
	}
	if v, ok := lookup("ENGAGE_TIMEOUT"); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid ENGAGE_TIMEOUT %q: %w", v, err)
		}
		c.Timeout = d
	}
	if v, ok := lookup("ICAL_ASCII_ONLY"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid ICAL_ASCII_ONLY %q: %w", v, err)
		}
		c.ASCIIOnly = b
	}
	return nil
}

// LoadDotEnv exports the variables in path into the process environment
// without overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Resolve is the startup sequence: YAML file, then environment, then
// defaults and validation.
func Resolve(path string, lookup LookupFunc) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
