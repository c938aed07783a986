package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"bustrack/internal/tracker"
)

// Config holds application configuration. Values come from defaults, then an
// optional YAML file, then environment variables.
type Config struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	APIKey          string        `yaml:"api_key" validate:"required"`
	FeedURL         string        `yaml:"feed_url" validate:"required,url"`
	FeedFormat      string        `yaml:"feed_format" validate:"oneof=json protobuf"`
	RoutesURL       string        `yaml:"routes_url" validate:"required,url"`
	DownloadDir     string        `yaml:"download_dir"`
	MonitoredRoutes []string      `yaml:"monitored_routes" validate:"min=1,dive,required"`
	PollInterval    time.Duration `yaml:"poll_interval" validate:"min=1s"`
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"min=1s"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" validate:"min=1s"`
	ArchiveTimeout  time.Duration `yaml:"archive_timeout" validate:"min=1s"`
	HistoryCapacity int           `yaml:"history_capacity" validate:"min=1"`
	CurrentCacheTTL time.Duration `yaml:"current_cache_ttl" validate:"min=0s"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		Port:            3000,
		FeedURL:         "https://api.nationaltransport.ie/gtfsr/v2/Vehicles?format=json",
		FeedFormat:      "json",
		RoutesURL:       "https://www.transportforireland.ie/transitData/Data/GTFS_All.zip",
		MonitoredRoutes: []string{"212", "215"},
		PollInterval:    30 * time.Second,
		RefreshInterval: time.Hour,
		FetchTimeout:    15 * time.Second,
		ArchiveTimeout:  5 * time.Minute,
		HistoryCapacity: tracker.DefaultCapacity,
		CurrentCacheTTL: 10 * time.Second,
	}
}

// Load builds the configuration. path may be empty, in which case
// BUSTRACK_CONFIG names the file, and with neither set no file is read.
// Every failure is a *tracker.ConfigError.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("BUSTRACK_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &tracker.ConfigError{Field: "config", Err: err}
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return &tracker.ConfigError{Field: "config", Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.APIKey = envStr("BUSTRACK_API_KEY", envStr("API_KEY", c.APIKey))
	c.FeedURL = envStr("BUSTRACK_FEED_URL", c.FeedURL)
	c.FeedFormat = envStr("BUSTRACK_FEED_FORMAT", c.FeedFormat)
	c.RoutesURL = envStr("BUSTRACK_ROUTES_URL", c.RoutesURL)
	c.DownloadDir = envStr("BUSTRACK_DOWNLOAD_DIR", c.DownloadDir)
	c.MonitoredRoutes = envList("BUSTRACK_MONITORED_ROUTES", c.MonitoredRoutes)

	for _, err := range []error{
		envInt("BUSTRACK_PORT", "port", &c.Port),
		envInt("BUSTRACK_HISTORY_CAPACITY", "history_capacity", &c.HistoryCapacity),
		envDuration("BUSTRACK_POLL_INTERVAL", "poll_interval", &c.PollInterval),
		envDuration("BUSTRACK_REFRESH_INTERVAL", "refresh_interval", &c.RefreshInterval),
		envDuration("BUSTRACK_FETCH_TIMEOUT", "fetch_timeout", &c.FetchTimeout),
		envDuration("BUSTRACK_ARCHIVE_TIMEOUT", "archive_timeout", &c.ArchiveTimeout),
		envDuration("BUSTRACK_CURRENT_CACHE_TTL", "current_cache_ttl", &c.CurrentCacheTTL),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their YAML key.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field and reports the first violation.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &tracker.ConfigError{
			Field: fe.Field(),
			Err:   fmt.Errorf("failed %q check (value %v)", fe.Tag(), redact(fe)),
		}
	}
	return &tracker.ConfigError{Field: "config", Err: err}
}

// redact keeps the API key out of error messages and logs.
func redact(fe validator.FieldError) any {
	if fe.Field() == "api_key" {
		return "<redacted>"
	}
	return fe.Value()
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envInt(key, field string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return &tracker.ConfigError{Field: field, Err: fmt.Errorf("%s: %w", key, err)}
	}
	*dst = n
	return nil
}

func envDuration(key, field string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return &tracker.ConfigError{Field: field, Err: fmt.Errorf("%s: %w", key, err)}
	}
	*dst = d
	return nil
}
