package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/trailobs/internal/adapters/remote"
	"github.com/samirrijal/trailobs/internal/core/domain"
)

// Cache backends.
const (
	BackendFile     = "file"
	BackendValkey   = "valkey"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	INaturalist INaturalistConfig `mapstructure:"inaturalist"`
	Overpass    OverpassConfig    `mapstructure:"overpass"`
	API         APIConfig         `mapstructure:"api"`
	Matching    MatchingConfig    `mapstructure:"matching"`
	Filter      FilterConfig      `mapstructure:"filter"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    int           `mapstructure:"read_timeout"`
	WriteTimeout   int           `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	BodyLimitMB    int           `mapstructure:"body_limit_mb"`
	RateLimit      int           `mapstructure:"rate_limit"` // requests per minute per client, 0 disables
}

type CacheConfig struct {
	Backend           string        `mapstructure:"backend"`
	Dir               string        `mapstructure:"dir"`
	MemoryEntries     int           `mapstructure:"memory_entries"`
	ObservationMaxAge time.Duration `mapstructure:"observation_max_age"`
	WayMaxAge         time.Duration `mapstructure:"way_max_age"`
	PlaceMaxAge       time.Duration `mapstructure:"place_max_age"`
	PurgeOnStart      bool          `mapstructure:"purge_on_start"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// NATSConfig enables report publication when URL is set.
type NATSConfig struct {
	URL          string        `mapstructure:"url"`
	ReportMaxAge time.Duration `mapstructure:"report_max_age"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type INaturalistConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	PerPage   int    `mapstructure:"per_page"`
	UserAgent string `mapstructure:"user_agent"`
	// Places enables the places lookup that resolves observation statuses.
	Places    bool   `mapstructure:"places"`
}

type OverpassConfig struct {
	URL string `mapstructure:"url"`
}

// APIConfig tunes the remote transport shared by both sources.
type APIConfig struct {
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	MaxConcurrency     int           `mapstructure:"max_concurrency"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	InitialBackoff     time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff         time.Duration `mapstructure:"max_backoff"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// Transport converts the section into a remote.Config.
func (a APIConfig) Transport(userAgent string) remote.Config {
	return remote.Config{
		UserAgent:      userAgent,
		Timeout:        a.Timeout,
		RatePerMinute:  a.RateLimitPerMinute,
		MaxConcurrency: a.MaxConcurrency,
		MaxAttempts:    a.MaxAttempts,
		InitialBackoff: a.InitialBackoff,
		MaxBackoff:     a.MaxBackoff,
	}
}

type MatchingConfig struct {
	RouteTolerance       float64 `mapstructure:"route_tolerance_m"`
	ObservationTolerance float64 `mapstructure:"observation_tolerance_m"`
	MinRunLength         float64 `mapstructure:"min_run_length_m"`
	MaxAccuracy          float64 `mapstructure:"max_accuracy_m"`
	BBoxPadding          float64 `mapstructure:"bbox_padding_m"`
	DensifyStep          float64 `mapstructure:"densify_step_m"`
}

// Tolerances converts the section into domain tolerances.
func (m MatchingConfig) Tolerances() domain.Tolerances {
	return domain.Tolerances{
		Route:        m.RouteTolerance,
		Observation:  m.ObservationTolerance,
		MinRunLength: m.MinRunLength,
		MaxAccuracy:  m.MaxAccuracy,
		BBoxPadding:  m.BBoxPadding,
		DensifyStep:  m.DensifyStep,
	}
}

// FilterConfig holds the default observation filter in its textual form.
type FilterConfig struct {
	QualityGrade string `mapstructure:"quality_grade"`
	IconicTaxon  string `mapstructure:"iconic_taxon"`
	Month        bool   `mapstructure:"month"`
	LoginNames   bool   `mapstructure:"login_names"`
}

// Domain parses the textual filter.
func (f FilterConfig) Domain() (domain.FilterConfig, error) {
	grades, err := domain.ParseQualityGrade(f.QualityGrade)
	if err != nil {
		return domain.FilterConfig{}, err
	}
	taxa, err := domain.ParseIconicTaxon(f.IconicTaxon)
	if err != nil {
		return domain.FilterConfig{}, err
	}
	return domain.FilterConfig{
		QualityGrades: grades,
		IconicTaxa:    taxa,
		Month:         f.Month,
		LoginNames:    f.LoginNames,
	}, nil
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RunConfig returns the run parameters configured as defaults.
func (c *Config) RunConfig() (domain.RunConfig, error) {
	f, err := c.Filter.Domain()
	if err != nil {
		return domain.RunConfig{}, err
	}
	return domain.RunConfig{Filter: f, Tolerances: c.Matching.Tolerances()}, nil
}

func setDefaults(v *viper.Viper, service string) {
	tol := domain.DefaultTolerances()
	api := remote.DefaultConfig()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.request_timeout", 5*time.Minute)
	v.SetDefault("server.body_limit_mb", 20)
	v.SetDefault("server.rate_limit", 30)
	v.SetDefault("cache.backend", BackendFile)
	v.SetDefault("cache.dir", ".trailobs-cache")
	v.SetDefault("cache.memory_entries", 256)
	v.SetDefault("cache.observation_max_age", 8*time.Hour)
	v.SetDefault("cache.way_max_age", 28*24*time.Hour)
	v.SetDefault("cache.place_max_age", 28*24*time.Hour)
	v.SetDefault("cache.purge_on_start", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "trailobs")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "trailobs")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.report_max_age", 7*24*time.Hour)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("inaturalist.base_url", "https://api.inaturalist.org/v2/")
	v.SetDefault("inaturalist.per_page", 200)
	v.SetDefault("inaturalist.user_agent", api.UserAgent)
	v.SetDefault("inaturalist.places", true)
	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("api.rate_limit_per_minute", api.RatePerMinute)
	v.SetDefault("api.max_concurrency", api.MaxConcurrency)
	v.SetDefault("api.max_attempts", api.MaxAttempts)
	v.SetDefault("api.initial_backoff", api.InitialBackoff)
	v.SetDefault("api.max_backoff", api.MaxBackoff)
	v.SetDefault("api.timeout", api.Timeout)
	v.SetDefault("matching.route_tolerance_m", tol.Route)
	v.SetDefault("matching.observation_tolerance_m", tol.Observation)
	v.SetDefault("matching.min_run_length_m", tol.MinRunLength)
	v.SetDefault("matching.max_accuracy_m", tol.MaxAccuracy)
	v.SetDefault("matching.bbox_padding_m", tol.BBoxPadding)
	v.SetDefault("matching.densify_step_m", tol.DensifyStep)
	v.SetDefault("filter.quality_grade", "all")
	v.SetDefault("filter.iconic_taxon", "all")
	v.SetDefault("filter.month", false)
	v.SetDefault("filter.login_names", false)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TRAILOBS_CACHE_BACKEND → cache.backend
	v.SetEnvPrefix("TRAILOBS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Cache.Backend {
	case BackendFile:
		if c.Cache.Dir == "" {
			errs = append(errs, "cache.dir is required for the file backend")
		}
	case BackendValkey:
		if c.Valkey.Addr == "" {
			errs = append(errs, "valkey.addr is required for the valkey backend")
		}
	case BackendPostgres:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required for the postgres backend")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required for the postgres backend")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required for the postgres backend")
		}
	case BackendNone:
	default:
		errs = append(errs, fmt.Sprintf("cache.backend must be file, valkey, postgres or none, got %q", c.Cache.Backend))
	}
	if c.Cache.ObservationMaxAge <= 0 || c.Cache.WayMaxAge <= 0 || c.Cache.PlaceMaxAge <= 0 {
		errs = append(errs, "cache max ages must be positive")
	}

	if c.INaturalist.PerPage <= 0 || c.INaturalist.PerPage > 200 {
		errs = append(errs, fmt.Sprintf("inaturalist.per_page must be 1-200, got %d", c.INaturalist.PerPage))
	}
	if c.API.MaxConcurrency <= 0 {
		errs = append(errs, "api.max_concurrency must be positive")
	}
	if c.API.MaxAttempts <= 0 {
		errs = append(errs, "api.max_attempts must be positive")
	}
	if c.API.RateLimitPerMinute < 0 {
		errs = append(errs, "api.rate_limit_per_minute must not be negative")
	}
	if c.API.InitialBackoff <= 0 || c.API.MaxBackoff < c.API.InitialBackoff {
		errs = append(errs, "api backoff must satisfy 0 < initial_backoff <= max_backoff")
	}

	if err := c.Matching.Tolerances().Validate(); err != nil {
		errs = append(errs, "matching: "+strings.ReplaceAll(err.Error(), "\n", "; "))
	}
	if _, err := c.Filter.Domain(); err != nil {
		errs = append(errs, "filter: "+err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
