// Package config loads layered service configuration with koanf.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Defaults for values that are also referenced outside this package.
const (
	DefaultServerPort     = 8080
	DefaultMaxRequestSize = 1 << 20

	DefaultClientRetryMaxAttempts     = 1
	DefaultClientRetryMultiplier      = 2.0
	DefaultClientRetryJitterFactor    = 0.25
	DefaultClientCircuitMaxFailures   = 5
	DefaultClientCircuitHalfOpenLimit = 3

	DefaultTransportMaxIdleConns        = 100
	DefaultTransportMaxIdleConnsPerHost = 10
	DefaultTransportIdleConnTimeout     = 90 * time.Second

	DefaultLogFileMaxSizeMB  = 100
	DefaultLogFileMaxBackups = 3
	DefaultLogFileMaxAgeDays = 28

	// PostgREST caps responses at 1000 rows unless configured otherwise.
	DefaultStorePageSize         = 1000
	DefaultStoreFetchConcurrency = 4
	DefaultPostgresMaxConns      = 10
)

// Store backends.
const (
	BackendMemory    = "memory"
	BackendPostgREST = "postgrest"
	BackendPostgres  = "postgres"
)

// supabaseRESTPath is appended to a bare Supabase project URL.
const supabaseRESTPath = "/rest/v1"

// Config is the root configuration structure.
type Config struct {
	App       AppConfig       `koanf:"app"       validate:"required"`
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Log       LogConfig       `koanf:"log"       validate:"required"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Auth      AuthConfig      `koanf:"auth"`
	Client    ClientConfig    `koanf:"client"    validate:"required"`
	Store     StoreConfig     `koanf:"store"     validate:"required"`
	Events    EventsConfig    `koanf:"events"`
	CORS      CORSConfig      `koanf:"cors"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"       validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"   validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"    validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true,omitempty,url"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// AuthConfig contains gateway authentication settings.
// The gateway validates tokens and forwards the caller identity in headers.
type AuthConfig struct {
	Enabled       bool   `koanf:"enabled"`
	SubjectHeader string `koanf:"subject_header" validate:"required_if=Enabled true"`
	RolesHeader   string `koanf:"roles_header"`

	// EditorRoles, when set, restricts quote writes to callers holding one of these roles.
	EditorRoles []string `koanf:"editor_roles"`
}

// ClientConfig contains HTTP client settings for the PostgREST store.
type ClientConfig struct {
	Timeout        time.Duration        `koanf:"timeout"         validate:"required,min=100ms"`
	Retry          RetryConfig          `koanf:"retry"           validate:"required"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker" validate:"required"`
	Transport      TransportConfig      `koanf:"transport"       validate:"required"`
}

// RetryConfig contains retry settings for HTTP clients.
type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts"     validate:"required,min=1,max=10"`
	InitialInterval time.Duration `koanf:"initial_interval" validate:"required,min=10ms"`
	MaxInterval     time.Duration `koanf:"max_interval"     validate:"required,min=100ms"`
	Multiplier      float64       `koanf:"multiplier"       validate:"required,min=1.1,max=10"`
	JitterFactor    float64       `koanf:"jitter_factor"    validate:"min=0,max=1"`
}

// CircuitBreakerConfig contains circuit breaker settings for HTTP clients.
type CircuitBreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"    validate:"required,min=1"`
	Timeout       time.Duration `koanf:"timeout"         validate:"required,min=1s"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"required,min=1"`
}

// TransportConfig contains HTTP transport pool settings.
type TransportConfig struct {
	MaxIdleConns        int           `koanf:"max_idle_conns"         validate:"required,min=1"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host" validate:"required,min=1"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout"      validate:"required,min=1s"`
}

// StoreConfig selects and configures the quote store backend.
type StoreConfig struct {
	Backend          string          `koanf:"backend"           validate:"required,oneof=memory postgrest postgres"`
	Schema           string          `koanf:"schema"`
	Table            string          `koanf:"table"             validate:"required"`
	PageSize         int             `koanf:"page_size"         validate:"required,min=1,max=10000"`
	FetchConcurrency int             `koanf:"fetch_concurrency" validate:"required,min=1,max=32"`
	PostgREST        PostgRESTConfig `koanf:"postgrest"`
	Postgres         PostgresConfig  `koanf:"postgres"`
}

// PostgRESTConfig points at a PostgREST endpoint such as a Supabase project.
type PostgRESTConfig struct {
	URL string `koanf:"url" validate:"omitempty,url"`
	Key string `koanf:"key"`
}

// RESTURL returns the REST root. A bare project URL gets the Supabase REST path.
func (c PostgRESTConfig) RESTURL() string {
	base := strings.TrimSuffix(c.URL, "/")

	u, err := url.Parse(base)
	if err != nil || u.Path != "" {
		return base
	}

	return base + supabaseRESTPath
}

// PostgresConfig configures a direct PostgreSQL connection.
type PostgresConfig struct {
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns" validate:"min=1,max=100"`
	Migrate  bool   `koanf:"migrate"`
}

// EventsConfig configures quote change events on an AMQP broker.
type EventsConfig struct {
	Enabled  bool   `koanf:"enabled"`
	URL      string `koanf:"url"      validate:"required_if=Enabled true"`
	Exchange string `koanf:"exchange" validate:"required_if=Enabled true"`
}

// CORSConfig contains cross-origin settings.
type CORSConfig struct {
	AllowOrigins     []string      `koanf:"allow_origins"`
	AllowCredentials bool          `koanf:"allow_credentials"`
	MaxAge           time.Duration `koanf:"max_age"`
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "quotes-api",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.max_request_size": DefaultMaxRequestSize,

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/app.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.service_name":  "quotes-api",
		"telemetry.sampling_rate": 1.0,

		"auth.enabled":        false,
		"auth.roles_header":   "X-User-Roles",
		"auth.subject_header": "X-User-ID",

		"client.timeout":                           "30s",
		"client.retry.max_attempts":                DefaultClientRetryMaxAttempts,
		"client.retry.initial_interval":            "100ms",
		"client.retry.max_interval":                "5s",
		"client.retry.multiplier":                  DefaultClientRetryMultiplier,
		"client.retry.jitter_factor":               DefaultClientRetryJitterFactor,
		"client.circuit_breaker.max_failures":      DefaultClientCircuitMaxFailures,
		"client.circuit_breaker.timeout":           "30s",
		"client.circuit_breaker.half_open_limit":   DefaultClientCircuitHalfOpenLimit,
		"client.transport.max_idle_conns":          DefaultTransportMaxIdleConns,
		"client.transport.max_idle_conns_per_host": DefaultTransportMaxIdleConnsPerHost,
		"client.transport.idle_conn_timeout":       "90s",

		"store.backend":            BackendPostgREST,
		"store.page_size":          DefaultStorePageSize,
		"store.fetch_concurrency":  DefaultStoreFetchConcurrency,
		"store.postgrest.url":      "",
		"store.postgrest.key":      "",
		"store.schema":             "public",
		"store.table":              "quotes",
		"store.postgres.dsn":       "",
		"store.postgres.max_conns": DefaultPostgresMaxConns,
		"store.postgres.migrate":   false,

		"events.enabled":  false,
		"events.url":      "",
		"events.exchange": "quotes",

		"cors.allow_origins":     []string{"*"},
		"cors.allow_credentials": false,
		"cors.max_age":           "12h",
	}
}

// configDir holds base.yaml and the per-profile files.
const configDir = "configs"

// source is one configuration layer. Later sources override earlier ones.
type source struct {
	name string
	load func(k *koanf.Koanf) error
}

// sources lists the layers from lowest to highest precedence: defaults,
// configs/base.yaml, configs/{profile}.yaml, SUPABASE_URL and SUPABASE_KEY,
// then APP_ variables.
func sources(profile string) []source {
	out := []source{
		{"defaults", func(k *koanf.Koanf) error {
			return k.Load(confmap.Provider(defaults(), "."), nil)
		}},
		{"base config", func(k *koanf.Koanf) error {
			return loadFileIfExists(k, filepath.Join(configDir, "base.yaml"))
		}},
	}

	if profile != "" {
		out = append(out, source{fmt.Sprintf("profile config %q", profile), func(k *koanf.Koanf) error {
			return loadFileIfExists(k, filepath.Join(configDir, profile+".yaml"))
		}})
	}

	return append(out,
		source{"supabase env vars", func(k *koanf.Koanf) error {
			return k.Load(env.Provider("SUPABASE_", ".", supabaseKey), nil)
		}},
		source{"env vars", func(k *koanf.Koanf) error {
			return k.Load(env.Provider("APP_", ".", appEnvKey(k.Keys())), nil)
		}},
	)
}

// Load merges every configuration source for profile and decodes the result.
// The result is not validated; call Validate.
func Load(profile string) (*Config, error) {
	k := koanf.New(".")

	for _, src := range sources(profile) {
		if err := src.load(k); err != nil {
			return nil, fmt.Errorf("loading %s: %w", src.name, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return &cfg, nil
}

// appEnvKey maps APP_ variables onto config keys. Known keys are matched exactly so
// APP_STORE_PAGE_SIZE reaches store.page_size; anything else splits on every underscore.
func appEnvKey(known []string) func(string) string {
	byEnv := make(map[string]string, len(known))
	for _, key := range known {
		byEnv[strings.ReplaceAll(key, ".", "_")] = key
	}

	return func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, "APP_"))
		if key, ok := byEnv[name]; ok {
			return key
		}

		return strings.ReplaceAll(name, "_", ".")
	}
}

// supabaseKey maps SUPABASE_URL and SUPABASE_KEY onto the PostgREST store settings.
// Other SUPABASE_ variables are ignored.
func supabaseKey(s string) string {
	switch s {
	case "SUPABASE_URL":
		return "store.postgrest.url"
	case "SUPABASE_KEY":
		return "store.postgrest.key"
	default:
		return ""
	}
}

// loadFileIfExists merges a YAML file. A missing file is skipped.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	_, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return err
	}

	return k.Load(file.Provider(path), yaml.Parser())
}
