package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a fully valid configuration for testing.
func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "test-service",
			Version:     "1.0.0",
			Environment: "local",
		},
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxRequestSize:  1048576,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Client: ClientConfig{
			Timeout: 30 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 100 * time.Millisecond,
				MaxInterval:     5 * time.Second,
				Multiplier:      2.0,
				JitterFactor:    0.25,
			},
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures:   5,
				Timeout:       30 * time.Second,
				HalfOpenLimit: 3,
			},
			Transport: TransportConfig{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Store: StoreConfig{
			Backend:          BackendPostgREST,
			Schema:           "public",
			Table:            "quotes",
			PageSize:         1000,
			FetchConcurrency: 4,
			PostgREST: PostgRESTConfig{
				URL: "https://abc.supabase.co",
				Key: "anon-key",
			},
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
	}
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{"missing app name", func(c *Config) { c.App.Name = "" }, []string{"app.name is required"}},
		{"missing version", func(c *Config) { c.App.Version = "" }, []string{"app.version is required"}},
		{"unknown environment", func(c *Config) { c.App.Environment = "staging" },
			[]string{"app.environment must be one of: local, dev, qa, prod, test"}},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, []string{"server.port is required"}},
		{"port negative", func(c *Config) { c.Server.Port = -1 }, []string{"server.port must be at least 1"}},
		{"port too high", func(c *Config) { c.Server.Port = 65536 }, []string{"server.port must be at most 65535"}},
		{"missing host", func(c *Config) { c.Server.Host = "" }, []string{"server.host is required"}},
		{"read timeout below 1s", func(c *Config) { c.Server.ReadTimeout = 500 * time.Millisecond },
			[]string{"server.read_timeout must be at least 1s"}},
		{"no request size", func(c *Config) { c.Server.MaxRequestSize = 0 }, []string{"server.max_request_size"}},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }, []string{"log.level must be one of"}},
		{"log level is case sensitive", func(c *Config) { c.Log.Level = "DEBUG" }, []string{"log.level"}},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, []string{"log.format"}},
		{"log file without path", func(c *Config) { c.Log.File.Enabled = true },
			[]string{"log.file.path is required when enabled is true"}},
		{"log file too large", func(c *Config) {
			c.Log.File = LogFileConfig{Enabled: true, Path: "/var/log/quotes-api.log", MaxSizeMB: 1025}
		}, []string{"log.file.max_size must be at most 1024"}},
		{"telemetry without endpoint", func(c *Config) {
			c.Telemetry = TelemetryConfig{Enabled: true, ServiceName: "quotes-api"}
		}, []string{"telemetry.endpoint is required"}},
		{"telemetry without service name", func(c *Config) {
			c.Telemetry = TelemetryConfig{Enabled: true, Endpoint: "http://localhost:4317"}
		}, []string{"telemetry.service_name is required"}},
		{"telemetry endpoint not a url", func(c *Config) {
			c.Telemetry = TelemetryConfig{Enabled: true, Endpoint: "collector", ServiceName: "quotes-api"}
		}, []string{`telemetry.endpoint must be a valid URL, got "collector"`}},
		{"sampling below zero", func(c *Config) { c.Telemetry.SamplingRate = -0.1 }, []string{"telemetry.sampling_rate"}},
		{"sampling above one", func(c *Config) { c.Telemetry.SamplingRate = 1.1 }, []string{"telemetry.sampling_rate"}},
		{"auth without subject header", func(c *Config) { c.Auth.Enabled = true },
			[]string{"auth.subject_header is required when enabled is true"}},
		{"client timeout too short", func(c *Config) { c.Client.Timeout = 50 * time.Millisecond },
			[]string{"client.timeout must be at least 100ms"}},
		{"no attempts", func(c *Config) { c.Client.Retry.MaxAttempts = 0 }, []string{"client.retry.max_attempts"}},
		{"too many attempts", func(c *Config) { c.Client.Retry.MaxAttempts = 11 }, []string{"client.retry.max_attempts"}},
		{"initial interval too short", func(c *Config) { c.Client.Retry.InitialInterval = 5 * time.Millisecond },
			[]string{"client.retry.initial_interval"}},
		{"max interval too short", func(c *Config) { c.Client.Retry.MaxInterval = 50 * time.Millisecond },
			[]string{"client.retry.max_interval"}},
		{"flat multiplier", func(c *Config) { c.Client.Retry.Multiplier = 1.0 }, []string{"client.retry.multiplier"}},
		{"steep multiplier", func(c *Config) { c.Client.Retry.Multiplier = 10.1 }, []string{"client.retry.multiplier"}},
		{"breaker never trips", func(c *Config) { c.Client.CircuitBreaker.MaxFailures = 0 },
			[]string{"client.circuit_breaker.max_failures"}},
		{"breaker timeout too short", func(c *Config) { c.Client.CircuitBreaker.Timeout = 500 * time.Millisecond },
			[]string{"client.circuit_breaker.timeout"}},
		{"no half-open probes", func(c *Config) { c.Client.CircuitBreaker.HalfOpenLimit = 0 },
			[]string{"client.circuit_breaker.half_open_limit"}},
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" },
			[]string{"store.backend must be one of: memory, postgrest, postgres"}},
		{"postgrest without url", func(c *Config) { c.Store.PostgREST.URL = "" },
			[]string{"store.postgrest.url is required when store.backend is postgrest"}},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = BackendPostgres },
			[]string{"store.postgres.dsn is required"}},
		{"no page size", func(c *Config) { c.Store.PageSize = 0 }, []string{"store.page_size"}},
		{"events without broker url", func(c *Config) {
			c.Events = EventsConfig{Enabled: true, Exchange: "quotes"}
		}, []string{"events.url is required when enabled is true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.ErrorIs(t, err, ErrInvalid)
			for _, s := range tt.want {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestConfig_Validate_Accepts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"lowest port", func(c *Config) { c.Server.Port = 1 }},
		{"highest port", func(c *Config) { c.Server.Port = 65535 }},
		{"dev environment", func(c *Config) { c.App.Environment = "dev" }},
		{"test environment", func(c *Config) { c.App.Environment = "test" }},
		{"trace level", func(c *Config) { c.Log.Level = "trace" }},
		{"pretty format", func(c *Config) { c.Log.Format = "pretty" }},
		{"disabled file needs no path", func(c *Config) { c.Log.File = LogFileConfig{} }},
		{"rolling file", func(c *Config) {
			c.Log.File = LogFileConfig{Enabled: true, Path: "/var/log/quotes-api.log", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 28}
		}},
		{"telemetry", func(c *Config) {
			c.Telemetry = TelemetryConfig{Enabled: true, Endpoint: "http://localhost:4317", ServiceName: "quotes-api", SamplingRate: 1}
		}},
		{"sampling off", func(c *Config) { c.Telemetry.SamplingRate = 0 }},
		{"auth with editor roles", func(c *Config) {
			c.Auth = AuthConfig{Enabled: true, SubjectHeader: "X-User-ID", EditorRoles: []string{"editor"}}
		}},
		{"single attempt", func(c *Config) { c.Client.Retry.MaxAttempts = 1 }},
		{"ten attempts", func(c *Config) { c.Client.Retry.MaxAttempts = 10 }},
		{"gentle multiplier", func(c *Config) { c.Client.Retry.Multiplier = 1.1 }},
		{"memory backend without url", func(c *Config) {
			c.Store.Backend = BackendMemory
			c.Store.PostgREST.URL = ""
		}},
		{"postgres with dsn", func(c *Config) {
			c.Store.Backend = BackendPostgres
			c.Store.Postgres.DSN = "postgres://quotes@localhost:5432/quotes"
		}},
		{"events with broker", func(c *Config) {
			c.Events = EventsConfig{Enabled: true, URL: "amqp://localhost:5672/", Exchange: "quotes"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestConfig_Validate_ReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.App.Name = ""
	cfg.Server.Port = -1
	cfg.Store.PostgREST.URL = ""

	err := cfg.Validate()

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Len(t, vErr.Problems, 3)
	assert.Contains(t, err.Error(), "app.name")
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "store.postgrest.url")
}

func TestConfigKey(t *testing.T) {
	tests := map[string]string{
		"Config.server.port":               "server.port",
		"Config.client.retry.max_attempts": "client.retry.max_attempts",
		"Config.log.file.path":             "log.file.path",
		"port":                             "port",
	}

	for namespace, want := range tests {
		assert.Equal(t, want, configKey(namespace))
	}
}
