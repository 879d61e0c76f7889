// Package config loads engine configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the root configuration for the GeoPulse engine.
type Config struct {
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Provider    ProviderConfig
	Engine      EngineConfig
	Thresholds  ThresholdConfig
	Quota       QuotaConfig
	Report      ReportConfig
	Telemetry   TelemetryConfig
}

type HTTPConfig struct {
	Addr string
}

type DatabaseConfig struct {
	DSN string
}

// ProviderConfig configures the remote imagery capability.
type ProviderConfig struct {
	BaseURL          string
	ClientID         string
	ClientSecret     string
	Timeout          time.Duration
	RetryBackoff     time.Duration
	MaxCloudCoverage float64
	ResolutionMeters float64
}

// EngineConfig controls batch execution.
type EngineConfig struct {
	FetchConcurrency int
	CommitRetries    int
	CommitBackoff    time.Duration
}

// ThresholdConfig holds the per-index significance cutoffs, expressed as
// percentage change. PercentCutoff is the fallback when a per-index value
// is unset.
type ThresholdConfig struct {
	Vegetation    float64
	BuiltUp       float64
	Water         float64
	PercentCutoff float64
}

// QuotaConfig holds defaults for newly provisioned accounts.
type QuotaConfig struct {
	DefaultAllowedCalls int
	DefaultValidityDays int
}

type ReportConfig struct {
	OutputDir string
}

type TelemetryConfig struct {
	TracingEnabled   bool
	ServiceName      string
	ServiceVersion   string
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment: getEnv("GEOPULSE_ENV", "development"),
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Database: DatabaseConfig{
			DSN: os.Getenv("DATABASE_DSN"),
		},
		Provider: ProviderConfig{
			BaseURL:          getEnv("PROVIDER_BASE_URL", "https://services.sentinel-hub.com"),
			ClientID:         os.Getenv("PROVIDER_CLIENT_ID"),
			ClientSecret:     os.Getenv("PROVIDER_CLIENT_SECRET"),
			Timeout:          getDuration("PROVIDER_TIMEOUT", 30*time.Second),
			RetryBackoff:     getDuration("PROVIDER_RETRY_BACKOFF", 2*time.Second),
			MaxCloudCoverage: getFloat("PROVIDER_MAX_CLOUD_COVERAGE", 30),
			ResolutionMeters: getFloat("PROVIDER_RESOLUTION_METERS", 10),
		},
		Engine: EngineConfig{
			FetchConcurrency: getInt("ENGINE_FETCH_CONCURRENCY", 4),
			CommitRetries:    getInt("ENGINE_COMMIT_RETRIES", 3),
			CommitBackoff:    getDuration("ENGINE_COMMIT_BACKOFF", time.Second),
		},
		Thresholds: ThresholdConfig{
			Vegetation:    getFloat("THRESHOLD_VEGETATION", 3.0),
			BuiltUp:       getFloat("THRESHOLD_BUILTUP", 5.0),
			Water:         getFloat("THRESHOLD_WATER", 0.05),
			PercentCutoff: getFloat("THRESHOLD_PERCENT_CUTOFF", 0),
		},
		Quota: QuotaConfig{
			DefaultAllowedCalls: getInt("QUOTA_DEFAULT_ALLOWED_CALLS", 50),
			DefaultValidityDays: getInt("QUOTA_DEFAULT_VALIDITY_DAYS", 30),
		},
		Report: ReportConfig{
			OutputDir: getEnv("REPORT_OUTPUT_DIR", "reports"),
		},
		Telemetry: TelemetryConfig{
			TracingEnabled:   getBool("TRACING_ENABLED", false),
			ServiceName:      getEnv("SERVICE_NAME", "geopulse"),
			ServiceVersion:   getEnv("SERVICE_VERSION", "dev"),
			ExporterEndpoint: os.Getenv("OTEL_EXPORTER_ENDPOINT"),
			ExporterProtocol: getEnv("OTEL_EXPORTER_PROTOCOL", "grpc"),
			SamplingRatio:    getFloat("OTEL_SAMPLING_RATIO", 1.0),
		},
	}

	return cfg.withDefaults(), cfg.validate()
}

func (c Config) withDefaults() Config {
	if c.Engine.FetchConcurrency <= 0 {
		c.Engine.FetchConcurrency = 4
	}
	if c.Engine.CommitRetries <= 0 {
		c.Engine.CommitRetries = 3
	}
	if c.Quota.DefaultAllowedCalls <= 0 {
		c.Quota.DefaultAllowedCalls = 50
	}
	if c.Quota.DefaultValidityDays <= 0 {
		c.Quota.DefaultValidityDays = 30
	}
	return c
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	return nil
}

// IsProduction reports whether the engine runs in a production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return value
}

func getFloat(key string, fallback float64) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return fallback
	}
	return value
}

func getBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return value
}
