package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	DriverFirestore = "firestore"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverMemory    = "memory"
)

// Config holds all application configuration
type Config struct {
	StoreDriver       string `yaml:"store_driver"`
	FirebaseProjectID string `yaml:"firebase_project_id"`
	FirebaseCredPath  string `yaml:"firebase_cred_path"`
	DatabaseURL       string `yaml:"-"`
	SQLitePath        string `yaml:"sqlite_path"`
	NotifyTopic       string `yaml:"notify_topic"`

	GeminiAPIKey      string  `yaml:"-"`
	GeminiModel       string  `yaml:"gemini_model"`
	EnrichConcurrency int     `yaml:"enrich_concurrency"`
	EnrichRPS         float64 `yaml:"enrich_rps"`

	TenantConcurrency int           `yaml:"tenant_concurrency"`
	SourceTimeout     time.Duration `yaml:"source_timeout"`
	RunTimeout        time.Duration `yaml:"run_timeout"`
	MaxResults        int           `yaml:"max_results"`

	IngestSchedule string `yaml:"ingest_schedule"`
	Timezone       string `yaml:"timezone"`

	TriggerAPIKey string `yaml:"-"`
	JWTSecret     string `yaml:"-"`
	HTTPAddr      string `yaml:"http_addr"`
	GRPCAddr      string `yaml:"grpc_addr"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	SeedGlobalSettings bool   `yaml:"seed_global_settings"`
	FixLockOwner       string `yaml:"fix_lock_owner"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	host, _ := os.Hostname()
	return Config{
		StoreDriver:        DriverFirestore,
		FirebaseCredPath:   "firebase/service-account.json",
		SQLitePath:         "data/clipping.db",
		NotifyTopic:        "new-alerts",
		GeminiModel:        "gemini-2.0-flash",
		EnrichConcurrency:  4,
		EnrichRPS:          5,
		TenantConcurrency:  4,
		SourceTimeout:      30 * time.Second,
		RunTimeout:         30 * time.Minute,
		MaxResults:         20,
		IngestSchedule:     "*/30 * * * *",
		Timezone:           "America/Sao_Paulo",
		HTTPAddr:           ":8080",
		GRPCAddr:           ":50051",
		LogLevel:           "info",
		LogFormat:          "json",
		SeedGlobalSettings: true,
		FixLockOwner:       host,
	}
}

// Load reads defaults, then the optional CONFIG_FILE overlay, then the
// environment. Secrets are only read from the environment.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.StoreDriver = getEnv("STORE_DRIVER", cfg.StoreDriver)
	cfg.FirebaseProjectID = getEnv("FIREBASE_PROJECT_ID", cfg.FirebaseProjectID)
	cfg.FirebaseCredPath = getEnv("FIREBASE_CRED_PATH", cfg.FirebaseCredPath)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	cfg.NotifyTopic = getEnv("NOTIFY_TOPIC", cfg.NotifyTopic)

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.EnrichConcurrency = getEnvInt("ENRICH_CONCURRENCY", cfg.EnrichConcurrency)
	cfg.EnrichRPS = getEnvFloat("ENRICH_RPS", cfg.EnrichRPS)

	cfg.TenantConcurrency = getEnvInt("TENANT_CONCURRENCY", cfg.TenantConcurrency)
	cfg.SourceTimeout = getEnvDuration("SOURCE_TIMEOUT", cfg.SourceTimeout)
	cfg.RunTimeout = getEnvDuration("RUN_TIMEOUT", cfg.RunTimeout)
	cfg.MaxResults = getEnvInt("MAX_RESULTS", cfg.MaxResults)

	cfg.IngestSchedule = getEnv("INGEST_SCHEDULE", cfg.IngestSchedule)
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)

	cfg.TriggerAPIKey = os.Getenv("TRIGGER_API_KEY")
	cfg.JWTSecret = getEnv("JWT_SECRET", "dev-secret-key")
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.GRPCAddr = getEnv("GRPC_ADDR", cfg.GRPCAddr)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	cfg.SeedGlobalSettings = getEnvBool("SEED_GLOBAL_SETTINGS", cfg.SeedGlobalSettings)
	cfg.FixLockOwner = getEnv("FIX_LOCK_OWNER", cfg.FixLockOwner)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverFirestore, DriverMemory:
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the wall-clock zone used by the scheduler and the
// admission window.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
