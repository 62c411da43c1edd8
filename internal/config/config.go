package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when neither a flag nor GATEWAY_CONFIG is set.
const DefaultConfigPath = "config.yaml"

// Markup tier names accepted by BillingConfig.DefaultTier.
const (
	TierPremier    = "premier"
	TierOpenSource = "open_source"
)

// AppConfig carries command line options shared by subcommands.
type AppConfig struct {
	ConfigPath string
}

// Config is the full gateway configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     JWTConfig      `yaml:"auth"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Billing  BillingConfig  `yaml:"billing"`
	Stripe   StripeConfig   `yaml:"stripe"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout"`
	DrainTimeout    time.Duration `yaml:"drain-timeout"` // Ledger drain after the listener stops.
	AllowedOrigins  []string      `yaml:"allowed-origins"`
}

// DatabaseConfig selects the backing store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig enables the cross-instance turn lock when URL is set.
type RedisConfig struct {
	URL     string        `yaml:"url"`
	LockTTL time.Duration `yaml:"lock-ttl"`
}

// JWTConfig holds the shared secret used to verify bearer tokens.
type JWTConfig struct {
	Secret string `yaml:"jwt-secret"`
}

// UpstreamConfig describes the completion API.
type UpstreamConfig struct {
	BaseURL       string        `yaml:"base-url"`
	APIKey        string        `yaml:"api-key"`
	Referer       string        `yaml:"referer"`
	Title         string        `yaml:"title"`
	HeaderTimeout time.Duration `yaml:"header-timeout"`
}

// BillingConfig holds pricing and ledger knobs. Rates are fractions (0.2 is 20%).
type BillingConfig struct {
	OverdraftFloor   float64       `yaml:"overdraft-floor"`
	AutoTopupAmount  float64       `yaml:"auto-topup-amount"`
	PremierMarkup    float64       `yaml:"premier-markup"`
	OpenSourceMarkup float64       `yaml:"open-source-markup"`
	DefaultTier      string        `yaml:"default-tier"`
	Workers          int           `yaml:"workers"`
	QueueSize        int           `yaml:"queue-size"`
	LedgerTimeout    time.Duration `yaml:"ledger-timeout"`
	SettingsRefresh  time.Duration `yaml:"settings-refresh"`
	// TurnRetentionDays deletes turns older than this many days; 0 keeps them.
	TurnRetentionDays int `yaml:"turn-retention-days"`
}

// StripeConfig holds payment processor credentials.
type StripeConfig struct {
	SecretKey     string `yaml:"secret-key"`
	WebhookSecret string `yaml:"webhook-secret"`
	Currency      string `yaml:"currency"`
}

// CatalogConfig points at an optional YAML model catalog.
type CatalogConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// LoggingConfig controls log level and optional file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// Default returns a configuration with every knob set to its production default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
			DrainTimeout:    30 * time.Second,
		},
		Database: DatabaseConfig{DSN: "data/gateway.db"},
		Redis:    RedisConfig{LockTTL: 10 * time.Second},
		Upstream: UpstreamConfig{
			BaseURL:       "https://openrouter.ai/api/v1",
			Referer:       "https://resolv.sh",
			Title:         "Resolv IDE",
			HeaderTimeout: 60 * time.Second,
		},
		Billing: BillingConfig{
			OverdraftFloor:   -10,
			AutoTopupAmount:  10,
			PremierMarkup:    0.10,
			OpenSourceMarkup: 0.20,
			DefaultTier:      TierOpenSource,
			Workers:          4,
			QueueSize:        256,
			LedgerTimeout:    10 * time.Second,
			SettingsRefresh:  time.Minute,
		},
		Stripe:  StripeConfig{Currency: "usd"},
		Logging: LoggingConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 14},
	}
}

// ResolveConfigPath picks the config file location.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv("GATEWAY_CONFIG")); env != "" {
		return env
	}
	return DefaultConfigPath
}

// Load reads .env files, the YAML file at path and environment overrides.
// A missing YAML file is not an error; defaults and environment apply.
func Load(path string) (*Config, error) {
	loadDotEnv(path)

	cfg := Default()
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		expanded := os.ExpandEnv(string(data))
		if errUnmarshal := yaml.Unmarshal([]byte(expanded), cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	applyEnv(cfg)
	if errValidate := cfg.Validate(); errValidate != nil {
		return nil, errValidate
	}
	return cfg, nil
}

// LoadDatabaseDSN returns only the database DSN, for the migrate command.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, err := Load(path)
	if err != nil {
		return "", err
	}
	return cfg.Database.DSN, nil
}

// loadDotEnv loads .env from the working directory and from the config directory.
// Existing environment variables win.
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if dir := filepath.Dir(configPath); dir != "." && dir != "" {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, candidate := range candidates {
		if _, errStat := os.Stat(candidate); errStat != nil {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		key    string
		target *string
	}{
		{"DATABASE_URL", &cfg.Database.DSN},
		{"REDIS_URL", &cfg.Redis.URL},
		{"SUPABASE_JWT_SECRET", &cfg.Auth.Secret},
		{"OPENROUTER_API_KEY", &cfg.Upstream.APIKey},
		{"STRIPE_SECRET_KEY", &cfg.Stripe.SecretKey},
		{"STRIPE_WEBHOOK_SECRET", &cfg.Stripe.WebhookSecret},
		{"GATEWAY_ADDR", &cfg.Server.Addr},
		{"LOG_LEVEL", &cfg.Logging.Level},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.key)); v != "" {
			*o.target = v
		}
	}
}

// Validate rejects configurations that would misprice or misadmit requests.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil config")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database dsn is required")
	}
	if c.Billing.OverdraftFloor > 0 {
		return fmt.Errorf("config: overdraft-floor must be <= 0, got %v", c.Billing.OverdraftFloor)
	}
	if c.Billing.AutoTopupAmount < 0 {
		return fmt.Errorf("config: auto-topup-amount must be >= 0, got %v", c.Billing.AutoTopupAmount)
	}
	if c.Billing.PremierMarkup < 0 || c.Billing.OpenSourceMarkup < 0 {
		return errors.New("config: markup rates must be >= 0")
	}
	switch c.Billing.DefaultTier {
	case TierPremier, TierOpenSource:
	default:
		return fmt.Errorf("config: unknown default-tier %q", c.Billing.DefaultTier)
	}
	if c.Server.DrainTimeout <= 0 {
		c.Server.DrainTimeout = 30 * time.Second
	}
	if c.Billing.Workers <= 0 {
		c.Billing.Workers = 1
	}
	if c.Billing.TurnRetentionDays < 0 {
		return fmt.Errorf("config: turn-retention-days must be >= 0, got %d", c.Billing.TurnRetentionDays)
	}
	if c.Billing.QueueSize < 0 {
		c.Billing.QueueSize = 0
	}
	return nil
}
