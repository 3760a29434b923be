// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	PublicBaseURL  string        `yaml:"public_base_url"` // absolute base used to build redirect/webhook URLs
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type MollieConfig struct {
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url"`
	WebhookPath   string        `yaml:"webhook_path"`
	RedirectPath  string        `yaml:"redirect_path"`
	DefaultMethod string        `yaml:"default_method"`
	Currency      string        `yaml:"currency"`
	Timeout       time.Duration `yaml:"timeout"`
}

type PaymentConfig struct {
	Provider string       `yaml:"provider"` // mollie | noop
	Mollie   MollieConfig `yaml:"mollie"`
}

type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	AdminAPIKey string `yaml:"admin_api_key"`
}

type WalletConfig struct {
	SignupBonus int64 `yaml:"signup_bonus"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	Batch      int           `yaml:"batch"`
}

type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

type RateLimitConfig struct {
	TopupsPerMinute int `yaml:"topups_per_minute"`
}

type WorkerConfig struct {
	Workers int `yaml:"workers"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Payment    PaymentConfig    `yaml:"payment"`
	Auth       AuthConfig       `yaml:"auth"`
	Wallet     WalletConfig     `yaml:"wallet"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Mail       MailConfig       `yaml:"mail"`
	Tracing    TracingConfig    `yaml:"tracing"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Worker     WorkerConfig     `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults and validates required fields.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse is LoadConfig without the file read.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.PublicBaseURL == "" {
		cfg.Server.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	cfg.Server.PublicBaseURL = strings.TrimRight(cfg.Server.PublicBaseURL, "/")
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 20 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = 30 * time.Second
	}
	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "mollie"
	}
	m := &cfg.Payment.Mollie
	if m.BaseURL == "" {
		m.BaseURL = "https://api.mollie.com/v2"
	}
	if m.WebhookPath == "" {
		m.WebhookPath = "/payments/webhook"
	}
	if m.RedirectPath == "" {
		m.RedirectPath = "/payments/return"
	}
	if m.Currency == "" {
		m.Currency = "EUR"
	}
	if m.Timeout <= 0 {
		m.Timeout = 15 * time.Second
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 10 * time.Minute
	}
	if cfg.Reconciler.Batch <= 0 {
		cfg.Reconciler.Batch = 200
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "psychic-credits"
	}
	if cfg.Tracing.SampleRatio <= 0 {
		cfg.Tracing.SampleRatio = 1
	}
	if cfg.RateLimit.TopupsPerMinute <= 0 {
		cfg.RateLimit.TopupsPerMinute = 10
	}
	if cfg.Worker.Workers <= 0 {
		cfg.Worker.Workers = 4
	}
}

func (cfg *Config) validate() error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	switch cfg.Payment.Provider {
	case "mollie":
		if cfg.Payment.Mollie.APIKey == "" {
			return errors.New("payment.mollie.api_key is required")
		}
	case "noop":
		if !cfg.Runtime.Dev {
			return errors.New("payment.provider=noop is only allowed with -dev")
		}
	default:
		return fmt.Errorf("payment.provider %q is not supported", cfg.Payment.Provider)
	}
	if cfg.Wallet.SignupBonus < 0 {
		return errors.New("wallet.signup_bonus must not be negative")
	}
	if cfg.Mail.Enabled && (cfg.Mail.Host == "" || cfg.Mail.From == "") {
		return errors.New("mail.host and mail.from are required when mail is enabled")
	}
	return nil
}

// WebhookURL is the absolute URL the gateway posts status changes to.
func (cfg *Config) WebhookURL() string {
	return cfg.Server.PublicBaseURL + cfg.Payment.Mollie.WebhookPath
}

// RedirectURL is the absolute URL the customer returns to after checkout.
func (cfg *Config) RedirectURL() string {
	return cfg.Server.PublicBaseURL + cfg.Payment.Mollie.RedirectPath
}
