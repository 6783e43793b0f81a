// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type SzamlazzConfig struct {
	AgentKey    string `yaml:"agent_key"`
	APIURL      string `yaml:"api_url"` // override for tests/sandboxing
	EInvoice    bool   `yaml:"e_invoice"`
	IssuerName  string `yaml:"issuer_name"` // reply-to on storno notification mails
	Bank        string `yaml:"bank"`
	BankAccount string `yaml:"bank_account"`
}

type SheetsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file"` // service account JSON
	DefaultSheet    string `yaml:"default_sheet"`
}

type InvoicingConfig struct {
	DefaultVATRate int `yaml:"default_vat_rate"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type AdminConfig struct {
	APIKey        string        `yaml:"api_key"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	LocalhostOnly bool          `yaml:"localhost_only"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Stripe    StripeConfig    `yaml:"stripe"`
	Szamlazz  SzamlazzConfig  `yaml:"szamlazz"`
	Sheets    SheetsConfig    `yaml:"sheets"`
	Invoicing InvoicingConfig `yaml:"invoicing"`
	// Redis is optional: when addr is set the engine runs in strict mode
	// with a per-payment lock around invoice issuance.
	Redis RedisConfig `yaml:"redis"`
	Admin AdminConfig `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

// StrictMode reports whether the per-payment lock is configured.
func (c *Config) StrictMode() bool { return c.Redis.Addr != "" }

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Invoicing.DefaultVATRate <= 0 {
		cfg.Invoicing.DefaultVATRate = 27
	}
	if cfg.Sheets.DefaultSheet == "" {
		cfg.Sheets.DefaultSheet = "Sheet1"
	}
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = 2 * time.Minute
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}

	// Minimal validation
	if cfg.Stripe.SecretKey == "" {
		return nil, errors.New("stripe.secret_key is required")
	}
	if cfg.Stripe.WebhookSecret == "" {
		return nil, errors.New("stripe.webhook_secret is required")
	}
	if cfg.Szamlazz.AgentKey == "" {
		return nil, errors.New("szamlazz.agent_key is required")
	}
	if cfg.Sheets.Enabled {
		if cfg.Sheets.SpreadsheetID == "" {
			return nil, errors.New("sheets.spreadsheet_id is required when sheets.enabled")
		}
		if cfg.Sheets.CredentialsFile == "" {
			return nil, errors.New("sheets.credentials_file is required when sheets.enabled")
		}
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
