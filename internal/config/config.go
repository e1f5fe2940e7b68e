// Package config handles loading and validation of service configuration.
// Supports both development (env vars, .env) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Gateway transports.
const (
	TransportStandard = "standard"
	TransportChrome   = "chrome"
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string `envconfig:"PORT" default:"8080" json:"port"`
	Environment string `envconfig:"ENVIRONMENT" default:"development" json:"environment"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" json:"log_level"`
	SiteURL     string `envconfig:"SITE_URL" default:"http://localhost:3000" json:"site_url"`

	// GCP settings (required in production)
	GCPProject string `envconfig:"GCP_PROJECT" json:"gcp_project"`
	SecretName string `envconfig:"SECRET_NAME" default:"storefront" json:"secret_name"`

	Shopify ShopifyConfig `ignored:"true" json:"shopify"`

	// PreserveUntouchedLines restates untouched cart lines on every update
	// batch so platforms with replace semantics keep them.
	PreserveUntouchedLines bool `envconfig:"PRESERVE_UNTOUCHED_LINES" default:"true" json:"preserve_untouched_lines"`

	FeaturedCollection string `envconfig:"FEATURED_COLLECTION" default:"featured" json:"featured_collection"`

	// RedisURL enables the catalog response cache when set.
	RedisURL        string        `envconfig:"REDIS_URL" json:"redis_url"`
	CatalogCacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"60s" json:"-"`

	SMTP SMTPConfig `ignored:"true" json:"smtp"`
}

// ShopifyConfig holds the Storefront API connection settings.
type ShopifyConfig struct {
	StoreDomain string        `envconfig:"SHOPIFY_STORE_DOMAIN" json:"store_domain"`
	APIVersion  string        `envconfig:"SHOPIFY_API_VERSION" default:"2024-01" json:"api_version"`
	Token       string        `envconfig:"SHOPIFY_STOREFRONT_TOKEN" json:"storefront_token"`
	Transport   string        `envconfig:"GATEWAY_TRANSPORT" default:"standard" json:"transport"`
	Timeout     time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"30s" json:"-"`
}

// SMTPConfig holds outbound mail settings. Mail is disabled when Host is empty.
type SMTPConfig struct {
	Host       string `envconfig:"SMTP_HOST" json:"host"`
	Port       int    `envconfig:"SMTP_PORT" default:"587" json:"port"`
	User       string `envconfig:"SMTP_USER" json:"user"`
	Password   string `envconfig:"SMTP_PASSWORD" json:"password"`
	StaffEmail string `envconfig:"STAFF_EMAIL" json:"staff_email"`
}

// Enabled reports whether repair emails can be sent.
func (s SMTPConfig) Enabled() bool { return s.Host != "" }

// IsProduction reports whether secrets come from Secret Manager.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// secrets is the JSON payload stored in Secret Manager.
type secrets struct {
	StorefrontToken string `json:"storefront_token"`
	SMTPPassword    string `json:"smtp_password"`
}

// dotEnvPath is the development .env file; a missing file is ignored.
var dotEnvPath = ".env"

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE values → ENV vars → defaults. In production the
// storefront token and SMTP password then come from Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" && !strings.EqualFold(os.Getenv("ENVIRONMENT"), EnvProduction) {
		if err := loadDotEnv(dotEnvPath); err != nil {
			return nil, err
		}
	}

	cfg, err := loadFromEnv()
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, err
		}
	}

	if cfg.IsProduction() {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading secrets: %w", err)
		}
	}

	cfg.Shopify.StoreDomain = extractDomain(cfg.Shopify.StoreDomain)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadDotEnv sets variables from a .env file without overriding ones
// already in the environment.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("reading %s: %w", path, err)
}

// loadFromEnv applies defaults and environment variables.
func loadFromEnv() (*Config, error) {
	var cfg Config
	// Sections are processed on their own so their variables stay unprefixed.
	for _, section := range []any{&cfg, &cfg.Shopify, &cfg.SMTP} {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("parsing environment: %w", err)
		}
	}
	return &cfg, nil
}

// loadFromFile overlays a JSON config file onto cfg.
// Used for local development to avoid multiple ENV vars.
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	// Durations are written as strings ("30s") in the file.
	var durations struct {
		GatewayTimeout  string `json:"gateway_timeout"`
		CatalogCacheTTL string `json:"catalog_cache_ttl"`
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if err := json.Unmarshal(data, &durations); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if err := parseDuration(durations.GatewayTimeout, "gateway_timeout", &c.Shopify.Timeout); err != nil {
		return err
	}
	return parseDuration(durations.CatalogCacheTTL, "catalog_cache_ttl", &c.CatalogCacheTTL)
}

func parseDuration(val, name string, dst *time.Duration) error {
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}

// loadFromSecretManager fetches secrets from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret_name}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SecretName)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	return c.applySecrets(result.Payload.Data)
}

// applySecrets overrides credentials with the non-empty values of a
// secret payload.
func (c *Config) applySecrets(data []byte) error {
	var s secrets
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	if s.StorefrontToken != "" {
		c.Shopify.Token = s.StorefrontToken
	}
	if s.SMTPPassword != "" {
		c.SMTP.Password = s.SMTPPassword
	}
	return nil
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Shopify.StoreDomain == "" {
		return fmt.Errorf("SHOPIFY_STORE_DOMAIN is required")
	}
	if c.Shopify.Token == "" {
		return fmt.Errorf("SHOPIFY_STOREFRONT_TOKEN is required")
	}
	switch c.Shopify.Transport {
	case TransportStandard, TransportChrome:
	default:
		return fmt.Errorf("GATEWAY_TRANSPORT must be %q or %q, got %q",
			TransportStandard, TransportChrome, c.Shopify.Transport)
	}
	if c.SMTP.Enabled() && c.SMTP.User == "" {
		return fmt.Errorf("SMTP_USER is required when SMTP_HOST is set")
	}
	if c.RedisURL != "" {
		if _, err := url.Parse(c.RedisURL); err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
	}
	if _, err := url.Parse(c.SiteURL); err != nil {
		return fmt.Errorf("invalid SITE_URL: %w", err)
	}
	return nil
}

// extractDomain reduces a store URL to its host. Bare domains pass through.
func extractDomain(store string) string {
	if !strings.Contains(store, "://") {
		return strings.TrimSuffix(store, "/")
	}
	u, err := url.Parse(store)
	if err != nil {
		// Fallback: strip protocol prefix manually
		domain := strings.TrimPrefix(store, "https://")
		domain = strings.TrimPrefix(domain, "http://")
		return strings.Split(domain, "/")[0]
	}
	return u.Host
}
