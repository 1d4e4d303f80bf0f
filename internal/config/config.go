package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	StoreDriver      string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL      string `env:"DATABASE_URL"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	SQLitePath       string `env:"SQLITE_PATH" envDefault:"trainingreg.db"`
	MigrationsAuto   bool   `env:"MIGRATIONS_AUTO" envDefault:"true"`

	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	AdminUser     string `env:"ADMIN_USER"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	DefaultLocale string `env:"DEFAULT_LOCALE" envDefault:"en"`
	Timezone      string `env:"TIMEZONE" envDefault:"Europe/Amsterdam"`

	SMTP SMTP `envPrefix:"SMTP_"`

	DiscordWebhookURL string        `env:"DISCORD_WEBHOOK_URL"`
	NotifyWorkers     int           `env:"NOTIFY_WORKERS" envDefault:"2"`
	NotifyQueue       int           `env:"NOTIFY_QUEUE" envDefault:"64"`
	CatalogCacheTTL   time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5s"`
	TracingExporter   string        `env:"TRACING_EXPORTER" envDefault:"none"`
}

type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

// Enabled reports whether outgoing mail is configured. Without it messages
// are only logged.
func (s SMTP) Enabled() bool {
	return strings.TrimSpace(s.Host) != ""
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	// .env is optional when the variables come from the environment (Docker, CI, etc.).
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate applies the cross-field rules env tags cannot express.
func (c *Config) validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			// Useful local default when DATABASE_URL is not provided.
			c.DatabaseURL = "postgres://localhost:5432/trainingreg?sslmode=disable"
		}
		parsed, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return fmt.Errorf("config: invalid DATABASE_URL (%q): %w", c.DatabaseURL, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("config: invalid DATABASE_URL (%q): missing scheme or host", c.DatabaseURL)
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("config: SQLITE_PATH is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: STORE_DRIVER must be postgres, sqlite or memory, got %q", c.StoreDriver)
	}

	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://localhost" + c.HTTPAddr
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")

	if (c.AdminUser == "") != (c.AdminPassword == "") {
		return fmt.Errorf("config: ADMIN_USER and ADMIN_PASSWORD must be set together")
	}
	if c.SMTP.Enabled() && c.SMTP.From == "" {
		c.SMTP.From = c.SMTP.User
	}
	if c.SMTP.Enabled() && c.SMTP.From == "" {
		return fmt.Errorf("config: SMTP_FROM or SMTP_USER is required when SMTP_HOST is set")
	}
	if c.NotifyWorkers < 1 {
		return fmt.Errorf("config: NOTIFY_WORKERS must be at least 1")
	}
	if c.NotifyQueue < 1 {
		return fmt.Errorf("config: NOTIFY_QUEUE must be at least 1")
	}
	return nil
}

// AdminEnabled reports whether the admin routes are exposed.
func (c *Config) AdminEnabled() bool {
	return c.AdminUser != ""
}
