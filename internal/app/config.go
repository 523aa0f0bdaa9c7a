package app

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full runtime configuration, loaded from the environment once
// in main and passed explicitly into everything that needs it.
type Config struct {
	Addr string

	DatabasePath string

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	PasswordPepper string

	// TestMode disables rate limiting. It changes nothing else.
	TestMode bool

	BootstrapAdminUsername string
	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPStartTLS bool

	HousekeepingInterval time.Duration
	ShutdownGrace        time.Duration

	LogLevel  string
	LogFormat string
	Env       string
}

// LoadConfig reads the configuration from environment variables, applying
// defaults suitable for local development. JWT_SECRET is the only mandatory
// setting.
func LoadConfig() (Config, error) {
	cfg := Config{
		Addr:         envString("ADDR", ":8080"),
		DatabasePath: envString("DATABASE_PATH", "voltplan.db"),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		AccessTTL:  envDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL: envDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		PasswordPepper: os.Getenv("PASSWORD_PEPPER"),

		TestMode: envBool("TEST_MODE", false),

		BootstrapAdminUsername: envString("BOOTSTRAP_ADMIN_USERNAME", "admin"),
		BootstrapAdminEmail:    envString("BOOTSTRAP_ADMIN_EMAIL", "admin@localhost"),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
		SMTPStartTLS: envBool("SMTP_STARTTLS", true),

		HousekeepingInterval: envDuration("HOUSEKEEPING_INTERVAL", time.Hour),
		ShutdownGrace:        envDuration("SHUTDOWN_GRACE", 10*time.Second),

		LogLevel:  envString("LOG_LEVEL", "info"),
		LogFormat: envString("LOG_FORMAT", "json"),
		Env:       envString("ENV", "dev"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}

	return cfg, nil
}

// MailConfigured reports whether an SMTP relay has been set up.
func (c Config) MailConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
