package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	// HTTP server
	HTTPPort    string
	CORSOrigins []string

	// Database
	DBDriver   string // "postgres" or "sqlite3"
	DBDSN      string // takes precedence over the discrete fields below
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Auth
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AuthRatePerSec  float64
	AuthRateBurst   int

	// Checkout
	ShippingFee decimal.Decimal

	// Tracing
	OTLPEndpoint string
	TraceStdout  bool

	// API client
	APIBaseURL string
	StateFile  string
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTPPort:        "8080",
		CORSOrigins:     []string{"*"},
		DBDriver:        "postgres",
		DBHost:          "localhost",
		DBPort:          "5432",
		DBUser:          "postgres",
		DBName:          "storefront",
		RedisAddr:       "localhost:6379",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		AuthRatePerSec:  1,
		AuthRateBurst:   5,
		ShippingFee:     decimal.NewFromInt(300),
		APIBaseURL:      "http://localhost:8080",
		StateFile:       defaultStateFile(),
	}
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".storefront-state.json"
	}
	return dir + string(os.PathSeparator) + "storefront" + string(os.PathSeparator) + "state.json"
}

// LoadFromEnv loads .env file (if present) then overrides config from environment variables.
func (c *Config) LoadFromEnv() {
	// Auto-load .env file; silently ignored if missing
	_ = godotenv.Load()

	if v := os.Getenv("PORT"); v != "" {
		c.HTTPPort = v
	}
	if v := os.Getenv("STORE_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("STORE_DB_DRIVER"); v != "" {
		c.DBDriver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DBDSN = v
	}
	if v := os.Getenv("DATABASE_HOST"); v != "" {
		c.DBHost = v
	}
	if v := os.Getenv("DATABASE_PORT"); v != "" {
		c.DBPort = v
	}
	if v := os.Getenv("DATABASE_USER"); v != "" {
		c.DBUser = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.DBPassword = v
	}
	if v := os.Getenv("DATABASE_NAME"); v != "" {
		c.DBName = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		port := os.Getenv("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		c.RedisAddr = v + ":" + port
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
	if v := os.Getenv("STORE_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("STORE_ACCESS_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.AccessTokenTTL = d
		}
	}
	if v := os.Getenv("STORE_REFRESH_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RefreshTokenTTL = d
		}
	}
	if v := os.Getenv("STORE_AUTH_RATE_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.AuthRatePerSec = f
		}
	}
	if v := os.Getenv("STORE_AUTH_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AuthRateBurst = n
		}
	}
	if v := os.Getenv("STORE_SHIPPING_FEE"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			c.ShippingFee = d
		}
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.OTLPEndpoint = v
	}
	if v := os.Getenv("STORE_TRACE_STDOUT"); v == "true" {
		c.TraceStdout = true
	}
	if v := os.Getenv("STORE_API_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("STORE_STATE_FILE"); v != "" {
		c.StateFile = v
	}
}

// DSN builds the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	if c.DBDriver == "sqlite3" {
		return "file:" + c.DBName + ".db?_foreign_keys=on"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite3" {
		return fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("STORE_JWT_SECRET must be at least 16 characters")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.ShippingFee.IsNegative() {
		return errors.New("shipping fee can not be negative")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
