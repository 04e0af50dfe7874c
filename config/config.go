package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Paymob   PaymobConfig
	PayPal   PayPalConfig
	Payments PaymentsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/trainhub?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT validation settings. Tokens are issued by the
// identity service; this service only validates them.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// PaymobConfig holds Paymob (redirect checkout) credentials.
type PaymobConfig struct {
	BaseURL       string
	APIKey        string
	IntegrationID string
	IframeID      string
	HMACSecret    string
}

// PayPalConfig holds PayPal REST API credentials.
type PayPalConfig struct {
	BaseURL   string // https://api-m.paypal.com or the sandbox host
	ClientID  string
	Secret    string
	WebhookID string // configured webhook id, required for signature verification
}

// PaymentsConfig holds marketplace payment settings.
type PaymentsConfig struct {
	PlatformFeePct float64 // fraction in [0,1), snapshotted onto new subscriptions
	ReturnURL      string  // browser redirect after processor approval
	CancelURL      string  // browser redirect after processor cancellation
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	feePct, err := strconv.ParseFloat(getEnv("PLATFORM_FEE_PCT", "0.20"), 64)
	if err != nil || feePct < 0 || feePct >= 1 {
		return nil, fmt.Errorf("PLATFORM_FEE_PCT must be a fraction in [0,1)")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/trainhub?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "trainhub"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		Paymob: PaymobConfig{
			BaseURL:       getEnv("PAYMOB_BASE_URL", "https://accept.paymob.com"),
			APIKey:        getEnv("PAYMOB_API_KEY", ""),
			IntegrationID: getEnv("PAYMOB_INTEGRATION_ID", ""),
			IframeID:      getEnv("PAYMOB_IFRAME_ID", ""),
			HMACSecret:    getEnv("PAYMOB_HMAC_SECRET", ""),
		},
		PayPal: PayPalConfig{
			BaseURL:   getEnv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
			ClientID:  getEnv("PAYPAL_CLIENT_ID", ""),
			Secret:    getEnv("PAYPAL_SECRET", ""),
			WebhookID: getEnv("PAYPAL_WEBHOOK_ID", ""),
		},
		Payments: PaymentsConfig{
			PlatformFeePct: feePct,
			ReturnURL:      getEnv("PAYMENT_RETURN_URL", "http://localhost:3000/payments/return"),
			CancelURL:      getEnv("PAYMENT_CANCEL_URL", "http://localhost:3000/payments/cancel"),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
