package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

// SMTPConfig holds the optional mail relay used for payment receipts.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Enabled reports whether enough settings are present to send mail.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.User != "" && s.Password != ""
}

// Config holds environment-driven configuration.
type Config struct {
	AppEnv string
	Addr   string

	MongoURI    string
	MongoDB     string
	RedisURL    string
	DatabaseURL string

	JWTSecret string
	JWTExpiry time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string
	DefaultCurrency     string

	CloudinaryURL string
	SMTP          SMTPConfig

	CORSOrigins  string
	SuggestLimit int
}

// Load reads configuration from a .env file (when present) and environment variables.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Info(".env file not found, using system environment variables")
	}

	return Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Addr:                getEnv("MARKET_ADDR", ":8080"),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDB:             getEnv("MONGO_DB", "marketplace"),
		RedisURL:            os.Getenv("REDIS_URL"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		JWTExpiry:           getDuration("JWT_EXPIRY", 72*time.Hour),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		DefaultCurrency:     getEnv("DEFAULT_CURRENCY", "usd"),
		CloudinaryURL:       os.Getenv("CLOUDINARY_URL"),
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getInt("SMTP_PORT", 587),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     getEnv("SMTP_FROM", os.Getenv("SMTP_USER")),
		},
		CORSOrigins:  getEnv("CORS_ORIGINS", "*"),
		SuggestLimit: getInt("SEARCH_SUGGEST_LIMIT", 5),
	}
}

// Production reports whether the service runs with APP_ENV=production.
func (c Config) Production() bool {
	return c.AppEnv == "production"
}

// Validate reports settings that must be present before the server starts.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	if c.Production() {
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required in production"))
		}
		if c.StripeSecretKey == "" || c.StripeWebhookSecret == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required in production"))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
