// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Token       TokenConfig
	Commerce    CommerceConfig
	Stripe      StripeConfig
	AWS         AWSConfig
	Admin       AdminConfig
	Logging     LoggingConfig
	RateLimit   RateLimitConfig
	I18n        I18nConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	PublicURL    string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	CORSOrigins  []string
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	SQLitePath   string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type TokenConfig struct {
	// SigningSecret overrides the secret stored in the settings table.
	SigningSecret  string
	Issuer         string
	AccessTokenTTL int // in seconds
}

type CommerceConfig struct {
	Enabled           bool
	CheckoutURL       string
	Subscriptions     bool
	ProductVisibility string
}

type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	KeyPrefix       string
	CloudFrontURL   string
	LocalPublishDir string
}

type AdminConfig struct {
	// APIKey may be a bcrypt hash or a plain key.
	APIKey string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RateLimitConfig struct {
	RequestsPerSecond   float64
	Burst               int
	IntrospectPerSecond float64
	IntrospectBurst     int
}

type I18nConfig struct {
	DefaultLocale string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			PublicURL:    getEnv("PUBLIC_URL", "http://localhost:8080"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			CORSOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "licensegate"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			SQLitePath:   getEnv("DB_SQLITE_PATH", "licensegate.db"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		Token: TokenConfig{
			SigningSecret:  getEnv("TOKEN_SIGNING_SECRET", ""),
			Issuer:         getEnv("TOKEN_ISSUER", ""),
			AccessTokenTTL: getEnvAsInt("ACCESS_TOKEN_TTL", 3600),
		},
		Commerce: CommerceConfig{
			Enabled:           getEnvAsBool("COMMERCE_ENABLED", true),
			CheckoutURL:       getEnv("COMMERCE_CHECKOUT_URL", ""),
			Subscriptions:     getEnvAsBool("COMMERCE_SUBSCRIPTIONS", false),
			ProductVisibility: getEnv("COMMERCE_PRODUCT_VISIBILITY", "hidden"),
		},
		Stripe: StripeConfig{
			SecretKey:  getEnv("STRIPE_SECRET_KEY", ""),
			SuccessURL: getEnv("STRIPE_SUCCESS_URL", ""),
			CancelURL:  getEnv("STRIPE_CANCEL_URL", ""),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
			KeyPrefix:       getEnv("AWS_S3_KEY_PREFIX", "licenses/"),
			CloudFrontURL:   getEnv("AWS_CLOUDFRONT_URL", ""),
			LocalPublishDir: getEnv("LOCAL_PUBLISH_DIR", "./public"),
		},
		Admin: AdminConfig{
			APIKey: getEnv("ADMIN_API_KEY", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond:   getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:               getEnvAsInt("RATE_LIMIT_BURST", 20),
			IntrospectPerSecond: getEnvAsFloat("RATE_LIMIT_INTROSPECT_RPS", 5),
			IntrospectBurst:     getEnvAsInt("RATE_LIMIT_INTROSPECT_BURST", 10),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		},
	}

	if config.Token.Issuer == "" {
		config.Token.Issuer = config.Server.PublicURL
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Commerce.ProductVisibility {
	case "hidden", "catalog", "search":
	default:
		return fmt.Errorf("commerce product visibility must be hidden, catalog or search")
	}

	if c.Token.AccessTokenTTL <= 0 {
		return fmt.Errorf("access token ttl must be positive")
	}

	if c.Token.SigningSecret != "" && len(c.Token.SigningSecret) < 32 {
		return fmt.Errorf("token signing secret must be at least 32 characters")
	}

	if c.Environment == "production" {
		if c.Admin.APIKey == "" {
			return fmt.Errorf("admin api key is required in production")
		}
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database password is required in production")
		}
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
