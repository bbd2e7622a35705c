package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxDevices is the number of concurrently active devices an account may hold.
const DefaultMaxDevices = 2

type Config struct {
	MongoURI       string
	PostgresURI    string
	RedisURI       string
	Port           string
	Environment    string   // ENV: production, development, etc.
	LogLevel       string
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL
	TrustProxy     bool     // honour X-Forwarded-For when behind a reverse proxy
	AllowedHost    string   // production host check; empty disables it

	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	MaxDevices int

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	MediaFolder         string

	PaymentKeyID      string
	PaymentKeySecret  string
	PaymentAPIURL     string
	PaymentCurrency   string
	MonthlyPlanAmount int64 // minor units (paise/cents)
	YearlyPlanAmount  int64

	GeoIPURL       string
	CatalogTTL     time.Duration
	GeoLookupTTL   time.Duration
	RequestTimeout time.Duration
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{getEnv("FRONTEND_URL", "http://localhost:3000")}
	}

	return &Config{
		MongoURI:       getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/coursely")),
		PostgresURI:    getEnv("POSTGRES_URI", "postgres://localhost:5432/coursely?sslmode=disable"),
		RedisURI:       getEnv("REDIS_URI", "redis://localhost:6379/0"),
		Port:           getEnv("PORT", "8080"),
		Environment:    env,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: allowedOrigins,
		TrustProxy:     getEnvBool("TRUST_PROXY", false),
		AllowedHost:    getEnv("ALLOWED_HOST", ""),

		JWTSecret:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTIssuer:      getEnv("JWT_ISSUER", "coursely"),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 7*24*time.Hour),

		MaxDevices: getEnvInt("MAX_DEVICES", DefaultMaxDevices),

		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
		MediaFolder:         getEnv("CLOUDINARY_FOLDER", "coursely"),

		PaymentKeyID:      getEnv("RAZORPAY_KEY_ID", ""),
		PaymentKeySecret:  getEnv("RAZORPAY_KEY_SECRET", ""),
		PaymentAPIURL:     getEnv("RAZORPAY_API_URL", "https://api.razorpay.com/v1"),
		PaymentCurrency:   getEnv("PAYMENT_CURRENCY", "INR"),
		MonthlyPlanAmount: int64(getEnvInt("PLAN_MONTHLY_AMOUNT", 49900)),
		YearlyPlanAmount:  int64(getEnvInt("PLAN_YEARLY_AMOUNT", 499900)),

		GeoIPURL:       getEnv("GEOIP_URL", "http://ip-api.com/json"),
		CatalogTTL:     getEnvDuration("CATALOG_CACHE_TTL", 10*time.Minute),
		GeoLookupTTL:   getEnvDuration("GEOIP_CACHE_TTL", 24*time.Hour),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
	}
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment reports whether detailed errors may be exposed to clients.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// PaymentsEnabled reports whether gateway credentials are configured.
func (c *Config) PaymentsEnabled() bool {
	return c.PaymentKeyID != "" && c.PaymentKeySecret != ""
}

// MediaEnabled reports whether Cloudinary credentials are configured.
func (c *Config) MediaEnabled() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
