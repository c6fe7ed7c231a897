package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env             string
	HTTPPort        string
	StoreBackend    string
	DatabaseURL     string
	SQLitePath      string
	MongoURI        string
	MongoDatabase   string
	RedisAddr       string
	QueueBackend    string
	RateLimitStore  string
	RateLimitPerMin int
	JWTIssuer       string
	JWTSigningKey   string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	SessionMinutes  int
	StaticDir       string
}

// Load reads an optional .env file and returns application config populated
// from environment variables with sensible defaults.
func Load() App {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not read .env: %v", err)
	}

	cfg := App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "3000"),
		StoreBackend:    getEnv("STORE_BACKEND", ""),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		SQLitePath:      getEnv("SQLITE_PATH", "./data/qrattend.db"),
		MongoURI:        getEnv("MONGODB_URI", ""),
		MongoDatabase:   getEnv("MONGODB_DATABASE", "qr-attendance"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		QueueBackend:    getEnv("QUEUE_BACKEND", "memory"),
		RateLimitStore:  getEnv("RATE_LIMIT_BACKEND", "memory"),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 240),
		JWTIssuer:       getEnv("JWT_ISSUER", "qrattend"),
		JWTSigningKey:   getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		AccessTTL:       durationEnv("ACCESS_TTL", 12*time.Hour),
		RefreshTTL:      durationEnv("REFRESH_TTL", 7*24*time.Hour),
		SessionMinutes:  intEnv("DEFAULT_SESSION_MINUTES", 60),
		StaticDir:       getEnv("STATIC_DIR", "public"),
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = defaultBackend(cfg)
	}
	return cfg
}

// defaultBackend picks a store from whichever connection string is set.
func defaultBackend(cfg App) string {
	switch {
	case cfg.DatabaseURL != "":
		return "postgres"
	case cfg.MongoURI != "":
		return "mongo"
	default:
		return "memory"
	}
}

// Production reports whether the app runs in a production environment.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
