package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries everything the server needs from the environment so main
// stays lean. Window widths and thresholds live here rather than in code: the
// check-in gate and validators read them, they never hardcode them.
type Config struct {
	Addr string

	// DatabaseURL selects the Postgres-backed stores; empty falls back to the
	// in-memory stores (development and tests).
	DatabaseURL string

	// Redis backs the device fingerprint fast-path guard. Empty disables it;
	// the storage uniqueness constraint remains authoritative either way.
	Redis RedisConfig

	// QRSigningKey signs check-in tokens (HS256).
	QRSigningKey string
	// QRTokenLifetime bounds how long a minted check-in token validates.
	QRTokenLifetime time.Duration

	// CheckinLeadWindow widens the acceptance window before event start.
	CheckinLeadWindow time.Duration
	// CheckinTrailWindow widens the acceptance window after event end.
	CheckinTrailWindow time.Duration

	// MaxPositionAccuracyMeters rejects position reports with worse stated
	// accuracy as NO_POSITION_SIGNAL.
	MaxPositionAccuracyMeters float64
}

// RedisConfig groups Redis connection tuning.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables, applying defaults
// suitable for development.
func FromEnv() Config {
	return Config{
		Addr:                      envString("ROLLCALL_ADDR", ":8080"),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		QRSigningKey:              envString("QR_SIGNING_KEY", "dev-secret-key-change-in-production"),
		QRTokenLifetime:           envDuration("QR_TOKEN_LIFETIME", 5*time.Minute),
		CheckinLeadWindow:         envDuration("CHECKIN_LEAD_WINDOW", time.Hour),
		CheckinTrailWindow:        envDuration("CHECKIN_TRAIL_WINDOW", time.Hour),
		MaxPositionAccuracyMeters: envFloat("MAX_POSITION_ACCURACY_METERS", 100),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
