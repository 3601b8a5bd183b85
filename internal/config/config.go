package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request budget, must exceed ExtractorTimeout

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Storage string // "redis" | "memory"

	// Auth
	JWTSecret string // HS256 secret shared with the identity provider

	// Browser client
	ClientURLs []string // allowed CORS origins

	// Extractor (r.jina.ai)
	ExtractorBaseURL   string        // target URL is appended raw
	ExtractorTimeout   time.Duration // bound on a single fetch (default: 15s)
	ExtractorUserAgent string
	ExtractorRate      int           // calls per minute, 0 = unlimited
	ExtractorBurst     int           // token bucket burst
	BreakerMaxFailures int           // consecutive failures before the breaker opens
	BreakerOpenTimeout time.Duration // how long the breaker stays open
	ExtractorCacheTTL  time.Duration // redis only, 0 disables

	// Background metadata retry
	RetryWorkers   int
	RetryQueueSize int
	RetryDelay     time.Duration // wait before the single background attempt

	ImportMax int // max entries accepted by a bookmarks.yaml import

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedCIDRS []string // optional, restrict ops endpoints (readyz, infra, metrics)
	TrustProxy   bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("LINKVAULT_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("LINKVAULT_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("LINKVAULT_REQUEST_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel:  getenv("LINKVAULT_LOG_LEVEL", "info"),
		PrettyLog: mustBool("LINKVAULT_PRETTY_LOG", true),

		Storage: strings.ToLower(getenv("LINKVAULT_STORAGE", StorageRedis)),

		JWTSecret:  requireEnv("LINKVAULT_JWT_SECRET"),
		ClientURLs: splitAndTrim(getenv("LINKVAULT_CLIENT_URL", "http://localhost:3000")),

		// Extractor
		ExtractorBaseURL:   getenv("LINKVAULT_EXTRACTOR_BASE_URL", "https://r.jina.ai/"),
		ExtractorTimeout:   mustDuration("LINKVAULT_EXTRACTOR_TIMEOUT", 15*time.Second),
		ExtractorUserAgent: getenv("LINKVAULT_EXTRACTOR_USER_AGENT", "Mozilla/5.0 (compatible; BookmarkBot/1.0)"),
		ExtractorRate:      getenvInt("LINKVAULT_EXTRACTOR_RATE_PER_MIN", 20),
		ExtractorBurst:     getenvInt("LINKVAULT_EXTRACTOR_BURST", 5),
		BreakerMaxFailures: getenvInt("LINKVAULT_BREAKER_MAX_FAILURES", 5),
		BreakerOpenTimeout: mustDuration("LINKVAULT_BREAKER_OPEN_TIMEOUT", 60*time.Second),
		ExtractorCacheTTL:  mustDuration("LINKVAULT_EXTRACTOR_CACHE_TTL", 24*time.Hour),

		// Background retry
		RetryWorkers:   getenvInt("LINKVAULT_RETRY_WORKERS", 2),
		RetryQueueSize: getenvInt("LINKVAULT_RETRY_QUEUE_SIZE", 512),
		RetryDelay:     mustDuration("LINKVAULT_RETRY_DELAY", 2*time.Second),

		ImportMax: getenvInt("LINKVAULT_IMPORT_MAX", 500),

		// Redis settings
		RedisAddr:             getenv("LINKVAULT_REDIS_ADDR", "localhost:6379"),
		RedisUser:             getenv("LINKVAULT_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("LINKVAULT_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("LINKVAULT_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("LINKVAULT_REDIS_DB", 0),
		RedisDT:               mustDuration("LINKVAULT_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("LINKVAULT_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("LINKVAULT_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("LINKVAULT_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("LINKVAULT_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("LINKVAULT_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("LINKVAULT_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("LINKVAULT_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("LINKVAULT_REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("LINKVAULT_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("LINKVAULT_TRUST_PROXY", false),
	}

	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.JWTSecret = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func (c *Config) validate() error {
	switch c.Storage {
	case StorageRedis:
		if c.RedisPasswordRequired && c.RedisPassword == "" {
			return fmt.Errorf("LINKVAULT_REDIS_PASSWORD is required when LINKVAULT_REDIS_PASSWORD_REQUIRED=true")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("LINKVAULT_STORAGE must be %q or %q, got %q", StorageRedis, StorageMemory, c.Storage)
	}

	if c.ExtractorTimeout <= 0 {
		return fmt.Errorf("LINKVAULT_EXTRACTOR_TIMEOUT must be > 0, got %v", c.ExtractorTimeout)
	}
	if c.RequestTimeout <= c.ExtractorTimeout {
		return fmt.Errorf("LINKVAULT_REQUEST_TIMEOUT (%v) must exceed LINKVAULT_EXTRACTOR_TIMEOUT (%v)",
			c.RequestTimeout, c.ExtractorTimeout)
	}
	if c.RetryWorkers < 1 {
		return fmt.Errorf("LINKVAULT_RETRY_WORKERS must be >= 1, got %d", c.RetryWorkers)
	}
	// A full import must fit in the queue or its tail is never enriched.
	if c.ImportMax > c.RetryQueueSize {
		return fmt.Errorf("LINKVAULT_RETRY_QUEUE_SIZE (%d) must be >= LINKVAULT_IMPORT_MAX (%d)",
			c.RetryQueueSize, c.ImportMax)
	}
	return nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
