package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const legacyPostgresScheme = "postgres://"
const postgresScheme = "postgresql://"

type Config struct {
	// External dependencies. Both optional; absence means degraded mode.
	DatabaseURL  string
	OpenAIAPIKey string

	HTTPAddr    string
	Env         string // "production" | "development"
	LogLevel    string
	Version     string
	CORSOrigins []string

	DBMinConns       int
	DBMaxConns       int
	DBAcquireTimeout time.Duration
	DBConnectRetries int
	DBRetryBaseDelay time.Duration

	OpenAIModel   string
	OpenAIBaseURL string
	OpenAITimeout time.Duration

	ChatMaxTokens       int
	ChatHistoryTurns    int
	ChatMaxMessageChars int

	RateLimitPerMinute    int
	ConversationRetention time.Duration
	WorkerTickSeconds     int
}

func Load() (Config, error) {
	// Optional: load local .env for development. Missing file is fine.
	_ = godotenv.Load()

	env := strings.ToLower(getenvDefault("RESTO_ENV", "production"))
	if env != "production" && env != "development" {
		return Config{}, fmt.Errorf("RESTO_ENV must be production or development, got %q", env)
	}

	minConns := clampInt(getenvIntDefault("RESTO_DB_MIN_CONNS", 1), 0, 100)
	maxConns := clampInt(getenvIntDefault("RESTO_DB_MAX_CONNS", 10), 1, 100)
	if minConns > maxConns {
		minConns = maxConns
	}

	retentionDays := getenvIntDefault("RESTO_CONVERSATION_RETENTION_DAYS", 30)
	if retentionDays < 1 {
		retentionDays = 1
	}

	cfg := Config{
		DatabaseURL:  NormalizeDatabaseURL(os.Getenv("DATABASE_URL")),
		OpenAIAPIKey: strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),

		HTTPAddr:    getenvDefault("RESTO_HTTP_ADDR", ":8080"),
		Env:         env,
		LogLevel:    getenvDefault("RESTO_LOG_LEVEL", "info"),
		Version:     getenvDefault("RESTO_VERSION", "1.0.0"),
		CORSOrigins: getenvCSV("RESTO_CORS_ORIGINS"),

		DBMinConns:       minConns,
		DBMaxConns:       maxConns,
		DBAcquireTimeout: time.Duration(clampInt(getenvIntDefault("RESTO_DB_ACQUIRE_TIMEOUT_MS", 2000), 10, 60000)) * time.Millisecond,
		DBConnectRetries: clampInt(getenvIntDefault("RESTO_DB_CONNECT_RETRIES", 3), 0, 10),
		DBRetryBaseDelay: time.Duration(clampInt(getenvIntDefault("RESTO_DB_RETRY_BASE_DELAY_MS", 500), 1, 30000)) * time.Millisecond,

		OpenAIModel:   getenvDefault("RESTO_OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("RESTO_OPENAI_BASE_URL")), "/"),
		OpenAITimeout: time.Duration(clampInt(getenvIntDefault("RESTO_OPENAI_TIMEOUT_SECONDS", 30), 1, 300)) * time.Second,

		ChatMaxTokens:       clampInt(getenvIntDefault("RESTO_CHAT_MAX_TOKENS", 500), 16, 4096),
		ChatHistoryTurns:    clampInt(getenvIntDefault("RESTO_CHAT_HISTORY_TURNS", 10), 0, 100),
		ChatMaxMessageChars: clampInt(getenvIntDefault("RESTO_CHAT_MAX_MESSAGE_CHARS", 4000), 100, 32000),

		RateLimitPerMinute:    clampInt(getenvIntDefault("RESTO_RATE_LIMIT_PER_MINUTE", 120), 1, 100000),
		ConversationRetention: time.Duration(retentionDays) * 24 * time.Hour,
		WorkerTickSeconds:     clampInt(getenvIntDefault("RESTO_WORKER_TICK_SECONDS", 3600), 1, 86400),
	}
	return cfg, nil
}

func (c Config) HasDatabase() bool { return c.DatabaseURL != "" }

func (c Config) HasOpenAI() bool { return c.OpenAIAPIKey != "" }

func (c Config) Development() bool { return c.Env == "development" }

// RedactedDatabaseURL renders the database location without credentials,
// suitable for logs. Empty when no database is configured.
func (c Config) RedactedDatabaseURL() string {
	return RedactDatabaseURL(c.DatabaseURL)
}

// NormalizeDatabaseURL rewrites the legacy postgres:// scheme to postgresql://.
// It is idempotent.
func NormalizeDatabaseURL(raw string) string {
	v := strings.TrimSpace(raw)
	if strings.HasPrefix(v, legacyPostgresScheme) {
		return postgresScheme + strings.TrimPrefix(v, legacyPostgresScheme)
	}
	return v
}

func RedactDatabaseURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// keyword/value DSNs may carry password=...; never echo them.
		return "(unparseable dsn)"
	}
	return u.Scheme + "://" + u.Host + u.Path
}

func getenvDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvCSV(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	seen := map[string]struct{}{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
