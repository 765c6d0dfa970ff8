package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultFallbackMessage = "I apologize, but I'm having trouble generating a response at the moment. Please try again."

type Config struct {
	HTTPAddr    string
	CORSOrigins []string

	DBDriver string
	DBDSN    string

	JWTSecret string
	TokenTTL  time.Duration

	PasswordHasher string

	// login throttle (disabled when RedisAddr is empty)
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	LoginMaxFailures   int
	LoginFailureWindow time.Duration

	// per-IP limit on /register and /login
	AuthRatePerMinute int

	SessionIdleTTL time.Duration
	SweepSchedule  string

	// AI provider
	AIProvider        string
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string

	GenMaxTokens    int
	GenTimeout      time.Duration
	FallbackMessage string

	// rabbitMQ (audit events are dropped when RabbitURL is empty)
	RabbitURL         string
	AuditQueue        string
	WorkerConcurrency int

	LogLevel string
	LogFile  string
}

func Load() Config {
	return Config{
		HTTPAddr:    envString("HTTP_ADDR", ":8080"),
		CORSOrigins: envList("CORS_ORIGINS", []string{"http://localhost:8501", "http://127.0.0.1:8501"}),

		// sqlite DSN is a file path; mysql/postgres DSNs follow their drivers
		DBDriver: strings.ToLower(envString("DB_DRIVER", "sqlite")),
		DBDSN:    envString("DB_DSN", "users.db"),

		JWTSecret: envString("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:  envDuration("TOKEN_TTL", 24*time.Hour),

		PasswordHasher: strings.ToLower(envString("PASSWORD_HASHER", "sha256")),

		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            envInt("REDIS_DB", 0),
		LoginMaxFailures:   envInt("LOGIN_MAX_FAILURES", 5),
		LoginFailureWindow: envDuration("LOGIN_FAILURE_WINDOW", 15*time.Minute),

		AuthRatePerMinute: envInt("AUTH_RATE_PER_MINUTE", 30),

		SessionIdleTTL: envDuration("SESSION_IDLE_TTL", 2*time.Hour),
		SweepSchedule:  envString("SESSION_SWEEP_SCHEDULE", "@every 1m"),

		AIProvider:        strings.ToLower(envString("AI_PROVIDER", "ollama")),
		OllamaBaseURL:     envString("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       envString("OLLAMA_MODEL", "orca-mini:3b"),
		OpenRouterBaseURL: envString("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   envString("OPENROUTER_MODEL", "openrouter/auto"),
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: os.Getenv("OPENROUTER_APP_NAME"),

		GenMaxTokens:    envInt("GEN_MAX_TOKENS", 200),
		GenTimeout:      envDuration("GEN_TIMEOUT", 120*time.Second),
		FallbackMessage: envString("FALLBACK_MESSAGE", DefaultFallbackMessage),

		RabbitURL:         os.Getenv("RABBIT_URL"),
		AuditQueue:        envString("AUDIT_QUEUE", "chat_audit"),
		WorkerConcurrency: clamp(envInt("WORKER_CONCURRENCY", 2), 1, 50),

		LogLevel: strings.ToLower(envString("LOG_LEVEL", "info")),
		LogFile:  os.Getenv("LOG_FILE"),
	}
}

// String renders the config for startup logs with secrets masked.
func (c Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "http=%s db=%s dsn=%s hasher=%s ", c.HTTPAddr, c.DBDriver, mask(c.DBDSN), c.PasswordHasher)
	fmt.Fprintf(&sb, "jwt_secret=%s redis=%q ai=%s ", mask(c.JWTSecret), c.RedisAddr, c.AIProvider)
	fmt.Fprintf(&sb, "gen_max_tokens=%d gen_timeout=%s idle_ttl=%s ", c.GenMaxTokens, c.GenTimeout, c.SessionIdleTTL)
	fmt.Fprintf(&sb, "rabbit=%s audit_queue=%s", mask(c.RabbitURL), c.AuditQueue)
	return sb.String()
}

func mask(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 3 {
		return strings.Repeat("*", 7)
	}
	return v[:3] + strings.Repeat("*", 7)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
