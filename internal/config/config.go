package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// defaultInstructions is the receptionist persona sent with every
// session.update.
const defaultInstructions = "You are a friendly and professional phone receptionist " +
	"for a small business. Greet callers warmly, answer briefly, and help them " +
	"book appointments. Always confirm the date and time back to the caller " +
	"before booking. Keep every answer short; this is a phone call."

// Config contains all runtime settings for the front-desk voice service.
type Config struct {
	BindAddr         string
	PublicURL        string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	LLMAPIKey         string
	LLMWSBaseURL      string
	LLMRealtimeModel  string
	LLMVoice          string
	AgentInstructions string

	TelephonyAuthToken string

	SessionCacheURL string
	DatabaseURL     string
	DatabasePath    string

	MaxCallDuration time.Duration
	HardCutDelay    time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           bindAddr(),
		PublicURL:          stringsTrimSpace("PUBLIC_URL"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "frontdesk"),
		LLMAPIKey:          stringsTrimSpace("LLM_API_KEY"),
		LLMWSBaseURL:       envOrDefault("LLM_WS_BASE_URL", "wss://api.openai.com"),
		LLMRealtimeModel:   envOrDefault("LLM_REALTIME_MODEL", "gpt-4o-realtime-preview-2024-12-17"),
		LLMVoice:           envOrDefault("LLM_VOICE", "alloy"),
		AgentInstructions:  envOrDefault("AGENT_INSTRUCTIONS", defaultInstructions),
		TelephonyAuthToken: stringsTrimSpace("TELEPHONY_AUTH_TOKEN"),
		SessionCacheURL:    stringsTrimSpace("SESSION_CACHE_URL"),
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),
		DatabasePath:       envOrDefault("DATABASE_PATH", "frontdesk.db"),
		ShutdownTimeout:    15 * time.Second,
		MaxCallDuration:    5 * time.Minute,
		HardCutDelay:       12 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HardCutDelay, err = durationFromEnv("APP_HARD_CUT_DELAY", cfg.HardCutDelay)
	if err != nil {
		return Config{}, err
	}

	minutes, err := intFromEnv("MAX_CALL_DURATION_MINUTES", 5)
	if err != nil {
		return Config{}, err
	}
	if minutes <= 0 {
		return Config{}, fmt.Errorf("MAX_CALL_DURATION_MINUTES must be positive")
	}
	cfg.MaxCallDuration = time.Duration(minutes) * time.Minute

	if cfg.LLMAPIKey == "" {
		return Config{}, fmt.Errorf("LLM_API_KEY is required")
	}
	if cfg.HardCutDelay < time.Second {
		return Config{}, fmt.Errorf("APP_HARD_CUT_DELAY must be at least 1s")
	}
	if !strings.HasPrefix(cfg.LLMWSBaseURL, "ws://") && !strings.HasPrefix(cfg.LLMWSBaseURL, "wss://") {
		return Config{}, fmt.Errorf("LLM_WS_BASE_URL must be a ws:// or wss:// URL")
	}

	return cfg, nil
}

// bindAddr honors PORT when set, otherwise APP_BIND_ADDR.
func bindAddr() string {
	if port := stringsTrimSpace("PORT"); port != "" {
		return ":" + port
	}
	return envOrDefault("APP_BIND_ADDR", ":8080")
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
