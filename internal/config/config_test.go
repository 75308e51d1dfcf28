package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.LLMWSBaseURL != "wss://api.openai.com" {
		t.Fatalf("LLMWSBaseURL = %q, want default", cfg.LLMWSBaseURL)
	}
	if cfg.LLMRealtimeModel != "gpt-4o-realtime-preview-2024-12-17" {
		t.Fatalf("LLMRealtimeModel = %q, want default", cfg.LLMRealtimeModel)
	}
	if cfg.LLMVoice != "alloy" {
		t.Fatalf("LLMVoice = %q, want %q", cfg.LLMVoice, "alloy")
	}
	if cfg.MaxCallDuration != 5*time.Minute {
		t.Fatalf("MaxCallDuration = %v, want 5m", cfg.MaxCallDuration)
	}
	if cfg.HardCutDelay != 12*time.Second {
		t.Fatalf("HardCutDelay = %v, want 12s", cfg.HardCutDelay)
	}
	if cfg.MetricsNamespace != "frontdesk" {
		t.Fatalf("MetricsNamespace = %q, want %q", cfg.MetricsNamespace, "frontdesk")
	}
	if cfg.AgentInstructions == "" {
		t.Fatal("AgentInstructions should have a default")
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	setCoreEnvEmpty(t)

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without LLM_API_KEY")
	}
}

func TestLoadPortOverridesBindAddr(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("PORT", "3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":3000" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":3000")
	}
}

func TestLoadCallDurationMinutes(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("MAX_CALL_DURATION_MINUTES", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxCallDuration != 12*time.Minute {
		t.Fatalf("MaxCallDuration = %v, want 12m", cfg.MaxCallDuration)
	}

	t.Setenv("MAX_CALL_DURATION_MINUTES", "0")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject a zero call duration")
	}
	t.Setenv("MAX_CALL_DURATION_MINUTES", "nope")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject a non-numeric call duration")
	}
}

func TestLoadRejectsNonWebsocketBaseURL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("LLM_WS_BASE_URL", "https://api.openai.com")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject an http base URL")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"PORT",
		"PUBLIC_URL",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_HARD_CUT_DELAY",
		"APP_METRICS_NAMESPACE",
		"LLM_API_KEY",
		"LLM_WS_BASE_URL",
		"LLM_REALTIME_MODEL",
		"LLM_VOICE",
		"AGENT_INSTRUCTIONS",
		"TELEPHONY_AUTH_TOKEN",
		"SESSION_CACHE_URL",
		"DATABASE_URL",
		"DATABASE_PATH",
		"MAX_CALL_DURATION_MINUTES",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
