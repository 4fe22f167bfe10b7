package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_ASSISTANT_ID", "asst_1")
	t.Setenv("TAVILY_API_KEY", "tvly-test")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PollInterval != 3*time.Second || cfg.RunTimeout != 120*time.Second {
		t.Fatalf("unexpected durations: %s %s", cfg.PollInterval, cfg.RunTimeout)
	}
	if cfg.SearchBackend != SearchTavily || cfg.SearchToolName != "tavily_search" || cfg.UnknownToolPolicy != "drop" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ExportEnabled() || cfg.DriveEnabled() {
		t.Fatalf("export should be off by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("ALLOWED_USERS", "1:2:3")
	t.Setenv("SEARCH_BACKEND", "mcp")
	t.Setenv("TAVILY_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("poll interval not parsed: %s", cfg.PollInterval)
	}
	if len(cfg.AllowedUsers) != 3 || cfg.AllowedUsers[2] != 3 {
		t.Fatalf("allowed users not parsed: %v", cfg.AllowedUsers)
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	setRequired(t)
	t.Setenv("SEARCH_BACKEND", "bing")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadRequiresAssistant(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_ASSISTANT_ID", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing key error")
	}
}
