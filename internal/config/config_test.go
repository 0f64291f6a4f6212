package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.MessageLimit != 24 {
		t.Errorf("expected default message limit 24, got %d", cfg.MessageLimit)
	}
	if cfg.RequestDelay != 500*time.Millisecond {
		t.Errorf("expected default delay 500ms, got %v", cfg.RequestDelay)
	}
	if cfg.Greeting != "Liebe Mieterin" {
		t.Errorf("unexpected default greeting %q", cfg.Greeting)
	}
	if cfg.KeywordBonus != 500 || cfg.MaxExtractLength != 3500 {
		t.Errorf("unexpected extractor defaults: %d %d", cfg.KeywordBonus, cfg.MaxExtractLength)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("REQUEST_DELAY_SECONDS", "1.5")
	t.Setenv("MESSAGE_LIMIT", "10")
	cfg := FromEnv()
	if cfg.RequestDelay != 1500*time.Millisecond {
		t.Errorf("expected 1.5s delay, got %v", cfg.RequestDelay)
	}
	if cfg.MessageLimit != 10 {
		t.Errorf("expected limit 10, got %d", cfg.MessageLimit)
	}
}

func TestValidateReportsMissingFields(t *testing.T) {
	cfg := Config{PortalLoginURL: "https://mein.homecase.de/login"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing fields")
	}
	msg := err.Error()
	for _, want := range []string{"HOMECASE_URL_MESSAGES", "HOMECASE_USERNAME", "HOMECASE_PASSWORD"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing field name %s", msg, want)
		}
	}
	if strings.Contains(msg, "HOMECASE_URL_LOGIN") {
		t.Errorf("error %q should not name a field that is set", msg)
	}
}
