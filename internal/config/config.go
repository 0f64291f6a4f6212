package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full application configuration, loaded from environment
// variables. Portal and SMTP credentials are only required for the scrape
// workflow, so Validate is separate from FromEnv.
type Config struct {
	// HomeCase portal
	PortalLoginURL    string
	PortalMessagesURL string
	PortalUsername    string
	PortalPassword    string
	RequestDelay      time.Duration
	MessageLimit      int

	// Storage
	StorageDriver string
	StorageDSN    string

	// SMTP fallback, used to seed the stored email config on first run
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string
	EmailTo      string
	EmailToCC    string
	Greeting     string
	Signature    string

	// Candidate extraction
	KeywordBonus     int
	MaxExtractLength int

	// HTTP server and worker
	ListenAddr      string
	RefreshInterval time.Duration
	AlertWebhookURL string
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	return Config{
		PortalLoginURL:    os.Getenv("HOMECASE_URL_LOGIN"),
		PortalMessagesURL: os.Getenv("HOMECASE_URL_MESSAGES"),
		PortalUsername:    os.Getenv("HOMECASE_USERNAME"),
		PortalPassword:    os.Getenv("HOMECASE_PASSWORD"),
		RequestDelay:      envDuration("REQUEST_DELAY_SECONDS", 500*time.Millisecond),
		MessageLimit:      envInt("MESSAGE_LIMIT", 24),

		StorageDriver: envDefault("STORAGE_DRIVER", "sqlite"),
		StorageDSN:    envDefault("DATABASE_URL", "homecasebot.db"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		EmailFrom:    os.Getenv("EMAIL_FROM"),
		EmailTo:      os.Getenv("EMAIL_TO"),
		EmailToCC:    os.Getenv("EMAIL_TO_CC"),
		Greeting:     envDefault("TENANT_GREETING", "Liebe Mieterin"),
		Signature:    os.Getenv("EMAIL_SIGNATURE"),

		KeywordBonus:     envInt("KEYWORD_BONUS", 500),
		MaxExtractLength: envInt("MAX_EXTRACT_LENGTH", 3500),

		ListenAddr:      envDefault("LISTEN_ADDR", ":8080"),
		RefreshInterval: envDuration("REFRESH_INTERVAL_SECONDS", 6*time.Hour),
		AlertWebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
	}
}

// Validate checks the fields the scrape-and-notify workflow cannot run
// without.
func (c Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"HOMECASE_URL_LOGIN", c.PortalLoginURL},
		{"HOMECASE_URL_MESSAGES", c.PortalMessagesURL},
		{"HOMECASE_USERNAME", c.PortalUsername},
		{"HOMECASE_PASSWORD", c.PortalPassword},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("REQUEST_DELAY_SECONDS must be >= 0")
	}
	return nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// envDuration reads a duration given in (possibly fractional) seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return def
	}
	return time.Duration(secs * float64(time.Second))
}
