package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// AlertConfig holds alerting configuration.
type AlertConfig struct {
	// WebhookURL is a generic webhook endpoint (Slack, Discord, or custom)
	WebhookURL string
	// WebhookType determines the payload format: "slack", "discord", or "generic"
	WebhookType string
	// Enabled controls whether alerts are sent
	Enabled bool
	// MinFailuresBeforeAlert is the threshold before sending alerts
	MinFailuresBeforeAlert int
	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultAlertConfig returns config from environment variables.
func DefaultAlertConfig() AlertConfig {
	cfg := AlertConfig{
		WebhookURL:             os.Getenv("ALERT_WEBHOOK_URL"),
		WebhookType:            os.Getenv("ALERT_WEBHOOK_TYPE"),
		MinFailuresBeforeAlert: 1,
		Timeout:                10 * time.Second,
	}

	cfg.Enabled = cfg.WebhookURL != ""

	if cfg.WebhookType == "" {
		// Auto-detect from URL
		if strings.Contains(cfg.WebhookURL, "slack.com") {
			cfg.WebhookType = "slack"
		} else if strings.Contains(cfg.WebhookURL, "discord.com") {
			cfg.WebhookType = "discord"
		} else {
			cfg.WebhookType = "generic"
		}
	}

	if v := os.Getenv("ALERT_MIN_FAILURES"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			cfg.MinFailuresBeforeAlert = n
		}
	}

	return cfg
}

// Alerter sends alerts to configured webhooks.
type Alerter struct {
	cfg    AlertConfig
	client *http.Client
}

// NewAlerter creates a new alerter instance.
func NewAlerter(cfg AlertConfig) *Alerter {
	return &Alerter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// RunAlert describes the outcome of one scrape-parse-notify run.
type RunAlert struct {
	JobName      string
	FoundCount   int
	SavedCount   int
	SkippedCount int
	FailedCount  int
	Duration     time.Duration
	Failures     []ParseFailure
	Timestamp    time.Time
}

// ParseFailure contains details about a message that could not be parsed.
type ParseFailure struct {
	ContentHash string
	Error       string
}

// SendRunAlert sends an alert when a run had parse failures.
func (a *Alerter) SendRunAlert(ctx context.Context, alert RunAlert) error {
	if !a.cfg.Enabled {
		log.Printf("alerting: alerts disabled, skipping")
		return nil
	}

	if alert.FailedCount < a.cfg.MinFailuresBeforeAlert {
		log.Printf("alerting: %d failures below threshold (%d), skipping",
			alert.FailedCount, a.cfg.MinFailuresBeforeAlert)
		return nil
	}

	var payload []byte
	var err error

	switch a.cfg.WebhookType {
	case "slack":
		payload, err = a.buildSlackPayload(alert)
	case "discord":
		payload, err = a.buildDiscordPayload(alert)
	default:
		payload, err = a.buildGenericPayload(alert)
	}

	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	log.Printf("alerting: sent alert for %d failed message(s)", alert.FailedCount)
	return nil
}

func (a *Alerter) buildSlackPayload(alert RunAlert) ([]byte, error) {
	var failedList strings.Builder
	for _, f := range alert.Failures {
		failedList.WriteString(fmt.Sprintf("• *%s*: %s\n", shortHash(f.ContentHash), f.Error))
	}

	emoji := ":warning:"
	if alert.SavedCount == 0 && alert.FailedCount > 0 {
		emoji = ":x:"
	}

	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Scrape Run Alert: %s", emoji, alert.JobName),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Found:*\n%d", alert.FoundCount)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Saved:*\n%d", alert.SavedCount)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Skipped:*\n%d", alert.SkippedCount)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Failed:*\n%d", alert.FailedCount)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Duration:*\n%s", alert.Duration.Round(time.Millisecond))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Timestamp:*\n%s", alert.Timestamp.Format(time.RFC3339))},
				},
			},
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Failed Messages:*\n%s", failedList.String()),
				},
			},
		},
	}

	return json.Marshal(payload)
}

func (a *Alerter) buildDiscordPayload(alert RunAlert) ([]byte, error) {
	var failedList strings.Builder
	for _, f := range alert.Failures {
		failedList.WriteString(fmt.Sprintf("• **%s**: %s\n", shortHash(f.ContentHash), f.Error))
	}

	color := 16776960 // Yellow
	if alert.SavedCount == 0 && alert.FailedCount > 0 {
		color = 16711680 // Red
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("Scrape Run Alert: %s", alert.JobName),
				"description": fmt.Sprintf("%d of %d message(s) failed to parse", alert.FailedCount, alert.FoundCount),
				"color":       color,
				"fields": []map[string]interface{}{
					{"name": "Saved", "value": fmt.Sprintf("%d", alert.SavedCount), "inline": true},
					{"name": "Skipped", "value": fmt.Sprintf("%d", alert.SkippedCount), "inline": true},
					{"name": "Duration", "value": alert.Duration.Round(time.Millisecond).String(), "inline": true},
					{"name": "Failed Messages", "value": failedList.String(), "inline": false},
				},
				"timestamp": alert.Timestamp.Format(time.RFC3339),
			},
		},
	}

	return json.Marshal(payload)
}

func (a *Alerter) buildGenericPayload(alert RunAlert) ([]byte, error) {
	payload := map[string]interface{}{
		"alert_type":    "scrape_run_failure",
		"job_name":      alert.JobName,
		"found_count":   alert.FoundCount,
		"saved_count":   alert.SavedCount,
		"skipped_count": alert.SkippedCount,
		"failed_count":  alert.FailedCount,
		"duration_ms":   alert.Duration.Milliseconds(),
		"timestamp":     alert.Timestamp.Format(time.RFC3339),
		"failures":      alert.Failures,
	}

	return json.Marshal(payload)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
