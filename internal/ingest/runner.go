package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/unofficial-homecase/homecasebot/internal/alerting"
	"github.com/unofficial-homecase/homecasebot/internal/consumption"
	"github.com/unofficial-homecase/homecasebot/internal/metrics"
	"github.com/unofficial-homecase/homecasebot/internal/storage"
)

// MessageLocator finds raw consumption messages on the portal. It is
// implemented by scraper.Scraper.
type MessageLocator interface {
	Login(ctx context.Context) error
	NavigateToMessages(ctx context.Context) error
	FindConsumptionMessages(ctx context.Context, limit int) ([]string, error)
}

// Notifier delivers a report for a newly stored message. It is implemented
// by notification.Service.
type Notifier interface {
	SendConsumptionReport(ctx context.Context, msg *consumption.ParsedMessage) error
}

// Result summarizes one run of the scrape-parse-notify workflow.
type Result struct {
	Found   int
	Saved   int
	Skipped int
	Failed  int
	// NewMessages holds the messages persisted during this run, in the
	// order they were found (newest first).
	NewMessages []*consumption.ParsedMessage
	failures    []alerting.ParseFailure
}

// NoNewMessages reports whether the run completed without storing
// anything, either because nothing was found or everything was known.
func (r *Result) NoNewMessages() bool {
	return r.Saved == 0 && r.Failed == 0
}

// Runner executes the full workflow: log in, locate candidate messages,
// parse them, persist the new ones, and send a report per new message.
type Runner struct {
	storage  storage.Storage
	locator  MessageLocator
	notifier Notifier
	alerter  *alerting.Alerter
	limit    int
}

func NewRunner(st storage.Storage, locator MessageLocator, notifier Notifier, alerter *alerting.Alerter, limit int) *Runner {
	if limit <= 0 {
		limit = 24
	}
	return &Runner{
		storage:  st,
		locator:  locator,
		notifier: notifier,
		alerter:  alerter,
		limit:    limit,
	}
}

// Run executes one workflow pass. A parse failure on one message does not
// abort the batch; it is counted, alerted on, and the run continues.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	result, err := r.run(ctx)
	metrics.RunDurationSeconds.Observe(time.Since(started).Seconds())

	switch {
	case err != nil:
		metrics.RunsTotal.WithLabelValues("error").Inc()
	case result.NoNewMessages():
		metrics.RunsTotal.WithLabelValues("no_new").Inc()
	default:
		metrics.RunsTotal.WithLabelValues("success").Inc()
	}

	if r.alerter != nil && result != nil && result.Failed > 0 {
		r.sendAlert(ctx, result, started)
	}

	return result, err
}

func (r *Runner) run(ctx context.Context) (*Result, error) {
	result := &Result{}

	if err := r.locator.Login(ctx); err != nil {
		return result, fmt.Errorf("login: %w", err)
	}
	if err := r.locator.NavigateToMessages(ctx); err != nil {
		return result, fmt.Errorf("navigate to messages: %w", err)
	}

	rawMessages, err := r.locator.FindConsumptionMessages(ctx, r.limit)
	if err != nil {
		return result, fmt.Errorf("find messages: %w", err)
	}
	result.Found = len(rawMessages)
	metrics.MessagesFoundTotal.Add(float64(len(rawMessages)))

	if len(rawMessages) == 0 {
		log.Printf("ingest: no consumption messages found")
		return result, nil
	}
	log.Printf("ingest: found %d candidate consumption message(s)", len(rawMessages))

	for _, raw := range rawMessages {
		parsed, err := consumption.ParseMessage(raw)
		if err != nil {
			result.Failed++
			recordParseFailure(result, raw, err)
			continue
		}

		exists, err := r.storage.MessageExists(ctx, parsed.ContentHash)
		if err != nil {
			return result, fmt.Errorf("check message exists: %w", err)
		}
		if exists {
			log.Printf("ingest: message for %s %d already processed, skipping", parsed.Month, parsed.Year)
			result.Skipped++
			metrics.MessagesSkippedTotal.Inc()
			continue
		}

		payload, err := json.Marshal(parsed.ToMap())
		if err != nil {
			return result, fmt.Errorf("encode parsed data: %w", err)
		}

		err = r.storage.SaveMessage(ctx, storage.ConsumptionMessage{
			ContentHash: parsed.ContentHash,
			MessageDate: parsed.MessageDate,
			RawMessage:  parsed.RawMessage,
			ParsedData:  payload,
		})
		if errors.Is(err, storage.ErrAlreadyExists) {
			// Lost a race with a concurrent run; treat like the exists check.
			result.Skipped++
			metrics.MessagesSkippedTotal.Inc()
			continue
		}
		if err != nil {
			return result, fmt.Errorf("save message: %w", err)
		}

		log.Printf("ingest: saved message for %s %d", parsed.Month, parsed.Year)
		result.Saved++
		metrics.MessagesSavedTotal.Inc()
		result.NewMessages = append(result.NewMessages, parsed)
	}

	if len(result.NewMessages) == 0 {
		log.Printf("ingest: all fetched messages were already processed")
		return result, nil
	}

	if r.notifier == nil {
		return result, nil
	}

	log.Printf("ingest: sending notifications for %d new message(s)", len(result.NewMessages))
	for _, parsed := range result.NewMessages {
		if err := r.notifier.SendConsumptionReport(ctx, parsed); err != nil {
			metrics.EmailsSentTotal.WithLabelValues("error").Inc()
			return result, fmt.Errorf("send report for %s %d: %w", parsed.Month, parsed.Year, err)
		}
		metrics.EmailsSentTotal.WithLabelValues("success").Inc()
	}

	return result, nil
}

func recordParseFailure(result *Result, raw string, err error) {
	section := "message"
	var nf *consumption.NotFoundError
	if errors.As(err, &nf) && nf.Section != "" {
		section = nf.Section
	}
	metrics.ParseErrorsTotal.WithLabelValues(section).Inc()
	log.Printf("ingest: failed to parse message: %v", err)

	result.failures = append(result.failures, alerting.ParseFailure{
		ContentHash: consumption.ContentHash(raw),
		Error:       err.Error(),
	})
}

func (r *Runner) sendAlert(ctx context.Context, result *Result, started time.Time) {
	alert := alerting.RunAlert{
		JobName:      "refresh_messages",
		FoundCount:   result.Found,
		SavedCount:   result.Saved,
		SkippedCount: result.Skipped,
		FailedCount:  result.Failed,
		Duration:     time.Since(started),
		Failures:     result.failures,
		Timestamp:    time.Now(),
	}
	if err := r.alerter.SendRunAlert(ctx, alert); err != nil {
		log.Printf("ingest: failed to send alert: %v", err)
	}
}
