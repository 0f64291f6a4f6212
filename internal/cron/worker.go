package cron

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/unofficial-homecase/homecasebot/internal/alerting"
	"github.com/unofficial-homecase/homecasebot/internal/config"
	"github.com/unofficial-homecase/homecasebot/internal/ingest"
	"github.com/unofficial-homecase/homecasebot/internal/metrics"
	"github.com/unofficial-homecase/homecasebot/internal/notification"
	"github.com/unofficial-homecase/homecasebot/internal/scraper"
	"github.com/unofficial-homecase/homecasebot/internal/storage"
)

const (
	jobName = "refresh_messages"
	lockKey = int64(4211)
)

// advisoryLocker is satisfied by the gorm and pgxpool backends. The
// memory backend does not support cross-process locking and is rejected.
type advisoryLocker interface {
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
}

// Run starts a worker that periodically executes the scrape-parse-notify
// workflow. A database advisory lock ensures that in a multi-instance
// deployment only one worker executes the job at a time.
func Run(ctx context.Context, cfg config.Config) error {
	st, err := storage.Open(ctx, storage.Config{Driver: cfg.StorageDriver, DSN: cfg.StorageDSN})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	locker, ok := st.(advisoryLocker)
	if !ok {
		return fmt.Errorf("storage driver %q does not support advisory locks", cfg.StorageDriver)
	}

	sc, err := scraper.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("build scraper: %w", err)
	}

	notifier := notification.NewService(st)
	alerter := alerting.NewAlerter(alerting.DefaultAlertConfig())
	runner := ingest.NewRunner(st, sc, notifier, alerter, cfg.MessageLimit)

	// Interval from config; integer seconds or a cron expression, with a
	// DB setting override checked every tick.
	intervalSetting := strconv.Itoa(int(cfg.RefreshInterval / time.Second))
	if val, err := st.GetSetting(ctx, "refresh_interval_seconds"); err == nil && val != "" {
		intervalSetting = val
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	getNextRun := func(setting string, lastRun time.Time) time.Time {
		if v, err := strconv.Atoi(setting); err == nil && v > 0 {
			return lastRun.Add(time.Duration(v) * time.Second)
		}
		if sched, err := cron.ParseStandard(setting); err == nil {
			return sched.Next(lastRun)
		}
		return lastRun.Add(6 * time.Hour)
	}

	// Run immediately on startup, then on schedule.
	nextRun := time.Now()

	log.Printf("cron worker starting, initial setting=%q driver=%s", intervalSetting, cfg.StorageDriver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := st.GetSetting(ctx, "refresh_interval_seconds"); err == nil && val != "" {
				if val != intervalSetting {
					log.Printf("cron: interval updated from %q to %q", intervalSetting, val)
					intervalSetting = val
					nextRun = getNextRun(intervalSetting, time.Now())
				}
			}

			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()

			ok, err := locker.AcquireAdvisoryLock(ctx, lockKey)
			if err != nil {
				log.Printf("cron: acquire advisory lock failed: %v", err)
				metrics.UpdateJobMetrics(jobName, started, err)
				nextRun = getNextRun(intervalSetting, time.Now())
				continue
			}
			if !ok {
				log.Printf("cron: advisory lock held by another worker, skipping run")
				nextRun = getNextRun(intervalSetting, time.Now())
				continue
			}

			var runErr error
			func() {
				defer func() {
					if _, err := locker.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
						log.Printf("cron: release advisory lock failed: %v", err)
					}
				}()

				var result *ingest.Result
				result, runErr = runner.Run(ctx)
				if runErr == nil && result != nil {
					log.Printf("cron: run found=%d saved=%d skipped=%d failed=%d",
						result.Found, result.Saved, result.Skipped, result.Failed)
				}
			}()

			metrics.UpdateJobMetrics(jobName, started, runErr)
			updatePoolMetrics(st, cfg.StorageDriver)

			dur := time.Since(started)
			errMsg := ""
			success := runErr == nil
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := st.UpdateScheduledJob(ctx, jobName, started, dur, success, errMsg); err != nil {
				log.Printf("cron: update scheduled_jobs failed: %v", err)
			}

			if runErr != nil {
				log.Printf("cron: job %s completed with error: %v (duration=%s)", jobName, runErr, dur)
			} else {
				log.Printf("cron: job %s completed successfully (duration=%s)", jobName, dur)
			}

			nextRun = getNextRun(intervalSetting, time.Now())
		}
	}
}

func updatePoolMetrics(st storage.Storage, driver string) {
	pg, ok := st.(*storage.PostgresPoolStorage)
	if !ok {
		return
	}
	stat := pg.Stat()
	metrics.UpdateDBPoolMetrics(driver,
		float64(stat.TotalConns()),
		float64(stat.IdleConns()),
		float64(stat.AcquiredConns()))
}
