// Package cron runs the scheduled bill digest: every consumer with saved
// usage receives an email with their cumulative bill.
package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bher20/wattscope/internal/alerting"
	"github.com/bher20/wattscope/internal/billing"
	"github.com/bher20/wattscope/internal/logging"
	"github.com/bher20/wattscope/internal/metrics"
	"github.com/bher20/wattscope/internal/notification"
	"github.com/bher20/wattscope/internal/storage"
)

const (
	DigestJobName = "bill_digest"
	// DefaultSchedule is 08:00 on the first of every month.
	DefaultSchedule = "0 8 1 * *"
	// ScheduleSetting overrides the configured schedule from storage.
	ScheduleSetting = "digest_schedule"

	digestLockKey int64 = 0x77617474
)

// Mailer delivers one HTML email.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Digest emails bill summaries to every consumer.
type Digest struct {
	st      storage.Storage
	billing *billing.Service
	mailer  Mailer
	alerter *alerting.Alerter
	log     *zap.Logger
}

func NewDigest(st storage.Storage, bill *billing.Service, mailer Mailer, alerter *alerting.Alerter) *Digest {
	if alerter == nil {
		alerter = alerting.NewAlerter(alerting.AlertConfig{})
	}
	return &Digest{
		st:      st,
		billing: bill,
		mailer:  mailer,
		alerter: alerter,
		log:     logging.Named("cron"),
	}
}

// Result counts what one digest run did.
type Result struct {
	// LockHeld is set when another instance owned the run.
	LockHeld bool
	Total    int
	Sent     int
	// Skipped users have no saved usage.
	Skipped  int
	Failures []alerting.UserFailure
}

// RunOnce performs a single digest run under the advisory lock, records the
// scheduled job row and metrics, and alerts on failures.
func (d *Digest) RunOnce(ctx context.Context) (Result, error) {
	started := time.Now()

	ok, err := d.st.AcquireAdvisoryLock(ctx, digestLockKey)
	if err != nil {
		metrics.UpdateJobMetrics(DigestJobName, started, err)
		return Result{}, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !ok {
		d.log.Info("advisory lock held by another worker, skipping run")
		return Result{LockHeld: true}, nil
	}
	defer func() {
		released, err := d.st.ReleaseAdvisoryLock(ctx, digestLockKey)
		if err != nil {
			d.log.Warn("release advisory lock failed", zap.Error(err))
		} else if !released {
			d.log.Warn("advisory lock was not held at release", zap.Int64("key", digestLockKey))
		}
	}()

	res, runErr := d.run(ctx)

	if runErr == nil && len(res.Failures) > 0 {
		runErr = fmt.Errorf("%d of %d digests failed", len(res.Failures), res.Total)
	}
	metrics.UpdateJobMetrics(DigestJobName, started, runErr)
	dur := time.Since(started)
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if err := d.st.UpdateScheduledJob(ctx, DigestJobName, started, dur, runErr == nil, errMsg); err != nil {
		d.log.Warn("update scheduled_jobs failed", zap.Error(err))
	}

	if len(res.Failures) > 0 {
		alert := alerting.JobAlert{
			JobName:       DigestJobName,
			TotalCount:    res.Total - res.Skipped,
			SuccessCount:  res.Sent,
			FailedCount:   len(res.Failures),
			Duration:      dur,
			FailedDetails: res.Failures,
			Timestamp:     started,
		}
		if err := d.alerter.SendJobAlert(ctx, alert); err != nil {
			d.log.Warn("send job alert failed", zap.Error(err))
		}
	}

	d.log.Info("digest run finished",
		zap.Int("users", res.Total),
		zap.Int("sent", res.Sent),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", len(res.Failures)),
		zap.Duration("duration", dur),
	)
	return res, runErr
}

func (d *Digest) run(ctx context.Context) (Result, error) {
	var res Result
	users, err := d.st.ListUsers(ctx)
	if err != nil {
		return res, fmt.Errorf("list users: %w", err)
	}
	res.Total = len(users)

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		sent, err := d.sendOne(ctx, u)
		switch {
		case err != nil:
			metrics.DigestEmailsTotal.WithLabelValues("failed").Inc()
			d.log.Warn("digest failed", zap.String("user_id", u.ID), zap.Error(err))
			res.Failures = append(res.Failures, alerting.UserFailure{UserID: u.ID, Email: u.Email, Error: err.Error()})
		case sent:
			metrics.DigestEmailsTotal.WithLabelValues("sent").Inc()
			res.Sent++
		default:
			metrics.DigestEmailsTotal.WithLabelValues("skipped").Inc()
			res.Skipped++
		}
	}
	return res, nil
}

func (d *Digest) sendOne(ctx context.Context, u storage.User) (bool, error) {
	sum, err := d.billing.SummaryFor(ctx, u)
	if err != nil {
		return false, err
	}
	if sum.Events == 0 {
		return false, nil
	}
	subject, body, err := notification.RenderDigest(u, *sum)
	if err != nil {
		return false, err
	}
	if err := d.mailer.SendEmail(ctx, u.Email, subject, body); err != nil {
		return false, err
	}
	return true, nil
}

// ResolveSchedule picks the stored schedule override, then configured, then
// the default, and checks that it parses.
func (d *Digest) ResolveSchedule(ctx context.Context, configured string) (string, error) {
	schedule := DefaultSchedule
	if configured != "" {
		schedule = configured
	}
	if v, err := d.st.GetSetting(ctx, ScheduleSetting); err == nil && v != "" {
		schedule = v
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return "", fmt.Errorf("invalid digest schedule %q: %w", schedule, err)
	}
	return schedule, nil
}

// Run schedules RunOnce and blocks until ctx is cancelled.
func (d *Digest) Run(ctx context.Context, schedule string) error {
	schedule, err := d.ResolveSchedule(ctx, schedule)
	if err != nil {
		return err
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	id, err := c.AddFunc(schedule, func() {
		if _, err := d.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error("digest run failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	d.log.Info("digest worker started", zap.String("schedule", schedule), zap.Time("next_run", c.Entry(id).Next))

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}
