package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/authcore/pkg/logger"
	"github.com/charlesng35/authcore/pkg/metrics"
)

const (
	defaultAuditRetentionDays = 90
	defaultSchedule           = "@every 1h"
)

// SessionPurger removes dead sessions and counts the live ones.
type SessionPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	CountActive(ctx context.Context, now time.Time) (int64, error)
}

// TokenPurger removes expired action tokens.
type TokenPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// CounterPurger removes rate limit counters whose window has closed.
type CounterPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// AuditPruner enforces the audit log retention window.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// Stats captures the number of records removed by one cleanup run.
type Stats struct {
	Sessions       int64
	ActionTokens   int64
	AuditLogs      int64
	RateCounters   int64
	ActiveSessions int64
}

// Cleaner coordinates background maintenance: purging expired sessions and action
// tokens, and pruning stale audit logs.
type Cleaner struct {
	sessions  SessionPurger
	tokens    TokenPurger
	audit     AuditPruner
	counters  CounterPurger
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int
	schedule  string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithSchedule overrides the cron specification of the cleanup run.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// WithCounterPurger adds expired rate limit counters to each run.
func WithCounterPurger(counters CounterPurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.counters = counters
	}
}

// WithLogger overrides the module logger.
func WithLogger(log *zap.Logger) Option {
	return func(cleaner *Cleaner) {
		if log != nil {
			cleaner.log = log
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup step being skipped.
func NewCleaner(sessions SessionPurger, tokens TokenPurger, audit AuditPruner, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:  sessions,
		tokens:    tokens,
		audit:     audit,
		now:       time.Now,
		retention: defaultAuditRetentionDays,
		schedule:  defaultSchedule,
		log:       logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

func (c *Cleaner) enabled() bool {
	return c.sessions != nil || c.tokens != nil || c.audit != nil || c.counters != nil
}

// Start registers the cleanup job with the cron scheduler and launches it if at least
// one cleanup step is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled() {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		stats, err := c.Run(context.Background())
		if err != nil {
			c.log.Warn("cleanup failed", zap.Error(err))
			return
		}
		c.log.Debug("cleanup finished",
			zap.Int64("sessions", stats.Sessions),
			zap.Int64("action_tokens", stats.ActionTokens),
			zap.Int64("audit_logs", stats.AuditLogs),
		)
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	_, err := c.Run(ctx)
	return err
}

// Run executes every enabled step even when an earlier one fails and returns the
// combined error. The active session gauge is resynchronised after purging.
func (c *Cleaner) Run(ctx context.Context) (Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		stats Stats
		errs  error
	)
	now := c.now()

	if c.sessions != nil {
		removed, err := c.sessions.DeleteExpired(ctx, now)
		errs = multierr.Append(errs, err)
		stats.Sessions = removed

		active, err := c.sessions.CountActive(ctx, now)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			stats.ActiveSessions = active
			metrics.ActiveSessions.Set(float64(active))
		}
	}

	if c.tokens != nil {
		removed, err := c.tokens.DeleteExpired(ctx, now)
		errs = multierr.Append(errs, err)
		stats.ActionTokens = removed
	}

	if c.counters != nil {
		removed, err := c.counters.DeleteExpired(ctx, now)
		errs = multierr.Append(errs, err)
		stats.RateCounters = removed
	}

	if c.audit != nil && c.retention > 0 {
		removed, err := c.audit.CleanupOlderThan(ctx, c.retention)
		errs = multierr.Append(errs, err)
		stats.AuditLogs = removed
	}

	return stats, errs
}
