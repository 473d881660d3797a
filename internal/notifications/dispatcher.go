package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/charlesng35/authcore/internal/auth"
	"github.com/charlesng35/authcore/pkg/logger"
	"github.com/charlesng35/authcore/pkg/mail"
	"github.com/charlesng35/authcore/pkg/metrics"
)

var (
	// ErrQueueFull is returned by Send when the delivery queue has no free slot.
	ErrQueueFull = errors.New("notifications: queue full")
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("notifications: dispatcher closed")
)

const (
	defaultWorkers     = 2
	defaultQueueSize   = 100
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond
	maxBackoff         = 30 * time.Second
)

// Config controls the worker pool and retry policy of a Dispatcher.
type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
	AppName     string
	FrontendURL string
	Clock       func() time.Time
	Logger      *zap.Logger
}

type job struct {
	kind    auth.NotificationKind
	userID  string
	message mail.Message
}

// Dispatcher renders notifications and delivers them through a Mailer from a pool of
// background workers. Send never blocks the caller.
type Dispatcher struct {
	mailer      mail.Mailer
	renderer    *Renderer
	maxAttempts uint64
	backoff     time.Duration
	log         *zap.Logger

	queue  chan job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the workers. Call Close to drain the queue and stop them.
func NewDispatcher(mailer mail.Mailer, cfg Config) (*Dispatcher, error) {
	if mailer == nil {
		return nil, errors.New("notifications: mailer is required")
	}

	renderer, err := NewRenderer(cfg.AppName, cfg.FrontendURL, cfg.Clock)
	if err != nil {
		return nil, err
	}

	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}

	log := cfg.Logger
	if log == nil {
		log = logger.WithModule("notifications")
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		mailer:      mailer,
		renderer:    renderer,
		maxAttempts: uint64(cfg.MaxAttempts),
		backoff:     cfg.Backoff,
		log:         log,
		queue:       make(chan job, cfg.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	return d, nil
}

// Send renders the notification and queues it for delivery.
func (d *Dispatcher) Send(_ context.Context, recipient auth.Recipient, kind auth.NotificationKind, payload auth.NotificationPayload) error {
	if strings.TrimSpace(recipient.Email) == "" {
		return errors.New("notifications: recipient email is required")
	}

	rendered, err := d.renderer.Render(kind, recipient, payload)
	if err != nil {
		return err
	}

	item := job{
		kind:   kind,
		userID: recipient.UserID,
		message: mail.Message{
			To:       []string{recipient.Email},
			Subject:  rendered.Subject,
			Body:     rendered.Text,
			HTMLBody: rendered.HTML,
		},
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- item:
		return nil
	default:
		metrics.Notifications.WithLabelValues(string(kind), "dropped").Inc()
		return ErrQueueFull
	}
}

// Close stops accepting notifications and waits for queued ones to be delivered. When
// ctx ends first, pending retries are abandoned and ctx's error is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// QueueStats reports the number of queued notifications and the queue capacity.
func (d *Dispatcher) QueueStats() (depth, capacity int) {
	return len(d.queue), cap(d.queue)
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for item := range d.queue {
		d.deliver(item)
	}
}

func (d *Dispatcher) deliver(item job) {
	backoff := retry.WithCappedDuration(maxBackoff, retry.NewExponential(d.backoff))
	backoff = retry.WithMaxRetries(d.maxAttempts-1, backoff)

	attempts := 0
	err := retry.Do(d.ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := d.mailer.Send(ctx, item.message)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, mail.ErrSMTPDisabled):
			return err
		default:
			d.log.Debug("mail delivery attempt failed",
				zap.String("kind", string(item.kind)),
				zap.Int("attempt", attempts),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
	})

	switch {
	case err == nil:
		metrics.Notifications.WithLabelValues(string(item.kind), "sent").Inc()
	case errors.Is(err, mail.ErrSMTPDisabled):
		metrics.Notifications.WithLabelValues(string(item.kind), "skipped").Inc()
		d.log.Info("mail delivery disabled, notification skipped",
			zap.String("kind", string(item.kind)),
			zap.String("user_id", item.userID),
		)
	default:
		metrics.Notifications.WithLabelValues(string(item.kind), "failed").Inc()
		d.log.Error("mail delivery failed",
			zap.String("kind", string(item.kind)),
			zap.String("user_id", item.userID),
			zap.Int("attempts", attempts),
			zap.Error(fmt.Errorf("notifications: deliver: %w", err)),
		)
	}
}
