package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/authcore/internal/database"
)

// Status is the state of the service or one of its dependencies.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

const (
	defaultPingTimeout    = 2 * time.Second
	defaultQueueThreshold = 0.9
)

// Component is the outcome of probing one dependency.
type Component struct {
	Name     string        `json:"component"`
	Status   Status        `json:"status"`
	Details  string        `json:"details,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the payload served by the health endpoints. Success is false as soon as
// any component is down or degraded.
type Report struct {
	Success    bool        `json:"success"`
	Status     Status      `json:"status"`
	Components []Component `json:"checks"`
	CheckedAt  time.Time   `json:"checked_at"`
}

// QueueReporter exposes the fill level of the notification queue.
type QueueReporter interface {
	QueueStats() (depth, capacity int)
}

// HealthManager answers liveness and readiness for the service. Readiness pings the
// database and watches notification queue saturation; liveness touches nothing.
type HealthManager struct {
	db             *gorm.DB
	pingTimeout    time.Duration
	queue          QueueReporter
	queueThreshold float64
	now            func() time.Time
	started        time.Time
}

// Option configures a HealthManager.
type Option func(*HealthManager)

// WithDatabase makes readiness depend on a successful ping within timeout.
func WithDatabase(db *gorm.DB, timeout time.Duration) Option {
	return func(m *HealthManager) {
		m.db = db
		if timeout > 0 {
			m.pingTimeout = timeout
		}
	}
}

// WithNotificationQueue reports degraded readiness once the queue fill ratio reaches
// the threshold, since further notifications would be dropped.
func WithNotificationQueue(queue QueueReporter) Option {
	return func(m *HealthManager) { m.queue = queue }
}

// WithQueueThreshold overrides the saturation ratio (0 < ratio <= 1).
func WithQueueThreshold(ratio float64) Option {
	return func(m *HealthManager) {
		if ratio > 0 && ratio <= 1 {
			m.queueThreshold = ratio
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *HealthManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewHealthManager constructs a manager. Without options readiness always succeeds.
func NewHealthManager(opts ...Option) *HealthManager {
	m := &HealthManager{
		pingTimeout:    defaultPingTimeout,
		queueThreshold: defaultQueueThreshold,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.started = m.now()
	return m
}

// Live reports that the process is serving requests.
func (m *HealthManager) Live() Report {
	now := m.now()
	return Report{
		Success: true,
		Status:  StatusUp,
		Components: []Component{{
			Name:    "process",
			Status:  StatusUp,
			Details: "uptime " + now.Sub(m.started).Truncate(time.Second).String(),
		}},
		CheckedAt: now.UTC(),
	}
}

// Ready probes the dependencies needed to serve authentication traffic.
func (m *HealthManager) Ready(ctx context.Context) Report {
	if ctx == nil {
		ctx = context.Background()
	}

	var components []Component
	if m.db != nil {
		components = append(components, m.pingDatabase(ctx))
	}
	if m.queue != nil {
		components = append(components, m.queueSaturation())
	}

	report := Report{Success: true, Status: StatusUp, Components: components, CheckedAt: m.now().UTC()}
	for _, c := range components {
		switch c.Status {
		case StatusDown:
			report.Success = false
			report.Status = StatusDown
		case StatusDegraded:
			report.Success = false
			if report.Status != StatusDown {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

func (m *HealthManager) pingDatabase(ctx context.Context) Component {
	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, m.pingTimeout)
	defer cancel()

	err := database.Ping(pingCtx, m.db)
	c := Component{Name: "database", Status: StatusUp, Duration: time.Since(start)}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		c.Status = StatusDown
		c.Details = fmt.Sprintf("ping timed out after %s", m.pingTimeout)
	case err != nil:
		c.Status = StatusDown
		c.Details = err.Error()
	}
	return c
}

func (m *HealthManager) queueSaturation() Component {
	depth, capacity := m.queue.QueueStats()
	c := Component{Name: "notifications", Status: StatusUp, Details: fmt.Sprintf("%d/%d queued", depth, capacity)}
	if capacity > 0 && float64(depth) >= m.queueThreshold*float64(capacity) {
		c.Status = StatusDegraded
	}
	return c
}
