package monitoring_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authcore/internal/database"
	testutil "github.com/charlesng35/authcore/internal/database/testutil"
	"github.com/charlesng35/authcore/internal/monitoring"
)

type fixedQueue struct {
	depth, capacity int
}

func (q fixedQueue) QueueStats() (int, int) { return q.depth, q.capacity }

func TestReadyWithoutDependencies(t *testing.T) {
	t.Parallel()

	report := monitoring.NewHealthManager().Ready(context.Background())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Empty(t, report.Components)
}

func TestReadyPingsDatabase(t *testing.T) {
	t.Parallel()

	db := testutil.MustOpenTestDB(t)
	manager := monitoring.NewHealthManager(monitoring.WithDatabase(db, time.Second))

	report := manager.Ready(context.Background())
	require.True(t, report.Success)
	require.Len(t, report.Components, 1)
	require.Equal(t, "database", report.Components[0].Name)
	require.Equal(t, monitoring.StatusUp, report.Components[0].Status)

	require.NoError(t, database.Close(db))
	report = manager.Ready(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.NotEmpty(t, report.Components[0].Details)
}

func TestReadyDegradesOnQueueSaturation(t *testing.T) {
	t.Parallel()

	report := monitoring.NewHealthManager(monitoring.WithNotificationQueue(fixedQueue{depth: 3, capacity: 100})).
		Ready(context.Background())
	require.True(t, report.Success)
	require.Equal(t, "3/100 queued", report.Components[0].Details)

	report = monitoring.NewHealthManager(monitoring.WithNotificationQueue(fixedQueue{depth: 90, capacity: 100})).
		Ready(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Status)

	report = monitoring.NewHealthManager(
		monitoring.WithNotificationQueue(fixedQueue{depth: 90, capacity: 100}),
		monitoring.WithQueueThreshold(0.95),
	).Ready(context.Background())
	require.True(t, report.Success)
}

func TestLiveReportsUptime(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	manager := monitoring.NewHealthManager(monitoring.WithClock(clock))

	now = now.Add(90 * time.Second)
	report := manager.Live()
	require.True(t, report.Success)
	require.Equal(t, "uptime 1m30s", report.Components[0].Details)
	require.True(t, report.CheckedAt.Equal(now))
}
