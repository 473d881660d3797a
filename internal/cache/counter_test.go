package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authcore/internal/database/testutil"
	"github.com/charlesng35/authcore/internal/models"
)

func newTestCounter(t *testing.T) (*DatabaseCounter, *time.Time) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	counter := NewDatabaseCounter(db)
	counter.now = func() time.Time { return now }
	return counter, &now
}

func TestDatabaseCounter_IncrementWithinWindow(t *testing.T) {
	counter, now := newTestCounter(t)
	ctx := context.Background()

	count, ttl, err := counter.IncrementWithTTL(ctx, "login|1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	*now = now.Add(20 * time.Second)
	count, ttl, err = counter.IncrementWithTTL(ctx, "login|1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 40*time.Second, ttl)

	count, _, err = counter.IncrementWithTTL(ctx, "login|5.6.7.8", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestDatabaseCounter_WindowResets(t *testing.T) {
	counter, now := newTestCounter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := counter.IncrementWithTTL(ctx, "k", time.Minute)
		require.NoError(t, err)
	}

	*now = now.Add(time.Minute)
	count, ttl, err := counter.IncrementWithTTL(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)
}

func TestDatabaseCounter_DeleteExpired(t *testing.T) {
	counter, now := newTestCounter(t)
	ctx := context.Background()

	_, _, err := counter.IncrementWithTTL(ctx, "old", time.Minute)
	require.NoError(t, err)
	_, _, err = counter.IncrementWithTTL(ctx, "fresh", time.Hour)
	require.NoError(t, err)

	removed, err := counter.DeleteExpired(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var remaining []models.RateCounter
	require.NoError(t, counter.db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "fresh", remaining[0].Key)
}

func TestDatabaseCounter_NilReceiver(t *testing.T) {
	var counter *DatabaseCounter
	_, _, err := counter.IncrementWithTTL(context.Background(), "k", time.Minute)
	require.Error(t, err)
	require.Nil(t, NewDatabaseCounter(nil))
}
