package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryRateStore(func() time.Time { return now })

	r := gin.New()
	r.Use(RateLimit(store, 2, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.ServeHTTP(w, req)
		return w
	}

	// First two requests should pass
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do().Code)
	}

	// Third request within window should be rate-limited
	w := do()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, w.Header().Get("Retry-After"))

	// After window resets, should pass again
	now = now.Add(time.Minute + time.Second)
	require.Equal(t, http.StatusOK, do().Code)
	require.Len(t, store.data, 1)
}

type brokenRateStore struct{}

func (brokenRateStore) Increment(context.Context, string, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("unavailable")
}

func TestRateLimitFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit(brokenRateStore{}, 1, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

type fakeCounter struct {
	counts map[string]int64
}

func (f *fakeCounter) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	f.counts[key]++
	return f.counts[key], window, nil
}

func TestCounterRateStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	require.Nil(t, NewCounterRateStore(nil))

	counter := &fakeCounter{counts: map[string]int64{}}
	r := gin.New()
	r.Use(RateLimit(NewCounterRateStore(counter), 1, time.Minute))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Equal(t, "61", second.Header().Get("Retry-After"))
	require.Len(t, counter.counts, 1)
}
