package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(fn http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(1_000_000))

	w := serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReadyEndpoint_Gate(t *testing.T) {
	h := New()

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())
	assert.False(t, h.IsReady())

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint).Code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h.ReadyEndpoint).Code)
}

func TestProbe_Thresholds(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	p := newProbe("postgres", time.Second, PingCheck("postgres", pingerFunc(func(context.Context) error {
		if failing.Load() {
			return errors.New("connection refused")
		}
		return nil
	})))

	for range FailureThreshold - 1 {
		p.run(context.Background())
		assert.True(t, p.healthy.Load(), "below threshold")
	}
	p.run(context.Background())
	assert.False(t, p.healthy.Load())

	failed := failures([]*probe{p})
	assert.Equal(t, map[string]string{"postgres": "ping postgres: connection refused"}, failed)

	failing.Store(false)
	p.run(context.Background())
	assert.True(t, p.healthy.Load())
	assert.Nil(t, p.lastErr.Load())
}

func TestProbe_Timeout(t *testing.T) {
	p := newProbe("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	for range FailureThreshold {
		p.run(context.Background())
	}
	assert.False(t, p.healthy.Load())
}

func TestReadyEndpoint_FailingCheckListed(t *testing.T) {
	h := New()
	h.AddReadinessCheck("mongo", time.Second, func(context.Context) error { return errors.New("no reachable servers") })
	h.AddReadinessCheck("redis", time.Second, func(context.Context) error { return nil })
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)
	defer h.Stop()

	require.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"mongo":"no reachable servers"}}`, w.Body.String())
}

func TestStop(t *testing.T) {
	var runs atomic.Int32
	h := New()
	h.AddLivenessCheck("count", time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	h.Start(context.Background(), time.Millisecond)
	require.Eventually(t, func() bool { return runs.Load() > 0 }, time.Second, time.Millisecond)

	h.Stop()
	h.Stop()
	time.Sleep(10 * time.Millisecond)
	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), after+1)
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
