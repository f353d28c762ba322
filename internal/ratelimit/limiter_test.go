package ratelimit

import (
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/don-licenciao/MapyChat-web/internal/storage"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock, *storage.MemoryStorage) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := storage.NewMemoryStorage()
	return New(store, limit, window, WithClock(clock.Now)), clock, store
}

func TestAdmit_CountsDownThenRejects(t *testing.T) {
	l, clock, _ := newTestLimiter(10, 60000*time.Millisecond)

	for i := 1; i <= 10; i++ {
		d := l.Admit("1.2.3.4")
		require.True(t, d.Allowed, "call %d", i)
		assert.Equal(t, 10, d.Limit)
		assert.Equal(t, 10-i, d.Remaining, "call %d", i)
		assert.Equal(t, 60-(i-1), d.ResetSeconds, "call %d", i)
		clock.Advance(time.Second)
	}

	d := l.Admit("1.2.3.4")
	assert.False(t, d.Allowed)
	assert.GreaterOrEqual(t, d.RetryAfterSeconds, 1)
	assert.LessOrEqual(t, d.RetryAfterSeconds, 60)
	assert.Equal(t, 50, d.RetryAfterSeconds)
}

func TestAdmit_WindowResets(t *testing.T) {
	l, clock, _ := newTestLimiter(2, time.Minute)

	assert.True(t, l.Admit("c").Allowed)
	assert.True(t, l.Admit("c").Allowed)
	assert.False(t, l.Admit("c").Allowed)

	clock.Advance(time.Minute)

	d := l.Admit("c")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, 60, d.ResetSeconds)
}

func TestAdmit_RetryAfterRoundsUp(t *testing.T) {
	l, clock, _ := newTestLimiter(1, time.Minute)

	l.Admit("c")
	clock.Advance(59*time.Second + 500*time.Millisecond)

	d := l.Admit("c")
	assert.False(t, d.Allowed)
	assert.Equal(t, 1, d.RetryAfterSeconds)
}

func TestAdmit_ClientsAreIndependent(t *testing.T) {
	l, _, _ := newTestLimiter(1, time.Minute)

	assert.True(t, l.Admit("a").Allowed)
	assert.False(t, l.Admit("a").Allowed)
	assert.True(t, l.Admit("b").Allowed)
}

func TestAdmit_LazilyEvictsExpiredEntries(t *testing.T) {
	l, clock, store := newTestLimiter(5, time.Minute)

	for _, id := range []string{"a", "b", "c"} {
		l.Admit(id)
	}
	assert.Equal(t, 3, store.Len())

	clock.Advance(2 * time.Minute)
	l.Admit("d")
	assert.Equal(t, 1, store.Len())
}

func TestAdmit_ConcurrentSameClient(t *testing.T) {
	l, _, _ := newTestLimiter(10, time.Minute)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit("same").Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), allowed.Load())
}

func TestReconfigure(t *testing.T) {
	l, _, _ := newTestLimiter(10, time.Minute)

	l.Reconfigure(3, 30*time.Second)
	limit, window := l.Settings()
	assert.Equal(t, 3, limit)
	assert.Equal(t, 30*time.Second, window)

	l.Reconfigure(0, time.Second)
	limit, _ = l.Settings()
	assert.Equal(t, 3, limit)

	d := l.Admit("x")
	assert.Equal(t, 2, d.Remaining)
	assert.Equal(t, 30, d.ResetSeconds)
}

func TestClientID(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/chat", nil)
	r.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientID(r))

	r = httptest.NewRequest("POST", "/api/chat", nil)
	r.RemoteAddr = "198.51.100.2:5555"
	assert.Equal(t, "198.51.100.2", ClientID(r))

	r = httptest.NewRequest("POST", "/api/chat", nil)
	r.Header.Set("X-Forwarded-For", " , ")
	r.RemoteAddr = ""
	assert.Equal(t, Unknown, ClientID(r))
}
