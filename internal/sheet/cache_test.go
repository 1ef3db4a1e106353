package sheet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource counts fetches and optionally blocks until released.
type stubSource struct {
	calls   atomic.Int32
	body    []byte
	err     error
	release chan struct{}
}

func (s *stubSource) ID() string { return "stub" }

func (s *stubSource) Fetch(ctx context.Context) ([]byte, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.body, s.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingObserver struct {
	mu      sync.Mutex
	results []string
}

func (o *recordingObserver) ObserveFetch(_ string, result string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

func TestCachedSourceFreshnessWindow(t *testing.T) {
	src := &stubSource{body: []byte("v1")}
	clock := &fakeClock{now: time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)}
	obs := &recordingObserver{}
	c := NewCachedSource(src, NewMemoryCache(), time.Minute, WithClock(clock.Now), WithObserver(obs))

	for i := 0; i < 3; i++ {
		body, err := c.Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "v1", string(body))
	}
	assert.EqualValues(t, 1, src.calls.Load())

	clock.Advance(59 * time.Second)
	_, _ = c.Fetch(context.Background())
	assert.EqualValues(t, 1, src.calls.Load())

	clock.Advance(time.Second)
	_, _ = c.Fetch(context.Background())
	assert.EqualValues(t, 2, src.calls.Load())

	assert.Equal(t, []string{ResultOK, ResultCache, ResultCache, ResultCache, ResultOK}, obs.results)
}

func TestCachedSourceInvalidate(t *testing.T) {
	src := &stubSource{body: []byte("v1")}
	c := NewCachedSource(src, NewMemoryCache(), time.Hour)

	_, _ = c.Fetch(context.Background())
	c.Invalidate()
	_, _ = c.Fetch(context.Background())
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestCachedSourceDoesNotCacheErrors(t *testing.T) {
	src := &stubSource{err: errors.New("down")}
	c := NewCachedSource(src, NewMemoryCache(), time.Hour)

	_, err := c.Fetch(context.Background())
	assert.Error(t, err)
	_, err = c.Fetch(context.Background())
	assert.Error(t, err)
	assert.EqualValues(t, 2, src.calls.Load())
}

func TestCachedSourceCollapsesConcurrentMisses(t *testing.T) {
	src := &stubSource{body: []byte("v1"), release: make(chan struct{})}
	c := NewCachedSource(src, NewMemoryCache(), time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := c.Fetch(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "v1", string(body))
		}()
	}
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// Give the other callers time to join the in-flight fetch.
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.EqualValues(t, 1, src.calls.Load())
}

func TestCachedSourceTimeout(t *testing.T) {
	src := &stubSource{release: make(chan struct{})}
	c := NewCachedSource(src, NewMemoryCache(), time.Hour, WithTimeout(20*time.Millisecond))

	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCachedSourceSharedFetchSurvivesCallerCancel(t *testing.T) {
	src := &stubSource{body: []byte("v1"), release: make(chan struct{})}
	c := NewCachedSource(src, NewMemoryCache(), time.Hour, WithTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan []byte, 1)
	go func() {
		body, err := c.Fetch(context.Background())
		assert.NoError(t, err)
		second <- body
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(src.release)
	assert.Equal(t, "v1", string(<-second))
	assert.EqualValues(t, 1, src.calls.Load())

	body, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1", string(body), "shared result was cached")
	assert.EqualValues(t, 1, src.calls.Load())
}
