package cache

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

func constant(v int, calls *atomic.Int64) func(context.Context) (int, error) {
	return func(context.Context) (int, error) {
		calls.Add(1)
		return v, nil
	}
}

func TestGetOrComputeHitAfterMiss(t *testing.T) {
	c := New[int](Config{Size: 10, TTL: time.Minute}, nil)
	var calls atomic.Int64

	v, hit, err := c.GetOrCompute(context.Background(), "k", constant(7, &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, v)

	v, hit, err = c.GetOrCompute(context.Background(), "k", constant(8, &calls))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 7, v)

	assert.Equal(t, int64(1), calls.Load())
	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestConcurrentCallersShareOneComputation(t *testing.T) {
	c := New[string](Config{}, nil)
	var calls atomic.Int64
	gate := make(chan struct{})

	compute := func(context.Context) (string, error) {
		calls.Add(1)
		<-gate
		return "result", nil
	}

	const callers = 50
	var wg sync.WaitGroup
	results := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrCompute(context.Background(), "same", compute)
			if err != nil {
				results <- err.Error()
				return
			}
			results <- v
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(results)

	for v := range results {
		assert.Equal(t, "result", v)
	}
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, int64(1), c.Stats().Computations)
}

func TestFailureIsNotCached(t *testing.T) {
	c := New[int](Config{}, nil)
	boom := errors.New("scoring unavailable")
	var calls atomic.Int64

	_, _, err := c.GetOrCompute(context.Background(), "k", func(context.Context) (int, error) {
		calls.Add(1)
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, hit, err := c.GetOrCompute(context.Background(), "k", constant(3, &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, v)
	assert.Equal(t, int64(2), calls.Load())
}

func TestEntriesExpireByAge(t *testing.T) {
	c := New[int](Config{Size: 10, TTL: time.Minute}, nil)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	var calls atomic.Int64

	_, _, err := c.GetOrCompute(context.Background(), "k", constant(1, &calls))
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, hit, _ := c.GetOrCompute(context.Background(), "k", constant(2, &calls))
	assert.True(t, hit)

	now = now.Add(time.Second)
	v, hit, _ := c.GetOrCompute(context.Background(), "k", constant(2, &calls))
	assert.False(t, hit)
	assert.Equal(t, 2, v)
	assert.Equal(t, int64(1), c.Stats().Expired)
}

func TestLeastRecentlyUsedIsEvicted(t *testing.T) {
	c := New[int](Config{Size: 2}, nil)
	var calls atomic.Int64
	ctx := context.Background()

	_, _, _ = c.GetOrCompute(ctx, "a", constant(1, &calls))
	_, _, _ = c.GetOrCompute(ctx, "b", constant(2, &calls))
	_, hit, _ := c.GetOrCompute(ctx, "a", constant(1, &calls))
	require.True(t, hit)

	_, _, _ = c.GetOrCompute(ctx, "c", constant(3, &calls))

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCallerCancellationDoesNotAbortSharedComputation(t *testing.T) {
	c := New[int](Config{}, nil)
	gate := make(chan struct{})
	done := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(done)
		_, _, err := c.GetOrCompute(ctx, "k", func(computeCtx context.Context) (int, error) {
			<-gate
			return 9, computeCtx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
	}()

	cancel()
	<-done
	close(gate)

	require.Eventually(t, func() bool {
		v, ok := c.Get("k")
		return ok && v == 9
	}, time.Second, 5*time.Millisecond)
}

func TestPurge(t *testing.T) {
	c := New[int](Config{}, nil)
	var calls atomic.Int64
	_, _, _ = c.GetOrCompute(context.Background(), "k", constant(1, &calls))
	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Stats().Evictions)
}

func TestFingerprint(t *testing.T) {
	type opts struct {
		IncludeExplanation bool              `json:"includeExplanation"`
		Tags               map[string]string `json:"tags"`
	}

	a, err := Fingerprint("cand-1", "job-1", opts{Tags: map[string]string{"x": "1", "y": "2"}})
	require.NoError(t, err)
	b, err := Fingerprint(" cand-1 ", "job-1", opts{Tags: map[string]string{"y": "2", "x": "1"}})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := Fingerprint("cand-1", "job-2", opts{Tags: map[string]string{"x": "1", "y": "2"}})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	// the separator keeps ("ab","c") and ("a","bc") apart
	d, _ := Fingerprint("ab", "c", nil)
	e, _ := Fingerprint("a", "bc", nil)
	assert.NotEqual(t, d, e)

	_, err = Fingerprint("c", "j", func() {})
	assert.Error(t, err)
}
