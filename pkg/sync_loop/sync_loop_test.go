package sync_loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unical/unical/internal/utils"
	"github.com/unical/unical/pkg/calendar"
)

const interval = 20 * time.Millisecond

var now = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

type deliveries struct {
	mu    sync.Mutex
	count int
	last  []calendar.Event
}

func (d *deliveries) onUpdate(events []calendar.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	d.last = events
}

func (d *deliveries) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

func setupLoop(t *testing.T, remote Fetcher, overlap OverlapPolicy) *Loop {
	loop, err := New(remote, Options{
		Interval:      interval,
		MonthsBack:    1,
		MonthsForward: 1,
		Overlap:       overlap,
		Clock:         utils.NewMockClock(now),
	})
	require.NoError(t, err)
	t.Cleanup(loop.Stop)
	return loop
}

func TestLoop_Start(t *testing.T) {
	t.Run("should deliver the first fetch before returning", func(t *testing.T) {
		remote := calendar.NewStubRemote()
		remote.Put(calendar.Event{Id: "a", Title: "In window", Start: now, End: now.Add(time.Hour)})
		remote.Put(calendar.Event{Id: "b", Title: "Too far", Start: now.AddDate(0, 3, 0), End: now.AddDate(0, 3, 0).Add(time.Hour)})
		loop := setupLoop(t, remote, OverlapSkip)
		d := &deliveries{}

		loop.Start(d.onUpdate)

		assert.Equal(t, 1, d.Count())
		require.Len(t, d.last, 1)
		assert.Equal(t, "a", d.last[0].Id)
		assert.True(t, loop.Status().Running)
		assert.Equal(t, now, loop.Status().LastSync)
	})

	t.Run("should keep a single schedule when started twice", func(t *testing.T) {
		remote := calendar.NewStubRemote()
		loop := setupLoop(t, remote, OverlapSkip)
		d := &deliveries{}

		loop.Start(d.onUpdate)
		loop.Start(d.onUpdate)

		assert.Len(t, loop.cron.Entries(), 1)
		assert.Equal(t, 1, remote.FetchCalls())
		assert.Eventually(t, func() bool { return d.Count() >= 3 }, time.Second, 5*time.Millisecond)
	})
}

func TestLoop_Stop(t *testing.T) {
	t.Run("should not deliver after stop", func(t *testing.T) {
		remote := calendar.NewStubRemote()
		loop := setupLoop(t, remote, OverlapSkip)
		d := &deliveries{}
		loop.Start(d.onUpdate)
		assert.Eventually(t, func() bool { return d.Count() >= 2 }, time.Second, 5*time.Millisecond)

		loop.Stop()
		stoppedAt := d.Count()
		time.Sleep(5 * interval)

		assert.Equal(t, stoppedAt, d.Count())
		assert.False(t, loop.Running())
		assert.False(t, loop.Status().Running)
	})

	t.Run("should abort an in-flight fetch", func(t *testing.T) {
		remote := calendar.NewStubRemote()
		loop := setupLoop(t, remote, OverlapSkip)
		d := &deliveries{}
		loop.Start(d.onUpdate)
		remote.SetFetchDelay(time.Hour)
		time.Sleep(2 * interval)
		delivered := d.Count()

		done := make(chan struct{})
		go func() {
			loop.Stop()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Stop did not return")
		}
		assert.Equal(t, delivered, d.Count())
	})

	t.Run("should cancel the first fetch", func(t *testing.T) {
		remote := calendar.NewStubRemote()
		remote.SetFetchDelay(time.Hour)
		loop := setupLoop(t, remote, OverlapSkip)
		d := &deliveries{}
		started := make(chan struct{})
		go func() {
			loop.Start(d.onUpdate)
			close(started)
		}()
		assert.Eventually(t, func() bool { return remote.FetchCalls() == 1 }, time.Second, 5*time.Millisecond)

		loop.Stop()

		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("Start did not return")
		}
		assert.False(t, loop.Running())
		assert.Nil(t, loop.cron)
		assert.Equal(t, 0, d.Count())
	})

	t.Run("should be a no-op when stopped", func(t *testing.T) {
		loop := setupLoop(t, calendar.NewStubRemote(), OverlapSkip)

		loop.Stop()

		assert.False(t, loop.Running())
	})

	t.Run("should start again after stop", func(t *testing.T) {
		remote := calendar.NewStubRemote()
		loop := setupLoop(t, remote, OverlapSkip)
		d := &deliveries{}
		loop.Start(d.onUpdate)
		loop.Stop()

		loop.Start(d.onUpdate)

		assert.True(t, loop.Running())
		assert.GreaterOrEqual(t, d.Count(), 2)
	})
}

func TestLoop_Failures(t *testing.T) {
	remote := calendar.NewStubRemote()
	remote.SetFetchErr(calendar.ErrNetwork)
	var reported atomic.Int32
	loop, err := New(remote, Options{
		Interval: interval,
		Clock:    utils.NewMockClock(now),
		OnError: func(err error) {
			assert.True(t, errors.Is(err, calendar.ErrNetwork))
			reported.Add(1)
		},
	})
	require.NoError(t, err)
	t.Cleanup(loop.Stop)
	d := &deliveries{}

	loop.Start(d.onUpdate)
	assert.Eventually(t, func() bool { return loop.Status().ConsecutiveFailures >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, d.Count())
	assert.True(t, loop.Running())
	assert.NotEmpty(t, loop.Status().LastError)

	remote.SetFetchErr(nil)
	assert.Eventually(t, func() bool { return d.Count() >= 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return loop.Status().ConsecutiveFailures == 0 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, reported.Load(), int32(3))
}

type slowFetcher struct {
	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int32
}

func (f *slowFetcher) FetchEvents(ctx context.Context, _, _ time.Time) ([]calendar.Event, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if f.calls.Add(1) == 1 {
		return []calendar.Event{}, nil
	}
	select {
	case <-time.After(5 * interval):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []calendar.Event{}, nil
}

func TestLoop_Overlap(t *testing.T) {
	t.Run("should skip ticks while a fetch is running", func(t *testing.T) {
		fetcher := &slowFetcher{}
		loop := setupLoop(t, fetcher, OverlapSkip)

		loop.Start(func([]calendar.Event) {})
		time.Sleep(12 * interval)
		loop.Stop()

		assert.Equal(t, int32(1), fetcher.maxActive.Load())
	})

	t.Run("should let ticks overlap when allowed", func(t *testing.T) {
		fetcher := &slowFetcher{}
		loop := setupLoop(t, fetcher, OverlapAllow)

		loop.Start(func([]calendar.Event) {})
		time.Sleep(12 * interval)
		loop.Stop()

		assert.Greater(t, fetcher.maxActive.Load(), int32(1))
	})
}

func TestNew_Schedule(t *testing.T) {
	_, err := New(calendar.NewStubRemote(), Options{Schedule: "not a schedule"})
	assert.Error(t, err)

	loop, err := New(calendar.NewStubRemote(), Options{Schedule: "@every 1m"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), loop.schedule.Next(now))
}
