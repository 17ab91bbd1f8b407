package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutPollerRunsUntilCancelled(t *testing.T) {
	p := NewTimeoutPoller(context.Background(), nil)

	var runs atomic.Int32
	cancel := p.Schedule(5*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	p.Wait()

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no cycles after cancel")
}

func TestTimeoutPollerCyclesDoNotOverlap(t *testing.T) {
	p := NewTimeoutPoller(context.Background(), nil)

	var inFlight, maxInFlight, runs atomic.Int32
	cancel := p.Schedule(time.Millisecond, func(ctx context.Context) {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		runs.Add(1)
	})

	require.Eventually(t, func() bool { return runs.Load() >= 4 }, time.Second, time.Millisecond)
	cancel()
	p.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestTimeoutPollerCancelFromInsideCycle(t *testing.T) {
	p := NewTimeoutPoller(context.Background(), nil)

	var runs atomic.Int32
	var cancel CancelFunc
	ready := make(chan struct{})
	cancel = p.Schedule(time.Millisecond, func(ctx context.Context) {
		<-ready
		runs.Add(1)
		cancel()
		assert.NoError(t, ctx.Err(), "in-flight cycle keeps a live context")
	})
	close(ready)

	p.Wait()
	assert.Equal(t, int32(1), runs.Load())
}

func TestManualScheduler(t *testing.T) {
	m := NewManualScheduler()
	ctx := context.Background()

	var order []string
	cancelA := m.Schedule(time.Second, func(context.Context) { order = append(order, "a") })
	m.Schedule(2*time.Second, func(context.Context) { order = append(order, "b") })

	assert.Equal(t, 2, m.Armed())
	assert.Equal(t, time.Second, m.Interval())
	assert.Equal(t, 2, m.Tick(ctx))
	assert.Equal(t, []string{"a", "b"}, order)

	cancelA()
	cancelA()
	assert.Equal(t, 1, m.Armed())
	assert.Equal(t, 1, m.Tick(ctx))
	assert.Equal(t, []string{"a", "b", "b"}, order)
}
