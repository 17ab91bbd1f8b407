package worker

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// CancelFunc stops a scheduled callback from being re-armed. A cycle that is
// already running finishes its body.
type CancelFunc func()

// Scheduler runs fn repeatedly, waiting interval between the end of one run
// and the start of the next.
type Scheduler interface {
	Schedule(interval time.Duration, fn func(ctx context.Context)) CancelFunc
}

// TimeoutPoller is the production Scheduler. Every schedule gets one
// goroutine that runs fn right away, then sleeps interval after each
// completed run, so cycles of the same schedule never overlap.
type TimeoutPoller struct {
	ctx    context.Context
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewTimeoutPoller(ctx context.Context, logger *slog.Logger) *TimeoutPoller {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimeoutPoller{ctx: ctx, logger: logger.With("component", "worker")}
}

func (p *TimeoutPoller) Schedule(interval time.Duration, fn func(ctx context.Context)) CancelFunc {
	ctx, cancel := context.WithCancel(p.ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		timer := time.NewTimer(0)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("poll loop stopped")
				return
			case <-timer.C:
				// The in-flight cycle is not aborted on cancel; it runs on a
				// context detached from the loop's cancellation.
				fn(context.WithoutCancel(ctx))
				if ctx.Err() != nil {
					return
				}
				timer.Reset(interval)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }
}

// Wait blocks until every loop started by this poller has returned.
func (p *TimeoutPoller) Wait() {
	p.wg.Wait()
}

// ManualScheduler lets tests drive cycles explicitly with Tick.
type ManualScheduler struct {
	mu      sync.Mutex
	nextID  int
	entries map[int]manualEntry
}

type manualEntry struct {
	interval time.Duration
	fn       func(ctx context.Context)
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{entries: make(map[int]manualEntry)}
}

func (m *ManualScheduler) Schedule(interval time.Duration, fn func(ctx context.Context)) CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.entries[id] = manualEntry{interval: interval, fn: fn}
	return func() {
		m.mu.Lock()
		delete(m.entries, id)
		m.mu.Unlock()
	}
}

// Tick runs every armed callback once, in scheduling order. It returns the
// number of callbacks run.
func (m *ManualScheduler) Tick(ctx context.Context) int {
	m.mu.Lock()
	ids := make([]int, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	fns := make([]func(context.Context), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, m.entries[id].fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
	return len(fns)
}

// Armed returns how many callbacks are currently scheduled.
func (m *ManualScheduler) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Interval returns the interval of the oldest armed callback, or zero.
func (m *ManualScheduler) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	best, interval := 0, time.Duration(0)
	for id, e := range m.entries {
		if best == 0 || id < best {
			best, interval = id, e.interval
		}
	}
	return interval
}
