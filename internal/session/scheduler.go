package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/sattrack/internal/metrics"
)

// DefaultTick is the scheduler interval used when none is configured.
const DefaultTick = time.Second

// Scheduler advances the session clock on an interval and publishes the
// visibility frame of the tracked satellite. Pass lists are not computed here.
type Scheduler struct {
	session  *Session
	interval time.Duration
	logger   *slog.Logger

	latest atomic.Pointer[Frame]

	mu     sync.Mutex
	subs   map[int]chan Frame
	nextID int
}

// NewScheduler creates a scheduler for s. A non-positive interval falls back
// to DefaultTick.
func NewScheduler(s *Session, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultTick
	}
	return &Scheduler{
		session:  s,
		interval: interval,
		logger:   logger,
		subs:     make(map[int]chan Frame),
	}
}

// Interval returns the tick interval.
func (sc *Scheduler) Interval() time.Duration {
	return sc.interval
}

// Run ticks until ctx is cancelled.
func (sc *Scheduler) Run(ctx context.Context) {
	sc.logger.Info("scheduler started",
		"component", "scheduler",
		"interval_ms", sc.interval.Milliseconds(),
	)
	sc.Step()

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sc.logger.Info("scheduler stopped", "component", "scheduler")
			return
		case <-ticker.C:
			sc.Step()
		}
	}
}

// Step performs one tick: advance the clock, evaluate, publish.
func (sc *Scheduler) Step() Frame {
	clock := sc.session.Clock()
	t := clock.Tick()
	metrics.SetClockSpeed(clock.Speed())

	f := Evaluate(sc.session.View(), t)
	sc.publish(f)
	return f
}

// Latest returns the most recent frame, or false before the first tick.
func (sc *Scheduler) Latest() (Frame, bool) {
	f := sc.latest.Load()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

// Subscribe registers a listener. Each subscriber holds at most one pending
// frame; a slow reader sees the newest frame, never a backlog. The returned
// function unsubscribes and closes the channel.
func (sc *Scheduler) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, 1)

	sc.mu.Lock()
	id := sc.nextID
	sc.nextID++
	sc.subs[id] = ch
	sc.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			sc.mu.Lock()
			delete(sc.subs, id)
			sc.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of registered listeners.
func (sc *Scheduler) Subscribers() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.subs)
}

func (sc *Scheduler) publish(f Frame) {
	sc.latest.Store(&f)

	sc.mu.Lock()
	defer sc.mu.Unlock()
	for _, ch := range sc.subs {
		select {
		case ch <- f:
		default:
			// Replace the stale pending frame.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- f:
			default:
			}
		}
	}
}
