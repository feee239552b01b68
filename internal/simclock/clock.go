// Package simclock is the simulated time cursor. It is the only component that
// reads wall time; everything else asks it for "now".
package simclock

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrInvalidSpeed is returned by SetSpeed for non-positive or non-finite values.
var ErrInvalidSpeed = errors.New("speed must be positive and finite")

// JogStep is the virtual time moved per unit of jog input at speed 1.
const JogStep = 600 * time.Millisecond

// SpeedMenu lists the speed multipliers offered to users.
var SpeedMenu = []float64{1, 10, 60, 300, 600, 1800, 3600}

// WallClock returns the current wall time.
type WallClock func() time.Time

// State is the clock's play state.
type State int

const (
	Paused State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "paused"
}

// Bounds limits how far virtual time may drift from wall time. Zero fields are
// unbounded. Reaching a bound while playing clamps and pauses.
type Bounds struct {
	Before time.Duration
	After  time.Duration
}

// DefaultBounds allows one day into the past and three into the future.
var DefaultBounds = Bounds{Before: 24 * time.Hour, After: 72 * time.Hour}

// Snapshot is a consistent view of the clock.
type Snapshot struct {
	Time          time.Time `json:"time"`
	Speed         float64   `json:"speed"`
	State         string    `json:"state"`
	OffsetSeconds float64   `json:"offset_seconds"`
}

// Clock holds virtual time as float64 milliseconds since the Unix epoch, so
// large speed factors neither overflow nor drop fractional milliseconds.
type Clock struct {
	mu       sync.Mutex
	wall     WallClock
	bounds   Bounds
	virtual  float64
	speed    float64
	playing  bool
	lastWall time.Time
	jogCarry float64
}

// Option configures a Clock.
type Option func(*Clock)

// WithBounds sets the drift bounds.
func WithBounds(b Bounds) Option {
	return func(c *Clock) { c.bounds = b }
}

// WithWallClock replaces time.Now.
func WithWallClock(w WallClock) Option {
	return func(c *Clock) { c.wall = w }
}

// New returns a clock playing at speed 1 from the current wall time.
func New(opts ...Option) *Clock {
	c := &Clock{wall: time.Now, speed: 1}
	for _, o := range opts {
		o(c)
	}
	now := c.wall()
	c.virtual = toMs(now)
	c.lastWall = now
	c.playing = true
	return c
}

func toMs(t time.Time) float64 {
	return float64(t.Unix())*1000 + float64(t.Nanosecond())/1e6
}

func fromMs(ms float64) time.Time {
	sec := math.Floor(ms / 1000)
	ns := math.Round((ms - sec*1000) * 1e6)
	return time.Unix(int64(sec), int64(ns)).UTC()
}

// Tick reads the wall clock and advances virtual time by the elapsed wall time
// times speed. It returns the new virtual time.
func (c *Clock) Tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.wall()
	delta := now.Sub(c.lastWall)
	c.lastWall = now
	c.advance(delta, now)
	return fromMs(c.virtual)
}

// Advance moves virtual time by wallDelta times speed if playing.
func (c *Clock) Advance(wallDelta time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance(wallDelta, c.wall())
	return fromMs(c.virtual)
}

func (c *Clock) advance(wallDelta time.Duration, now time.Time) {
	if !c.playing || wallDelta <= 0 {
		return
	}
	c.virtual += float64(wallDelta) / float64(time.Millisecond) * c.speed
	if c.clamp(now) {
		c.playing = false
	}
}

// clamp pulls virtual time inside the bounds and reports whether it had to.
func (c *Clock) clamp(now time.Time) bool {
	wall := toMs(now)
	if c.bounds.After > 0 {
		if hi := wall + float64(c.bounds.After.Milliseconds()); c.virtual > hi {
			c.virtual = hi
			return true
		}
	}
	if c.bounds.Before > 0 {
		if lo := wall - float64(c.bounds.Before.Milliseconds()); c.virtual < lo {
			c.virtual = lo
			return true
		}
	}
	return false
}

// Now returns the current virtual time without advancing it.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fromMs(c.virtual)
}

// State returns Playing or Paused.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return Playing
	}
	return Paused
}

// Speed returns the current multiplier.
func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// SetSpeed changes the multiplier.
func (c *Clock) SetSpeed(s float64) error {
	if !(s > 0) || math.IsInf(s, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, s)
	}
	c.mu.Lock()
	c.speed = s
	c.mu.Unlock()
	return nil
}

// Pause stops virtual time.
func (c *Clock) Pause() {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
}

// Resume restarts virtual time from where it stopped. Wall time spent paused
// is not counted.
func (c *Clock) Resume() {
	c.mu.Lock()
	c.playing = true
	c.lastWall = c.wall()
	c.mu.Unlock()
}

// Toggle flips between Playing and Paused and returns the new state.
func (c *Clock) Toggle() State {
	if c.State() == Playing {
		c.Pause()
		return Paused
	}
	c.Resume()
	return Playing
}

// Scrub sets virtual time directly and pauses.
func (c *Clock) Scrub(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.virtual = toMs(t)
	c.clamp(c.wall())
	c.playing = false
	c.jogCarry = 0
}

// ScrubOffset sets virtual time to wall time plus offset and pauses.
func (c *Clock) ScrubOffset(offset time.Duration) {
	c.Scrub(c.wall().Add(offset))
}

// Jog converts continuous input into whole JogStep increments scaled by the
// current speed. The fractional part of the input is carried to the next call.
// Jogging pauses the clock. It returns the number of steps fired.
func (c *Clock) Jog(input float64) int {
	if math.IsNaN(input) || math.IsInf(input, 0) {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.jogCarry += input
	// Absorb rounding so inputs that sum to a whole number fire exactly.
	if r := math.Round(c.jogCarry); math.Abs(c.jogCarry-r) < 1e-9 {
		c.jogCarry = r
	}
	steps := math.Trunc(c.jogCarry)
	c.jogCarry -= steps
	c.playing = false

	if steps != 0 {
		c.virtual += steps * float64(JogStep.Milliseconds()) * c.speed
		c.clamp(c.wall())
	}
	return int(steps)
}

// ResetToLive jumps to wall time and plays.
func (c *Clock) ResetToLive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.wall()
	c.virtual = toMs(now)
	c.lastWall = now
	c.playing = true
	c.jogCarry = 0
}

// Offset returns virtual time minus wall time.
func (c *Clock) Offset() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset(c.wall())
}

func (c *Clock) offset(now time.Time) time.Duration {
	return time.Duration((c.virtual - toMs(now)) * float64(time.Millisecond))
}

// Snapshot returns time, speed, state and offset read under one lock.
func (c *Clock) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := Paused
	if c.playing {
		state = Playing
	}
	return Snapshot{
		Time:          fromMs(c.virtual),
		Speed:         c.speed,
		State:         state.String(),
		OffsetSeconds: c.offset(c.wall()).Seconds(),
	}
}

