package session

import (
	"errors"
	"sync"
)

// ErrStale is returned when a completion belongs to a superseded request.
var ErrStale = errors.New("stale response discarded")

// Token is a monotonically increasing request counter. A request captures the
// value returned by Next; its result is applied only if no newer request has
// been issued since. There is no cancellation, only discard on staleness.
type Token struct {
	mu sync.Mutex
	n  uint64
}

// Next issues a new request token, superseding every earlier one.
func (t *Token) Next() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	return t.n
}

// Issue is Next with fn run under the token lock, so state captured or
// replaced by fn is tied to the returned token.
func (t *Token) Issue(fn func()) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	fn()
	return t.n
}

// Current returns the newest issued token.
func (t *Token) Current() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

// IsCurrent reports whether v is still the newest token.
func (t *Token) IsCurrent(v uint64) bool {
	return t.Current() == v
}

// Apply runs fn if v is still current, holding the token lock so no newer
// request can be issued in between. It returns ErrStale otherwise.
func (t *Token) Apply(v uint64, fn func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v != t.n {
		return ErrStale
	}
	fn()
	return nil
}
