package stream

import "sync"

// connLimiter caps open streams per client IP and in total.
type connLimiter struct {
	perIP, total int

	mu     sync.Mutex
	byIP   map[string]int
	active int
}

func newConnLimiter(perIP, total int) *connLimiter {
	return &connLimiter{perIP: perIP, total: total, byIP: map[string]int{}}
}

// acquire takes a slot for ip. The returned release frees it and may be
// called more than once.
func (l *connLimiter) acquire(ip string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active >= l.total || l.byIP[ip] >= l.perIP {
		return nil, false
	}
	l.byIP[ip]++
	l.active++

	var once sync.Once
	return func() { once.Do(func() { l.free(ip) }) }, true
}

func (l *connLimiter) free(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n := l.byIP[ip] - 1; n > 0 {
		l.byIP[ip] = n
	} else {
		delete(l.byIP, ip)
	}
	l.active--
}

// usage returns the open streams for ip and overall.
func (l *connLimiter) usage(ip string) (forIP, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byIP[ip], l.active
}
