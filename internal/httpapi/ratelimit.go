package httpapi

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiterTTL bounds how long a silent client keeps its bucket.
const idleLimiterTTL = 10 * time.Minute

type ipRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*ipEntry
	every   rate.Limit
	refill  time.Duration
	burst   int
	now     func() time.Time

	lastSweep time.Time
}

type ipEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// newIPRateLimiter allows perMinute requests per client address, refilled
// evenly across the minute with a burst of the full allowance.
func newIPRateLimiter(perMinute int) *ipRateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	refill := time.Minute / time.Duration(perMinute)
	return &ipRateLimiter{
		entries: map[string]*ipEntry{},
		every:   rate.Every(refill),
		refill:  refill,
		burst:   perMinute,
		now:     time.Now,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > idleLimiterTTL {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > idleLimiterTTL {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	e := l.entries[ip]
	if e == nil {
		e = &ipEntry{lim: rate.NewLimiter(l.every, l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = now
	return e.lim.AllowN(now, 1)
}

func (l *ipRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfterSeconds()))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *ipRateLimiter) retryAfterSeconds() int {
	secs := int(math.Ceil(l.refill.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// clientIP runs after middleware.RealIP, so RemoteAddr already reflects
// X-Forwarded-For when the proxy sets it.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
