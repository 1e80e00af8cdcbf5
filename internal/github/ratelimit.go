package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimit tracks the API budget reported by GitHub. Wait blocks while the
// server asked clients to back off (Retry-After) or while the budget is
// exhausted and has not been reset yet.
type RateLimit struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	cooldown  time.Time
	known     bool
	now       func() time.Time
	changed   chan struct{}
}

func NewRateLimit() *RateLimit {
	return &RateLimit{
		now:     time.Now,
		changed: make(chan struct{}),
	}
}

// Remaining is the last reported budget, or -1 before any response was seen.
func (l *RateLimit) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.known {
		return -1
	}
	return l.remaining
}

func (l *RateLimit) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	for {
		l.mu.Lock()
		now := l.now()
		var until time.Time
		switch {
		case now.Before(l.cooldown):
			until = l.cooldown
		case l.known && l.remaining <= 0 && now.Before(l.reset):
			until = l.reset
		}
		ch := l.changed
		l.mu.Unlock()

		if until.IsZero() {
			return nil
		}

		timer := time.NewTimer(until.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-ch:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Observe records the rate limit headers of resp.
func (l *RateLimit) Observe(resp *http.Response) {
	if l == nil || resp == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	if s := resp.Header.Get("Retry-After"); s != "" {
		if seconds, err := strconv.Atoi(s); err == nil && seconds > 0 {
			until := l.now().Add(time.Duration(seconds) * time.Second)
			if until.After(l.cooldown) {
				l.cooldown = until
				changed = true
			}
		}
	}
	if s := resp.Header.Get("X-RateLimit-Remaining"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			changed = changed || !l.known || l.remaining != n
			l.remaining = n
			l.known = true
		}
	}
	if s := resp.Header.Get("X-RateLimit-Reset"); s != "" {
		if epoch, err := strconv.ParseInt(s, 10, 64); err == nil && epoch > 0 {
			reset := time.Unix(epoch, 0)
			if !reset.Equal(l.reset) {
				l.reset = reset
				changed = true
			}
		}
	}

	if changed {
		close(l.changed)
		l.changed = make(chan struct{})
	}
}

type rateLimitTransport struct {
	base   http.RoundTripper
	limits *RateLimit
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limits.Wait(req.Context()); err != nil {
		return nil, err
	}
	resp, err := t.base.RoundTrip(req)
	if err == nil {
		t.limits.Observe(resp)
	}
	return resp, err
}
