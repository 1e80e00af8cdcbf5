package github

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestRateLimit(t *testing.T) {
	fixedNow := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	newLimit := func() *RateLimit {
		l := NewRateLimit()
		l.now = func() time.Time { return fixedNow }
		return l
	}
	response := func(headers map[string]string) *http.Response {
		resp := &http.Response{Header: make(http.Header)}
		for k, v := range headers {
			resp.Header.Set(k, v)
		}
		return resp
	}
	shortCtx := func(t *testing.T) context.Context {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		t.Cleanup(cancel)
		return ctx
	}

	t.Run("unknown budget does not block", func(t *testing.T) {
		l := newLimit()
		if l.Remaining() != -1 {
			t.Fatalf("Remaining before any response = %d, want -1", l.Remaining())
		}
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	})

	t.Run("observe records remaining", func(t *testing.T) {
		l := newLimit()
		l.Observe(response(map[string]string{
			"X-RateLimit-Remaining": "10",
			"X-RateLimit-Reset":     "1700000000",
		}))
		if got := l.Remaining(); got != 10 {
			t.Fatalf("Remaining = %d, want 10", got)
		}
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	})

	t.Run("exhausted budget blocks until reset", func(t *testing.T) {
		l := newLimit()
		l.Observe(response(map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "1900000000",
		}))
		if err := l.Wait(shortCtx(t)); err == nil {
			t.Fatalf("expected Wait to block until the context expires")
		}
	})

	t.Run("exhausted budget past reset does not block", func(t *testing.T) {
		l := newLimit()
		l.Observe(response(map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "1700000000",
		}))
		if err := l.Wait(shortCtx(t)); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	})

	t.Run("retry-after causes cooldown", func(t *testing.T) {
		l := newLimit()
		l.Observe(response(map[string]string{"Retry-After": "60"}))
		if err := l.Wait(shortCtx(t)); err == nil {
			t.Fatalf("expected Wait to block during cooldown")
		}
	})

	t.Run("observe wakes waiters", func(t *testing.T) {
		l := newLimit()
		l.Observe(response(map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "1900000000",
		}))

		done := make(chan error, 1)
		go func() { done <- l.Wait(context.Background()) }()

		time.Sleep(10 * time.Millisecond)
		l.Observe(response(map[string]string{"X-RateLimit-Remaining": "5"}))

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Wait: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Wait was not woken by Observe")
		}
	})

	t.Run("nil limit and response are ignored", func(t *testing.T) {
		var l *RateLimit
		l.Observe(&http.Response{Header: make(http.Header)})
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("nil Wait: %v", err)
		}
		newLimit().Observe(nil)
	})
}
