package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsChecker_DisallowAndCrawlDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\nCrawl-delay: 2\n"))
	}))
	defer srv.Close()

	checker := NewRobotsChecker("lenscan-test", 5*time.Second)
	ctx := context.Background()

	allowed, delay, err := checker.CanFetch(ctx, srv.URL+"/public/page")
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Error("public path should be allowed")
	}
	if delay != 2*time.Second {
		t.Errorf("delay = %v, want 2s", delay)
	}

	allowed, _, err = checker.CanFetch(ctx, srv.URL+"/private/page")
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Error("disallowed path should be blocked")
	}
}

func TestRobotsChecker_UnreachableAllows(t *testing.T) {
	checker := NewRobotsChecker("lenscan-test", 100*time.Millisecond)

	allowed, delay, err := checker.CanFetch(context.Background(), "http://127.0.0.1:1/page")
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Error("unreachable robots.txt should allow by default")
	}
	if delay != 0 {
		t.Errorf("delay = %v, want 0", delay)
	}
}

func TestRobotsChecker_CachesPerHost(t *testing.T) {
	var fetches int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&fetches, 1)
		_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer srv.Close()

	checker := NewRobotsChecker("lenscan-test", 5*time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := checker.CanFetch(ctx, srv.URL+"/page"); err != nil {
			t.Fatal(err)
		}
	}
	if n := atomic.LoadInt64(&fetches); n != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", n)
	}
}

func TestRobotsChecker_BadURL(t *testing.T) {
	checker := NewRobotsChecker("lenscan-test", time.Second)
	if _, _, err := checker.CanFetch(context.Background(), "://nope"); err == nil {
		t.Error("expected parse error")
	}
}
