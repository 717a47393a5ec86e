package ratelimit

import (
	"net/http"
	"sync"
	"testing"
	"time"
)

// mockClock is a controllable clock for testing.
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAllowOwner_BurstThenRefill(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{PerMinute: 60, Burst: 3, Clock: clock})
	defer limiter.Close()

	for i := 0; i < 3; i++ {
		if result := limiter.AllowOwner("owner-1"); !result.Allowed {
			t.Fatalf("request %d should be allowed, got blocked: %s", i, result.Reason)
		}
	}

	result := limiter.AllowOwner("owner-1")
	if result.Allowed {
		t.Fatal("request beyond burst should be blocked")
	}
	if result.Reason != "owner_limit" {
		t.Errorf("Expected reason 'owner_limit', got '%s'", result.Reason)
	}
	if result.RetryAfter <= 0 || result.RetryAfter > time.Second {
		t.Errorf("Expected RetryAfter in (0, 1s], got %v", result.RetryAfter)
	}

	clock.Advance(time.Second)
	if result := limiter.AllowOwner("owner-1"); !result.Allowed {
		t.Errorf("request after refill should be allowed, got blocked: %s", result.Reason)
	}
}

func TestAllowOwner_CaseInsensitiveKeys(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{PerMinute: 60, Burst: 1, Clock: clock})
	defer limiter.Close()

	if !limiter.AllowOwner("Owner-1").Allowed {
		t.Fatal("first request should be allowed")
	}
	if limiter.AllowOwner(" owner-1 ").Allowed {
		t.Fatal("normalized identifier should share the bucket")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{PerMinute: 60, Burst: 1, Clock: clock})
	defer limiter.Close()

	if !limiter.AllowOwner("owner-1").Allowed {
		t.Fatal("owner-1 should be allowed")
	}
	if !limiter.AllowOwner("owner-2").Allowed {
		t.Fatal("owner-2 should have its own bucket")
	}
	if !limiter.AllowIP("192.168.1.1").Allowed {
		t.Fatal("ip bucket should be independent of owners")
	}
	if result := limiter.AllowIP("192.168.1.1"); result.Allowed || result.Reason != "ip_limit" {
		t.Fatalf("second ip request: %+v", result)
	}
}

func TestCleanupDropsIdleBuckets(t *testing.T) {
	clock := newMockClock()
	limiter := New(&Config{PerMinute: 60, Burst: 1, IdleTTL: time.Minute, Clock: clock})
	defer limiter.Close()

	limiter.AllowOwner("owner-1")
	clock.Advance(30 * time.Second)
	limiter.AllowOwner("owner-2")

	clock.Advance(45 * time.Second)
	limiter.cleanup()

	if got := limiter.size(); got != 1 {
		t.Fatalf("expected 1 bucket after cleanup, got %d", got)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr", "203.0.113.9:5555", nil, false, "203.0.113.9"},
		{"xff ignored without trust", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "198.51.100.7"}, false, "10.0.0.1"},
		{"rightmost public xff", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "198.51.100.7, 203.0.113.5, 10.0.0.2"}, true, "203.0.113.5"},
		{"all private xff", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "192.168.1.10, 10.0.0.2"}, true, "10.0.0.2"},
		{"x-real-ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "198.51.100.8"}, true, "198.51.100.8"},
		{"no port", "198.51.100.9", nil, false, "198.51.100.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, "/", nil)
			if err != nil {
				t.Fatalf("new request: %v", err)
			}
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := GetClientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{"10.1.2.3", "172.16.0.1", "192.168.1.1", "127.0.0.1", "::1", "::ffff:192.168.1.1"}
	public := []string{"8.8.8.8", "203.0.113.1", "not-an-ip"}

	for _, ip := range private {
		if !isPrivateIP(ip) {
			t.Errorf("%s should be private", ip)
		}
	}
	for _, ip := range public {
		if isPrivateIP(ip) {
			t.Errorf("%s should not be private", ip)
		}
	}
}
