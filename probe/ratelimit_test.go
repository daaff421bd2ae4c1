package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func rateLimitServer(remaining, limit int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRateLimitChecker_Headers(t *testing.T) {
	tests := []struct {
		name      string
		remaining int64
		limit     int64
		want      Status
	}{
		{"plenty of budget", 4500, 5000, StatusHealthy},
		{"low budget", 500, 5000, StatusDegraded},
		{"exhausted", 0, 5000, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := rateLimitServer(tt.remaining, tt.limit)
			defer srv.Close()

			c := NewRateLimitChecker()
			result := c.Check(context.Background(), httpTarget("gh", srv.URL))

			if result.Status != tt.want {
				t.Errorf("Status = %v, want %v", result.Status, tt.want)
			}
			if got := result.Metrics["rate_limit_remaining"]; got != float64(tt.remaining) {
				t.Errorf("rate_limit_remaining = %v, want %d", got, tt.remaining)
			}
		})
	}
}

func TestRateLimitChecker_BodyFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"remaining": 900, "limit": 1000}`))
	}))
	defer srv.Close()

	result := NewRateLimitChecker().Check(context.Background(), httpTarget("gh", srv.URL))
	if result.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", result.Status)
	}
}

func TestRateLimitChecker_MissingBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	result := NewRateLimitChecker().Check(context.Background(), httpTarget("gh", srv.URL))

	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", result.Status)
	}
	if !errors.Is(result.Err, ErrProbeProtocol) {
		t.Errorf("Err = %v, want ErrProbeProtocol", result.Err)
	}
}

func TestRateLimitChecker_CustomWarnFraction(t *testing.T) {
	srv := rateLimitServer(400, 1000)
	defer srv.Close()

	c := NewRateLimitChecker(RateLimitCheckerConfig{WarnFraction: 0.5})
	result := c.Check(context.Background(), httpTarget("gh", srv.URL))

	if result.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded at 40%% with warn 50%%", result.Status)
	}
}
