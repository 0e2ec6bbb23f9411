package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func probeHealth(t *testing.T, checks map[string]HealthCheck) (int, healthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/health", healthHandler("widget-tracker", "0.1.0", checks))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	return w.Code, resp
}

func TestHealth_AllChecksPassing(t *testing.T) {
	code, resp := probeHealth(t, map[string]HealthCheck{
		"database": {Probe: func() error { return nil }, Critical: true},
		"redis":    {Probe: func() error { return nil }},
	})

	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Status != statusHealthy {
		t.Fatalf("expected healthy, got %s", resp.Status)
	}
	if len(resp.Checks) != 2 {
		t.Fatalf("expected 2 check results, got %d", len(resp.Checks))
	}
}

func TestHealth_CriticalFailureIsUnhealthy(t *testing.T) {
	code, resp := probeHealth(t, map[string]HealthCheck{
		"database": {Probe: func() error { return errors.New("connection refused") }, Critical: true},
	})

	if code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if resp.Status != statusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", resp.Status)
	}
	if resp.Checks["database"].Message == "" {
		t.Fatal("expected failure message in check result")
	}
}

func TestHealth_NonCriticalFailureDegrades(t *testing.T) {
	code, resp := probeHealth(t, map[string]HealthCheck{
		"database": {Probe: func() error { return nil }, Critical: true},
		"redis":    {Probe: func() error { return errors.New("cache disabled") }},
	})

	if code != http.StatusOK {
		t.Fatalf("expected 200 for degraded service, got %d", code)
	}
	if resp.Status != statusDegraded {
		t.Fatalf("expected degraded, got %s", resp.Status)
	}
}

func TestHealth_NoChecks(t *testing.T) {
	code, resp := probeHealth(t, nil)

	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Status != statusHealthy {
		t.Fatalf("expected healthy, got %s", resp.Status)
	}
}
