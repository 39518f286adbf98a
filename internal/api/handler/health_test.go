package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHealthHandler_Health(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }

	tests := []struct {
		name           string
		checks         map[string]HealthCheck
		wantStatusCode int
		wantBody       string
	}{
		{
			name:           "no checks",
			wantStatusCode: http.StatusOK,
			wantBody:       `{"status":"ok"}`,
		},
		{
			name:           "all checks pass",
			checks:         map[string]HealthCheck{"redis": ok, "postgres": ok},
			wantStatusCode: http.StatusOK,
			wantBody:       `{"status":"ok"}`,
		},
		{
			name: "failed check",
			checks: map[string]HealthCheck{
				"redis":    ok,
				"postgres": func(ctx context.Context) error {
					return errors.New("connection refused")
				},
			},
			wantStatusCode: http.StatusServiceUnavailable,
			wantBody:       `{"status":"unavailable","failed":{"postgres":"connection refused"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.checks, nil)

			rec := httptest.NewRecorder()
			handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatusCode {
				t.Errorf("expected status %d, got %d", tt.wantStatusCode, rec.Code)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body: got %s, expected %s", got, tt.wantBody)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: got %q", ct)
			}
		})
	}
}

func TestHealthHandler_Health_CheckTimeout(t *testing.T) {
	handler := NewHealthHandler(map[string]HealthCheck{
		"redis": func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}, nil)
	handler.timeout = 10 * time.Millisecond

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "deadline exceeded") {
		t.Errorf("body: got %s", rec.Body.String())
	}
}

func TestHealthHandler_Index(t *testing.T) {
	handler := NewHealthHandler(map[string]HealthCheck{
		"redis": func(ctx context.Context) error {
			t.Error("index must not run dependency checks")
			return nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	handler.Index(rec, httptest.NewRequest(http.MethodGet, "/api/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body: got %s", got)
	}
}
