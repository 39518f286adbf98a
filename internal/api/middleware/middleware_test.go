package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestRequestID(t *testing.T) {
	var seen string
	h := chimw.RequestID(RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/", nil))

	if seen == "" {
		t.Fatal("request ID not propagated to context")
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("header: got %q, expected %q", got, seen)
	}
}

func TestRequestID_WithoutChi(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := GetRequestID(r.Context()); id != "" {
			t.Errorf("expected empty request ID, got %q", id)
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get(RequestIDHeader); got != "" {
		t.Errorf("header should be unset, got %q", got)
	}
}

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
	}{
		{"ok request", "/api/list", http.StatusOK, "INFO"},
		{"client error", "/api/status/x", http.StatusBadRequest, "INFO"},
		{"server error", "/api/encode", http.StatusInternalServerError, "ERROR"},
		{"quiet path", "/health", http.StatusOK, "DEBUG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := Logger(bufferLogger(&buf), "/health", "/metrics")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, "hello")
			}))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			entry := decodeLogLine(t, &buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("level: got %v, expected %s", entry["level"], tt.wantLevel)
			}
			if entry["status"] != float64(tt.status) {
				t.Errorf("status: got %v, expected %d", entry["status"], tt.status)
			}
			if entry["bytes"] != float64(5) {
				t.Errorf("bytes: got %v, expected 5", entry["bytes"])
			}
			if entry["path"] != tt.path {
				t.Errorf("path: got %v, expected %s", entry["path"], tt.path)
			}
		})
	}
}

func TestLogger_ImplicitStatus(t *testing.T) {
	var buf bytes.Buffer
	h := Logger(bufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if entry := decodeLogLine(t, &buf); entry["status"] != float64(http.StatusOK) {
		t.Errorf("status: got %v, expected 200", entry["status"])
	}
}

func TestRecoverer(t *testing.T) {
	var buf bytes.Buffer
	h := Recoverer(bufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/encode", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, expected 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "internal_error") {
		t.Errorf("body: got %q", rec.Body.String())
	}

	entry := decodeLogLine(t, &buf)
	if entry["panic"] != "boom" {
		t.Errorf("panic attr: got %v", entry["panic"])
	}
	if stack, _ := entry["stack"].(string); stack == "" {
		t.Error("expected stack trace in log")
	}
}

func TestRecoverer_AbortHandler(t *testing.T) {
	h := Recoverer(bufferLogger(&bytes.Buffer{}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("expected ErrAbortHandler to be re-panicked, got %v", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestLimit: 2, WindowSize: time.Minute})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/encode", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)

		if rec.Code == http.StatusTooManyRequests {
			if got := rec.Header().Get("Retry-After"); got != "60" {
				t.Errorf("Retry-After: got %q, expected 60", got)
			}
			if !strings.Contains(rec.Body.String(), "rate_limit_exceeded") {
				t.Errorf("body: got %q", rec.Body.String())
			}
		}
	}

	want := []int{http.StatusAccepted, http.StatusAccepted, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: got %d, expected %d", i, codes[i], want[i])
		}
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(RateLimitConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, expected 200", i, rec.Code)
		}
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    string
		origin     string
		wantHeader string
	}{
		{"wildcard", "*", "http://player.example", "*"},
		{"listed origin", "http://a.example, http://b.example", "http://b.example", "http://b.example"},
		{"unlisted origin", "http://a.example", "http://evil.example", ""},
		{"disabled", "", "http://a.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(tt.origins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/list", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin: got %q, expected %q", got, tt.wantHeader)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS("*")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/encode", nil)
	req.Header.Set("Origin", "http://player.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if called {
		t.Error("preflight should not reach the handler")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, expected 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Errorf("Access-Control-Allow-Methods: got %q", got)
	}
}
