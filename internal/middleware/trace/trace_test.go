package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pennywise/internal/log"
)

func TestMiddleware_RequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{"generated when missing", "", false},
		{"caller id kept", "abc-123", true},
		{"unsafe id replaced", "bad id\nwith newline", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			m := NewMiddleware(nil, log.New(log.Config{Level: slog.LevelError, Output: &bytes.Buffer{}}))
			h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if seen == "" || rec.Header().Get(HeaderRequestID) != seen {
				t.Fatalf("context id %q, header %q", seen, rec.Header().Get(HeaderRequestID))
			}
			if (seen == tt.incoming) != tt.wantSame {
				t.Errorf("id = %q, incoming %q", seen, tt.incoming)
			}
			if !tt.wantSame && !strings.HasPrefix(seen, "req_") {
				t.Errorf("generated id %q lacks prefix", seen)
			}
		})
	}
}

func TestMiddleware_LogsAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.9" },
		log.New(log.Config{Level: slog.LevelInfo, Output: &buf}))

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	out := buf.String()
	if !strings.Contains(out, "status_code=503") || !strings.Contains(out, "client_ip=10.0.0.9") {
		t.Errorf("log output = %q", out)
	}

	metrics := m.GetMetrics()
	if metrics.TotalRequests != 2 || metrics.ServerErrors != 1 {
		t.Errorf("metrics = %+v", metrics)
	}
}
