// Package trace tags every request with an ID and logs its start and end.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"pennywise/internal/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// HeaderRequestID is read from the request and echoed on the response.
const HeaderRequestID = "X-Request-ID"

// Caller-supplied IDs are accepted only when they look like an ID.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.StructuredLogger

	total         atomic.Int64
	errors        atomic.Int64
	totalDuration atomic.Int64 // microseconds
}

// Metrics summarizes the traffic seen so far.
type Metrics struct {
	TotalRequests       int64 `json:"total_requests"`
	ServerErrors        int64 `json:"server_errors"`
	AverageResponseTime int64 `json:"average_response_time_us"`
}

func NewMiddleware(extractIP func(*http.Request) string, logger *log.Logger) *Middleware {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Middleware{
		extractIP: extractIP,
		logger:    log.NewStructuredLogger(logger),
	}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(requestID) {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		m.logger.LogHTTPStart(ctx, r, requestID, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.total.Add(1)
		m.totalDuration.Add(duration.Microseconds())
		if rw.statusCode >= 500 {
			m.errors.Add(1)
		}

		m.logger.LogHTTPEnd(ctx, r, requestID, rw.statusCode, duration.Milliseconds(), clientIP)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// GenerateRequestID returns a random "req_" prefixed ID.
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the request ID stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func (m *Middleware) GetMetrics() Metrics {
	total := m.total.Load()
	avg := int64(0)
	if total > 0 {
		avg = m.totalDuration.Load() / total
	}
	return Metrics{
		TotalRequests:       total,
		ServerErrors:        m.errors.Load(),
		AverageResponseTime: avg,
	}
}
