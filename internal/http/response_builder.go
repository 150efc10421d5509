// Package http exposes the ledger, goals, budgets and dashboards as a JSON
// API.
//
// This file holds the builder used by every handler to write a response, so
// status, headers and the JSON envelope stay consistent.
package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
)

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	data       any
}

// ErrorBody is the envelope of every non-2xx response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the body. A nil value writes no body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

// RetryAfter sets the Retry-After header in seconds.
func (b *JSONResponseBuilder) RetryAfter(seconds int) *JSONResponseBuilder {
	return b.Header("Retry-After", strconv.Itoa(seconds))
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.data == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.data)
	if err != nil {
		slog.Error("Failed to encode response", "component", "http", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal","message":"internal error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// ErrorResponse builds an error envelope with the given status.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Data(ErrorBody{Error: code, Message: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

func UnauthorizedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "unauthorized", "authentication required").
		Header("WWW-Authenticate", `Bearer realm="pennywise"`)
}

func NotFoundError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", "not found")
}

func TooManyRequestsError(retryAfter int) *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "too many requests, please slow down").
		RetryAfter(retryAfter)
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal", "internal error")
}
