package http

import (
	"context"
	"errors"
	"net/http"

	"pennywise/internal/core"
	"pennywise/internal/log"
	"pennywise/internal/middleware/trace"
)

// storageRetryAfter is the Retry-After hint sent with 503 responses.
const storageRetryAfter = 5

// errorResponse maps a domain error to its response. NotFound never says
// whether the record exists for another user, and storage details never
// reach the client.
func errorResponse(err error) *JSONResponseBuilder {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return NewJSONResponse().
			Status(http.StatusUnprocessableEntity).
			Data(ErrorBody{Error: "validation_failed", Message: ve.Message, Field: ve.Field})
	case errors.Is(err, core.ErrEmptySelection):
		return ErrorResponse(http.StatusUnprocessableEntity, "empty_selection", "select at least one transaction")
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError()
	case errors.Is(err, core.ErrStorageFailure):
		return ErrorResponse(http.StatusServiceUnavailable, "storage_unavailable", "temporarily unavailable, please retry").
			RetryAfter(storageRetryAfter)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusServiceUnavailable, "timeout", "request timed out, please retry").
			RetryAfter(storageRetryAfter)
	default:
		return InternalServerError()
	}
}

// writeError logs err with its classification and writes the mapped
// response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := errorResponse(err)

	fields := log.NewFields().
		WithRequestID(trace.GetRequestID(r.Context())).
		WithErrorType(errorType(err))

	switch resp.statusCode {
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		s.logger.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, fields)
	default:
		log.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
			append(fields.WithError(err).WithOperation(op).ToSlice(), log.FieldStatusCode, resp.statusCode)...)
	}

	resp.Write(w)
}

func errorType(err error) string {
	switch {
	case core.IsValidation(err):
		return log.ErrorTypeValidation
	case errors.Is(err, core.ErrEmptySelection):
		return log.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, core.ErrStorageFailure):
		return log.ErrorTypeDatabase
	default:
		return log.ErrorTypeInternal
	}
}

// writeBadInput handles decode failures: malformed bodies are 400, values
// that parsed but do not validate go through the usual mapping.
func (s *Server) writeBadInput(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, errBadRequest) {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Malformed request body",
			log.FieldRequestID, trace.GetRequestID(r.Context()),
			log.FieldOperation, op,
			log.FieldError, err.Error())
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.writeError(w, r, op, err)
}
