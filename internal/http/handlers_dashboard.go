package http

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"pennywise/internal/core"
	"pennywise/internal/importer"
	"pennywise/internal/log"
	"pennywise/internal/services"
)

const (
	maxEmergencyMonths = 120
	maxRecentLimit     = 100
	maxImportRows      = 5000
)

// handleDashboard aggregates the user's records now. ?emergency_months=,
// ?recent= and ?match= override the configured options.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var q services.DashboardQuery
	var err error
	if q.EmergencyMonths, err = parsePositiveInt(r, "emergency_months", maxEmergencyMonths); err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	if q.RecentLimit, err = parsePositiveInt(r, "recent", maxRecentLimit); err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	if q.MatchMode, err = parseMatchMode(r); err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}

	d, err := s.dashboard.Dashboard(r.Context(), uid, q)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(d).Write(w)
}

// handleSnapshot returns the last dashboard computed by the worker, as stored.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	snap, err := s.dashboard.Snapshot(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().
		Header("Last-Modified", snap.ComputedAt.UTC().Format(http.TimeFormat)).
		Header("X-Snapshot-Age", time.Since(snap.ComputedAt).Truncate(time.Second).String()).
		Data(json.RawMessage(snap.Payload)).
		Write(w)
}

type importResponse struct {
	services.ImportResult
	Skipped []importer.Skipped `json:"skipped"`
}

// handleImport converts an aggregator page and writes the records. Rows that
// cannot be converted are reported back rather than failing the batch.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeBadInput(w, r, log.OpImport, err)
		return
	}
	if len(req.Transactions) == 0 {
		s.writeError(w, r, log.OpImport, core.NewValidationError("transactions", "must not be empty"))
		return
	}
	if len(req.Transactions) > maxImportRows {
		s.writeError(w, r, log.OpImport, core.NewValidationError("transactions", "too many transactions in one request"))
		return
	}

	batch := importer.Convert(uid, req.Transactions, req.Currency)
	res, err := s.finance.Import(r.Context(), uid, batch.Expenses, batch.Incomes)
	if err != nil {
		s.writeError(w, r, log.OpImport, err)
		return
	}

	skipped := batch.Skipped
	if skipped == nil {
		skipped = []importer.Skipped{}
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Data(importResponse{ImportResult: res, Skipped: skipped}).
		Write(w)
}
