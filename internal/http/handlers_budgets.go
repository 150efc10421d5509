package http

import (
	"net/http"

	"pennywise/internal/log"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	budgets, err := s.finance.ListBudgets(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(newList(budgets)).Write(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeBadInput(w, r, log.OpCreate, err)
		return
	}
	b, err := s.finance.CreateBudget(r.Context(), uid, req.budget())
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/budgets/"+b.ID.String()).
		Data(b).
		Write(w)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpRead)
	if !ok {
		return
	}
	b, err := s.finance.GetBudget(r.Context(), uid, id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(b).Write(w)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpUpdate)
	if !ok {
		return
	}
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeBadInput(w, r, log.OpUpdate, err)
		return
	}
	b, err := s.finance.UpdateBudget(r.Context(), uid, id, req.budget())
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(b).Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpDelete)
	if !ok {
		return
	}
	if err := s.finance.DeleteBudget(r.Context(), uid, id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleBudgetUtilization accepts ?match= to override the configured match
// mode for this request.
func (s *Server) handleBudgetUtilization(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpRead)
	if !ok {
		return
	}
	mode, err := parseMatchMode(r)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	u, err := s.dashboard.BudgetUtilization(r.Context(), uid, id, mode)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(u).Write(w)
}
