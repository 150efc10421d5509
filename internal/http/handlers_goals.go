package http

import (
	"net/http"

	"pennywise/internal/core"
	"pennywise/internal/log"
	"pennywise/internal/reconcile"
)

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	goals, err := s.finance.ListGoals(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(newList(goals)).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeBadInput(w, r, log.OpCreate, err)
		return
	}
	g, err := s.finance.CreateGoal(r.Context(), uid, req.goal())
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/goals/"+g.ID.String()).
		Data(g).
		Write(w)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpRead)
	if !ok {
		return
	}
	g, err := s.finance.GetGoal(r.Context(), uid, id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(g).Write(w)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpUpdate)
	if !ok {
		return
	}
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeBadInput(w, r, log.OpUpdate, err)
		return
	}
	g, err := s.finance.UpdateGoal(r.Context(), uid, id, req.goal())
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(g).Write(w)
}

// handleDeleteGoal removes the goal and all of its links together.
func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpDelete)
	if !ok {
		return
	}
	if err := s.finance.DeleteGoal(r.Context(), uid, id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpRead)
	if !ok {
		return
	}
	report, err := s.guard.GoalProgress(r.Context(), uid, id, s.now())
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	if report.LinkedIncomes == nil {
		report.LinkedIncomes = []core.Income{}
	}
	NewJSONResponse().Data(report).Write(w)
}

func (s *Server) handleLinkableIncomes(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpList)
	if !ok {
		return
	}
	incomes, err := s.guard.ListLinkableIncomes(r.Context(), uid, id)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(newList(incomes)).Write(w)
}

type linkResponse struct {
	GoalID string `json:"goal_id"`
	reconcile.LinkResult
}

func (s *Server) handleLinkIncomes(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpLink)
	if !ok {
		return
	}
	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeBadInput(w, r, log.OpLink, err)
		return
	}
	res, err := s.finance.LinkIncomes(r.Context(), uid, id, req.IncomeIDs)
	if err != nil {
		s.writeError(w, r, log.OpLink, err)
		return
	}
	NewJSONResponse().Data(linkResponse{GoalID: id.String(), LinkResult: res}).Write(w)
}

func (s *Server) handleUnlinkIncome(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpUnlink)
	if !ok {
		return
	}
	incomeID, err := pathUUID(r, "incomeID")
	if err != nil {
		s.writeError(w, r, log.OpUnlink, err)
		return
	}
	if err := s.finance.UnlinkIncome(r.Context(), uid, id, incomeID); err != nil {
		s.writeError(w, r, log.OpUnlink, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
