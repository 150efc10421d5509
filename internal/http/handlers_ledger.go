package http

import (
	"net/http"

	"github.com/google/uuid"

	"pennywise/internal/log"
	"pennywise/internal/middleware/auth"
)

// listResponse wraps collections so the envelope can grow without breaking
// clients.
type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

// requireUser returns the authenticated user or writes a 401.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	uid, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		UnauthorizedError().Write(w)
		return uuid.Nil, false
	}
	return uid, true
}

// userAndID resolves the user and the {id} wildcard.
func (s *Server) userAndID(w http.ResponseWriter, r *http.Request, op string) (uuid.UUID, uuid.UUID, bool) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, op, err)
		return uuid.Nil, uuid.Nil, false
	}
	return uid, id, true
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	dr, err := parseDateRange(r)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	items, err := s.finance.ListExpenses(r.Context(), uid, dr)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(newList(items)).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeBadInput(w, r, log.OpCreate, err)
		return
	}
	e, err := s.finance.CreateExpense(r.Context(), uid, req.expense())
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/expenses/"+e.ID.String()).
		Data(e).
		Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpRead)
	if !ok {
		return
	}
	e, err := s.finance.GetExpense(r.Context(), uid, id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(e).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpUpdate)
	if !ok {
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeBadInput(w, r, log.OpUpdate, err)
		return
	}
	e, err := s.finance.UpdateExpense(r.Context(), uid, id, req.expense())
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(e).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpDelete)
	if !ok {
		return
	}
	if err := s.finance.DeleteExpense(r.Context(), uid, id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	dr, err := parseDateRange(r)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	items, err := s.finance.ListIncomes(r.Context(), uid, dr)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(newList(items)).Write(w)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeBadInput(w, r, log.OpCreate, err)
		return
	}
	inc, err := s.finance.CreateIncome(r.Context(), uid, req.income())
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/v1/incomes/"+inc.ID.String()).
		Data(inc).
		Write(w)
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpRead)
	if !ok {
		return
	}
	inc, err := s.finance.GetIncome(r.Context(), uid, id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(inc).Write(w)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpUpdate)
	if !ok {
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeBadInput(w, r, log.OpUpdate, err)
		return
	}
	inc, err := s.finance.UpdateIncome(r.Context(), uid, id, req.income())
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(inc).Write(w)
}

// handleDeleteIncome also drops every goal link to the income.
func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	uid, id, ok := s.userAndID(w, r, log.OpDelete)
	if !ok {
		return
	}
	if err := s.finance.DeleteIncome(r.Context(), uid, id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
