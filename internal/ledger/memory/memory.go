// Package memory is an in-process ledger.Store used for local runs and tests.
// A single mutex guards all maps, so multi-record operations are atomic.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pennywise/internal/core"
	"pennywise/internal/ledger"
)

type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	expenses  map[uuid.UUID]core.Expense
	incomes   map[uuid.UUID]core.Income
	goals     map[uuid.UUID]core.Goal
	budgets   map[uuid.UUID]core.Budget
	links     map[uuid.UUID]core.LinkedTransaction
	snapshots map[uuid.UUID]ledger.Snapshot
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock stamps created_at with now instead of the wall clock.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:       now,
		expenses:  make(map[uuid.UUID]core.Expense),
		incomes:   make(map[uuid.UUID]core.Income),
		goals:     make(map[uuid.UUID]core.Goal),
		budgets:   make(map[uuid.UUID]core.Budget),
		links:     make(map[uuid.UUID]core.LinkedTransaction),
		snapshots: make(map[uuid.UUID]ledger.Snapshot),
	}
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) stamp(id uuid.UUID, created time.Time) (uuid.UUID, time.Time) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	if created.IsZero() {
		created = s.now().UTC()
	}
	return id, created
}

// CreateExpense stores e, assigning an ID when it has none.
func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID, e.CreatedAt = s.stamp(e.ID, e.CreatedAt)
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) GetExpense(_ context.Context, userID, id uuid.UUID) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.expenses[e.ID]
	if !ok || old.UserID != e.UserID {
		return core.Expense{}, core.ErrNotFound
	}
	e.CreatedAt = old.CreatedAt
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, userID uuid.UUID, r core.DateRange) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if e.UserID == userID && r.Contains(e.Date) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].Date, out[j].Date, out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) CreateIncome(_ context.Context, i core.Income) (core.Income, error) {
	if err := i.Validate(); err != nil {
		return core.Income{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i.ID, i.CreatedAt = s.stamp(i.ID, i.CreatedAt)
	s.incomes[i.ID] = i
	return i, nil
}

func (s *Store) GetIncome(_ context.Context, userID, id uuid.UUID) (core.Income, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.incomes[id]
	if !ok || i.UserID != userID {
		return core.Income{}, core.ErrNotFound
	}
	return i, nil
}

func (s *Store) UpdateIncome(_ context.Context, i core.Income) (core.Income, error) {
	if err := i.Validate(); err != nil {
		return core.Income{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.incomes[i.ID]
	if !ok || old.UserID != i.UserID {
		return core.Income{}, core.ErrNotFound
	}
	i.CreatedAt = old.CreatedAt
	s.incomes[i.ID] = i
	return i, nil
}

// DeleteIncome removes the income and its links.
func (s *Store) DeleteIncome(_ context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.incomes[id]
	if !ok || i.UserID != userID {
		return core.ErrNotFound
	}
	for lid, l := range s.links {
		if l.IncomeID == id {
			delete(s.links, lid)
		}
	}
	delete(s.incomes, id)
	return nil
}

func (s *Store) ListIncomes(_ context.Context, userID uuid.UUID, r core.DateRange) ([]core.Income, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Income, 0)
	for _, i := range s.incomes {
		if i.UserID == userID && r.Contains(i.Date) {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return newerFirst(out[a].Date, out[b].Date, out[a].CreatedAt, out[b].CreatedAt, out[a].ID, out[b].ID)
	})
	return out, nil
}

func (s *Store) CreateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID, g.CreatedAt = s.stamp(g.ID, g.CreatedAt)
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) GetGoal(_ context.Context, userID, id uuid.UUID) (core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok || g.UserID != userID {
		return core.Goal{}, core.ErrNotFound
	}
	return g, nil
}

// UpdateGoal replaces the goal. created_at is immutable since it anchors
// the accrual.
func (s *Store) UpdateGoal(_ context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.goals[g.ID]
	if !ok || old.UserID != g.UserID {
		return core.Goal{}, core.ErrNotFound
	}
	g.CreatedAt = old.CreatedAt
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) ListGoals(_ context.Context, userID uuid.UUID) ([]core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Goal, 0)
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return olderFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) DeleteGoalCascade(_ context.Context, userID, goalID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[goalID]
	if !ok || g.UserID != userID {
		return core.ErrNotFound
	}
	for lid, l := range s.links {
		if l.GoalID == goalID {
			delete(s.links, lid)
		}
	}
	delete(s.goals, goalID)
	return nil
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID, b.CreatedAt = s.stamp(b.ID, b.CreatedAt)
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) GetBudget(_ context.Context, userID, id uuid.UUID) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return core.Budget{}, core.ErrNotFound
	}
	return b, nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.budgets[b.ID]
	if !ok || old.UserID != b.UserID {
		return core.Budget{}, core.ErrNotFound
	}
	b.CreatedAt = old.CreatedAt
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) DeleteBudget(_ context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.budgets, id)
	return nil
}

func (s *Store) ListBudgets(_ context.Context, userID uuid.UUID) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Budget, 0)
	for _, b := range s.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return olderFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) ListLinks(_ context.Context, userID uuid.UUID) ([]core.LinkedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linksWhere(func(l core.LinkedTransaction) bool { return l.UserID == userID }), nil
}

func (s *Store) ListGoalLinks(_ context.Context, userID, goalID uuid.UUID) ([]core.LinkedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linksWhere(func(l core.LinkedTransaction) bool {
		return l.UserID == userID && l.GoalID == goalID
	}), nil
}

func (s *Store) linksWhere(keep func(core.LinkedTransaction) bool) []core.LinkedTransaction {
	out := make([]core.LinkedTransaction, 0)
	for _, l := range s.links {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return olderFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out
}

// LinkIncomes validates everything before writing, under one lock.
func (s *Store) LinkIncomes(_ context.Context, userID, goalID uuid.UUID, incomeIDs []uuid.UUID) (int, error) {
	if len(incomeIDs) == 0 {
		return 0, core.ErrEmptySelection
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.goals[goalID]; !ok || g.UserID != userID {
		return 0, core.ErrNotFound
	}
	for _, id := range incomeIDs {
		if inc, ok := s.incomes[id]; !ok || inc.UserID != userID {
			return 0, core.ErrNotFound
		}
	}

	existing := make(map[uuid.UUID]struct{})
	for _, l := range s.links {
		if l.GoalID == goalID {
			existing[l.IncomeID] = struct{}{}
		}
	}

	created := 0
	now := s.now().UTC()
	for _, id := range incomeIDs {
		if _, ok := existing[id]; ok {
			continue
		}
		link := core.LinkedTransaction{
			ID:        uuid.New(),
			UserID:    userID,
			GoalID:    goalID,
			IncomeID:  id,
			CreatedAt: now,
		}
		s.links[link.ID] = link
		existing[id] = struct{}{}
		created++
	}
	return created, nil
}

func (s *Store) UnlinkIncome(_ context.Context, userID, goalID, incomeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for lid, l := range s.links {
		if l.UserID == userID && l.GoalID == goalID && l.IncomeID == incomeID {
			delete(s.links, lid)
			return nil
		}
	}
	return core.ErrNotFound
}

// ImportEntries stages the whole batch under the lock and applies it only
// once every record has passed, so a rejected batch leaves no trace.
func (s *Store) ImportEntries(_ context.Context, userID uuid.UUID, expenses []core.Expense, incomes []core.Income) (ledger.ImportResult, error) {
	for _, e := range expenses {
		if err := e.Validate(); err != nil {
			return ledger.ImportResult{}, err
		}
	}
	for _, i := range incomes {
		if err := i.Validate(); err != nil {
			return ledger.ImportResult{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	notes := s.entryNotes(userID)
	fresh := func(note string) bool {
		if note == "" {
			return true
		}
		if _, dup := notes[note]; dup {
			return false
		}
		notes[note] = struct{}{}
		return true
	}
	taken := func(id uuid.UUID) bool {
		_, exp := s.expenses[id]
		_, inc := s.incomes[id]
		return exp || inc
	}

	var (
		res         ledger.ImportResult
		newExpenses []core.Expense
		newIncomes  []core.Income
		stagedIDs   = make(map[uuid.UUID]struct{})
	)
	stage := func(id uuid.UUID) error {
		if _, dup := stagedIDs[id]; dup || taken(id) {
			return core.Storage("import entries", fmt.Errorf("record %s already exists", id))
		}
		stagedIDs[id] = struct{}{}
		return nil
	}

	for _, e := range expenses {
		if !fresh(e.Note) {
			res.Duplicates++
			continue
		}
		e.UserID = userID
		e.ID, e.CreatedAt = s.stamp(e.ID, e.CreatedAt)
		if err := stage(e.ID); err != nil {
			return ledger.ImportResult{}, err
		}
		newExpenses = append(newExpenses, e)
	}
	for _, i := range incomes {
		if !fresh(i.Note) {
			res.Duplicates++
			continue
		}
		i.UserID = userID
		i.ID, i.CreatedAt = s.stamp(i.ID, i.CreatedAt)
		if err := stage(i.ID); err != nil {
			return ledger.ImportResult{}, err
		}
		newIncomes = append(newIncomes, i)
	}

	for _, e := range newExpenses {
		s.expenses[e.ID] = e
	}
	for _, i := range newIncomes {
		s.incomes[i.ID] = i
	}
	res.Expenses, res.Incomes = len(newExpenses), len(newIncomes)
	return res, nil
}

func (s *Store) entryNotes(userID uuid.UUID) map[string]struct{} {
	notes := make(map[string]struct{})
	for _, e := range s.expenses {
		if e.UserID == userID && e.Note != "" {
			notes[e.Note] = struct{}{}
		}
	}
	for _, i := range s.incomes {
		if i.UserID == userID && i.Note != "" {
			notes[i.Note] = struct{}{}
		}
	}
	return notes
}

func (s *Store) SaveSnapshot(_ context.Context, snap ledger.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Payload = append([]byte(nil), snap.Payload...)
	s.snapshots[snap.UserID] = snap
	return nil
}

func (s *Store) GetSnapshot(_ context.Context, userID uuid.UUID) (ledger.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[userID]
	if !ok {
		return ledger.Snapshot{}, core.ErrNotFound
	}
	snap.Payload = append([]byte(nil), snap.Payload...)
	return snap, nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[uuid.UUID]struct{})
	for _, e := range s.expenses {
		seen[e.UserID] = struct{}{}
	}
	for _, i := range s.incomes {
		seen[i.UserID] = struct{}{}
	}
	for _, g := range s.goals {
		seen[g.UserID] = struct{}{}
	}
	for _, b := range s.budgets {
		seen[b.UserID] = struct{}{}
	}
	out := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func newerFirst(da, db core.Date, ca, cb time.Time, ia, ib uuid.UUID) bool {
	if !da.Equal(db.Time) {
		return da.After(db.Time)
	}
	if !ca.Equal(cb) {
		return ca.After(cb)
	}
	return ia.String() < ib.String()
}

func olderFirst(ca, cb time.Time, ia, ib uuid.UUID) bool {
	if !ca.Equal(cb) {
		return ca.Before(cb)
	}
	return ia.String() < ib.String()
}
