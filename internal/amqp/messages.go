package amqp

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// EventKind names the write that produced a LedgerEvent.
type EventKind string

const (
	ExpenseCreated EventKind = "expense_created"
	ExpenseUpdated EventKind = "expense_updated"
	ExpenseDeleted EventKind = "expense_deleted"
	IncomeCreated  EventKind = "income_created"
	IncomeUpdated  EventKind = "income_updated"
	IncomeDeleted  EventKind = "income_deleted"
	GoalCreated    EventKind = "goal_created"
	GoalUpdated    EventKind = "goal_updated"
	GoalDeleted    EventKind = "goal_deleted"
	BudgetCreated  EventKind = "budget_created"
	BudgetUpdated  EventKind = "budget_updated"
	BudgetDeleted  EventKind = "budget_deleted"
	IncomesLinked  EventKind = "incomes_linked"
	IncomeUnlinked EventKind = "income_unlinked"
	LedgerImported EventKind = "ledger_imported"
)

// LedgerEvent is a lightweight notice that a user's records changed. It
// carries no amounts: consumers reload what they need from the store.
type LedgerEvent struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Kind      EventKind `json:"kind"`
	EntityID  uuid.UUID `json:"entity_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(userID uuid.UUID, kind EventKind, entityID uuid.UUID) LedgerEvent {
	return LedgerEvent{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes a delivery body. Events without a user are
// rejected since nothing downstream can act on them.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, err
	}
	if e.UserID == uuid.Nil {
		return LedgerEvent{}, errMissingUser
	}
	return e, nil
}
