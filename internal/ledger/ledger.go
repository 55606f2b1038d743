// Package ledger owns an account's inspiration point balance, its
// capacity ceiling, and the lifetime completion counters.
package ledger

import "errors"

// ErrInsufficientFunds is returned by Spend when the balance cannot
// cover the amount.
var ErrInsufficientFunds = errors.New("not enough inspiration points")

// Ledger holds the integer IP balance for one account. The invariant
// 0 <= balance <= capacity holds after every operation. Callers
// (the progression facade) serialize access; the ledger itself does
// no locking.
type Ledger struct {
	balance           int
	capacity          int
	tasksCompleted    int
	dungeonsCompleted int
}

// New builds a ledger, clamping the balance into [0, capacity].
func New(balance, capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	if balance < 0 {
		balance = 0
	}
	if balance > capacity {
		balance = capacity
	}
	return &Ledger{balance: balance, capacity: capacity}
}

// Restore rebuilds a ledger from persisted state, counters included.
func Restore(balance, capacity, tasksCompleted, dungeonsCompleted int) *Ledger {
	l := New(balance, capacity)
	l.tasksCompleted = tasksCompleted
	l.dungeonsCompleted = dungeonsCompleted
	return l
}

// Earn credits up to amount points, clamped at capacity, and returns
// the number actually credited. Non-positive amounts credit nothing.
func (l *Ledger) Earn(amount int) int {
	if amount <= 0 {
		return 0
	}
	credited := amount
	if l.balance+credited > l.capacity {
		credited = l.capacity - l.balance
	}
	l.balance += credited
	return credited
}

// Spend debits amount points, failing with ErrInsufficientFunds if the
// balance cannot cover it. Non-positive amounts are a no-op.
func (l *Ledger) Spend(amount int) error {
	if amount <= 0 {
		return nil
	}
	if amount > l.balance {
		return ErrInsufficientFunds
	}
	l.balance -= amount
	return nil
}

// CanAfford reports whether amount could be spent right now.
func (l *Ledger) CanAfford(amount int) bool {
	return amount <= l.balance
}

// RaiseCapacity grows the capacity ceiling. Existing balance is
// unchanged. Non-positive amounts are a no-op.
func (l *Ledger) RaiseCapacity(amount int) {
	if amount <= 0 {
		return
	}
	l.capacity += amount
}

// IncrementTaskCompletions bumps the lifetime completed-task counter.
func (l *Ledger) IncrementTaskCompletions() { l.tasksCompleted++ }

// IncrementAdventureCompletions bumps the lifetime completed-adventure
// counter.
func (l *Ledger) IncrementAdventureCompletions() { l.dungeonsCompleted++ }

func (l *Ledger) Balance() int           { return l.balance }
func (l *Ledger) Capacity() int          { return l.capacity }
func (l *Ledger) TasksCompleted() int    { return l.tasksCompleted }
func (l *Ledger) DungeonsCompleted() int { return l.dungeonsCompleted }
