// Package progression implements the account progression core: the
// task lifecycle, the adventure state machine, and the points ledger,
// composed behind one facade. All mutating operations are atomic with
// respect to the account aggregate and emit a change-set describing
// the persisted fields they touched.
package progression

import (
	"sync"
	"time"

	"github.com/IntricEight/MentalHealthDungeon/internal/catalog"
	"github.com/IntricEight/MentalHealthDungeon/internal/domain"
	"github.com/IntricEight/MentalHealthDungeon/internal/ledger"
)

// DefaultCapacity is the IP ceiling a brand new account starts with.
const DefaultCapacity = 100

// Persisted field names, shared with the account document store.
const (
	FieldTaskList          = "taskList"
	FieldInspirationPoints = "inspirationPoints"
	FieldCapacity          = "capacity"
	FieldActiveDungeonName = "activeDungeonName"
	FieldDungeonEndTime    = "dungeonEndTime"
	FieldTasksCompleted    = "tasksCompleted"
	FieldDungeonsCompleted = "dungeonsCompleted"
)

// ChangeSet maps persisted field names to their new values. One is
// emitted by every successful mutation; callers forward it to the
// store. The core itself performs no I/O.
type ChangeSet map[string]any

// Account is the aggregate owning one user's progression state. All
// exported methods are safe for concurrent use; mutations hold the
// account mutex for their full duration so no partial state is ever
// observable.
type Account struct {
	mu sync.Mutex

	// Now is the clock used for every time comparison. Swap it in
	// tests to simulate elapsed time.
	Now func() time.Time

	catalog   *catalog.Catalog
	ledger    *ledger.Ledger
	tasks     []domain.Task
	adventure *domain.Adventure
}

// New builds a fresh account with an empty task list, no adventure,
// and an empty ledger at the default capacity.
func New(cat *catalog.Catalog) *Account {
	return &Account{
		Now:     time.Now,
		catalog: cat,
		ledger:  ledger.New(0, DefaultCapacity),
	}
}

// FromDocument rehydrates an account from its persisted document.
// An active adventure is rebuilt by looking its dungeon up in the
// catalog; if the definition has since disappeared the run keeps its
// timer but grants no rewards on completion.
func FromDocument(cat *catalog.Catalog, doc domain.AccountDocument) *Account {
	a := &Account{
		Now:     time.Now,
		catalog: cat,
		ledger:  ledger.Restore(doc.InspirationPoints, doc.Capacity, doc.TasksCompleted, doc.DungeonsCompleted),
	}
	for _, r := range doc.TaskList {
		a.tasks = append(a.tasks, domain.TaskFromRecord(r))
	}
	if doc.ActiveDungeonName != "" && doc.DungeonEndTime != nil {
		adv := domain.Adventure{
			DungeonName: doc.ActiveDungeonName,
			EndsAt:      *doc.DungeonEndTime,
		}
		if def, err := cat.DungeonByName(doc.ActiveDungeonName); err == nil {
			adv.Cost = def.Cost
			adv.Rewards = def.Rewards
			adv.StartedAt = adv.EndsAt.Add(-time.Duration(def.Hours * float64(time.Hour)))
		}
		a.adventure = &adv
	}
	return a
}

func (a *Account) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Balance returns the current IP balance.
func (a *Account) Balance() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Balance()
}

// Capacity returns the current IP ceiling.
func (a *Account) Capacity() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Capacity()
}

// Snapshot exports the full persisted state of the account, suitable
// for seeding the store or for read endpoints.
func (a *Account) Snapshot() domain.AccountDocument {
	a.mu.Lock()
	defer a.mu.Unlock()
	doc := domain.AccountDocument{
		InspirationPoints: a.ledger.Balance(),
		Capacity:          a.ledger.Capacity(),
		TasksCompleted:    a.ledger.TasksCompleted(),
		DungeonsCompleted: a.ledger.DungeonsCompleted(),
	}
	for _, t := range a.tasks {
		doc.TaskList = append(doc.TaskList, t.Record())
	}
	if a.adventure != nil {
		doc.ActiveDungeonName = a.adventure.DungeonName
		end := a.adventure.EndsAt
		doc.DungeonEndTime = &end
	}
	return doc
}

// taskRecordsLocked snapshots the task list in persisted form. Callers
// hold the mutex.
func (a *Account) taskRecordsLocked() []domain.TaskRecord {
	records := make([]domain.TaskRecord, 0, len(a.tasks))
	for _, t := range a.tasks {
		records = append(records, t.Record())
	}
	return records
}
