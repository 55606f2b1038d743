package progression

import (
	"errors"
	"time"

	"github.com/IntricEight/MentalHealthDungeon/internal/clock"
	"github.com/IntricEight/MentalHealthDungeon/internal/domain"
)

// Adventure state machine errors.
var (
	// ErrAdventureActive rejects a Begin while a run is underway.
	// There is no queueing; the second request is refused outright.
	ErrAdventureActive = errors.New("an adventure is already underway")
	// ErrNotEnoughIP rejects a Begin the ledger cannot afford.
	ErrNotEnoughIP = errors.New("not enough inspiration points to begin the adventure")
	// ErrNoAdventure rejects a Complete with nothing underway.
	ErrNoAdventure = errors.New("no adventure is underway")
	// ErrNotResolvable rejects a Complete before the timer elapses.
	ErrNotResolvable = errors.New("the adventure is not finished yet")
)

// ElapsedMessage replaces the countdown once an adventure becomes
// resolvable.
const ElapsedMessage = "Adventure complete!"

// AdventureState names the three observable states of the machine.
type AdventureState string

const (
	StateIdle       AdventureState = "idle"
	StateActive     AdventureState = "active"
	StateResolvable AdventureState = "resolvable"
)

// AdventureStatus is a read-only view of the current run, with the
// countdown already formatted for display.
type AdventureStatus struct {
	State       AdventureState `json:"state"`
	DungeonName string         `json:"dungeon_name,omitempty"`
	EndsAt      *time.Time     `json:"ends_at,omitempty"`
	Remaining   string         `json:"remaining,omitempty"`
}

// BeginAdventure debits the dungeon's cost and starts its timer.
// Fails if a run is already underway or the cost is unaffordable; on
// failure the ledger is untouched.
func (a *Account) BeginAdventure(dungeonName string) (domain.Adventure, ChangeSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	def, err := a.catalog.DungeonByName(dungeonName)
	if err != nil {
		return domain.Adventure{}, nil, err
	}
	if a.adventure != nil {
		return domain.Adventure{}, nil, ErrAdventureActive
	}
	if !a.ledger.CanAfford(def.Cost) {
		return domain.Adventure{}, nil, ErrNotEnoughIP
	}
	if err := a.ledger.Spend(def.Cost); err != nil {
		return domain.Adventure{}, nil, err
	}
	now := a.now()
	adv := domain.Adventure{
		DungeonName: def.Name,
		Cost:        def.Cost,
		StartedAt:   now,
		EndsAt:      now.Add(time.Duration(def.Hours * float64(time.Hour))),
		Rewards:     def.Rewards,
	}
	a.adventure = &adv
	end := adv.EndsAt
	return adv, ChangeSet{
		FieldInspirationPoints: a.ledger.Balance(),
		FieldActiveDungeonName: adv.DungeonName,
		FieldDungeonEndTime:    &end,
	}, nil
}

// Resolvable reports whether the current run's timer has elapsed and
// completion is awaiting user confirmation.
func (a *Account) Resolvable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resolvableLocked()
}

func (a *Account) resolvableLocked() bool {
	return a.adventure != nil && !a.now().Before(a.adventure.EndsAt)
}

// CompleteAdventure confirms a resolvable run: rewards are applied,
// the lifetime counter bumped, and the machine returns to idle.
// Completing early is an error, not a wait.
func (a *Account) CompleteAdventure() (ChangeSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.adventure == nil {
		return nil, ErrNoAdventure
	}
	if !a.resolvableLocked() {
		return nil, ErrNotResolvable
	}
	cs := ChangeSet{
		FieldActiveDungeonName: "",
		FieldDungeonEndTime:    (*time.Time)(nil),
	}
	capacityBefore := a.ledger.Capacity()
	for _, r := range a.adventure.Rewards {
		switch r.Kind {
		case domain.RewardIPMaxIncrease:
			a.ledger.RaiseCapacity(r.Value)
		case domain.RewardUnknown:
			// Unrecognized reward kinds are skipped, not fatal.
		}
	}
	if a.ledger.Capacity() != capacityBefore {
		cs[FieldCapacity] = a.ledger.Capacity()
	}
	a.ledger.IncrementAdventureCompletions()
	cs[FieldDungeonsCompleted] = a.ledger.DungeonsCompleted()
	a.adventure = nil
	return cs, nil
}

// AdventureStatus reports the machine's current state with a formatted
// countdown for active runs.
func (a *Account) AdventureStatus() AdventureStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.adventure == nil {
		return AdventureStatus{State: StateIdle}
	}
	now := a.now()
	end := a.adventure.EndsAt
	st := AdventureStatus{
		DungeonName: a.adventure.DungeonName,
		EndsAt:      &end,
		Remaining:   clock.Remaining(now, end, ElapsedMessage),
	}
	if now.Before(end) {
		st.State = StateActive
	} else {
		st.State = StateResolvable
	}
	return st
}
