package progression

import (
	"errors"

	"github.com/IntricEight/MentalHealthDungeon/internal/domain"
)

// ErrTaskNotFound is returned when no active task matches the id.
var ErrTaskNotFound = errors.New("no task with that id")

// CreateTask validates and adds a custom task expiring the given
// number of hours from now. Returns the new task and the change-set.
func (a *Account) CreateTask(name, details string, points int, hours float64) (domain.Task, ChangeSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	task, err := domain.NewTaskWithDuration(name, details, points, hours, a.now())
	if err != nil {
		return domain.Task{}, nil, err
	}
	return task, a.addTaskLocked(task), nil
}

// CreatePresetTask mints a task from the named catalog preset.
func (a *Account) CreatePresetTask(name string) (domain.Task, ChangeSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	preset, err := a.catalog.PresetByName(name)
	if err != nil {
		return domain.Task{}, nil, err
	}
	task, err := domain.NewTaskFromPreset(preset, a.now())
	if err != nil {
		return domain.Task{}, nil, err
	}
	return task, a.addTaskLocked(task), nil
}

// AddTask inserts an already-constructed task into the active list and
// returns its id. The ledger is untouched; rewards are granted on
// removal, not creation.
func (a *Account) AddTask(task domain.Task) (string, ChangeSet) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return task.ID, a.addTaskLocked(task)
}

func (a *Account) addTaskLocked(task domain.Task) ChangeSet {
	a.tasks = append(a.tasks, task)
	return ChangeSet{FieldTaskList: a.taskRecordsLocked()}
}

// RemoveTask removes the task from the active list. When completed is
// true the reward points are credited and the lifetime counter bumped,
// atomically with the removal. The caller decides completed; tasks
// actioned after expiry should be passed as false (see CompleteTask).
func (a *Account) RemoveTask(id string, completed bool) (ChangeSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.removeTaskLocked(id, completed)
}

// CompleteTask is the user-facing completion path: the expiry check
// happens here, against the clock at the moment of the action. A task
// completed after its expiration is treated as failed and earns
// nothing. The returned bool reports whether the reward was credited.
func (a *Account) CompleteTask(id string) (bool, ChangeSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	completed := false
	for _, t := range a.tasks {
		if t.ID == id {
			completed = !t.Expired(a.now())
			break
		}
	}
	cs, err := a.removeTaskLocked(id, completed)
	if err != nil {
		return false, nil, err
	}
	return completed, cs, nil
}

func (a *Account) removeTaskLocked(id string, completed bool) (ChangeSet, error) {
	idx := -1
	for i, t := range a.tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrTaskNotFound
	}
	task := a.tasks[idx]
	a.tasks = append(a.tasks[:idx], a.tasks[idx+1:]...)

	cs := ChangeSet{FieldTaskList: a.taskRecordsLocked()}
	if completed {
		before := a.ledger.Balance()
		a.ledger.Earn(task.Points)
		a.ledger.IncrementTaskCompletions()
		if a.ledger.Balance() != before {
			cs[FieldInspirationPoints] = a.ledger.Balance()
		}
		cs[FieldTasksCompleted] = a.ledger.TasksCompleted()
	}
	return cs, nil
}

// ListTasks returns the active tasks in insertion order.
func (a *Account) ListTasks() []domain.Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Task, len(a.tasks))
	copy(out, a.tasks)
	return out
}
