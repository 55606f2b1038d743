package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Limits applied by the task factory. These mirror what the creation
// form allows, so a task that round-trips through the store can never
// be rejected on the way back in.
const (
	MaxTaskPoints    = 15
	MaxTaskHours     = 168.0
	MaxNameLength    = 30
	MaxDetailsLength = 200
)

// Task construction errors.
var (
	ErrZeroPoints        = errors.New("task cannot reward zero inspiration points")
	ErrNegativePoints    = errors.New("task cannot reward negative inspiration points")
	ErrTooManyPoints     = fmt.Errorf("task cannot reward more than %d inspiration points", MaxTaskPoints)
	ErrInvalidExpiration = errors.New("task expiration must be beyond the present")
	ErrTooManyHours      = errors.New("task cannot run longer than a week")
	ErrEmptyName         = errors.New("task name is required")
	ErrNameTooLong       = fmt.Errorf("task name exceeds %d characters", MaxNameLength)
	ErrDetailsTooLong    = fmt.Errorf("task details exceed %d characters", MaxDetailsLength)
)

// Task is a time-bound objective that rewards inspiration points on
// completion. Immutable after construction; lifecycle (membership in
// the account's active list) is owned by the progression facade.
type Task struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Details        string    `json:"details,omitempty"`
	Points         int       `json:"points"`
	CreationTime   time.Time `json:"creation_time"`
	ExpirationTime time.Time `json:"expiration_time"`
}

func validateTaskFields(name, details string, points int) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if len(details) > MaxDetailsLength {
		return ErrDetailsTooLong
	}
	if points == 0 {
		return ErrZeroPoints
	}
	if points < 0 {
		return ErrNegativePoints
	}
	if points > MaxTaskPoints {
		return ErrTooManyPoints
	}
	return nil
}

// NewTask builds a task whose expiration instant is given directly.
// now is supplied by the caller so construction stays deterministic
// under a simulated clock.
func NewTask(name, details string, points int, expiresAt, now time.Time) (Task, error) {
	if err := validateTaskFields(name, details, points); err != nil {
		return Task{}, err
	}
	if !expiresAt.After(now) {
		return Task{}, ErrInvalidExpiration
	}
	return Task{
		ID:             uuid.New().String(),
		Name:           name,
		Details:        details,
		Points:         points,
		CreationTime:   now,
		ExpirationTime: expiresAt,
	}, nil
}

// NewTaskWithDuration builds a task that expires the given number of
// hours after now. Fractional hours are allowed.
func NewTaskWithDuration(name, details string, points int, hours float64, now time.Time) (Task, error) {
	if err := validateTaskFields(name, details, points); err != nil {
		return Task{}, err
	}
	if hours <= 0 {
		return Task{}, ErrInvalidExpiration
	}
	if hours > MaxTaskHours {
		return Task{}, ErrTooManyHours
	}
	return Task{
		ID:             uuid.New().String(),
		Name:           name,
		Details:        details,
		Points:         points,
		CreationTime:   now,
		ExpirationTime: now.Add(time.Duration(hours * float64(time.Hour))),
	}, nil
}

// NewTaskFromPreset mints a fresh task from a catalog template. The
// template passes through the same validation as user input.
func NewTaskFromPreset(preset PresetTask, now time.Time) (Task, error) {
	return NewTaskWithDuration(preset.Name, preset.Details, preset.Points, preset.Hours, now)
}

// RemainingTime reports how long until the task expires. Negative once
// the expiration has passed.
func (t Task) RemainingTime(now time.Time) time.Duration {
	return t.ExpirationTime.Sub(now)
}

// Expired reports whether the task's window has closed.
func (t Task) Expired(now time.Time) bool {
	return !now.Before(t.ExpirationTime)
}

func (t Task) String() string {
	return fmt.Sprintf("Task: %s. Expires at %s", t.Name, t.ExpirationTime.Format(time.RFC3339))
}

// TaskRecord is the flat key-value form a task takes in the account
// document store.
type TaskRecord struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Details        string    `json:"details"`
	Points         int       `json:"points"`
	CreationTime   time.Time `json:"creationTime"`
	ExpirationTime time.Time `json:"expirationTime"`
}

// Record converts the task to its persisted form.
func (t Task) Record() TaskRecord {
	return TaskRecord{
		ID:             t.ID,
		Name:           t.Name,
		Details:        t.Details,
		Points:         t.Points,
		CreationTime:   t.CreationTime,
		ExpirationTime: t.ExpirationTime,
	}
}

// TaskFromRecord rebuilds a task from its persisted form. Stored tasks
// are trusted; validation happened at creation.
func TaskFromRecord(r TaskRecord) Task {
	return Task{
		ID:             r.ID,
		Name:           r.Name,
		Details:        r.Details,
		Points:         r.Points,
		CreationTime:   r.CreationTime,
		ExpirationTime: r.ExpirationTime,
	}
}
