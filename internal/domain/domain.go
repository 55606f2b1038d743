package domain

import "time"

// RewardKind identifies what a dungeon reward does to the account.
type RewardKind string

const (
	// RewardIPMaxIncrease raises the account's inspiration point capacity.
	RewardIPMaxIncrease RewardKind = "ipMaxIncrease"
	// RewardUnknown covers reward tags this build does not recognize.
	// The raw tag is preserved so newer catalogs stay loadable.
	RewardUnknown RewardKind = "unknown"
)

// Reward is one reward entry from a dungeon definition. The kind is
// resolved once at catalog load; Raw keeps the original tag for
// unrecognized kinds.
type Reward struct {
	Kind  RewardKind `json:"kind"`
	Raw   string     `json:"raw,omitempty"`
	Value int        `json:"value"`
}

// ParseReward resolves a tagged reward string into a Reward.
func ParseReward(item string, value int) Reward {
	switch item {
	case "ipMaxIncrease":
		return Reward{Kind: RewardIPMaxIncrease, Value: value}
	default:
		return Reward{Kind: RewardUnknown, Raw: item, Value: value}
	}
}

// Dungeon is an immutable adventure template from the catalog.
type Dungeon struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ImageNames  []string `json:"image_names,omitempty"`
	Rewards     []Reward `json:"rewards"`
	Cost        int      `json:"cost"`
	Hours       float64  `json:"hours"`
}

// PresetTask is a premade task template from the catalog.
type PresetTask struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Details string  `json:"details,omitempty"`
	Points  int     `json:"points"`
	Hours   float64 `json:"hours"`
}

// Adventure is one in-progress or resolvable dungeon run. At most one
// exists per account.
type Adventure struct {
	DungeonName string    `json:"dungeon_name"`
	Cost        int       `json:"cost"`
	StartedAt   time.Time `json:"started_at"`
	EndsAt      time.Time `json:"ends_at"`
	Rewards     []Reward  `json:"rewards"`
}

// AccountDocument is the flat persisted form of one account's
// progression state, matching the remote store's field names.
type AccountDocument struct {
	TaskList          []TaskRecord `json:"taskList"`
	InspirationPoints int          `json:"inspirationPoints"`
	Capacity          int          `json:"capacity"`
	ActiveDungeonName string       `json:"activeDungeonName,omitempty"`
	DungeonEndTime    *time.Time   `json:"dungeonEndTime,omitempty"`
	TasksCompleted    int          `json:"tasksCompleted"`
	DungeonsCompleted int          `json:"dungeonsCompleted"`
}
