package server

import (
	"time"

	"github.com/IntricEight/MentalHealthDungeon/internal/domain"
)

// Request payloads

type CreateAccountRequest struct {
	ID string `json:"id" minLength:"1" maxLength:"64"`
}

type CreateTaskRequest struct {
	Name    string  `json:"name"`
	Details string  `json:"details,omitempty"`
	Points  int     `json:"points"`
	Hours   float64 `json:"hours"`
}

type PresetTaskRequest struct {
	Name string `json:"name"`
}

type BeginAdventureRequest struct {
	Dungeon string `json:"dungeon"`
}

// Response payloads

type AccountResponse struct {
	ID                string     `json:"id"`
	InspirationPoints int        `json:"inspirationPoints"`
	Capacity          int        `json:"capacity"`
	ActiveDungeonName string     `json:"activeDungeonName,omitempty"`
	DungeonEndTime    *time.Time `json:"dungeonEndTime,omitempty"`
	TasksCompleted    int        `json:"tasksCompleted"`
	DungeonsCompleted int        `json:"dungeonsCompleted"`
	TaskCount         int        `json:"taskCount"`
}

func accountResponse(id string, doc domain.AccountDocument) AccountResponse {
	return AccountResponse{
		ID:                id,
		InspirationPoints: doc.InspirationPoints,
		Capacity:          doc.Capacity,
		ActiveDungeonName: doc.ActiveDungeonName,
		DungeonEndTime:    doc.DungeonEndTime,
		TasksCompleted:    doc.TasksCompleted,
		DungeonsCompleted: doc.DungeonsCompleted,
		TaskCount:         len(doc.TaskList),
	}
}

type TaskResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Details        string    `json:"details,omitempty"`
	Points         int       `json:"points"`
	CreationTime   time.Time `json:"creationTime"`
	ExpirationTime time.Time `json:"expirationTime"`
	Remaining      string    `json:"remaining"`
}

type CompleteTaskResponse struct {
	ID       string `json:"id"`
	Credited bool   `json:"credited"`
}

type AdventureStatusResponse struct {
	State     string     `json:"state" enum:"idle,active,resolvable"`
	Dungeon   string     `json:"dungeon,omitempty"`
	EndsAt    *time.Time `json:"endsAt,omitempty"`
	Remaining string     `json:"remaining,omitempty"`
}

type RewardResponse struct {
	Item  string `json:"item"`
	Value int    `json:"value"`
}

type DungeonResponse struct {
	ID          int              `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Cost        int              `json:"cost"`
	Hours       float64          `json:"hours"`
	Rewards     []RewardResponse `json:"rewards,omitempty"`
}

func dungeonResponse(d domain.Dungeon) DungeonResponse {
	resp := DungeonResponse{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Cost:        d.Cost,
		Hours:       d.Hours,
	}
	for _, r := range d.Rewards {
		item := r.Raw
		if item == "" {
			item = string(r.Kind)
		}
		resp.Rewards = append(resp.Rewards, RewardResponse{Item: item, Value: r.Value})
	}
	return resp
}

type PresetResponse struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Details string  `json:"details,omitempty"`
	Points  int     `json:"points"`
	Hours   float64 `json:"hours"`
}
