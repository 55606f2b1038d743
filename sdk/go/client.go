// Package mhdsdk is a minimal client for the MentalHealthDungeon HTTP API.
package mhdsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal MentalHealthDungeon HTTP API client.
type Client struct {
	BaseURL    string
	AccountID  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, accountID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		AccountID: accountID,
		Timeout:   10 * time.Second,
	}
}

// Account is the API account snapshot.
type Account struct {
	ID                string `json:"id"`
	InspirationPoints int    `json:"inspirationPoints"`
	Capacity          int    `json:"capacity"`
	ActiveDungeonName string `json:"activeDungeonName,omitempty"`
	DungeonEndTime    string `json:"dungeonEndTime,omitempty"`
	TasksCompleted    int    `json:"tasksCompleted"`
	DungeonsCompleted int    `json:"dungeonsCompleted"`
	TaskCount         int    `json:"taskCount"`
}

// Task is the API task model.
type Task struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Details        string `json:"details,omitempty"`
	Points         int    `json:"points"`
	CreationTime   string `json:"creationTime"`
	ExpirationTime string `json:"expirationTime"`
	Remaining      string `json:"remaining"`
}

// AdventureStatus is the API adventure view.
type AdventureStatus struct {
	State     string `json:"state"`
	Dungeon   string `json:"dungeon,omitempty"`
	EndsAt    string `json:"endsAt,omitempty"`
	Remaining string `json:"remaining,omitempty"`
}

// Dungeon is one catalog dungeon definition.
type Dungeon struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Cost        int     `json:"cost"`
	Hours       float64 `json:"hours"`
}

// Preset is one catalog preset task definition.
type Preset struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Details string  `json:"details,omitempty"`
	Points  int     `json:"points"`
	Hours   float64 `json:"hours"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateAccount registers the client's account id.
func (c *Client) CreateAccount(ctx context.Context) (Account, error) {
	var resp Account
	err := c.do(ctx, http.MethodPost, "v0/accounts", map[string]any{"id": c.AccountID}, &resp)
	return resp, err
}

// Account fetches the account snapshot.
func (c *Client) Account(ctx context.Context) (Account, error) {
	var resp Account
	err := c.do(ctx, http.MethodGet, c.accountPath(""), nil, &resp)
	return resp, err
}

// AddTask creates a custom task.
func (c *Client) AddTask(ctx context.Context, name, details string, points int, hours float64) (Task, error) {
	body := map[string]any{
		"name":    name,
		"details": details,
		"points":  points,
		"hours":   hours,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, c.accountPath("tasks"), body, &resp)
	return resp, err
}

// AddPresetTask creates a task from the preset catalog.
func (c *Client) AddPresetTask(ctx context.Context, name string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, c.accountPath("tasks/preset"), map[string]any{"name": name}, &resp)
	return resp, err
}

// Tasks lists the active tasks.
func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, c.accountPath("tasks"), nil, &resp)
	return resp, err
}

// CompleteTask completes a task and reports whether points were
// credited.
func (c *Client) CompleteTask(ctx context.Context, taskID string) (bool, error) {
	var resp struct {
		Credited bool `json:"credited"`
	}
	endpoint := c.accountPath(fmt.Sprintf("tasks/%s/complete", url.PathEscape(taskID)))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp.Credited, err
}

// DropTask removes a task without completing it.
func (c *Client) DropTask(ctx context.Context, taskID string) error {
	endpoint := c.accountPath(fmt.Sprintf("tasks/%s", url.PathEscape(taskID)))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// BeginAdventure spends points to enter a dungeon.
func (c *Client) BeginAdventure(ctx context.Context, dungeon string) (AdventureStatus, error) {
	var resp AdventureStatus
	err := c.do(ctx, http.MethodPost, c.accountPath("adventure"), map[string]any{"dungeon": dungeon}, &resp)
	return resp, err
}

// AdventureStatus returns the current adventure with its countdown.
func (c *Client) AdventureStatus(ctx context.Context) (AdventureStatus, error) {
	var resp AdventureStatus
	err := c.do(ctx, http.MethodGet, c.accountPath("adventure"), nil, &resp)
	return resp, err
}

// CompleteAdventure collects a finished adventure's reward and returns
// the refreshed account.
func (c *Client) CompleteAdventure(ctx context.Context) (Account, error) {
	var resp Account
	err := c.do(ctx, http.MethodDelete, c.accountPath("adventure"), nil, &resp)
	return resp, err
}

// Dungeons lists the dungeon catalog.
func (c *Client) Dungeons(ctx context.Context) ([]Dungeon, error) {
	var resp []Dungeon
	err := c.do(ctx, http.MethodGet, "v0/dungeons", nil, &resp)
	return resp, err
}

// Presets lists the preset task catalog.
func (c *Client) Presets(ctx context.Context) ([]Preset, error) {
	var resp []Preset
	err := c.do(ctx, http.MethodGet, "v0/presets", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) accountPath(p string) string {
	account := url.PathEscape(c.AccountID)
	if p == "" {
		return fmt.Sprintf("v0/accounts/%s", account)
	}
	return fmt.Sprintf("v0/accounts/%s/%s", account, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
