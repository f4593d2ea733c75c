package sprintlinesdk

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

	"github.com/cenkalti/backoff/v4"
)

// Client is a minimal Sprintline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
	// MaxRetries bounds retries on connection errors and 5xx responses.
	// Zero disables retrying.
	MaxRetries uint64
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Timeout:    10 * time.Second,
		MaxRetries: 3,
	}
}

// Epic represents the API epic model (partial).
type Epic struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	StatusID  string `json:"status_id"`
	Title     string `json:"title"`
	Priority  int    `json:"priority"`
}

// Story represents the API user story model (partial).
type Story struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"project_id"`
	EpicID     *string `json:"epic_id,omitempty"`
	StatusID   string  `json:"status_id"`
	Title      string  `json:"title"`
	Priority   int     `json:"priority"`
	Points     *int    `json:"points,omitempty"`
	AssigneeID *string `json:"assignee_id,omitempty"`
}

// Task represents the API task model (partial).
type Task struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"project_id"`
	StoryID    *string `json:"story_id,omitempty"`
	StatusID   string  `json:"status_id"`
	Title      string  `json:"title"`
	Priority   int     `json:"priority"`
	AssigneeID *string `json:"assignee_id,omitempty"`
}

// Sprint represents the API sprint model.
type Sprint struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Goal      string `json:"goal,omitempty"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Status    string `json:"status"`
}

// BacklogItem is a story's position in a sprint backlog.
type BacklogItem struct {
	SprintID  string `json:"sprint_id"`
	StoryID   string `json:"story_id"`
	SortOrder int    `json:"sort_order"`
	AddedAt   string `json:"added_at"`
}

// BacklogEntry pairs a story with its backlog position.
type BacklogEntry struct {
	Story Story       `json:"story"`
	Item  BacklogItem `json:"item"`
}

// SprintMetrics is a stored per-sprint metrics snapshot.
type SprintMetrics struct {
	SprintID        string `json:"sprint_id"`
	PlannedPoints   int    `json:"planned_points"`
	CompletedPoints int    `json:"completed_points"`
	TotalTasks      int    `json:"total_tasks"`
	CompletedTasks  int    `json:"completed_tasks"`
	Velocity        int    `json:"velocity"`
	CalculatedAt    string `json:"calculated_at"`
}

// Comment represents the API comment model.
type Comment struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	AuthorID   string `json:"author_id"`
	Body       string `json:"body"`
	CreatedAt  string `json:"created_at"`
}

// Activity represents an activity log entry.
type Activity struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
}

// envelope matches the API response wrapper. On success Data carries the
// payload; on failure Err carries the message.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Err     string          `json:"error"`
}

// CreateEpic creates an epic in a project.
func (c *Client) CreateEpic(ctx context.Context, projectID, title string, priority int) (Epic, error) {
	body := map[string]any{"title": title}
	if priority > 0 {
		body["priority"] = priority
	}
	var resp Epic
	endpoint := fmt.Sprintf("projects/%s/epics", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// CreateStory creates a user story in a project.
func (c *Client) CreateStory(ctx context.Context, projectID, title string, points int) (Story, error) {
	body := map[string]any{"title": title}
	if points > 0 {
		body["points"] = points
	}
	var resp Story
	endpoint := fmt.Sprintf("projects/%s/stories", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// CreateTask creates a task in a project.
func (c *Client) CreateTask(ctx context.Context, projectID, title, storyID string) (Task, error) {
	body := map[string]any{"title": title}
	if storyID != "" {
		body["story_id"] = storyID
	}
	var resp Task
	endpoint := fmt.Sprintf("projects/%s/tasks", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ChangeStoryStatus moves a story to a status of its flow.
func (c *Client) ChangeStoryStatus(ctx context.Context, storyID, statusID string) (Story, error) {
	var resp Story
	endpoint := fmt.Sprintf("stories/%s/status", url.PathEscape(storyID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"status_id": statusID}, &resp)
	return resp, err
}

// ChangeTaskStatus moves a task to a status of its flow.
func (c *Client) ChangeTaskStatus(ctx context.Context, taskID, statusID string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("tasks/%s/status", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"status_id": statusID}, &resp)
	return resp, err
}

// CreateSprint creates a planned sprint. Dates are RFC3339 and optional.
func (c *Client) CreateSprint(ctx context.Context, projectID, name, goal, startDate, endDate string) (Sprint, error) {
	body := map[string]any{"name": name}
	if goal != "" {
		body["goal"] = goal
	}
	if startDate != "" {
		body["start_date"] = startDate
	}
	if endDate != "" {
		body["end_date"] = endDate
	}
	var resp Sprint
	endpoint := fmt.Sprintf("projects/%s/sprints", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// StartSprint moves a planned sprint to active.
func (c *Client) StartSprint(ctx context.Context, sprintID string) (Sprint, error) {
	return c.transitionSprint(ctx, sprintID, "start")
}

// CompleteSprint completes a sprint and snapshots its metrics.
func (c *Client) CompleteSprint(ctx context.Context, sprintID string) (Sprint, error) {
	return c.transitionSprint(ctx, sprintID, "complete")
}

// CancelSprint cancels a sprint.
func (c *Client) CancelSprint(ctx context.Context, sprintID string) (Sprint, error) {
	return c.transitionSprint(ctx, sprintID, "cancel")
}

func (c *Client) transitionSprint(ctx context.Context, sprintID, action string) (Sprint, error) {
	var resp Sprint
	endpoint := fmt.Sprintf("sprints/%s/%s", url.PathEscape(sprintID), action)
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// AddToBacklog adds a story to a sprint backlog. Order <= 0 appends.
func (c *Client) AddToBacklog(ctx context.Context, sprintID, storyID string, order int) (BacklogItem, error) {
	body := map[string]any{"story_id": storyID}
	if order > 0 {
		body["sort_order"] = order
	}
	var resp BacklogItem
	endpoint := fmt.Sprintf("sprints/%s/backlog", url.PathEscape(sprintID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Backlog returns a sprint backlog in sort order.
func (c *Client) Backlog(ctx context.Context, sprintID string) ([]BacklogEntry, error) {
	var resp []BacklogEntry
	endpoint := fmt.Sprintf("sprints/%s/backlog", url.PathEscape(sprintID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RemoveFromBacklog removes a story from a sprint backlog. The bool
// reports whether the story was present.
func (c *Client) RemoveFromBacklog(ctx context.Context, sprintID, storyID string) (bool, error) {
	var resp struct {
		Removed bool `json:"removed"`
	}
	endpoint := fmt.Sprintf("sprints/%s/backlog/%s", url.PathEscape(sprintID), url.PathEscape(storyID))
	err := c.do(ctx, http.MethodDelete, endpoint, nil, &resp)
	return resp.Removed, err
}

// ReorderBacklog moves a story to a position, swapping with any
// occupant, and returns the reordered backlog.
func (c *Client) ReorderBacklog(ctx context.Context, sprintID, storyID string, order int) ([]BacklogEntry, error) {
	var resp []BacklogEntry
	endpoint := fmt.Sprintf("sprints/%s/backlog/%s/reorder", url.PathEscape(sprintID), url.PathEscape(storyID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"sort_order": order}, &resp)
	return resp, err
}

// Metrics returns the stored metrics snapshot for a sprint. A sprint
// with no snapshot yet yields a 404 APIError.
func (c *Client) Metrics(ctx context.Context, sprintID string) (SprintMetrics, error) {
	var resp SprintMetrics
	endpoint := fmt.Sprintf("sprints/%s/metrics", url.PathEscape(sprintID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RefreshMetrics recomputes and stores the metrics snapshot.
func (c *Client) RefreshMetrics(ctx context.Context, sprintID string) (SprintMetrics, error) {
	var resp SprintMetrics
	endpoint := fmt.Sprintf("sprints/%s/metrics/refresh", url.PathEscape(sprintID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// AddComment comments on an epic, story, task, or sprint.
func (c *Client) AddComment(ctx context.Context, entityKind, entityID, body string) (Comment, error) {
	payload := map[string]any{
		"entity_kind": entityKind,
		"entity_id":   entityID,
		"body":        body,
	}
	var resp Comment
	err := c.do(ctx, http.MethodPost, "comments", payload, &resp)
	return resp, err
}

// Activities returns recent activity log entries.
func (c *Client) Activities(ctx context.Context, projectID string, limit int) ([]Activity, error) {
	endpoint := "activities"
	params := url.Values{}
	if projectID != "" {
		params.Set("project_id", projectID)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp []Activity
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	attempt := func() error {
		return c.doOnce(ctx, method, endpoint, payload, out)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.MaxRetries), ctx)
	return backoff.Retry(attempt, policy)
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Connection-level failures are retryable.
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
	}
	if resp.StatusCode >= 300 {
		msg := env.Err
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: msg}
		if resp.StatusCode >= 500 {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return backoff.Permanent(err)
		}
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/v1"
}
