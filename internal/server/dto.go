package server

import "sprintline/internal/domain"

type CreateProjectRequest struct {
	ID          string `json:"id,omitempty"`
	TenantID    string `json:"tenant_id"`
	TenantName  string `json:"tenant_name,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type UpdateProjectRequest struct {
	Name        string  `json:"name,omitempty"`
	Status      string  `json:"status,omitempty" enum:",active,archived"`
	Description *string `json:"description,omitempty"`
}

type CreateFlowRequest struct {
	Kind      string `json:"kind" enum:"task,story,epic"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default,omitempty"`
}

type CreateStatusRequest struct {
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	SortOrder int    `json:"sort_order"`
	IsInitial bool   `json:"is_initial,omitempty"`
	IsFinal   bool   `json:"is_final,omitempty"`
}

type CreateTeamRequest struct {
	Name string `json:"name"`
}

type AddTeamMemberRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role,omitempty"`
}

type CreateEpicRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Priority    int     `json:"priority,omitempty" minimum:"0" maximum:"5"`
	StatusID    string  `json:"status_id,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
}

type UpdateEpicRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
}

type CreateStoryRequest struct {
	EpicID      *string `json:"epic_id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Priority    int     `json:"priority,omitempty" minimum:"0" maximum:"5"`
	Points      *int    `json:"points,omitempty"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	StatusID    string  `json:"status_id,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
}

type UpdateStoryRequest struct {
	EpicID      *string `json:"epic_id,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
	Points      *int    `json:"points,omitempty"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
}

type CreateTaskRequest struct {
	StoryID        *string  `json:"story_id,omitempty"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Priority       int      `json:"priority,omitempty" minimum:"0" maximum:"5"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
	AssigneeID     *string  `json:"assignee_id,omitempty"`
	StatusID       string   `json:"status_id,omitempty"`
	DueDate        *string  `json:"due_date,omitempty" format:"date-time"`
}

type UpdateTaskRequest struct {
	StoryID        *string  `json:"story_id,omitempty"`
	Title          *string  `json:"title,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Priority       *int     `json:"priority,omitempty"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
	AssigneeID     *string  `json:"assignee_id,omitempty"`
	DueDate        *string  `json:"due_date,omitempty" format:"date-time"`
}

type ChangeStatusRequest struct {
	StatusID string `json:"status_id"`
}

type CreateSprintRequest struct {
	Name      string `json:"name"`
	Goal      string `json:"goal,omitempty"`
	StartDate string `json:"start_date,omitempty" format:"date-time"`
	EndDate   string `json:"end_date,omitempty" format:"date-time"`
}

type BacklogAddRequest struct {
	StoryID   string `json:"story_id"`
	SortOrder *int   `json:"sort_order,omitempty"`
}

type BacklogReorderRequest struct {
	SortOrder int `json:"sort_order"`
}

type CreateCommentRequest struct {
	EntityKind string `json:"entity_kind" enum:"epic,story,task,sprint"`
	EntityID   string `json:"entity_id"`
	Body       string `json:"body"`
}

type CreateKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type APIKeyCreatedResponse struct {
	Key    string        `json:"key"`
	APIKey domain.APIKey `json:"api_key"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type RemovedResponse struct {
	Removed bool `json:"removed"`
}

// ProjectStatusResponse is the per-project dashboard body.
type ProjectStatusResponse struct {
	ProjectID   string         `json:"project_id"`
	Status      string         `json:"status"`
	EpicCounts  map[string]int `json:"epic_counts"`
	StoryCounts map[string]int `json:"story_counts"`
	TaskCounts  map[string]int `json:"task_counts"`
}
