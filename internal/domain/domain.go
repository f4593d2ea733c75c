package domain

// Entity kinds that carry a status reference.
const (
	KindTask  = "task"
	KindStory = "story"
	KindEpic  = "epic"
)

// Sprint lifecycle states.
const (
	SprintPlanned   = "planned"
	SprintActive    = "active"
	SprintCompleted = "completed"
	SprintCancelled = "cancelled"
)

type Tenant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Status      string `json:"status" enum:"active,archived"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Team struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type TeamMember struct {
	TeamID    string `json:"team_id"`
	ActorID   string `json:"actor_id"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// StatusFlow is a named, ordered set of statuses scoped to one project
// and one entity kind.
type StatusFlow struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Kind      string `json:"kind" enum:"task,story,epic"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Status struct {
	ID        string `json:"id"`
	FlowID    string `json:"flow_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	SortOrder int    `json:"sort_order"`
	IsInitial bool   `json:"is_initial"`
	IsFinal   bool   `json:"is_final"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Epic struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	StatusID    string  `json:"status_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Priority    int     `json:"priority" minimum:"1" maximum:"5"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type UserStory struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	EpicID      *string `json:"epic_id,omitempty"`
	StatusID    string  `json:"status_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Priority    int     `json:"priority" minimum:"1" maximum:"5"`
	Points      *int    `json:"points,omitempty"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID             string   `json:"id"`
	ProjectID      string   `json:"project_id"`
	StoryID        *string  `json:"story_id,omitempty"`
	StatusID       string   `json:"status_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Priority       int      `json:"priority" minimum:"1" maximum:"5"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
	AssigneeID     *string  `json:"assignee_id,omitempty"`
	DueDate        *string  `json:"due_date,omitempty" format:"date-time"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
	UpdatedAt      string   `json:"updated_at" format:"date-time"`
}

type Sprint struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Goal      string `json:"goal,omitempty"`
	StartDate string `json:"start_date" format:"date-time"`
	EndDate   string `json:"end_date" format:"date-time"`
	Status    string `json:"status" enum:"planned,active,completed,cancelled"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// SprintBacklogItem is an ordered membership edge between a sprint and
// a story. (sprint_id, story_id) is the composite key: a story holds at
// most one position per sprint but may sit in several sprints at once.
type SprintBacklogItem struct {
	SprintID  string `json:"sprint_id"`
	StoryID   string `json:"story_id"`
	SortOrder int    `json:"sort_order"`
	AddedAt   string `json:"added_at" format:"date-time"`
}

// SprintMetric is a recomputed-on-demand snapshot, one row per sprint.
type SprintMetric struct {
	SprintID        string `json:"sprint_id"`
	PlannedPoints   int    `json:"planned_points"`
	CompletedPoints int    `json:"completed_points"`
	TotalTasks      int    `json:"total_tasks"`
	CompletedTasks  int    `json:"completed_tasks"`
	Velocity        int    `json:"velocity"`
	CalculatedAt    string `json:"calculated_at" format:"date-time"`
}

type Comment struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	EntityKind string `json:"entity_kind" enum:"epic,story,task,sprint"`
	EntityID   string `json:"entity_id"`
	AuthorID   string `json:"author_id"`
	Body       string `json:"body"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Activity struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
