package engine

import (
	"context"
	"errors"
	"fmt"

	"sprintline/internal/domain"
	"sprintline/internal/events"
	"sprintline/internal/repo"
)

// resolveStatus validates a requested status against a project and
// kind, or picks the entry status of the default flow when none is
// requested.
func (e Engine) resolveStatus(ctx context.Context, projectID, kind, statusID string) (domain.Status, error) {
	if statusID == "" {
		flow, err := e.Repo.DefaultFlow(ctx, projectID, kind)
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Status{}, fmt.Errorf("no %s flow configured for project %s", kind, projectID)
		}
		if err != nil {
			return domain.Status{}, err
		}
		s, err := e.Repo.InitialStatus(ctx, flow.ID)
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Status{}, fmt.Errorf("flow %s has no statuses", flow.ID)
		}
		return s, err
	}
	s, flow, err := e.Repo.StatusFlowInfo(ctx, statusID)
	if err != nil {
		return domain.Status{}, err
	}
	if flow.Kind != kind {
		return domain.Status{}, KindMismatchError{StatusID: statusID, Want: kind, Got: flow.Kind}
	}
	if flow.ProjectID != projectID {
		return domain.Status{}, fmt.Errorf("status %s belongs to project %s", statusID, flow.ProjectID)
	}
	return s, nil
}

// EpicCreateOptions are parameters for creating an epic.
type EpicCreateOptions struct {
	ProjectID   string
	Title       string
	Description string
	Priority    int
	StatusID    string
	DueDate     *string
	ActorID     string
}

func (e Engine) CreateEpic(ctx context.Context, opts EpicCreateOptions) (domain.Epic, error) {
	if opts.Title == "" {
		return domain.Epic{}, errors.New("title is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Epic{}, err
	}
	status, err := e.resolveStatus(ctx, opts.ProjectID, domain.KindEpic, opts.StatusID)
	if err != nil {
		return domain.Epic{}, err
	}
	if opts.Priority == 0 {
		opts.Priority = 3
	}
	now := e.timestamp()
	epic := domain.Epic{
		ID:          e.newID(opts.ProjectID, "epic", opts.Title),
		ProjectID:   opts.ProjectID,
		StatusID:    status.ID,
		Title:       opts.Title,
		Description: opts.Description,
		Priority:    opts.Priority,
		DueDate:     opts.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Epic{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertEpic(ctx, tx, epic); err != nil {
		return domain.Epic{}, err
	}
	if err := e.Events.Append(ctx, tx, "epic.create", epic.ProjectID, domain.KindEpic, epic.ID, opts.ActorID, events.ActivityPayload{"title": epic.Title, "status_id": epic.StatusID}); err != nil {
		return domain.Epic{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Epic{}, err
	}
	return epic, nil
}

// EpicUpdateOptions patch an epic; nil fields are left untouched.
type EpicUpdateOptions struct {
	Title       *string
	Description *string
	Priority    *int
	DueDate     *string
	ActorID     string
}

func (e Engine) UpdateEpic(ctx context.Context, id string, opts EpicUpdateOptions) (domain.Epic, error) {
	epic, err := e.Repo.GetEpic(ctx, id)
	if err != nil {
		return domain.Epic{}, err
	}
	if opts.Title != nil {
		if *opts.Title == "" {
			return domain.Epic{}, errors.New("title must not be empty")
		}
		epic.Title = *opts.Title
	}
	if opts.Description != nil {
		epic.Description = *opts.Description
	}
	if opts.Priority != nil {
		epic.Priority = *opts.Priority
	}
	if opts.DueDate != nil {
		epic.DueDate = opts.DueDate
	}
	epic.UpdatedAt = e.timestamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Epic{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateEpic(ctx, tx, epic); err != nil {
		return domain.Epic{}, err
	}
	if err := e.Events.Append(ctx, tx, "epic.update", epic.ProjectID, domain.KindEpic, epic.ID, opts.ActorID, nil); err != nil {
		return domain.Epic{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Epic{}, err
	}
	return epic, nil
}

// ChangeEpicStatus moves an epic to any status of a matching flow. The
// status graph carries no edge restrictions; only kind and project
// membership are enforced.
func (e Engine) ChangeEpicStatus(ctx context.Context, id, statusID, actorID string) (domain.Epic, error) {
	epic, err := e.Repo.GetEpic(ctx, id)
	if err != nil {
		return domain.Epic{}, err
	}
	status, err := e.resolveStatus(ctx, epic.ProjectID, domain.KindEpic, statusID)
	if err != nil {
		return domain.Epic{}, err
	}
	now := e.timestamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Epic{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetEpicStatus(ctx, tx, epic.ID, status.ID, now); err != nil {
		return domain.Epic{}, err
	}
	if err := e.Events.Append(ctx, tx, "epic.status", epic.ProjectID, domain.KindEpic, epic.ID, actorID, events.ActivityPayload{"from": epic.StatusID, "to": status.ID}); err != nil {
		return domain.Epic{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Epic{}, err
	}
	epic.StatusID = status.ID
	epic.UpdatedAt = now
	return epic, nil
}

// StoryCreateOptions are parameters for creating a user story.
type StoryCreateOptions struct {
	ProjectID   string
	EpicID      *string
	Title       string
	Description string
	Priority    int
	Points      *int
	AssigneeID  *string
	StatusID    string
	DueDate     *string
	ActorID     string
}

func (e Engine) CreateStory(ctx context.Context, opts StoryCreateOptions) (domain.UserStory, error) {
	if opts.Title == "" {
		return domain.UserStory{}, errors.New("title is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.UserStory{}, err
	}
	if opts.EpicID != nil {
		epic, err := e.Repo.GetEpic(ctx, *opts.EpicID)
		if err != nil {
			return domain.UserStory{}, err
		}
		if epic.ProjectID != opts.ProjectID {
			return domain.UserStory{}, fmt.Errorf("epic %s not in project %s", epic.ID, opts.ProjectID)
		}
	}
	status, err := e.resolveStatus(ctx, opts.ProjectID, domain.KindStory, opts.StatusID)
	if err != nil {
		return domain.UserStory{}, err
	}
	if opts.Priority == 0 {
		opts.Priority = 3
	}
	now := e.timestamp()
	story := domain.UserStory{
		ID:          e.newID(opts.ProjectID, "story", opts.Title),
		ProjectID:   opts.ProjectID,
		EpicID:      opts.EpicID,
		StatusID:    status.ID,
		Title:       opts.Title,
		Description: opts.Description,
		Priority:    opts.Priority,
		Points:      opts.Points,
		AssigneeID:  opts.AssigneeID,
		DueDate:     opts.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.UserStory{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertStory(ctx, tx, story); err != nil {
		return domain.UserStory{}, err
	}
	if err := e.Events.Append(ctx, tx, "story.create", story.ProjectID, domain.KindStory, story.ID, opts.ActorID, events.ActivityPayload{"title": story.Title, "status_id": story.StatusID}); err != nil {
		return domain.UserStory{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.UserStory{}, err
	}
	return story, nil
}

// StoryUpdateOptions patch a story; nil fields are left untouched.
type StoryUpdateOptions struct {
	EpicID      *string
	Title       *string
	Description *string
	Priority    *int
	Points      *int
	AssigneeID  *string
	DueDate     *string
	ActorID     string
}

func (e Engine) UpdateStory(ctx context.Context, id string, opts StoryUpdateOptions) (domain.UserStory, error) {
	story, err := e.Repo.GetStory(ctx, id)
	if err != nil {
		return domain.UserStory{}, err
	}
	if opts.EpicID != nil {
		if *opts.EpicID == "" {
			story.EpicID = nil
		} else {
			epic, err := e.Repo.GetEpic(ctx, *opts.EpicID)
			if err != nil {
				return domain.UserStory{}, err
			}
			if epic.ProjectID != story.ProjectID {
				return domain.UserStory{}, fmt.Errorf("epic %s not in project %s", epic.ID, story.ProjectID)
			}
			story.EpicID = opts.EpicID
		}
	}
	if opts.Title != nil {
		if *opts.Title == "" {
			return domain.UserStory{}, errors.New("title must not be empty")
		}
		story.Title = *opts.Title
	}
	if opts.Description != nil {
		story.Description = *opts.Description
	}
	if opts.Priority != nil {
		story.Priority = *opts.Priority
	}
	if opts.Points != nil {
		story.Points = opts.Points
	}
	if opts.AssigneeID != nil {
		story.AssigneeID = opts.AssigneeID
	}
	if opts.DueDate != nil {
		story.DueDate = opts.DueDate
	}
	story.UpdatedAt = e.timestamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.UserStory{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateStory(ctx, tx, story); err != nil {
		return domain.UserStory{}, err
	}
	if err := e.Events.Append(ctx, tx, "story.update", story.ProjectID, domain.KindStory, story.ID, opts.ActorID, nil); err != nil {
		return domain.UserStory{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.UserStory{}, err
	}
	return story, nil
}

func (e Engine) ChangeStoryStatus(ctx context.Context, id, statusID, actorID string) (domain.UserStory, error) {
	story, err := e.Repo.GetStory(ctx, id)
	if err != nil {
		return domain.UserStory{}, err
	}
	status, err := e.resolveStatus(ctx, story.ProjectID, domain.KindStory, statusID)
	if err != nil {
		return domain.UserStory{}, err
	}
	now := e.timestamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.UserStory{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetStoryStatus(ctx, tx, story.ID, status.ID, now); err != nil {
		return domain.UserStory{}, err
	}
	if err := e.Events.Append(ctx, tx, "story.status", story.ProjectID, domain.KindStory, story.ID, actorID, events.ActivityPayload{"from": story.StatusID, "to": status.ID}); err != nil {
		return domain.UserStory{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.UserStory{}, err
	}
	story.StatusID = status.ID
	story.UpdatedAt = now
	return story, nil
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ProjectID      string
	StoryID        *string
	Title          string
	Description    string
	Priority       int
	EstimatedHours *float64
	AssigneeID     *string
	StatusID       string
	DueDate        *string
	ActorID        string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Task{}, err
	}
	if opts.StoryID != nil {
		story, err := e.Repo.GetStory(ctx, *opts.StoryID)
		if err != nil {
			return domain.Task{}, err
		}
		if story.ProjectID != opts.ProjectID {
			return domain.Task{}, fmt.Errorf("story %s not in project %s", story.ID, opts.ProjectID)
		}
	}
	status, err := e.resolveStatus(ctx, opts.ProjectID, domain.KindTask, opts.StatusID)
	if err != nil {
		return domain.Task{}, err
	}
	if opts.Priority == 0 {
		opts.Priority = 3
	}
	now := e.timestamp()
	task := domain.Task{
		ID:             e.newID(opts.ProjectID, "task", opts.Title),
		ProjectID:      opts.ProjectID,
		StoryID:        opts.StoryID,
		StatusID:       status.ID,
		Title:          opts.Title,
		Description:    opts.Description,
		Priority:       opts.Priority,
		EstimatedHours: opts.EstimatedHours,
		AssigneeID:     opts.AssigneeID,
		DueDate:        opts.DueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, task); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.create", task.ProjectID, domain.KindTask, task.ID, opts.ActorID, events.ActivityPayload{"title": task.Title, "status_id": task.StatusID}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// TaskUpdateOptions patch a task; nil fields are left untouched.
type TaskUpdateOptions struct {
	StoryID        *string
	Title          *string
	Description    *string
	Priority       *int
	EstimatedHours *float64
	AssigneeID     *string
	DueDate        *string
	ActorID        string
}

func (e Engine) UpdateTask(ctx context.Context, id string, opts TaskUpdateOptions) (domain.Task, error) {
	task, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if opts.StoryID != nil {
		if *opts.StoryID == "" {
			task.StoryID = nil
		} else {
			story, err := e.Repo.GetStory(ctx, *opts.StoryID)
			if err != nil {
				return domain.Task{}, err
			}
			if story.ProjectID != task.ProjectID {
				return domain.Task{}, fmt.Errorf("story %s not in project %s", story.ID, task.ProjectID)
			}
			task.StoryID = opts.StoryID
		}
	}
	if opts.Title != nil {
		if *opts.Title == "" {
			return domain.Task{}, errors.New("title must not be empty")
		}
		task.Title = *opts.Title
	}
	if opts.Description != nil {
		task.Description = *opts.Description
	}
	if opts.Priority != nil {
		task.Priority = *opts.Priority
	}
	if opts.EstimatedHours != nil {
		task.EstimatedHours = opts.EstimatedHours
	}
	if opts.AssigneeID != nil {
		task.AssigneeID = opts.AssigneeID
	}
	if opts.DueDate != nil {
		task.DueDate = opts.DueDate
	}
	task.UpdatedAt = e.timestamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, task); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.update", task.ProjectID, domain.KindTask, task.ID, opts.ActorID, nil); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (e Engine) ChangeTaskStatus(ctx context.Context, id, statusID, actorID string) (domain.Task, error) {
	task, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	status, err := e.resolveStatus(ctx, task.ProjectID, domain.KindTask, statusID)
	if err != nil {
		return domain.Task{}, err
	}
	now := e.timestamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetTaskStatus(ctx, tx, task.ID, status.ID, now); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.status", task.ProjectID, domain.KindTask, task.ID, actorID, events.ActivityPayload{"from": task.StatusID, "to": status.ID}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	task.StatusID = status.ID
	task.UpdatedAt = now
	return task, nil
}
