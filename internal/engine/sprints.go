package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sprintline/internal/domain"
	"sprintline/internal/events"
	"sprintline/internal/repo"
)

// sprintTransitions is the sprint state graph. Completed and cancelled
// are terminal.
var sprintTransitions = map[string][]string{
	domain.SprintPlanned: {domain.SprintActive, domain.SprintCompleted, domain.SprintCancelled},
	domain.SprintActive:  {domain.SprintCompleted, domain.SprintCancelled},
}

func ensureSprintTransition(sprintID, from, to string) error {
	for _, allowed := range sprintTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return InvalidTransitionError{SprintID: sprintID, From: from, To: to}
}

// SprintCreateOptions are parameters for creating a sprint.
type SprintCreateOptions struct {
	ProjectID string
	Name      string
	Goal      string
	StartDate string
	EndDate   string
	ActorID   string
}

// CreateSprint creates a sprint in the planned state. When dates are
// omitted the sprint spans the configured length starting now.
func (e Engine) CreateSprint(ctx context.Context, opts SprintCreateOptions) (domain.Sprint, error) {
	if opts.Name == "" {
		return domain.Sprint{}, errors.New("name is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Sprint{}, err
	}
	start, end, err := e.sprintWindow(opts.StartDate, opts.EndDate)
	if err != nil {
		return domain.Sprint{}, err
	}
	now := e.timestamp()
	s := domain.Sprint{
		ID:        e.newID(opts.ProjectID, "sprint", opts.Name),
		ProjectID: opts.ProjectID,
		Name:      opts.Name,
		Goal:      opts.Goal,
		StartDate: start,
		EndDate:   end,
		Status:    domain.SprintPlanned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sprint{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertSprint(ctx, tx, s); err != nil {
		return domain.Sprint{}, err
	}
	if err := e.Events.Append(ctx, tx, "sprint.create", s.ProjectID, "sprint", s.ID, opts.ActorID, events.ActivityPayload{"name": s.Name, "start_date": s.StartDate, "end_date": s.EndDate}); err != nil {
		return domain.Sprint{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Sprint{}, err
	}
	return s, nil
}

func (e Engine) sprintWindow(start, end string) (string, string, error) {
	length := 14
	if e.Config != nil && e.Config.Sprint.LengthDays > 0 {
		length = e.Config.Sprint.LengthDays
	}
	if start == "" {
		start = e.now().UTC().Format(time.RFC3339)
	}
	startT, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return "", "", fmt.Errorf("invalid start_date: %w", err)
	}
	if end == "" {
		end = startT.Add(time.Duration(length) * 24 * time.Hour).UTC().Format(time.RFC3339)
	}
	endT, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return "", "", fmt.Errorf("invalid end_date: %w", err)
	}
	if !endT.After(startT) {
		return "", "", errors.New("end_date must be after start_date")
	}
	return startT.UTC().Format(time.RFC3339), endT.UTC().Format(time.RFC3339), nil
}

// StartSprint moves a sprint from planned to active.
func (e Engine) StartSprint(ctx context.Context, sprintID, actorID string) (domain.Sprint, error) {
	return e.transitionSprint(ctx, sprintID, domain.SprintActive, actorID)
}

// CancelSprint moves a planned or active sprint to cancelled. No
// metrics snapshot is taken.
func (e Engine) CancelSprint(ctx context.Context, sprintID, actorID string) (domain.Sprint, error) {
	return e.transitionSprint(ctx, sprintID, domain.SprintCancelled, actorID)
}

// CompleteSprint closes a sprint and persists a metrics snapshot
// computed from the backlog at completion time. The status change and
// the snapshot commit in one transaction.
func (e Engine) CompleteSprint(ctx context.Context, sprintID, actorID string) (domain.Sprint, error) {
	s, err := e.Repo.GetSprint(ctx, sprintID)
	if err != nil {
		return domain.Sprint{}, err
	}
	if err := ensureSprintTransition(s.ID, s.Status, domain.SprintCompleted); err != nil {
		return domain.Sprint{}, err
	}
	m, err := e.computeSprintMetrics(ctx, s)
	if err != nil {
		return domain.Sprint{}, fmt.Errorf("snapshot metrics: %w", err)
	}
	now := e.timestamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sprint{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetSprintStatus(ctx, tx, s.ID, domain.SprintCompleted, now); err != nil {
		return domain.Sprint{}, err
	}
	if err := e.Repo.UpsertSprintMetricTx(ctx, tx, m); err != nil {
		return domain.Sprint{}, fmt.Errorf("snapshot metrics: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "sprint."+domain.SprintCompleted, s.ProjectID, "sprint", s.ID, actorID, events.ActivityPayload{"from": s.Status, "to": domain.SprintCompleted}); err != nil {
		return domain.Sprint{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Sprint{}, err
	}
	s.Status = domain.SprintCompleted
	s.UpdatedAt = now
	return s, nil
}

func (e Engine) transitionSprint(ctx context.Context, sprintID, target, actorID string) (domain.Sprint, error) {
	s, err := e.Repo.GetSprint(ctx, sprintID)
	if err != nil {
		return domain.Sprint{}, err
	}
	if err := ensureSprintTransition(s.ID, s.Status, target); err != nil {
		return domain.Sprint{}, err
	}
	now := e.timestamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sprint{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetSprintStatus(ctx, tx, s.ID, target, now); err != nil {
		return domain.Sprint{}, err
	}
	if err := e.Events.Append(ctx, tx, "sprint."+target, s.ProjectID, "sprint", s.ID, actorID, events.ActivityPayload{"from": s.Status, "to": target}); err != nil {
		return domain.Sprint{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Sprint{}, err
	}
	s.Status = target
	s.UpdatedAt = now
	return s, nil
}

// BacklogAddOptions are parameters for placing a story in a sprint
// backlog.
type BacklogAddOptions struct {
	SprintID  string
	StoryID   string
	SortOrder *int
	ActorID   string
}

// AddStoryToBacklog appends a story to the backlog. When no order is
// given the story lands after the current last position. A story may
// sit in several sprint backlogs at once.
func (e Engine) AddStoryToBacklog(ctx context.Context, opts BacklogAddOptions) (domain.SprintBacklogItem, error) {
	sprint, err := e.Repo.GetSprint(ctx, opts.SprintID)
	if err != nil {
		return domain.SprintBacklogItem{}, err
	}
	story, err := e.Repo.GetStory(ctx, opts.StoryID)
	if err != nil {
		return domain.SprintBacklogItem{}, err
	}
	if story.ProjectID != sprint.ProjectID {
		return domain.SprintBacklogItem{}, fmt.Errorf("story %s not in project %s", story.ID, sprint.ProjectID)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.SprintBacklogItem{}, err
	}
	defer tx.Rollback()
	order := 0
	if opts.SortOrder != nil {
		order = *opts.SortOrder
	} else {
		max, err := e.Repo.MaxBacklogOrderTx(ctx, tx, sprint.ID)
		if err != nil {
			return domain.SprintBacklogItem{}, err
		}
		order = max + 1
	}
	item := domain.SprintBacklogItem{
		SprintID:  sprint.ID,
		StoryID:   story.ID,
		SortOrder: order,
		AddedAt:   e.timestamp(),
	}
	if err := e.Repo.InsertBacklogItem(ctx, tx, item); err != nil {
		return domain.SprintBacklogItem{}, err
	}
	if err := e.Events.Append(ctx, tx, "sprint.backlog.add", sprint.ProjectID, "sprint", sprint.ID, opts.ActorID, events.ActivityPayload{"story_id": story.ID, "sort_order": order}); err != nil {
		return domain.SprintBacklogItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.SprintBacklogItem{}, err
	}
	return item, nil
}

// RemoveStoryFromBacklog detaches a story and reports whether it was
// present. Removing an absent story is not an error.
func (e Engine) RemoveStoryFromBacklog(ctx context.Context, sprintID, storyID, actorID string) (bool, error) {
	sprint, err := e.Repo.GetSprint(ctx, sprintID)
	if err != nil {
		return false, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	removed, err := e.Repo.DeleteBacklogItemTx(ctx, tx, sprint.ID, storyID)
	if err != nil {
		return false, err
	}
	if removed {
		if err := e.Events.Append(ctx, tx, "sprint.backlog.remove", sprint.ProjectID, "sprint", sprint.ID, actorID, events.ActivityPayload{"story_id": storyID}); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return removed, nil
}

// ReorderBacklog moves a story to a target order. When another story
// already holds that order the two swap positions; both updates commit
// together or not at all.
func (e Engine) ReorderBacklog(ctx context.Context, sprintID, storyID string, newOrder int, actorID string) error {
	sprint, err := e.Repo.GetSprint(ctx, sprintID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	item, err := e.Repo.GetBacklogItemTx(ctx, tx, sprint.ID, storyID)
	if err != nil {
		return err
	}
	if item.SortOrder == newOrder {
		return tx.Commit()
	}
	occupant, err := e.Repo.BacklogItemAtOrderTx(ctx, tx, sprint.ID, newOrder, storyID)
	switch {
	case err == nil:
		if err := e.Repo.SetBacklogOrderTx(ctx, tx, sprint.ID, occupant.StoryID, item.SortOrder); err != nil {
			return err
		}
	case errors.Is(err, repo.ErrNotFound):
	default:
		return err
	}
	if err := e.Repo.SetBacklogOrderTx(ctx, tx, sprint.ID, storyID, newOrder); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "sprint.backlog.reorder", sprint.ProjectID, "sprint", sprint.ID, actorID, events.ActivityPayload{"story_id": storyID, "from": item.SortOrder, "to": newOrder}); err != nil {
		return err
	}
	return tx.Commit()
}

// ListBacklog returns the backlog in sort_order position.
func (e Engine) ListBacklog(ctx context.Context, sprintID string) ([]repo.BacklogEntry, error) {
	if _, err := e.Repo.GetSprint(ctx, sprintID); err != nil {
		return nil, err
	}
	return e.Repo.ListBacklog(ctx, sprintID)
}

// SprintMetrics returns the stored snapshot for a sprint. It is not
// recomputed on read; ErrNotFound means no snapshot has been taken.
func (e Engine) SprintMetrics(ctx context.Context, sprintID string) (domain.SprintMetric, error) {
	if _, err := e.Repo.GetSprint(ctx, sprintID); err != nil {
		return domain.SprintMetric{}, err
	}
	return e.Repo.GetSprintMetric(ctx, sprintID)
}

// RefreshSprintMetrics recomputes the snapshot from the current
// backlog and persists it, replacing any previous row.
func (e Engine) RefreshSprintMetrics(ctx context.Context, sprintID string) (domain.SprintMetric, error) {
	sprint, err := e.Repo.GetSprint(ctx, sprintID)
	if err != nil {
		return domain.SprintMetric{}, err
	}
	m, err := e.computeSprintMetrics(ctx, sprint)
	if err != nil {
		return domain.SprintMetric{}, err
	}
	if err := e.Repo.UpsertSprintMetric(ctx, m); err != nil {
		return domain.SprintMetric{}, err
	}
	return m, nil
}

// computeSprintMetrics aggregates points and task counts over the
// sprint backlog. A story counts toward completed points when its
// status is flagged final; velocity equals completed points.
func (e Engine) computeSprintMetrics(ctx context.Context, sprint domain.Sprint) (domain.SprintMetric, error) {
	entries, err := e.Repo.ListBacklog(ctx, sprint.ID)
	if err != nil {
		return domain.SprintMetric{}, err
	}
	statusFinal := map[string]bool{}
	isFinal := func(statusID string) (bool, error) {
		if final, ok := statusFinal[statusID]; ok {
			return final, nil
		}
		st, err := e.Repo.GetStatus(ctx, statusID)
		if err != nil {
			return false, err
		}
		statusFinal[statusID] = st.IsFinal
		return st.IsFinal, nil
	}

	m := domain.SprintMetric{
		SprintID:     sprint.ID,
		CalculatedAt: e.timestamp(),
	}
	for _, entry := range entries {
		points := 0
		if entry.Story.Points != nil {
			points = *entry.Story.Points
		}
		m.PlannedPoints += points
		final, err := isFinal(entry.Story.StatusID)
		if err != nil {
			return domain.SprintMetric{}, err
		}
		if final {
			m.CompletedPoints += points
		}
		tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{ProjectID: sprint.ProjectID, StoryID: entry.Story.ID})
		if err != nil {
			return domain.SprintMetric{}, err
		}
		for _, t := range tasks {
			m.TotalTasks++
			final, err := isFinal(t.StatusID)
			if err != nil {
				return domain.SprintMetric{}, err
			}
			if final {
				m.CompletedTasks++
			}
		}
	}
	m.Velocity = m.CompletedPoints
	return m, nil
}
