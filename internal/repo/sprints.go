package repo

import (
	"context"
	"database/sql"

	"sprintline/internal/domain"
)

func (r Repo) InsertSprint(ctx context.Context, tx *sql.Tx, s domain.Sprint) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sprints(id,project_id,name,goal,start_date,end_date,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		s.ID, s.ProjectID, s.Name, nullable(s.Goal), s.StartDate, s.EndDate, s.Status, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) GetSprint(ctx context.Context, id string) (domain.Sprint, error) {
	var s domain.Sprint
	var goal sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,name,goal,start_date,end_date,status,created_at,updated_at FROM sprints WHERE id=?`, id).
		Scan(&s.ID, &s.ProjectID, &s.Name, &goal, &s.StartDate, &s.EndDate, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if goal.Valid {
		s.Goal = goal.String
	}
	return s, nil
}

func (r Repo) ListSprints(ctx context.Context, projectID, status string) ([]domain.Sprint, error) {
	query := `SELECT id,project_id,name,goal,start_date,end_date,status,created_at,updated_at FROM sprints WHERE project_id=?`
	args := []any{projectID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	query += ` ORDER BY start_date DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Sprint
	for rows.Next() {
		var s domain.Sprint
		var goal sql.NullString
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Name, &goal, &s.StartDate, &s.EndDate, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if goal.Valid {
			s.Goal = goal.String
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) SetSprintStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE sprints SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertBacklogItem(ctx context.Context, tx *sql.Tx, item domain.SprintBacklogItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sprint_backlog(sprint_id,story_id,sort_order,added_at) VALUES (?,?,?,?)`,
		item.SprintID, item.StoryID, item.SortOrder, item.AddedAt)
	return err
}

// DeleteBacklogItemTx removes the composite-key row and reports
// whether one existed.
func (r Repo) DeleteBacklogItemTx(ctx context.Context, tx *sql.Tx, sprintID, storyID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM sprint_backlog WHERE sprint_id=? AND story_id=?`, sprintID, storyID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) GetBacklogItemTx(ctx context.Context, tx *sql.Tx, sprintID, storyID string) (domain.SprintBacklogItem, error) {
	var item domain.SprintBacklogItem
	err := tx.QueryRowContext(ctx, `SELECT sprint_id,story_id,sort_order,added_at FROM sprint_backlog WHERE sprint_id=? AND story_id=?`, sprintID, storyID).
		Scan(&item.SprintID, &item.StoryID, &item.SortOrder, &item.AddedAt)
	if err == sql.ErrNoRows {
		return item, ErrNotFound
	}
	return item, err
}

// BacklogItemAtOrderTx finds the row currently holding an order value,
// excluding one story. Used by the reorder swap.
func (r Repo) BacklogItemAtOrderTx(ctx context.Context, tx *sql.Tx, sprintID string, order int, excludeStoryID string) (domain.SprintBacklogItem, error) {
	var item domain.SprintBacklogItem
	err := tx.QueryRowContext(ctx, `SELECT sprint_id,story_id,sort_order,added_at FROM sprint_backlog
WHERE sprint_id=? AND sort_order=? AND story_id!=? LIMIT 1`, sprintID, order, excludeStoryID).
		Scan(&item.SprintID, &item.StoryID, &item.SortOrder, &item.AddedAt)
	if err == sql.ErrNoRows {
		return item, ErrNotFound
	}
	return item, err
}

func (r Repo) SetBacklogOrderTx(ctx context.Context, tx *sql.Tx, sprintID, storyID string, order int) error {
	res, err := tx.ExecContext(ctx, `UPDATE sprint_backlog SET sort_order=? WHERE sprint_id=? AND story_id=?`, order, sprintID, storyID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MaxBacklogOrderTx returns the highest order value in the sprint, 0
// when the backlog is empty.
func (r Repo) MaxBacklogOrderTx(ctx context.Context, tx *sql.Tx, sprintID string) (int, error) {
	var max int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sort_order),0) FROM sprint_backlog WHERE sprint_id=?`, sprintID).Scan(&max)
	return max, err
}

// BacklogEntry pairs a story with its backlog membership row.
type BacklogEntry struct {
	Story domain.UserStory         `json:"story"`
	Item  domain.SprintBacklogItem `json:"item"`
}

// ListBacklog returns backlog entries sorted by the backlog item's
// sort_order. The story's own priority field is not a sort key here.
func (r Repo) ListBacklog(ctx context.Context, sprintID string) ([]BacklogEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+prefixedStoryColumns("s")+`,
b.sprint_id,b.story_id,b.sort_order,b.added_at
FROM sprint_backlog b JOIN user_stories s ON s.id=b.story_id
WHERE b.sprint_id=? ORDER BY b.sort_order ASC, b.added_at ASC, s.id ASC`, sprintID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []BacklogEntry
	for rows.Next() {
		var entry BacklogEntry
		var epicID, description, assigneeID, dueDate sql.NullString
		var points sql.NullInt64
		s := &entry.Story
		if err := rows.Scan(&s.ID, &s.ProjectID, &epicID, &s.StatusID, &s.Title, &description, &s.Priority, &points, &assigneeID, &dueDate, &s.CreatedAt, &s.UpdatedAt,
			&entry.Item.SprintID, &entry.Item.StoryID, &entry.Item.SortOrder, &entry.Item.AddedAt); err != nil {
			return nil, err
		}
		if epicID.Valid {
			s.EpicID = &epicID.String
		}
		if description.Valid {
			s.Description = description.String
		}
		if points.Valid {
			p := int(points.Int64)
			s.Points = &p
		}
		if assigneeID.Valid {
			s.AssigneeID = &assigneeID.String
		}
		if dueDate.Valid {
			s.DueDate = &dueDate.String
		}
		res = append(res, entry)
	}
	return res, rows.Err()
}

func prefixedStoryColumns(alias string) string {
	return alias + ".id," + alias + ".project_id," + alias + ".epic_id," + alias + ".status_id," + alias + ".title," +
		alias + ".description," + alias + ".priority," + alias + ".points," + alias + ".assignee_id," + alias + ".due_date," +
		alias + ".created_at," + alias + ".updated_at"
}

const upsertSprintMetricSQL = `INSERT INTO sprint_metrics(sprint_id,planned_points,completed_points,total_tasks,completed_tasks,velocity,calculated_at)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(sprint_id) DO UPDATE SET planned_points=excluded.planned_points, completed_points=excluded.completed_points,
total_tasks=excluded.total_tasks, completed_tasks=excluded.completed_tasks, velocity=excluded.velocity, calculated_at=excluded.calculated_at`

func (r Repo) UpsertSprintMetric(ctx context.Context, m domain.SprintMetric) error {
	_, err := r.DB.ExecContext(ctx, upsertSprintMetricSQL,
		m.SprintID, m.PlannedPoints, m.CompletedPoints, m.TotalTasks, m.CompletedTasks, m.Velocity, m.CalculatedAt)
	return err
}

func (r Repo) UpsertSprintMetricTx(ctx context.Context, tx *sql.Tx, m domain.SprintMetric) error {
	_, err := tx.ExecContext(ctx, upsertSprintMetricSQL,
		m.SprintID, m.PlannedPoints, m.CompletedPoints, m.TotalTasks, m.CompletedTasks, m.Velocity, m.CalculatedAt)
	return err
}

func (r Repo) GetSprintMetric(ctx context.Context, sprintID string) (domain.SprintMetric, error) {
	var m domain.SprintMetric
	err := r.DB.QueryRowContext(ctx, `SELECT sprint_id,planned_points,completed_points,total_tasks,completed_tasks,velocity,calculated_at FROM sprint_metrics WHERE sprint_id=?`, sprintID).
		Scan(&m.SprintID, &m.PlannedPoints, &m.CompletedPoints, &m.TotalTasks, &m.CompletedTasks, &m.Velocity, &m.CalculatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}
