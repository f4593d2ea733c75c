package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sprintline/internal/domain"
)

func (r Repo) InsertEpic(ctx context.Context, tx *sql.Tx, e domain.Epic) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO epics(id,project_id,status_id,title,description,priority,due_date,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		e.ID, e.ProjectID, e.StatusID, e.Title, nullable(e.Description), e.Priority, nullableStringPtr(e.DueDate), e.CreatedAt, e.UpdatedAt)
	return err
}

func (r Repo) GetEpic(ctx context.Context, id string) (domain.Epic, error) {
	var e domain.Epic
	var description, dueDate sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,status_id,title,description,priority,due_date,created_at,updated_at FROM epics WHERE id=?`, id).
		Scan(&e.ID, &e.ProjectID, &e.StatusID, &e.Title, &description, &e.Priority, &dueDate, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	if description.Valid {
		e.Description = description.String
	}
	if dueDate.Valid {
		e.DueDate = &dueDate.String
	}
	return e, nil
}

func (r Repo) UpdateEpic(ctx context.Context, tx *sql.Tx, e domain.Epic) error {
	_, err := tx.ExecContext(ctx, `UPDATE epics SET status_id=?, title=?, description=?, priority=?, due_date=?, updated_at=? WHERE id=?`,
		e.StatusID, e.Title, nullable(e.Description), e.Priority, nullableStringPtr(e.DueDate), e.UpdatedAt, e.ID)
	return err
}

func (r Repo) DeleteEpic(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM epics WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListEpics(ctx context.Context, projectID, statusID string) ([]domain.Epic, error) {
	clauses := []string{"project_id=?"}
	args := []any{projectID}
	if statusID != "" {
		clauses = append(clauses, "status_id=?")
		args = append(args, statusID)
	}
	query := `SELECT id,project_id,status_id,title,description,priority,due_date,created_at,updated_at FROM epics WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Epic
	for rows.Next() {
		var e domain.Epic
		var description, dueDate sql.NullString
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.StatusID, &e.Title, &description, &e.Priority, &dueDate, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			e.Description = description.String
		}
		if dueDate.Valid {
			e.DueDate = &dueDate.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// SetEpicStatus overwrites the status reference. The status graph is
// unconstrained; validity of the target status is the engine's concern.
func (r Repo) SetEpicStatus(ctx context.Context, tx *sql.Tx, id, statusID, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE epics SET status_id=?, updated_at=? WHERE id=?`, statusID, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertStory(ctx context.Context, tx *sql.Tx, s domain.UserStory) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO user_stories(id,project_id,epic_id,status_id,title,description,priority,points,assignee_id,due_date,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.ProjectID, nullableStringPtr(s.EpicID), s.StatusID, s.Title, nullable(s.Description), s.Priority,
		nullableIntPtr(s.Points), nullableStringPtr(s.AssigneeID), nullableStringPtr(s.DueDate), s.CreatedAt, s.UpdatedAt)
	return err
}

func scanStory(scan func(dest ...any) error) (domain.UserStory, error) {
	var s domain.UserStory
	var epicID, description, assigneeID, dueDate sql.NullString
	var points sql.NullInt64
	err := scan(&s.ID, &s.ProjectID, &epicID, &s.StatusID, &s.Title, &description, &s.Priority, &points, &assigneeID, &dueDate, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return s, err
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
	return s, nil
}

const storyColumns = `id,project_id,epic_id,status_id,title,description,priority,points,assignee_id,due_date,created_at,updated_at`

func (r Repo) GetStory(ctx context.Context, id string) (domain.UserStory, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM user_stories WHERE id=?`, id)
	s, err := scanStory(row.Scan)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) UpdateStory(ctx context.Context, tx *sql.Tx, s domain.UserStory) error {
	_, err := tx.ExecContext(ctx, `UPDATE user_stories SET epic_id=?, status_id=?, title=?, description=?, priority=?, points=?, assignee_id=?, due_date=?, updated_at=? WHERE id=?`,
		nullableStringPtr(s.EpicID), s.StatusID, s.Title, nullable(s.Description), s.Priority,
		nullableIntPtr(s.Points), nullableStringPtr(s.AssigneeID), nullableStringPtr(s.DueDate), s.UpdatedAt, s.ID)
	return err
}

func (r Repo) DeleteStory(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM user_stories WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type StoryFilters struct {
	ProjectID  string
	EpicID     string
	StatusID   string
	AssigneeID string
}

func (r Repo) ListStories(ctx context.Context, f StoryFilters) ([]domain.UserStory, error) {
	clauses := []string{"project_id=?"}
	args := []any{f.ProjectID}
	if f.EpicID != "" {
		clauses = append(clauses, "epic_id=?")
		args = append(args, f.EpicID)
	}
	if f.StatusID != "" {
		clauses = append(clauses, "status_id=?")
		args = append(args, f.StatusID)
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "assignee_id=?")
		args = append(args, f.AssigneeID)
	}
	query := `SELECT ` + storyColumns + ` FROM user_stories WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.UserStory
	for rows.Next() {
		s, err := scanStory(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) SetStoryStatus(ctx context.Context, tx *sql.Tx, id, statusID, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE user_stories SET status_id=?, updated_at=? WHERE id=?`, statusID, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,project_id,story_id,status_id,title,description,priority,estimated_hours,assignee_id,due_date,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, nullableStringPtr(t.StoryID), t.StatusID, t.Title, nullable(t.Description), t.Priority,
		nullableFloatPtr(t.EstimatedHours), nullableStringPtr(t.AssigneeID), nullableStringPtr(t.DueDate), t.CreatedAt, t.UpdatedAt)
	return err
}

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var storyID, description, assigneeID, dueDate sql.NullString
	var hours sql.NullFloat64
	err := scan(&t.ID, &t.ProjectID, &storyID, &t.StatusID, &t.Title, &description, &t.Priority, &hours, &assigneeID, &dueDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if storyID.Valid {
		t.StoryID = &storyID.String
	}
	if description.Valid {
		t.Description = description.String
	}
	if hours.Valid {
		h := hours.Float64
		t.EstimatedHours = &h
	}
	if assigneeID.Valid {
		t.AssigneeID = &assigneeID.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	return t, nil
}

const taskColumns = `id,project_id,story_id,status_id,title,description,priority,estimated_hours,assignee_id,due_date,created_at,updated_at`

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET story_id=?, status_id=?, title=?, description=?, priority=?, estimated_hours=?, assignee_id=?, due_date=?, updated_at=? WHERE id=?`,
		nullableStringPtr(t.StoryID), t.StatusID, t.Title, nullable(t.Description), t.Priority,
		nullableFloatPtr(t.EstimatedHours), nullableStringPtr(t.AssigneeID), nullableStringPtr(t.DueDate), t.UpdatedAt, t.ID)
	return err
}

func (r Repo) DeleteTask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type TaskFilters struct {
	ProjectID  string
	StoryID    string
	StatusID   string
	AssigneeID string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	clauses := []string{"project_id=?"}
	args := []any{f.ProjectID}
	if f.StoryID != "" {
		clauses = append(clauses, "story_id=?")
		args = append(args, f.StoryID)
	}
	if f.StatusID != "" {
		clauses = append(clauses, "status_id=?")
		args = append(args, f.StatusID)
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "assignee_id=?")
		args = append(args, f.AssigneeID)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) SetTaskStatus(ctx context.Context, tx *sql.Tx, id, statusID, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET status_id=?, updated_at=? WHERE id=?`, statusID, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountWorkItemsByStatus aggregates epic/story/task counts per status
// name for a project dashboard.
func (r Repo) CountWorkItemsByStatus(ctx context.Context, projectID, kind string) (map[string]int, error) {
	table := ""
	switch kind {
	case domain.KindEpic:
		table = "epics"
	case domain.KindStory:
		table = "user_stories"
	case domain.KindTask:
		table = "tasks"
	default:
		return nil, fmt.Errorf("unknown work item kind %s", kind)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT s.name, count(*) FROM `+table+` w JOIN statuses s ON s.id=w.status_id WHERE w.project_id=? GROUP BY s.name`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		res[name] = count
	}
	return res, rows.Err()
}
