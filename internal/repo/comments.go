package repo

import (
	"context"
	"database/sql"

	"sprintline/internal/domain"
)

func (r Repo) InsertComment(ctx context.Context, c domain.Comment) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO comments(id,project_id,entity_kind,entity_id,author_id,body,created_at) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.ProjectID, c.EntityKind, c.EntityID, c.AuthorID, c.Body, c.CreatedAt)
	return err
}

func (r Repo) ListComments(ctx context.Context, entityKind, entityID string) ([]domain.Comment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,entity_kind,entity_id,author_id,body,created_at FROM comments
WHERE entity_kind=? AND entity_id=? ORDER BY created_at ASC, id ASC`, entityKind, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.EntityKind, &c.EntityID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) DeleteComment(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM comments WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const activityColumns = `id,ts,type,COALESCE(project_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json`

// LatestActivities returns the newest activity rows, capped at limit.
func (r Repo) LatestActivities(ctx context.Context, projectID string, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + activityColumns + ` FROM activities`
	var args []any
	if projectID != "" {
		query += ` WHERE project_id=?`
		args = append(args, projectID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivities(rows)
}

// ActivitiesAfter returns rows with id greater than cursor, oldest
// first. The webhook dispatcher pages the log with this.
func (r Repo) ActivitiesAfter(ctx context.Context, cursor int64, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivities(rows)
}

func (r Repo) LatestActivityID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM activities`).Scan(&id)
	return id, err
}

func scanActivities(rows *sql.Rows) ([]domain.Activity, error) {
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.TS, &a.Type, &a.ProjectID, &a.EntityKind, &a.EntityID, &a.ActorID, &a.Payload); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
