package repo

import (
	"context"
	"database/sql"

	"sprintline/internal/domain"
)

func (r Repo) InsertFlowTx(ctx context.Context, tx *sql.Tx, f domain.StatusFlow) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO status_flows(id,project_id,kind,name,is_default,created_at) VALUES (?,?,?,?,?,?)`,
		f.ID, f.ProjectID, f.Kind, f.Name, f.IsDefault, f.CreatedAt)
	return err
}

func (r Repo) GetFlow(ctx context.Context, id string) (domain.StatusFlow, error) {
	var f domain.StatusFlow
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,kind,name,is_default,created_at FROM status_flows WHERE id=?`, id).
		Scan(&f.ID, &f.ProjectID, &f.Kind, &f.Name, &f.IsDefault, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	return f, err
}

func (r Repo) ListFlowsByProject(ctx context.Context, projectID string) ([]domain.StatusFlow, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,project_id,kind,name,is_default,created_at FROM status_flows WHERE project_id=? ORDER BY kind, created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StatusFlow
	for rows.Next() {
		var f domain.StatusFlow
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Kind, &f.Name, &f.IsDefault, &f.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

// DefaultFlow returns the default flow for a kind within a project,
// falling back to the oldest flow of that kind when none is marked.
func (r Repo) DefaultFlow(ctx context.Context, projectID, kind string) (domain.StatusFlow, error) {
	var f domain.StatusFlow
	err := r.DB.QueryRowContext(ctx, `SELECT id,project_id,kind,name,is_default,created_at FROM status_flows
WHERE project_id=? AND kind=? ORDER BY is_default DESC, created_at ASC LIMIT 1`, projectID, kind).
		Scan(&f.ID, &f.ProjectID, &f.Kind, &f.Name, &f.IsDefault, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	return f, err
}

func (r Repo) InsertStatusTx(ctx context.Context, tx *sql.Tx, s domain.Status) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO statuses(id,flow_id,name,color,sort_order,is_initial,is_final,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.FlowID, s.Name, s.Color, s.SortOrder, s.IsInitial, s.IsFinal, s.CreatedAt)
	return err
}

func (r Repo) GetStatus(ctx context.Context, id string) (domain.Status, error) {
	var s domain.Status
	err := r.DB.QueryRowContext(ctx, `SELECT id,flow_id,name,color,sort_order,is_initial,is_final,created_at FROM statuses WHERE id=?`, id).
		Scan(&s.ID, &s.FlowID, &s.Name, &s.Color, &s.SortOrder, &s.IsInitial, &s.IsFinal, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

// ListStatusesByFlow returns statuses sorted ascending by sort_order.
func (r Repo) ListStatusesByFlow(ctx context.Context, flowID string) ([]domain.Status, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,flow_id,name,color,sort_order,is_initial,is_final,created_at FROM statuses WHERE flow_id=? ORDER BY sort_order ASC, created_at ASC`, flowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStatuses(rows)
}

func (r Repo) ListStatusesByProject(ctx context.Context, projectID string) ([]domain.Status, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT s.id,s.flow_id,s.name,s.color,s.sort_order,s.is_initial,s.is_final,s.created_at
FROM statuses s JOIN status_flows f ON f.id=s.flow_id
WHERE f.project_id=? ORDER BY f.kind, s.sort_order ASC, s.created_at ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStatuses(rows)
}

// InitialStatus picks the entry status of a flow: the lowest-ordered
// status flagged initial, or the lowest-ordered status when no initial
// flag is set.
func (r Repo) InitialStatus(ctx context.Context, flowID string) (domain.Status, error) {
	var s domain.Status
	err := r.DB.QueryRowContext(ctx, `SELECT id,flow_id,name,color,sort_order,is_initial,is_final,created_at FROM statuses
WHERE flow_id=? ORDER BY is_initial DESC, sort_order ASC, created_at ASC LIMIT 1`, flowID).
		Scan(&s.ID, &s.FlowID, &s.Name, &s.Color, &s.SortOrder, &s.IsInitial, &s.IsFinal, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

// StatusFlowInfo resolves the flow a status belongs to.
func (r Repo) StatusFlowInfo(ctx context.Context, statusID string) (domain.Status, domain.StatusFlow, error) {
	var s domain.Status
	var f domain.StatusFlow
	err := r.DB.QueryRowContext(ctx, `SELECT s.id,s.flow_id,s.name,s.color,s.sort_order,s.is_initial,s.is_final,s.created_at,
f.id,f.project_id,f.kind,f.name,f.is_default,f.created_at
FROM statuses s JOIN status_flows f ON f.id=s.flow_id WHERE s.id=?`, statusID).
		Scan(&s.ID, &s.FlowID, &s.Name, &s.Color, &s.SortOrder, &s.IsInitial, &s.IsFinal, &s.CreatedAt,
			&f.ID, &f.ProjectID, &f.Kind, &f.Name, &f.IsDefault, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return s, f, ErrNotFound
	}
	return s, f, err
}

func scanStatuses(rows *sql.Rows) ([]domain.Status, error) {
	var res []domain.Status
	for rows.Next() {
		var s domain.Status
		if err := rows.Scan(&s.ID, &s.FlowID, &s.Name, &s.Color, &s.SortOrder, &s.IsInitial, &s.IsFinal, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
