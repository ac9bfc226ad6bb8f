package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/randalmurphal/governor/internal/errs"
)

// CreateTaskTx inserts a new task row within tx (callers drive the
// transaction so task creation and its first TaskVersion are atomic).
func CreateTaskTx(tx *sql.Tx, t *Task) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "marshal task metadata", err)
	}
	_, err = tx.Exec(`
		INSERT INTO tasks (id, project_id, title, description, priority, status, current_phase, attempts, active_version_id, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.Title, t.Description, t.Priority, string(t.Status), string(t.CurrentPhase),
		t.Attempts, nullable(t.ActiveVersionID), string(meta), t.CreatedAt.Format(timeFmt), t.UpdatedAt.Format(timeFmt))
	if err != nil {
		return mapSQLErr(err, "")
	}
	return nil
}

// UpdateTaskStatusTx sets a task's status and metadata within tx,
// for lifecycle transitions (e.g. split/merge supersession) that must
// commit atomically alongside the versions/tasks they accompany.
func UpdateTaskStatusTx(tx *sql.Tx, taskID string, status TaskStatus, metadata map[string]any) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "marshal task metadata", err)
	}
	now := time.Now().UTC().Format(timeFmt)
	_, err = tx.Exec(`UPDATE tasks SET status = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		string(status), string(meta), now, taskID)
	if err != nil {
		return mapSQLErr(err, "")
	}
	return nil
}

// GetTask loads a task by id.
func (d *DB) GetTask(id string) (*Task, error) {
	row := d.db.QueryRow(taskSelect+` WHERE id = ?`, id)
	return scanTask(row)
}

const taskSelect = `
	SELECT id, project_id, title, description, priority, status, current_phase, attempts, active_version_id, metadata, created_at, updated_at
	FROM tasks`

func scanTask(row *sql.Row) (*Task, error) {
	var t Task
	var status, phase, meta, created, updated string
	var activeVersion sql.NullString
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Priority, &status, &phase,
		&t.Attempts, &activeVersion, &meta, &created, &updated); err != nil {
		return nil, mapSQLErr(err, "task not found")
	}
	t.Status = TaskStatus(status)
	t.CurrentPhase = Phase(phase)
	t.ActiveVersionID = activeVersion.String
	t.CreatedAt, _ = time.Parse(timeFmt, created)
	t.UpdatedAt, _ = time.Parse(timeFmt, updated)
	_ = json.Unmarshal([]byte(meta), &t.Metadata)
	return &t, nil
}

// ListTasks returns all tasks for a project ordered by priority desc,
// then creation time.
func (d *DB) ListTasks(projectID string) ([]*Task, error) {
	rows, err := d.db.Query(taskSelect+` WHERE project_id = ? ORDER BY priority DESC, created_at ASC`, projectID)
	if err != nil {
		return nil, mapSQLErr(err, "")
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]*Task, error) {
	var out []*Task
	for rows.Next() {
		var t Task
		var status, phase, meta, created, updated string
		var activeVersion sql.NullString
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Priority, &status, &phase,
			&t.Attempts, &activeVersion, &meta, &created, &updated); err != nil {
			return nil, mapSQLErr(err, "")
		}
		t.Status = TaskStatus(status)
		t.CurrentPhase = Phase(phase)
		t.ActiveVersionID = activeVersion.String
		t.CreatedAt, _ = time.Parse(timeFmt, created)
		t.UpdatedAt, _ = time.Parse(timeFmt, updated)
		_ = json.Unmarshal([]byte(meta), &t.Metadata)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// UpdateTask persists a task's mutable fields: title, description,
// priority, status, phase, attempts, active version and metadata.
func (d *DB) UpdateTask(t *Task) error {
	t.UpdatedAt = time.Now().UTC()
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "marshal task metadata", err)
	}
	res, err := d.db.Exec(`
		UPDATE tasks SET title = ?, description = ?, priority = ?, status = ?, current_phase = ?,
			attempts = ?, active_version_id = ?, metadata = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Description, t.Priority, string(t.Status), string(t.CurrentPhase),
		t.Attempts, nullable(t.ActiveVersionID), string(meta), t.UpdatedAt.Format(timeFmt), t.ID)
	if err != nil {
		return mapSQLErr(err, "")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.NotFound("task", t.ID)
	}
	return nil
}

// DeleteTask removes a task; task_versions/runs/change_requests cascade.
func (d *DB) DeleteTask(id string) error {
	res, err := d.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return mapSQLErr(err, "")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.NotFound("task", id)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
