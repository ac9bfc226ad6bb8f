package store

import "github.com/randalmurphal/governor/internal/errs"

// EnsureControlState creates the project's single ControlState row if
// absent, with the given default max_attempts.
func (d *DB) EnsureControlState(projectID string, defaultMaxAttempts int) error {
	_, err := d.db.Exec(`
		INSERT INTO control_state (project_id, paused, max_attempts, current_task_id)
		VALUES (?, 0, ?, NULL)
		ON CONFLICT(project_id) DO NOTHING`, projectID, defaultMaxAttempts)
	return mapSQLErr(err, "")
}

// GetControlState loads the project's control state.
func (d *DB) GetControlState(projectID string) (*ControlState, error) {
	row := d.db.QueryRow(`
		SELECT project_id, paused, max_attempts, current_task_id FROM control_state WHERE project_id = ?`, projectID)
	var cs ControlState
	var paused int
	var current *string
	if err := row.Scan(&cs.ProjectID, &paused, &cs.MaxAttempts, &current); err != nil {
		return nil, mapSQLErr(err, "control state not found")
	}
	cs.Paused = paused != 0
	if current != nil {
		cs.CurrentTaskID = *current
	}
	return &cs, nil
}

// UpdateControlState persists the full control-state row.
func (d *DB) UpdateControlState(cs *ControlState) error {
	paused := 0
	if cs.Paused {
		paused = 1
	}
	res, err := d.db.Exec(`
		UPDATE control_state SET paused = ?, max_attempts = ?, current_task_id = ? WHERE project_id = ?`,
		paused, cs.MaxAttempts, nullable(cs.CurrentTaskID), cs.ProjectID)
	if err != nil {
		return mapSQLErr(err, "")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.NotFound("control_state", cs.ProjectID)
	}
	return nil
}
