package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/randalmurphal/governor/internal/errs"
)

// CreateRun inserts a new RUNNING run row.
func (d *DB) CreateRun(r *Run) error {
	r.StartedAt = time.Now().UTC()
	gr, err := json.Marshal(r.GateResults)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "marshal gate results", err)
	}
	_, err = d.db.Exec(`
		INSERT INTO runs (id, project_id, task_id, engine, phase, status, gate_results, error, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		r.ID, r.ProjectID, nullable(r.TaskID), r.Engine, string(r.Phase), string(r.Status),
		string(gr), r.Error, r.StartedAt.Format(timeFmt))
	return mapSQLErr(err, "")
}

// FinishRun sets a run's terminal status, gate results, and end time.
func (d *DB) FinishRun(id string, status RunStatus, gateResults []GateResult, runErr string) error {
	gr, err := json.Marshal(gateResults)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "marshal gate results", err)
	}
	ended := time.Now().UTC().Format(timeFmt)
	res, err := d.db.Exec(`
		UPDATE runs SET status = ?, gate_results = ?, error = ?, ended_at = ? WHERE id = ?`,
		string(status), string(gr), runErr, ended, id)
	if err != nil {
		return mapSQLErr(err, "")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.NotFound("run", id)
	}
	return nil
}

const runSelect = `
	SELECT id, project_id, task_id, engine, phase, status, gate_results, error, started_at, ended_at
	FROM runs`

// GetRun loads a run by id.
func (d *DB) GetRun(id string) (*Run, error) {
	row := d.db.QueryRow(runSelect+` WHERE id = ?`, id)
	return scanRun(row)
}

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	var taskID sql.NullString
	var phase, status, gr, started string
	var ended sql.NullString
	if err := row.Scan(&r.ID, &r.ProjectID, &taskID, &r.Engine, &phase, &status, &gr, &r.Error, &started, &ended); err != nil {
		return nil, mapSQLErr(err, "run not found")
	}
	r.TaskID = taskID.String
	r.Phase = Phase(phase)
	r.Status = RunStatus(status)
	_ = json.Unmarshal([]byte(gr), &r.GateResults)
	r.StartedAt, _ = time.Parse(timeFmt, started)
	if ended.Valid {
		t, _ := time.Parse(timeFmt, ended.String)
		r.EndedAt = &t
	}
	return &r, nil
}

// ListRunsForTask returns every run for a task, newest first.
func (d *DB) ListRunsForTask(taskID string) ([]*Run, error) {
	rows, err := d.db.Query(runSelect+` WHERE task_id = ? ORDER BY started_at DESC`, taskID)
	if err != nil {
		return nil, mapSQLErr(err, "")
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		var r Run
		var taskIDCol sql.NullString
		var phase, status, gr, started string
		var ended sql.NullString
		if err := rows.Scan(&r.ID, &r.ProjectID, &taskIDCol, &r.Engine, &phase, &status, &gr, &r.Error, &started, &ended); err != nil {
			return nil, mapSQLErr(err, "")
		}
		r.TaskID = taskIDCol.String
		r.Phase = Phase(phase)
		r.Status = RunStatus(status)
		_ = json.Unmarshal([]byte(gr), &r.GateResults)
		r.StartedAt, _ = time.Parse(timeFmt, started)
		if ended.Valid {
			t, _ := time.Parse(timeFmt, ended.String)
			r.EndedAt = &t
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// HasSuccessfulRun reports whether a task has at least one SUCCESS run
// with every gate result passing, per the spec.md §8 invariant backing
// TaskCompleted.
func (d *DB) HasSuccessfulRun(taskID string) (bool, error) {
	runs, err := d.ListRunsForTask(taskID)
	if err != nil {
		return false, err
	}
	for _, r := range runs {
		if r.Status != RunSuccess {
			continue
		}
		allPass := true
		for _, g := range r.GateResults {
			if !g.Passed {
				allPass = false
				break
			}
		}
		if allPass {
			return true, nil
		}
	}
	return false, nil
}
