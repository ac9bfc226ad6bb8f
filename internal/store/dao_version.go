package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/randalmurphal/governor/internal/errs"
)

// NextVersionTx returns the next version number for a task within tx,
// guaranteeing the strictly-increasing, gap-free sequence spec.md §3
// requires. Callers must hold the task's per-task lock (see
// internal/governance) across read-then-insert to avoid a race between
// concurrent editors.
func NextVersionTx(tx *sql.Tx, taskID string) (int, error) {
	var max sql.NullInt64
	row := tx.QueryRow(`SELECT MAX(version) FROM task_versions WHERE task_id = ?`, taskID)
	if err := row.Scan(&max); err != nil {
		return 0, mapSQLErr(err, "")
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// CreateTaskVersionTx inserts a new immutable TaskVersion row.
func CreateTaskVersionTx(tx *sql.Tx, v *TaskVersion) error {
	v.CreatedAt = time.Now().UTC()
	ac, err := json.Marshal(v.AcceptanceCriteria)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "marshal acceptance criteria", err)
	}
	deps, err := json.Marshal(v.Dependencies)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "marshal dependencies", err)
	}
	gates, err := json.Marshal(v.GateSpecs)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "marshal gate specs", err)
	}
	_, err = tx.Exec(`
		INSERT INTO task_versions (id, task_id, version, title, description, acceptance_criteria, dependencies, gate_specs, phase_at_creation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.TaskID, v.Version, v.Title, v.Description, string(ac), string(deps), string(gates),
		string(v.PhaseAtCreation), v.CreatedAt.Format(timeFmt))
	if err != nil {
		return mapSQLErr(err, "")
	}
	return nil
}

// GetTaskVersion loads one version by id.
func (d *DB) GetTaskVersion(id string) (*TaskVersion, error) {
	row := d.db.QueryRow(versionSelect+` WHERE id = ?`, id)
	return scanVersion(row)
}

const versionSelect = `
	SELECT id, task_id, version, title, description, acceptance_criteria, dependencies, gate_specs, phase_at_creation, created_at
	FROM task_versions`

func scanVersion(row *sql.Row) (*TaskVersion, error) {
	var v TaskVersion
	var ac, deps, gates, phase, created string
	if err := row.Scan(&v.ID, &v.TaskID, &v.Version, &v.Title, &v.Description, &ac, &deps, &gates, &phase, &created); err != nil {
		return nil, mapSQLErr(err, "task version not found")
	}
	_ = json.Unmarshal([]byte(ac), &v.AcceptanceCriteria)
	_ = json.Unmarshal([]byte(deps), &v.Dependencies)
	_ = json.Unmarshal([]byte(gates), &v.GateSpecs)
	v.PhaseAtCreation = Phase(phase)
	v.CreatedAt, _ = time.Parse(timeFmt, created)
	return &v, nil
}

// ListTaskVersions returns every version of a task in ascending order,
// forming the gap-free {1..N} sequence spec.md §8 requires.
func (d *DB) ListTaskVersions(taskID string) ([]*TaskVersion, error) {
	rows, err := d.db.Query(versionSelect+` WHERE task_id = ? ORDER BY version ASC`, taskID)
	if err != nil {
		return nil, mapSQLErr(err, "")
	}
	defer rows.Close()

	var out []*TaskVersion
	for rows.Next() {
		var v TaskVersion
		var ac, deps, gates, phase, created string
		if err := rows.Scan(&v.ID, &v.TaskID, &v.Version, &v.Title, &v.Description, &ac, &deps, &gates, &phase, &created); err != nil {
			return nil, mapSQLErr(err, "")
		}
		_ = json.Unmarshal([]byte(ac), &v.AcceptanceCriteria)
		_ = json.Unmarshal([]byte(deps), &v.Dependencies)
		_ = json.Unmarshal([]byte(gates), &v.GateSpecs)
		v.PhaseAtCreation = Phase(phase)
		v.CreatedAt, _ = time.Parse(timeFmt, created)
		out = append(out, &v)
	}
	return out, rows.Err()
}
