package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/randalmurphal/governor/internal/errs"
)

// CreateChangeRequest inserts a new CR in DRAFT status.
func (d *DB) CreateChangeRequest(cr *ChangeRequest) error {
	now := time.Now().UTC()
	cr.CreatedAt, cr.UpdatedAt = now, now
	delta, err := json.Marshal(cr.ProposedDelta)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "marshal proposed delta", err)
	}
	_, err = d.db.Exec(`
		INSERT INTO change_requests (id, project_id, target_task_id, kind, status, proposed_delta, diff_artifact_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cr.ID, cr.ProjectID, cr.TargetTaskID, string(cr.Kind), string(cr.Status), string(delta),
		nullable(cr.DiffArtifactID), cr.CreatedAt.Format(timeFmt), cr.UpdatedAt.Format(timeFmt))
	if err != nil {
		return mapSQLErr(err, "")
	}
	return nil
}

const crSelect = `
	SELECT id, project_id, target_task_id, kind, status, proposed_delta, diff_artifact_id, created_at, updated_at
	FROM change_requests`

// GetChangeRequest loads a CR by id.
func (d *DB) GetChangeRequest(id string) (*ChangeRequest, error) {
	row := d.db.QueryRow(crSelect+` WHERE id = ?`, id)
	return scanCR(row)
}

// GetChangeRequestTx loads a CR by id within a transaction (used by
// governance's Decide, which must read-then-mutate atomically).
func GetChangeRequestTx(tx *sql.Tx, id string) (*ChangeRequest, error) {
	row := tx.QueryRow(crSelect+` WHERE id = ?`, id)
	return scanCR(row)
}

func scanCR(row *sql.Row) (*ChangeRequest, error) {
	var cr ChangeRequest
	var kind, status, delta, created, updated string
	var diffArtifact sql.NullString
	if err := row.Scan(&cr.ID, &cr.ProjectID, &cr.TargetTaskID, &kind, &status, &delta, &diffArtifact, &created, &updated); err != nil {
		return nil, mapSQLErr(err, "change request not found")
	}
	cr.Kind = ChangeRequestKind(kind)
	cr.Status = ChangeRequestStatus(status)
	cr.DiffArtifactID = diffArtifact.String
	_ = json.Unmarshal([]byte(delta), &cr.ProposedDelta)
	cr.CreatedAt, _ = time.Parse(timeFmt, created)
	cr.UpdatedAt, _ = time.Parse(timeFmt, updated)
	return &cr, nil
}

// ListChangeRequestsForTask returns every CR targeting a task, newest first.
func (d *DB) ListChangeRequestsForTask(taskID string) ([]*ChangeRequest, error) {
	rows, err := d.db.Query(crSelect+` WHERE target_task_id = ? ORDER BY created_at DESC`, taskID)
	if err != nil {
		return nil, mapSQLErr(err, "")
	}
	defer rows.Close()

	var out []*ChangeRequest
	for rows.Next() {
		var cr ChangeRequest
		var kind, status, delta, created, updated string
		var diffArtifact sql.NullString
		if err := rows.Scan(&cr.ID, &cr.ProjectID, &cr.TargetTaskID, &kind, &status, &delta, &diffArtifact, &created, &updated); err != nil {
			return nil, mapSQLErr(err, "")
		}
		cr.Kind = ChangeRequestKind(kind)
		cr.Status = ChangeRequestStatus(status)
		cr.DiffArtifactID = diffArtifact.String
		_ = json.Unmarshal([]byte(delta), &cr.ProposedDelta)
		cr.CreatedAt, _ = time.Parse(timeFmt, created)
		cr.UpdatedAt, _ = time.Parse(timeFmt, updated)
		out = append(out, &cr)
	}
	return out, rows.Err()
}

// UpdateChangeRequestStatusTx transitions a CR's status within tx.
func UpdateChangeRequestStatusTx(tx *sql.Tx, id string, status ChangeRequestStatus) error {
	res, err := tx.Exec(`UPDATE change_requests SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(timeFmt), id)
	if err != nil {
		return mapSQLErr(err, "")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.NotFound("change_request", id)
	}
	return nil
}
