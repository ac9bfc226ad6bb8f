package store

import (
	"database/sql"
	"time"
)

// CreateApprovalTx inserts an immutable Approval record within tx.
func CreateApprovalTx(tx *sql.Tx, a *Approval) error {
	a.CreatedAt = time.Now().UTC()
	_, err := tx.Exec(`
		INSERT INTO approvals (id, project_id, change_request_id, task_version_id, approver, decision, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProjectID, nullable(a.ChangeRequestID), nullable(a.TaskVersionID), a.Approver,
		string(a.Decision), a.Notes, a.CreatedAt.Format(timeFmt))
	return mapSQLErr(err, "")
}

// ListApprovalsForChangeRequest returns all approvals recorded against a CR.
func (d *DB) ListApprovalsForChangeRequest(crID string) ([]*Approval, error) {
	rows, err := d.db.Query(`
		SELECT id, project_id, change_request_id, task_version_id, approver, decision, notes, created_at
		FROM approvals WHERE change_request_id = ? ORDER BY created_at ASC`, crID)
	if err != nil {
		return nil, mapSQLErr(err, "")
	}
	defer rows.Close()

	var out []*Approval
	for rows.Next() {
		var a Approval
		var cr, tv sql.NullString
		var decision, created string
		if err := rows.Scan(&a.ID, &a.ProjectID, &cr, &tv, &a.Approver, &decision, &a.Notes, &created); err != nil {
			return nil, mapSQLErr(err, "")
		}
		a.ChangeRequestID = cr.String
		a.TaskVersionID = tv.String
		a.Decision = ApprovalDecision(decision)
		a.CreatedAt, _ = time.Parse(timeFmt, created)
		out = append(out, &a)
	}
	return out, rows.Err()
}
