package store

import (
	"time"
)

// EventRow is the persisted, append-only audit record for a published
// event (spec.md §3's Event entity). It is distinct from the
// in-memory replay ring internal/events.Bus keeps for live subscribers;
// this is the durable audit trail.
type EventRow struct {
	Seq           int64
	ProjectID     string
	Kind          string
	CorrelationID string
	Payload       string
	CreatedAt     time.Time
}

// AppendEvent inserts an audit row and returns its assigned sequence number.
func (d *DB) AppendEvent(projectID, kind, correlationID, payloadJSON string) (int64, error) {
	now := time.Now().UTC().Format(timeFmt)
	res, err := d.db.Exec(`
		INSERT INTO events (project_id, kind, correlation_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`, projectID, kind, correlationID, payloadJSON, now)
	if err != nil {
		return 0, mapSQLErr(err, "")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapSQLErr(err, "")
	}
	return id, nil
}

// ListEventsSince returns every audit row for a project with seq > since,
// in publication order, backing durable replay for late joiners beyond
// the in-memory ring's retention window.
func (d *DB) ListEventsSince(projectID string, since int64) ([]EventRow, error) {
	rows, err := d.db.Query(`
		SELECT seq, project_id, kind, correlation_id, payload, created_at
		FROM events WHERE project_id = ? AND seq > ? ORDER BY seq ASC`, projectID, since)
	if err != nil {
		return nil, mapSQLErr(err, "")
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		var created string
		if err := rows.Scan(&e.Seq, &e.ProjectID, &e.Kind, &e.CorrelationID, &e.Payload, &created); err != nil {
			return nil, mapSQLErr(err, "")
		}
		e.CreatedAt, _ = time.Parse(timeFmt, created)
		out = append(out, e)
	}
	return out, rows.Err()
}
