package store

import (
	"database/sql"
	"time"

	"github.com/randalmurphal/governor/internal/errs"
)

// CreateArtifact inserts an artifact metadata row. Deduplication (same
// project + hash) is enforced by the artifacts table's unique
// constraint; GetArtifactByHash lets the Artifact Store check for an
// existing row before writing new content.
func (d *DB) CreateArtifact(a *Artifact) error {
	a.CreatedAt = time.Now().UTC()
	_, err := d.db.Exec(`
		INSERT INTO artifacts (id, project_id, kind, path, hash, size, run_id, task_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProjectID, string(a.Kind), a.Path, a.Hash, a.Size,
		nullable(a.RunID), nullable(a.TaskID), a.CreatedAt.Format(timeFmt))
	return mapSQLErr(err, "")
}

const artifactSelect = `
	SELECT id, project_id, kind, path, hash, size, run_id, task_id, created_at
	FROM artifacts`

// GetArtifact loads artifact metadata by id.
func (d *DB) GetArtifact(id string) (*Artifact, error) {
	row := d.db.QueryRow(artifactSelect+` WHERE id = ?`, id)
	return scanArtifact(row)
}

// GetArtifactByHash looks up an existing artifact for a project by
// content hash, used by the Artifact Store to implement put-dedup.
func (d *DB) GetArtifactByHash(projectID, hash string) (*Artifact, error) {
	row := d.db.QueryRow(artifactSelect+` WHERE project_id = ? AND hash = ?`, projectID, hash)
	a, err := scanArtifact(row)
	if err != nil {
		if errs.Is(err, errs.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func scanArtifact(row *sql.Row) (*Artifact, error) {
	var a Artifact
	var kind, created string
	var runID, taskID sql.NullString
	if err := row.Scan(&a.ID, &a.ProjectID, &kind, &a.Path, &a.Hash, &a.Size, &runID, &taskID, &created); err != nil {
		return nil, mapSQLErr(err, "artifact not found")
	}
	a.Kind = ArtifactKind(kind)
	a.RunID = runID.String
	a.TaskID = taskID.String
	a.CreatedAt, _ = time.Parse(timeFmt, created)
	return &a, nil
}

// ListArtifactsForTask returns every artifact linked to a task.
func (d *DB) ListArtifactsForTask(taskID string) ([]*Artifact, error) {
	rows, err := d.db.Query(artifactSelect+` WHERE task_id = ? ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, mapSQLErr(err, "")
	}
	defer rows.Close()

	var out []*Artifact
	for rows.Next() {
		var a Artifact
		var kind, created string
		var runID, taskIDCol sql.NullString
		if err := rows.Scan(&a.ID, &a.ProjectID, &kind, &a.Path, &a.Hash, &a.Size, &runID, &taskIDCol, &created); err != nil {
			return nil, mapSQLErr(err, "")
		}
		a.Kind = ArtifactKind(kind)
		a.RunID = runID.String
		a.TaskID = taskIDCol.String
		a.CreatedAt, _ = time.Parse(timeFmt, created)
		out = append(out, &a)
	}
	return out, rows.Err()
}
