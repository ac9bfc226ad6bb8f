package store

import (
	"database/sql"
	"time"

	"github.com/randalmurphal/governor/internal/errs"
)

const timeFmt = time.RFC3339Nano

// CreateProject inserts a new project row.
func (d *DB) CreateProject(p *Project) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := d.db.Exec(`
		INSERT INTO projects (id, name, root, current_phase, default_engine, selected_option_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Root, string(p.CurrentPhase), p.DefaultEngine, p.SelectedOptionID,
		p.CreatedAt.Format(timeFmt), p.UpdatedAt.Format(timeFmt))
	if err != nil {
		return mapSQLErr(err, "")
	}
	return nil
}

// GetProject loads a project by id.
func (d *DB) GetProject(id string) (*Project, error) {
	row := d.db.QueryRow(`
		SELECT id, name, root, current_phase, default_engine, selected_option_id, created_at, updated_at
		FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// GetProjectByName loads a project by its unique name.
func (d *DB) GetProjectByName(name string) (*Project, error) {
	row := d.db.QueryRow(`
		SELECT id, name, root, current_phase, default_engine, selected_option_id, created_at, updated_at
		FROM projects WHERE name = ?`, name)
	return scanProject(row)
}

func scanProject(row *sql.Row) (*Project, error) {
	var p Project
	var phase, created, updated string
	if err := row.Scan(&p.ID, &p.Name, &p.Root, &phase, &p.DefaultEngine, &p.SelectedOptionID, &created, &updated); err != nil {
		return nil, mapSQLErr(err, "project not found")
	}
	p.CurrentPhase = Phase(phase)
	p.CreatedAt, _ = time.Parse(timeFmt, created)
	p.UpdatedAt, _ = time.Parse(timeFmt, updated)
	return &p, nil
}

// UpdateProject persists mutable project fields.
func (d *DB) UpdateProject(p *Project) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := d.db.Exec(`
		UPDATE projects SET name = ?, current_phase = ?, default_engine = ?, selected_option_id = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, string(p.CurrentPhase), p.DefaultEngine, p.SelectedOptionID, p.UpdatedAt.Format(timeFmt), p.ID)
	if err != nil {
		return mapSQLErr(err, "")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.NotFound("project", p.ID)
	}
	return nil
}

// DeleteProject removes a project; foreign keys cascade-delete all
// owned rows in dependency order (sqlite enforces this directly when
// PRAGMA foreign_keys=ON, which store.Open sets).
func (d *DB) DeleteProject(id string) error {
	res, err := d.db.Exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return mapSQLErr(err, "")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.NotFound("project", id)
	}
	return nil
}

// ListProjects returns every project, ordered by name.
func (d *DB) ListProjects() ([]*Project, error) {
	rows, err := d.db.Query(`
		SELECT id, name, root, current_phase, default_engine, selected_option_id, created_at, updated_at
		FROM projects ORDER BY name`)
	if err != nil {
		return nil, mapSQLErr(err, "")
	}
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		var p Project
		var phase, created, updated string
		if err := rows.Scan(&p.ID, &p.Name, &p.Root, &phase, &p.DefaultEngine, &p.SelectedOptionID, &created, &updated); err != nil {
			return nil, mapSQLErr(err, "")
		}
		p.CurrentPhase = Phase(phase)
		p.CreatedAt, _ = time.Parse(timeFmt, created)
		p.UpdatedAt, _ = time.Parse(timeFmt, updated)
		out = append(out, &p)
	}
	return out, rows.Err()
}
