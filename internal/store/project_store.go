package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/taskhub/internal/entity"
	"github.com/nhle/taskhub/internal/model"
)

const projectColumns = `id, title, description, start_date, end_date, status, progress,
	COALESCE(manager_id, '') AS manager_id, created_at, updated_at`

// ListProjects returns every project with its member list, ordered by id.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	err := s.db.SelectContext(ctx, &projects, "SELECT "+projectColumns+" FROM projects ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	members, err := s.loadMembers(ctx, s.db, "")
	if err != nil {
		return nil, err
	}
	for i := range projects {
		projects[i].Members = members[projects[i].ID]
	}
	return projects, nil
}

// GetProject retrieves a single project by id.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (model.Project, error) {
	var p model.Project
	err := s.db.GetContext(ctx, &p, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, &entity.NotFoundError{Kind: "project", ID: id}
	}
	if err != nil {
		return model.Project{}, fmt.Errorf("getting project %s: %w", id, err)
	}

	members, err := s.loadMembers(ctx, s.db, id)
	if err != nil {
		return model.Project{}, err
	}
	p.Members = members[p.ID]
	return p, nil
}

// CreateProject inserts a project and its members in one transaction.
func (s *SQLiteStore) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return model.Project{}, err
	}
	now := s.clock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Project{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO projects (title, description, start_date, end_date, status, progress, manager_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Description, p.StartDate.UTC(), p.EndDate.UTC(), p.Status, p.Progress,
		nullable(p.ManagerID), now, now,
	)
	if err != nil {
		return model.Project{}, fmt.Errorf("creating project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Project{}, fmt.Errorf("reading project id: %w", err)
	}
	p.ID = strconv.FormatInt(id, 10)

	if err := replaceMembers(ctx, tx, p.ID, p.Members); err != nil {
		return model.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Project{}, fmt.Errorf("committing project: %w", err)
	}
	return s.GetProject(ctx, p.ID)
}

// UpdateProject overwrites a project and replaces its member list.
func (s *SQLiteStore) UpdateProject(ctx context.Context, p model.Project) (model.Project, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return model.Project{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Project{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE projects SET
			title = ?, description = ?, start_date = ?, end_date = ?,
			status = ?, progress = ?, manager_id = ?, updated_at = ?
		WHERE id = ?`,
		p.Title, p.Description, p.StartDate.UTC(), p.EndDate.UTC(),
		p.Status, p.Progress, nullable(p.ManagerID), s.clock(),
		p.ID,
	)
	if err != nil {
		return model.Project{}, fmt.Errorf("updating project %s: %w", p.ID, err)
	}
	if err := checkAffected(res, "project", p.ID); err != nil {
		return model.Project{}, err
	}
	if err := replaceMembers(ctx, tx, p.ID, p.Members); err != nil {
		return model.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Project{}, fmt.Errorf("committing project: %w", err)
	}
	return s.GetProject(ctx, p.ID)
}

// DeleteProject removes a project. Its tasks and memberships cascade.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	return checkAffected(res, "project", id)
}

// loadMembers returns member ids keyed by project id, in insertion order.
// An empty projectID loads every project.
func (s *SQLiteStore) loadMembers(ctx context.Context, q sqlx.QueryerContext, projectID string) (map[string][]string, error) {
	query := "SELECT project_id, user_id FROM project_members"
	var args []any
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY project_id, position"

	var rows []struct {
		ProjectID string `db:"project_id"`
		UserID    string `db:"user_id"`
	}
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("loading project members: %w", err)
	}

	out := make(map[string][]string)
	for _, r := range rows {
		out[r.ProjectID] = append(out[r.ProjectID], r.UserID)
	}
	return out, nil
}

func replaceMembers(ctx context.Context, tx *sqlx.Tx, projectID string, members []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM project_members WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("clearing members of project %s: %w", projectID, err)
	}

	stmt, err := tx.PreparexContext(ctx,
		"INSERT INTO project_members (project_id, user_id, position) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing member insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range members {
		if _, err := stmt.ExecContext(ctx, projectID, m, i); err != nil {
			return fmt.Errorf("adding member %s to project %s: %w", m, projectID, err)
		}
	}
	return nil
}
