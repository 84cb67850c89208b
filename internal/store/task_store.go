package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/taskhub/internal/entity"
	"github.com/nhle/taskhub/internal/model"
)

const taskColumns = `id, project_id, title, description, priority, status,
	COALESCE(assignee_id, '') AS assignee_id, due_date, created_at, updated_at`

// ListTasks returns every task ordered by id.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	err := s.db.SelectContext(ctx, &tasks, "SELECT "+taskColumns+" FROM tasks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

// GetTask retrieves a single task by id.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (model.Task, error) {
	var t model.Task
	err := s.db.GetContext(ctx, &t, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, &entity.NotFoundError{Kind: "task", ID: id}
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("getting task %s: %w", id, err)
	}
	return t, nil
}

// CreateTask inserts a task. The project must exist.
func (s *SQLiteStore) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if err := t.Validate(); err != nil {
		return model.Task{}, err
	}
	now := s.clock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (project_id, title, description, priority, status, assignee_id, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectID, t.Title, t.Description, t.Priority, t.Status,
		nullable(t.AssigneeID), dueDate(t.DueDate), now, now,
	)
	if isForeignKeyViolation(err) {
		return model.Task{}, &entity.NotFoundError{Kind: "project", ID: t.ProjectID}
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Task{}, fmt.Errorf("reading task id: %w", err)
	}
	return s.GetTask(ctx, strconv.FormatInt(id, 10))
}

// UpdateTask overwrites a task. CreatedAt is kept.
func (s *SQLiteStore) UpdateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if err := t.Validate(); err != nil {
		return model.Task{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			project_id = ?, title = ?, description = ?, priority = ?, status = ?,
			assignee_id = ?, due_date = ?, updated_at = ?
		WHERE id = ?`,
		t.ProjectID, t.Title, t.Description, t.Priority, t.Status,
		nullable(t.AssigneeID), dueDate(t.DueDate), s.clock(),
		t.ID,
	)
	if isForeignKeyViolation(err) {
		return model.Task{}, &entity.NotFoundError{Kind: "project", ID: t.ProjectID}
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("updating task %s: %w", t.ID, err)
	}
	if err := checkAffected(res, "task", t.ID); err != nil {
		return model.Task{}, err
	}
	return s.GetTask(ctx, t.ID)
}

// DeleteTask removes a task.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return checkAffected(res, "task", id)
}

func dueDate(d *time.Time) any {
	if d == nil {
		return nil
	}
	return d.UTC()
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
