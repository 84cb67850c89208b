package model

import (
	"strings"
	"time"
)

// TaskStatus is the board column a task sits in.
type TaskStatus string

// Task status constants. Transitions between them are unrestricted.
const (
	StatusBacklog    TaskStatus = "back_log"
	StatusInProgress TaskStatus = "in_progress"
	StatusBlocked    TaskStatus = "blocked"
	StatusDone       TaskStatus = "done"
)

// TaskStatuses lists every status in board order.
var TaskStatuses = []TaskStatus{
	StatusBacklog,
	StatusInProgress,
	StatusBlocked,
	StatusDone,
}

// Valid reports whether s is one of the enumerated statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusBacklog, StatusInProgress, StatusBlocked, StatusDone:
		return true
	}
	return false
}

// Label returns the column heading for s.
func (s TaskStatus) Label() string {
	switch s {
	case StatusBacklog:
		return "Backlog"
	case StatusInProgress:
		return "In Progress"
	case StatusBlocked:
		return "Blocked"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// Priority is the urgency of a task.
type Priority string

// Priority constants, most urgent first.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Valid reports whether p is one of the enumerated priorities.
func (p Priority) Valid() bool {
	return p.Rank() < 4
}

// Rank orders priorities for sorting (lower = more urgent).
// Unknown priorities rank after low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// ParsePriority normalizes a user-supplied priority string.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

// ParseTaskStatus normalizes a user-supplied status string. Spaces and
// dashes are accepted in place of underscores ("in progress", "back-log").
func ParseTaskStatus(s string) (TaskStatus, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	if norm == "backlog" {
		norm = string(StatusBacklog)
	}
	st := TaskStatus(norm)
	return st, st.Valid()
}

// Task is a unit of work on a project board.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id" db:"id"`

	// ProjectID references the owning project.
	ProjectID string `json:"project_id" db:"project_id"`

	// Title is the human-readable summary of the task.
	Title string `json:"title" db:"title"`

	// Description is the full body text.
	Description string `json:"description" db:"description"`

	// Priority is one of the Priority* constants.
	Priority Priority `json:"priority" db:"priority"`

	// Status is one of the Status* constants.
	Status TaskStatus `json:"status" db:"status"`

	// AssigneeID references a user who belongs to the project, or is empty.
	AssigneeID string `json:"assignee_id" db:"assignee_id"`

	// DueDate is optional.
	DueDate *time.Time `json:"due_date,omitempty" db:"due_date"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (t Task) GetID() string { return t.ID }

func (t Task) WithID(id string) Task {
	t.ID = id
	return t
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	return t
}

// IsOverdue reports whether the task is past its due date and not done.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != StatusDone
}

// Validate checks the task's own invariants. Cross-entity checks
// (project existence, assignee membership) belong to the workspace.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return invalid("task", "title", "must not be empty")
	}
	if strings.TrimSpace(t.ProjectID) == "" {
		return invalid("task", "project_id", "is required")
	}
	if !t.Priority.Valid() {
		return invalid("task", "priority", "unknown priority %q", t.Priority)
	}
	if !t.Status.Valid() {
		return invalid("task", "status", "unknown status %q", t.Status)
	}
	return nil
}
