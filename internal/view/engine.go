// Package view derives read-only projections (board columns, filtered
// lists, scoped project lists, unread counts) from entity snapshots.
// Nothing here mutates its inputs.
package view

import (
	"cmp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/policy"
)

// Columns groups tasks by status. Tasks keep their input order within a column.
type Columns map[model.TaskStatus][]model.Task

// TaskFilter selects tasks. Empty fields match everything; set fields are ANDed.
type TaskFilter struct {
	Priority   model.Priority   `json:"priority,omitempty"`
	AssigneeID string           `json:"assignee_id,omitempty"`
	ProjectID  string           `json:"project_id,omitempty"`
	Status     model.TaskStatus `json:"status,omitempty"`
	SearchTerm string           `json:"search,omitempty"`
}

// SortField names a task attribute to order by.
type SortField string

const (
	SortNone      SortField = ""
	SortTitle     SortField = "title"
	SortPriority  SortField = "priority"
	SortStatus    SortField = "status"
	SortDueDate   SortField = "due_date"
	SortCreatedAt SortField = "created_at"
)

// Direction is ascending or descending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort orders a task list.
type Sort struct {
	Field     SortField `json:"field,omitempty"`
	Direction Direction `json:"direction,omitempty"`
}

// ParseSort reads "field" or "field:desc".
func ParseSort(s string) Sort {
	field, dir, _ := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	out := Sort{Field: SortField(field), Direction: Asc}
	if dir == string(Desc) {
		out.Direction = Desc
	}
	return out
}

// Engine computes projections.
type Engine struct {
	log *zap.Logger
}

// NewEngine creates an Engine. A nil logger is replaced by a no-op one.
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log.Named("view")}
}

// KanbanColumns groups tasks under the requested statuses. Every requested
// status gets an entry, possibly empty. Tasks with any other status are
// left out.
func (e *Engine) KanbanColumns(tasks []model.Task, statuses []model.TaskStatus) Columns {
	cols := make(Columns, len(statuses))
	for _, st := range statuses {
		cols[st] = []model.Task{}
	}
	for _, t := range tasks {
		col, ok := cols[t.Status]
		if !ok {
			e.log.Debug("task status has no column",
				zap.String("task_id", t.ID),
				zap.String("status", string(t.Status)))
			continue
		}
		cols[t.Status] = append(col, t.Clone())
	}
	return cols
}

// FilterAndSort returns the tasks matching filter, ordered by sort. The
// sort is stable, so tasks comparing equal keep their input order; an
// unknown or empty sort field keeps input order entirely. Tasks without a
// due date sort last in both directions.
func (e *Engine) FilterAndSort(tasks []model.Task, filter TaskFilter, sort Sort) []model.Task {
	term := strings.ToLower(strings.TrimSpace(filter.SearchTerm))

	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if matches(t, filter, term) {
			out = append(out, t.Clone())
		}
	}

	less := compareBy(sort.Field)
	if less == nil {
		if sort.Field != SortNone {
			e.log.Debug("ignoring unknown sort field", zap.String("field", string(sort.Field)))
		}
		return out
	}

	desc := sort.Direction == Desc
	slices.SortStableFunc(out, func(a, b model.Task) int {
		if sort.Field == SortDueDate {
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return 0
			case a.DueDate == nil:
				return 1
			case b.DueDate == nil:
				return -1
			}
		}
		c := less(a, b)
		if desc {
			return -c
		}
		return c
	})
	return out
}

func matches(t model.Task, f TaskFilter, term string) bool {
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.AssigneeID != "" && t.AssigneeID != f.AssigneeID {
		return false
	}
	if f.ProjectID != "" && t.ProjectID != f.ProjectID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if term != "" {
		hay := strings.ToLower(t.Title + "\n" + t.Description)
		if !strings.Contains(hay, term) {
			return false
		}
	}
	return true
}

func statusRank(s model.TaskStatus) int {
	if i := slices.Index(model.TaskStatuses, s); i >= 0 {
		return i
	}
	return len(model.TaskStatuses)
}

func compareBy(field SortField) func(a, b model.Task) int {
	switch field {
	case SortTitle:
		return func(a, b model.Task) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	case SortPriority:
		return func(a, b model.Task) int { return cmp.Compare(a.Priority.Rank(), b.Priority.Rank()) }
	case SortStatus:
		return func(a, b model.Task) int { return cmp.Compare(statusRank(a.Status), statusRank(b.Status)) }
	case SortDueDate:
		return func(a, b model.Task) int { return a.DueDate.Compare(*b.DueDate) }
	case SortCreatedAt:
		return func(a, b model.Task) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
	return nil
}

// ScopedProjects returns the projects user may see. Roles allowed to view
// any project see everything unless assignedToMe is set; everyone else,
// unknown roles included, sees only projects they manage or belong to.
func (e *Engine) ScopedProjects(projects []model.Project, user model.User, assignedToMe bool) []model.Project {
	seeAll := policy.Allowed(user.Role, policy.ViewProject, policy.Ownership{})

	out := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		if (seeAll && !assignedToMe) || p.Involves(user.ID) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// UnreadCount returns the number of notifications not yet read.
func UnreadCount(ns []model.Notification) int {
	n := 0
	for _, x := range ns {
		if !x.IsRead {
			n++
		}
	}
	return n
}
