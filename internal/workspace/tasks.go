package workspace

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nhle/taskhub/internal/crossref"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/policy"
	"github.com/nhle/taskhub/internal/source"
)

// CreateTask adds a task to an existing project. Missing priority and
// status default to medium and backlog.
func (w *Workspace) CreateTask(ctx context.Context, actor model.User, t model.Task) (model.Task, error) {
	project, err := w.Projects.Get(t.ProjectID)
	if err != nil {
		return model.Task{}, err
	}
	if err := policy.Check(actor.Role, policy.ManageTasks, policy.OwnershipOf(actor, project)); err != nil {
		return model.Task{}, err
	}

	t.ID = ""
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if t.Status == "" {
		t.Status = model.StatusBacklog
	}
	if err := t.Validate(); err != nil {
		return model.Task{}, err
	}
	if err := checkAssignee(project, t.AssigneeID); err != nil {
		return model.Task{}, err
	}

	got, err := applyCreate(w, w.Tasks, source.OpCreateTask, t, func(t model.Task) (model.Task, error) {
		return w.backend.CreateTask(ctx, t)
	})
	if err != nil {
		return model.Task{}, err
	}
	w.Activity.Record(ctx, actor.Name, "created task", got.Title)
	if got.AssigneeID != "" {
		w.notifyAssigned(ctx, actor, got)
	}
	return got, nil
}

// UpdateTask replaces the fields of an existing task. Moving a task to
// another project requires task management rights on both.
func (w *Workspace) UpdateTask(ctx context.Context, actor model.User, t model.Task) (model.Task, error) {
	cur, err := w.Tasks.Get(t.ID)
	if err != nil {
		return model.Task{}, err
	}
	from, err := w.Projects.Get(cur.ProjectID)
	if err != nil {
		return model.Task{}, err
	}
	if err := policy.Check(actor.Role, policy.ManageTasks, policy.OwnershipOf(actor, from)); err != nil {
		return model.Task{}, err
	}
	to := from
	if t.ProjectID != cur.ProjectID {
		if to, err = w.Projects.Get(t.ProjectID); err != nil {
			return model.Task{}, err
		}
		if err := policy.Check(actor.Role, policy.ManageTasks, policy.OwnershipOf(actor, to)); err != nil {
			return model.Task{}, err
		}
	}

	t.CreatedAt = cur.CreatedAt
	if err := t.Validate(); err != nil {
		return model.Task{}, err
	}
	if err := checkAssignee(to, t.AssigneeID); err != nil {
		return model.Task{}, err
	}

	got, err := applyUpdate(w, w.Tasks, source.OpUpdateTask, t.ID, t, func(t model.Task) (model.Task, error) {
		return w.backend.UpdateTask(ctx, t)
	})
	if err != nil {
		return model.Task{}, err
	}
	w.Activity.Record(ctx, actor.Name, "updated task", got.Title)
	if got.AssigneeID != "" && got.AssigneeID != cur.AssigneeID {
		w.notifyAssigned(ctx, actor, got)
	}
	return got, nil
}

// MoveTask changes only the status of a task. Members of the project may
// move its tasks even though they may not otherwise edit them.
func (w *Workspace) MoveTask(ctx context.Context, actor model.User, id string, status model.TaskStatus) (model.Task, error) {
	cur, err := w.Tasks.Get(id)
	if err != nil {
		return model.Task{}, err
	}
	project, err := w.Projects.Get(cur.ProjectID)
	if err != nil {
		return model.Task{}, err
	}
	if err := policy.Check(actor.Role, policy.UpdateTaskStatus, policy.OwnershipOf(actor, project)); err != nil {
		return model.Task{}, err
	}
	if !status.Valid() {
		return model.Task{}, &model.ValidationError{Entity: "task", Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	if cur.Status == status {
		return cur, nil
	}

	next := cur
	next.Status = status
	got, err := applyUpdate(w, w.Tasks, source.OpUpdateTask, id, next, func(t model.Task) (model.Task, error) {
		return w.backend.UpdateTask(ctx, t)
	})
	if err != nil {
		return model.Task{}, err
	}
	w.Activity.Record(ctx, actor.Name, "moved task to "+status.Label(), got.Title)
	return got, nil
}

// DeleteTask removes a task.
func (w *Workspace) DeleteTask(ctx context.Context, actor model.User, id string) error {
	cur, err := w.Tasks.Get(id)
	if err != nil {
		return err
	}
	project, err := w.Projects.Get(cur.ProjectID)
	if err != nil {
		return err
	}
	if err := policy.Check(actor.Role, policy.ManageTasks, policy.OwnershipOf(actor, project)); err != nil {
		return err
	}

	if _, err := applyRemove(w, w.Tasks, source.OpDeleteTask, id, func() error {
		return w.backend.DeleteTask(ctx, id)
	}); err != nil {
		return err
	}
	w.Activity.Record(ctx, actor.Name, "deleted task", cur.Title)
	return nil
}

func checkAssignee(project model.Project, assigneeID string) error {
	if assigneeID == "" || project.Involves(assigneeID) {
		return nil
	}
	return &model.ValidationError{
		Entity: "task",
		Field:  "assignee_id",
		Reason: fmt.Sprintf("user %s is not on project %q", assigneeID, project.Title),
	}
}

// notifyAssigned tells the assignee about a task. When the backend also
// serves the notification feed the notification is stored there; otherwise,
// or if storing fails, it is shown locally only.
func (w *Workspace) notifyAssigned(ctx context.Context, actor model.User, t model.Task) {
	assignee := t.AssigneeID
	if u, err := w.Users.Get(t.AssigneeID); err == nil {
		assignee = u.Name
	}
	ref := model.ObjectRef("task", t.ID)
	n := model.Notification{
		Actor:            actor.Name,
		Verb:             fmt.Sprintf("assigned %q to %s", t.Title, assignee),
		RelatedObjectRef: ref,
		Link:             crossref.LinkFor(ref),
		Timestamp:        w.now().UTC(),
	}

	if writer, ok := w.backend.(source.NotificationWriter); ok && w.ownFeed {
		stored, err := writer.CreateNotification(ctx, n)
		if err == nil {
			if _, err := w.Notifications.Deliver(stored); err != nil {
				w.log.Warn("showing assignment notification", zap.String("task_id", t.ID), zap.Error(err))
			}
			return
		}
		w.log.Warn("storing assignment notification", zap.String("task_id", t.ID), zap.Error(err))
	}
	if _, err := w.Notifications.Push(n); err != nil {
		w.log.Warn("showing assignment notification", zap.String("task_id", t.ID), zap.Error(err))
	}
}
