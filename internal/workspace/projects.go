package workspace

import (
	"context"

	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/policy"
	"github.com/nhle/taskhub/internal/source"
)

// CreateProject creates p on behalf of actor. A project without a manager
// is managed by its creator.
func (w *Workspace) CreateProject(ctx context.Context, actor model.User, p model.Project) (model.Project, error) {
	if err := policy.Check(actor.Role, policy.CreateProject, policy.Ownership{}); err != nil {
		return model.Project{}, err
	}
	if p.ManagerID == "" {
		p.ManagerID = actor.ID
	}
	p.ID = ""
	p.Normalize()
	if err := p.Validate(); err != nil {
		return model.Project{}, err
	}

	got, err := applyCreate(w, w.Projects, source.OpCreateProject, p, func(p model.Project) (model.Project, error) {
		return w.backend.CreateProject(ctx, p)
	})
	if err != nil {
		return model.Project{}, err
	}
	w.Activity.Record(ctx, actor.Name, "created project", got.Title)
	return got, nil
}

// UpdateProject replaces the editable fields of an existing project.
func (w *Workspace) UpdateProject(ctx context.Context, actor model.User, p model.Project) (model.Project, error) {
	cur, err := w.Projects.Get(p.ID)
	if err != nil {
		return model.Project{}, err
	}
	if err := policy.Check(actor.Role, policy.EditProject, policy.OwnershipOf(actor, cur)); err != nil {
		return model.Project{}, err
	}
	p.CreatedAt = cur.CreatedAt
	p.Normalize()
	if err := p.Validate(); err != nil {
		return model.Project{}, err
	}

	got, err := applyUpdate(w, w.Projects, source.OpUpdateProject, p.ID, p, func(p model.Project) (model.Project, error) {
		return w.backend.UpdateProject(ctx, p)
	})
	if err != nil {
		return model.Project{}, err
	}
	w.Activity.Record(ctx, actor.Name, "updated project", got.Title)
	return got, nil
}

// DeleteProject removes a project and, locally, all of its tasks. If the
// backend refuses, both are restored.
func (w *Workspace) DeleteProject(ctx context.Context, actor model.User, id string) error {
	cur, err := w.Projects.Get(id)
	if err != nil {
		return err
	}
	if err := policy.Check(actor.Role, policy.DeleteProject, policy.OwnershipOf(actor, cur)); err != nil {
		return err
	}

	dropped := removeWhere(w.Tasks, func(t model.Task) bool { return t.ProjectID == id })

	_, err = applyRemove[model.Project](w, w.Projects, source.OpDeleteProject, id, func() error {
		return w.backend.DeleteProject(ctx, id)
	})
	if err != nil {
		restore(w, w.Tasks, dropped)
		return err
	}
	w.Activity.Record(ctx, actor.Name, "deleted project", cur.Title)
	return nil
}
