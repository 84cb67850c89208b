package workspace

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/policy"
	"github.com/nhle/taskhub/internal/source"
)

// CreateUser registers an account. Role defaults to viewer and status to
// active. The password is hashed by the backend and never kept locally.
func (w *Workspace) CreateUser(ctx context.Context, actor model.User, u model.User, password string) (model.User, error) {
	if err := policy.Check(actor.Role, policy.ManageUsers, policy.Ownership{}); err != nil {
		return model.User{}, err
	}

	u.ID = ""
	u.PasswordHash = ""
	u.Email = strings.TrimSpace(u.Email)
	if u.Role == "" {
		u.Role = model.RoleViewer
	}
	if u.Status == "" {
		u.Status = model.UserActive
	}
	if err := u.Validate(); err != nil {
		return model.User{}, err
	}
	if password == "" {
		return model.User{}, &model.ValidationError{Entity: "user", Field: "password", Reason: "must not be empty"}
	}

	got, err := applyCreate(w, w.Users, source.OpCreateUser, u, func(u model.User) (model.User, error) {
		created, err := w.backend.CreateUser(ctx, u, password)
		return created.Public(), err
	})
	if err != nil {
		return model.User{}, err
	}
	w.Activity.Record(ctx, actor.Name, "created user", got.Email)
	return got, nil
}

// UpdateUser changes an account's profile, role or status.
func (w *Workspace) UpdateUser(ctx context.Context, actor model.User, u model.User) (model.User, error) {
	cur, err := w.Users.Get(u.ID)
	if err != nil {
		return model.User{}, err
	}
	if err := policy.Check(actor.Role, policy.ManageUsers, policy.Ownership{}); err != nil {
		return model.User{}, err
	}

	u.PasswordHash = ""
	u.CreatedAt = cur.CreatedAt
	if err := u.Validate(); err != nil {
		return model.User{}, err
	}

	got, err := applyUpdate(w, w.Users, source.OpUpdateUser, u.ID, u, func(u model.User) (model.User, error) {
		updated, err := w.backend.UpdateUser(ctx, u)
		return updated.Public(), err
	})
	if err != nil {
		return model.User{}, err
	}
	w.Activity.Record(ctx, actor.Name, "updated user", got.Email)
	return got, nil
}

// DeleteUser removes an account. Its task assignments and project
// memberships are cleared locally to match the backend.
func (w *Workspace) DeleteUser(ctx context.Context, actor model.User, id string) error {
	if err := policy.Check(actor.Role, policy.ManageUsers, policy.Ownership{}); err != nil {
		return err
	}
	if id == actor.ID {
		return &model.ValidationError{Entity: "user", Field: "id", Reason: "cannot delete the acting user"}
	}
	for _, p := range w.Projects.GetAll() {
		if len(p.Members) == 1 && p.Members[0] == id {
			return &model.ValidationError{Entity: "user", Field: "id", Reason: "is the only member of project " + strconv.Quote(p.Title)}
		}
	}

	gone, err := applyRemove(w, w.Users, source.OpDeleteUser, id, func() error {
		return w.backend.DeleteUser(ctx, id)
	})
	if err != nil {
		return err
	}

	var assigned []string
	for _, t := range w.Tasks.GetAll() {
		if t.AssigneeID == id {
			assigned = append(assigned, t.ID)
		}
	}
	if len(assigned) > 0 {
		_, _ = w.Tasks.UpdateMany(assigned, func(t *model.Task) { t.AssigneeID = "" })
	}
	for _, p := range w.Projects.GetAll() {
		if !p.Involves(id) {
			continue
		}
		_, _ = w.Projects.Update(p.ID, func(p *model.Project) {
			if p.ManagerID == id {
				p.ManagerID = ""
			}
			p.Members = slices.DeleteFunc(p.Members, func(m string) bool { return m == id })
		})
	}

	w.Activity.Record(ctx, actor.Name, "deleted user", gone.Email)
	return nil
}
