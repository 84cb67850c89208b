package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskhub/internal/model"
)

func TestAllowed_Matrix(t *testing.T) {
	none := Ownership{}
	member := Ownership{IsMember: true}
	manager := Ownership{IsManager: true}

	tests := []struct {
		role   model.Role
		action Action
		own    Ownership
		want   bool
	}{
		{model.RoleAdmin, ManageUsers, none, true},
		{model.RoleAdmin, DeleteProject, none, true},
		{model.RoleProjectManager, CreateProject, none, true},
		{model.RoleProjectManager, DeleteProject, none, true},
		{model.RoleProjectManager, ManageUsers, none, false},
		{model.RoleProjectManager, ManageUsers, manager, false},
		{model.RoleMember, ViewProject, member, true},
		{model.RoleMember, ViewProject, manager, true},
		{model.RoleMember, ViewProject, none, false},
		{model.RoleMember, UpdateTaskStatus, member, true},
		{model.RoleMember, UpdateTaskStatus, none, false},
		{model.RoleMember, ManageTasks, member, false},
		{model.RoleMember, EditProject, member, false},
		{model.RoleMember, CreateProject, none, false},
		{model.RoleViewer, ViewProject, member, true},
		{model.RoleViewer, ViewProject, none, false},
		{model.RoleViewer, UpdateTaskStatus, member, false},
		{model.RoleViewer, DeleteProject, none, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.role)+"/"+string(tc.action), func(t *testing.T) {
			assert.Equal(t, tc.want, Allowed(tc.role, tc.action, tc.own))
		})
	}
}

func TestAllowed_AdminCanDoEverything(t *testing.T) {
	for _, a := range Actions {
		assert.True(t, Allowed(model.RoleAdmin, a, Ownership{}), a)
	}
}

func TestAllowed_UnknownRoleFailsClosed(t *testing.T) {
	superuser := model.Role("superuser")

	assert.False(t, Allowed(superuser, DeleteProject, Ownership{}))
	assert.False(t, Allowed(superuser, ManageUsers, Ownership{IsManager: true}))
	assert.False(t, Allowed("", CreateProject, Ownership{}))

	for _, a := range Actions {
		for _, own := range []Ownership{{}, {IsMember: true}, {IsManager: true}} {
			assert.Equal(t,
				Allowed(model.RoleViewer, a, own),
				Allowed(superuser, a, own),
				"unknown role must match viewer for %s", a)
		}
	}
}

func TestAllowed_UnknownActionDenied(t *testing.T) {
	assert.False(t, Allowed(model.RoleAdmin, Action("launchRockets"), Ownership{IsManager: true}))
}

func TestCheck(t *testing.T) {
	require.NoError(t, Check(model.RoleAdmin, DeleteProject, Ownership{}))

	err := Check(model.RoleViewer, DeleteProject, Ownership{})
	require.Error(t, err)
	assert.True(t, IsPermissionError(err))
	assert.Equal(t, "permission denied: viewer may not deleteProject", err.Error())
}

func TestOwnershipOf(t *testing.T) {
	p := model.Project{ID: "1", ManagerID: "7", Members: []string{"7", "9"}}

	assert.Equal(t, Ownership{IsManager: true, IsMember: true}, OwnershipOf(model.User{ID: "7"}, p))
	assert.Equal(t, Ownership{IsMember: true}, OwnershipOf(model.User{ID: "9"}, p))
	assert.Equal(t, Ownership{}, OwnershipOf(model.User{ID: "3"}, p))
	assert.Equal(t, Ownership{}, OwnershipOf(model.User{}, model.Project{}))
}
